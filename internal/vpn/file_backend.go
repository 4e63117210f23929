package vpn

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// FileBackend stores one "<ip> <0|1>" line per verdict, sorted by ip.
type FileBackend struct {
	Path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

// Load reads the verdict file. A missing file is an empty cache and a bad or
// missing flag counts as not-VPN.
func (b *FileBackend) Load(_ context.Context) (map[string]bool, error) {
	file, err := os.Open(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseVerdicts(file)
}

// parseVerdicts never fails on content. Keys are stored in canonical form and
// lines without a parseable address are skipped.
func parseVerdicts(r io.Reader) (map[string]bool, error) {
	verdicts := make(map[string]bool)

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if ip, isVPN, ok := parseVerdictLine(line); ok {
			verdicts[ip] = isVPN
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read verdicts: %w", err)
		}
	}
	return verdicts, nil
}

func parseVerdictLine(line string) (string, bool, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false, false
	}
	addr, err := netip.ParseAddr(fields[0])
	if err != nil || addr.Zone() != "" {
		return "", false, false
	}

	isVPN := false
	if len(fields) > 1 {
		if flag, err := strconv.Atoi(fields[1]); err == nil {
			isVPN = flag != 0
		}
	}
	return addr.String(), isVPN, true
}

// Save replaces the file through a temporary sibling and a rename.
func (b *FileBackend) Save(_ context.Context, verdicts map[string]bool) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".verdicts-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if err := writeVerdicts(tmpFile, verdicts); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), b.Path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

func writeVerdicts(w io.Writer, verdicts map[string]bool) error {
	buf := bufio.NewWriter(w)
	for _, ip := range slices.Sorted(maps.Keys(verdicts)) {
		flag := 0
		if verdicts[ip] {
			flag = 1
		}
		if _, err := fmt.Fprintf(buf, "%s %d\n", ip, flag); err != nil {
			return fmt.Errorf("write verdicts: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("write verdicts: %w", err)
	}
	return nil
}
