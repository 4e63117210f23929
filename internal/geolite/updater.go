package geolite

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	maxMindDownloadURL = "https://download.maxmind.com/app/geoip_download"
	userAgent          = "TeeworldsDiscordBot-geolite-updater/1.0"
	ASNEdition         = "GeoLite2-ASN"
	maxArchiveBytes    = 64 << 20
)

// ErrNoAPIKey indicates that the GeoLite license key has not been configured.
var ErrNoAPIKey = errors.New("geolite: license key is not configured")

type Updater struct {
	licenseKey string
	destPath   string
	baseURL    string
	http       *http.Client
	group      singleflight.Group
}

type Option func(*Updater)

func WithBaseURL(baseURL string) Option {
	return func(u *Updater) { u.baseURL = baseURL }
}

func WithHTTPClient(client *http.Client) Option {
	return func(u *Updater) { u.http = client }
}

func NewUpdater(licenseKey, destPath string, opts ...Option) *Updater {
	u := &Updater{
		licenseKey: strings.TrimSpace(licenseKey),
		destPath:   destPath,
		baseURL:    maxMindDownloadURL,
		http:       &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update downloads the ASN database unless a copy younger than maxAge is
// already on disk. It reports whether the file was replaced.
func (u *Updater) Update(ctx context.Context, maxAge time.Duration) (bool, error) {
	if u.licenseKey == "" {
		return false, ErrNoAPIKey
	}

	result, err, _ := u.group.Do("update", func() (any, error) {
		if info, err := os.Stat(u.destPath); err == nil && maxAge > 0 && time.Since(info.ModTime()) < maxAge {
			log.Debug("GeoLite database is fresh", "path", u.destPath, "modified", info.ModTime())
			return false, nil
		}
		if err := u.download(ctx); err != nil {
			return false, err
		}
		log.Info("GeoLite database updated", "edition", ASNEdition, "path", u.destPath)
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

func (u *Updater) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.downloadURL(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", ASNEdition, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("download %s: unexpected status %d: %s", ASNEdition, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	gzipReader, err := gzip.NewReader(io.LimitReader(resp.Body, maxArchiveBytes))
	if err != nil {
		return fmt.Errorf("%s: open gzip: %w", ASNEdition, err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	targetBase := ASNEdition + ".mmdb"
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: read tar: %w", ASNEdition, err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != targetBase {
			continue
		}

		if err := writeToFile(u.destPath, tarReader); err != nil {
			return fmt.Errorf("%s: write file: %w", ASNEdition, err)
		}
		return nil
	}

	return fmt.Errorf("%s: mmdb file not found in archive", ASNEdition)
}

func (u *Updater) downloadURL() string {
	query := url.Values{}
	query.Set("edition_id", ASNEdition)
	query.Set("license_key", u.licenseKey)
	query.Set("suffix", "tar.gz")
	return u.baseURL + "?" + query.Encode()
}

func writeToFile(destPath string, data io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := io.Copy(tmpFile, data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), destPath); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
