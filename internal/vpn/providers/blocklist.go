package providers

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

const (
	BlocklistName          = "blocklist"
	maxBlocklistBytes      = 10 << 20 // 10 MiB safety cap
	defaultRefreshInterval = 12 * time.Hour
)

var (
	errBlocklistNotLoaded = errors.New("blocklist: not loaded yet")
	errBlocklistIPv6      = errors.New("blocklist: only IPv4 ranges are tracked")

	listEntryRegex = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`)
)

// ipRange is an inclusive IPv4 interval.
type ipRange struct {
	start uint32
	end   uint32
}

type BlocklistOptions struct {
	Sources []string
	Client  *http.Client
	Timeout time.Duration
}

// Blocklist matches addresses against public VPN and datacenter range lists.
type Blocklist struct {
	sources []string
	http    *http.Client
	ranges  atomic.Pointer[[]ipRange]
	refresh singleflight.Group
}

var _ vpn.Provider = (*Blocklist)(nil)

func NewBlocklist(opts BlocklistOptions) (*Blocklist, error) {
	sources := make([]string, 0, len(opts.Sources))
	for _, src := range opts.Sources {
		if src = strings.TrimSpace(src); src != "" {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%s: no sources: %w", BlocklistName, ErrNotConfigured)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Blocklist{
		sources: sources,
		http:    httpClientOr(opts.Client, opts.Timeout),
	}, nil
}

func (b *Blocklist) Name() string { return BlocklistName }

func (b *Blocklist) RemainingCooldown() time.Duration { return 0 }

func (b *Blocklist) Classify(_ context.Context, ip netip.Addr) (bool, error) {
	ranges := b.ranges.Load()
	if ranges == nil {
		return false, errBlocklistNotLoaded
	}

	ip = ip.Unmap()
	if !ip.Is4() {
		return false, errBlocklistIPv6
	}
	return containsIP(*ranges, addrToUint32(ip)), nil
}

// Len reports the number of merged ranges currently loaded.
func (b *Blocklist) Len() int {
	if ranges := b.ranges.Load(); ranges != nil {
		return len(*ranges)
	}
	return 0
}

// Run loads the lists immediately and then refreshes them every interval.
func (b *Blocklist) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}

	b.triggerRefresh(ctx, "startup")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.triggerRefresh(ctx, "scheduled")
		}
	}
}

func (b *Blocklist) triggerRefresh(ctx context.Context, reason string) {
	count, err := b.Refresh(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Blocklist refresh canceled", "reason", reason)
		} else {
			log.Error("Blocklist refresh failed", "reason", reason, "error", err)
		}
		return
	}
	log.Info("Blocklist refresh completed", "reason", reason, "sources", len(b.sources), "ranges", count)
}

// Refresh downloads every source and swaps in the merged ranges. Failing
// sources are skipped; if all fail the previous ranges stay active.
func (b *Blocklist) Refresh(ctx context.Context) (int, error) {
	result, err, _ := b.refresh.Do("refresh", func() (any, error) {
		var (
			all    []ipRange
			loaded int
		)
		for _, src := range b.sources {
			ranges, err := b.fetch(ctx, src)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return 0, err
				}
				log.Warn("Blocklist fetch failed", "source", src, "error", err)
				continue
			}
			loaded++
			all = append(all, ranges...)
		}
		if loaded == 0 {
			return 0, fmt.Errorf("%s: no source could be loaded", BlocklistName)
		}

		merged := mergeRanges(all)
		b.ranges.Store(&merged)
		return len(merged), nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (b *Blocklist) fetch(ctx context.Context, source string) ([]ipRange, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxBlocklistBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return parseRanges(content), nil
}

// parseRanges extracts every IPv4 address or CIDR from free-form text.
func parseRanges(payload []byte) []ipRange {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	var ranges []ipRange
	for scanner.Scan() {
		line := scanner.Bytes()
		if i := bytes.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, match := range listEntryRegex.FindAll(line, -1) {
			if r, ok := parseRange(string(match)); ok {
				ranges = append(ranges, r)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn("Blocklist scanner warning", "error", err)
	}
	return ranges
}

func parseRange(raw string) (ipRange, bool) {
	if !strings.Contains(raw, "/") {
		addr, err := netip.ParseAddr(raw)
		if err != nil || !addr.Is4() {
			return ipRange{}, false
		}
		u := addrToUint32(addr)
		return ipRange{start: u, end: u}, true
	}

	prefix, err := netip.ParsePrefix(raw)
	if err != nil || !prefix.Addr().Is4() {
		return ipRange{}, false
	}
	prefix = prefix.Masked()
	start := addrToUint32(prefix.Addr())
	hostCount := uint64(1) << (32 - prefix.Bits())
	return ipRange{start: start, end: uint32(uint64(start) + hostCount - 1)}, true
}

// mergeRanges sorts and coalesces overlapping or adjacent ranges so that a
// binary search finds every covered address.
func mergeRanges(ranges []ipRange) []ipRange {
	if len(ranges) == 0 {
		return []ipRange{}
	}

	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b ipRange) int {
		return cmp.Or(cmp.Compare(a.start, b.start), cmp.Compare(a.end, b.end))
	})

	merged := sorted[:1]
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if uint64(r.start) <= uint64(last.end)+1 {
			last.end = max(last.end, r.end)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func containsIP(ranges []ipRange, u uint32) bool {
	lo, hi := 0, len(ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if u < ranges[mid].start {
			hi = mid
			continue
		}
		if u > ranges[mid].end {
			lo = mid + 1
			continue
		}
		return true
	}
	return false
}

func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
