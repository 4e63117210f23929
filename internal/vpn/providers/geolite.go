package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

const GeoLiteASNName = "geolite-asn"

var hostingOrgRegex = regexp.MustCompile(`(?i)(amazon|google|microsoft|digitalocean|linode|akamai|hetzner|ovh|vultr|ibm|alibaba|tencent|oracle|cloudflare|rackspace|hostinger|upcloud|azure|gcp|aws|choopa|leaseweb|contabo|m247|datacamp|hosting|datacenter|data center|server|vps|colo)`)

// asnReader is the subset of *geoip2.Reader used for lookups.
type asnReader interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
	Close() error
}

// GeoLiteASN flags addresses whose autonomous system belongs to a hosting
// provider, using a local GeoLite2-ASN database.
type GeoLiteASN struct {
	path string

	mu     sync.RWMutex
	reader asnReader
}

var _ vpn.Provider = (*GeoLiteASN)(nil)

// NewGeoLiteASN opens path if it exists. A missing database is not an error;
// the provider reports ErrNotConfigured until Reload succeeds.
func NewGeoLiteASN(path string) (*GeoLiteASN, error) {
	g := &GeoLiteASN{path: path}
	if err := g.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return g, nil
}

// Reload swaps in the database currently on disk.
func (g *GeoLiteASN) Reload() error {
	reader, err := geoip2.Open(g.path)
	if err != nil {
		return fmt.Errorf("%s: open %s: %w", GeoLiteASNName, g.path, err)
	}
	g.swap(reader)
	log.Info("GeoLite ASN database loaded", "path", g.path)
	return nil
}

func (g *GeoLiteASN) swap(reader asnReader) {
	g.mu.Lock()
	old := g.reader
	g.reader = reader
	g.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

func (g *GeoLiteASN) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reader == nil {
		return nil
	}
	err := g.reader.Close()
	g.reader = nil
	return err
}

func (g *GeoLiteASN) Name() string { return GeoLiteASNName }

func (g *GeoLiteASN) RemainingCooldown() time.Duration { return 0 }

func (g *GeoLiteASN) Classify(_ context.Context, ip netip.Addr) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.reader == nil {
		return false, fmt.Errorf("%s: database not loaded: %w", GeoLiteASNName, ErrNotConfigured)
	}

	record, err := g.reader.ASN(net.IP(ip.Unmap().AsSlice()))
	if err != nil {
		return false, fmt.Errorf("%s: lookup: %w", GeoLiteASNName, err)
	}
	if record.AutonomousSystemNumber == 0 {
		return false, fmt.Errorf("%s: no ASN record for %s", GeoLiteASNName, ip)
	}
	return hostingOrgRegex.MatchString(record.AutonomousSystemOrganization), nil
}
