package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

// Settings carries everything the adapters may need. Adapters whose
// requirements are missing are skipped.
type Settings struct {
	Email            string
	IPHubToken       string
	Threshold        float64
	BlocklistSources []string
	ASNDatabase      string
	Timeout          time.Duration
	Client           *http.Client
}

// Set is the ordered provider list plus the adapters that need lifecycle
// management by the caller.
type Set struct {
	Providers []vpn.Provider
	Blocklist *Blocklist
	GeoLite   *GeoLiteASN
}

// Build instantiates the named providers in order.
func Build(names []string, s Settings) (*Set, error) {
	set := &Set{}
	seen := make(map[string]struct{}, len(names))

	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		provider, err := build(name, s, set)
		if errors.Is(err, ErrNotConfigured) {
			log.Warn("VPN provider disabled", "provider", name, "reason", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		set.Providers = append(set.Providers, provider)
	}

	if len(set.Providers) == 0 {
		log.Warn("No VPN provider enabled, unknown IPs will report no data")
	}
	return set, nil
}

func build(name string, s Settings, set *Set) (vpn.Provider, error) {
	switch name {
	case GetIPIntelName:
		return NewGetIPIntel(GetIPIntelOptions{Email: s.Email, Threshold: s.Threshold, Client: s.Client, Timeout: s.Timeout})
	case IPHubName:
		return NewIPHub(IPHubOptions{Token: s.IPHubToken, Client: s.Client, Timeout: s.Timeout})
	case TeohName:
		return NewTeoh(TeohOptions{Client: s.Client, Timeout: s.Timeout}), nil
	case BlocklistName:
		blocklist, err := NewBlocklist(BlocklistOptions{Sources: s.BlocklistSources, Client: s.Client})
		if err != nil {
			return nil, err
		}
		set.Blocklist = blocklist
		return blocklist, nil
	case GeoLiteASNName:
		if strings.TrimSpace(s.ASNDatabase) == "" {
			return nil, fmt.Errorf("%s: database path missing: %w", GeoLiteASNName, ErrNotConfigured)
		}
		geo, err := NewGeoLiteASN(s.ASNDatabase)
		if err != nil {
			return nil, err
		}
		set.GeoLite = geo
		return geo, nil
	default:
		return nil, fmt.Errorf("unknown vpn provider %q", name)
	}
}
