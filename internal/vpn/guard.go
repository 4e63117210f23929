package vpn

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

var (
	ErrInvalidIP     = errors.New("invalid ip address")
	ErrReservedRange = errors.New("ip is part of a reserved range")
)

// DefaultReservedRanges lists networks that never belong to a real client.
var DefaultReservedRanges = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.88.99.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
	"::/128",
	"::1/128",
	"::ffff:0:0/96",
	"::ffff:0:0:0/96",
	"64:ff9b::/96",
	"100::/64",
	"2001::/32",
	"2001:20::/28",
	"2001:db8::/32",
	"2002::/16",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
}

// Guard rejects addresses inside reserved networks before they reach the
// cache or any provider.
type Guard struct {
	prefixes []netip.Prefix
}

func NewGuard(cidrs ...string) (*Guard, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("reserved range %q: %w", cidr, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return &Guard{prefixes: prefixes}, nil
}

func DefaultGuard() *Guard {
	guard, err := NewGuard(DefaultReservedRanges...)
	if err != nil {
		panic(err)
	}
	return guard
}

// Check parses raw and returns the address in canonical form. Textually
// invalid input yields ErrInvalidIP, reserved addresses ErrReservedRange.
func (g *Guard) Check(raw string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidIP, raw)
	}

	for _, prefix := range g.prefixes {
		if prefix.Contains(addr) {
			return addr, fmt.Errorf("%w: %s in %s", ErrReservedRange, addr, prefix)
		}
	}
	return addr, nil
}

func (g *Guard) Ranges() []netip.Prefix {
	return append([]netip.Prefix(nil), g.prefixes...)
}
