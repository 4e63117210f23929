package vpn

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxBatch       = 16
	DefaultConsultTimeout = time.Minute
)

type Outcome int

const (
	OutcomeNoData Outcome = iota
	OutcomeVPN
	OutcomeClean
	OutcomeReserved
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVPN:
		return "vpn"
	case OutcomeClean:
		return "clean"
	case OutcomeReserved:
		return "reserved"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "no_data"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the terminal state of one classification. Provider names the
// provider that decided it, empty for cached and rejected addresses.
type Result struct {
	IP       string  `json:"ip"`
	Outcome  Outcome `json:"outcome"`
	Cached   bool    `json:"cached"`
	Provider string  `json:"provider,omitempty"`
}

// Chain resolves verdicts from the cache and falls back to the providers in
// priority order.
type Chain struct {
	guard     *Guard
	cache     *Cache
	providers []Provider
	maxBatch  int
	allowMass bool
	timeout   time.Duration

	inflight singleflight.Group
}

type ChainOption func(*Chain)

func WithGuard(guard *Guard) ChainOption {
	return func(c *Chain) {
		if guard != nil {
			c.guard = guard
		}
	}
}

func WithMaxBatch(n int) ChainOption {
	return func(c *Chain) {
		if n > 0 {
			c.maxBatch = n
		}
	}
}

// WithConsultTimeout bounds one walk over the providers.
func WithConsultTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMassCheck(enabled bool) ChainOption {
	return func(c *Chain) {
		c.allowMass = enabled
	}
}

func NewChain(cache *Cache, providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		guard:     DefaultGuard(),
		cache:     cache,
		providers: append([]Provider(nil), providers...),
		maxBatch:  DefaultMaxBatch,
		timeout:   DefaultConsultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

func (c *Chain) MaxBatch() int {
	if c.allowMass {
		return 0
	}
	return c.maxBatch
}

// Classify always terminates in one of the five outcomes.
func (c *Chain) Classify(ctx context.Context, raw string) Result {
	addr, err := c.guard.Check(raw)
	switch {
	case errors.Is(err, ErrInvalidIP):
		return Result{IP: raw, Outcome: OutcomeInvalid}
	case errors.Is(err, ErrReservedRange):
		return Result{IP: addr.String(), Outcome: OutcomeReserved}
	}

	ip := addr.String()
	if isVPN, found := c.cache.Lookup(ctx, ip); found {
		log.Debug("Known IP", "ip", ip, "vpn", isVPN)
		return Result{IP: ip, Outcome: verdictOutcome(isVPN), Cached: true}
	}

	// The provider walk is shared by every caller asking for ip, so it must
	// not end with whichever caller started it.
	ch := c.inflight.DoChan(ip, func() (any, error) {
		walkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.consult(walkCtx, addr), nil
	})

	select {
	case <-ctx.Done():
		return Result{IP: ip, Outcome: OutcomeNoData}
	case res := <-ch:
		return res.Val.(Result)
	}
}

// ClassifyBatch classifies ips one after another. Without mass checking the
// batch is cut to the configured maximum and the rest is dropped.
func (c *Chain) ClassifyBatch(ctx context.Context, ips []string) []Result {
	if limit := c.MaxBatch(); limit > 0 && len(ips) > limit {
		log.Debug("Truncating classification batch", "requested", len(ips), "limit", limit)
		ips = ips[:limit]
	}

	results := make([]Result, 0, len(ips))
	for _, ip := range ips {
		results = append(results, c.Classify(ctx, ip))
	}
	return results
}

// consult asks the providers in order. Only an affirmative answer stops the
// walk early; a negative is final once every provider had its turn.
func (c *Chain) consult(ctx context.Context, addr netip.Addr) Result {
	ip := addr.String()
	log.Debug("Unknown IP", "ip", ip)

	answeredBy := ""
	for idx, provider := range c.providers {
		if ctx.Err() != nil {
			break
		}

		isVPN, err := provider.Classify(ctx, addr)
		if err != nil {
			logger := log.With("provider", provider.Name(), "position", idx+1, "of", len(c.providers))
			if remaining := provider.RemainingCooldown(); remaining > 0 {
				logger.Info("Skipping provider", "cooldown", remaining.Round(time.Second), "error", err)
			} else {
				logger.Debug("Skipping provider", "error", err)
			}
			continue
		}

		if isVPN {
			log.Info("IP is a VPN", "ip", ip, "provider", provider.Name())
			c.cache.Put(ctx, ip, true)
			return Result{IP: ip, Outcome: OutcomeVPN, Provider: provider.Name()}
		}
		if answeredBy == "" {
			answeredBy = provider.Name()
		}
	}

	if answeredBy == "" {
		log.Warn("No provider could classify IP", "ip", ip)
		return Result{IP: ip, Outcome: OutcomeNoData}
	}

	log.Info("IP is not a VPN", "ip", ip)
	c.cache.Put(ctx, ip, false)
	return Result{IP: ip, Outcome: OutcomeClean, Provider: answeredBy}
}

func verdictOutcome(isVPN bool) Outcome {
	if isVPN {
		return OutcomeVPN
	}
	return OutcomeClean
}
