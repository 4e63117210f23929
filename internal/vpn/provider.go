package vpn

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Provider classifies a single address. Any error makes the chain move on to
// the next provider; rate limiting is reported as *CooldownError.
type Provider interface {
	Name() string
	Classify(ctx context.Context, ip netip.Addr) (isVPN bool, err error)
	RemainingCooldown() time.Duration
}

type CooldownError struct {
	Provider  string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: cooling down for %s", e.Provider, e.Remaining.Round(time.Second))
}

// Cooldown tracks when a provider may be asked again. The until timestamp is
// pushed forward by the provider itself (HTTP 429, quota answers); the
// optional limiter paces requests on the client side.
type Cooldown struct {
	name    string
	limiter *rate.Limiter
	now     func() time.Time

	mu    sync.Mutex
	until time.Time
}

func NewCooldown(name string, limiter *rate.Limiter) *Cooldown {
	return &Cooldown{name: name, limiter: limiter, now: time.Now}
}

// Acquire reserves one request or returns a *CooldownError.
func (c *Cooldown) Acquire() error {
	if remaining := c.blocked(); remaining > 0 {
		return &CooldownError{Provider: c.name, Remaining: remaining}
	}
	if c.limiter == nil {
		return nil
	}

	now := c.now()
	reservation := c.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return &CooldownError{Provider: c.name, Remaining: time.Minute}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return &CooldownError{Provider: c.name, Remaining: delay}
	}
	return nil
}

// Trigger blocks the provider for at least d.
func (c *Cooldown) Trigger(d time.Duration) {
	if d <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if until := c.now().Add(d); until.After(c.until) {
		c.until = until
	}
}

func (c *Cooldown) Remaining() time.Duration {
	remaining := c.blocked()
	if c.limiter == nil {
		return remaining
	}

	now := c.now()
	if tokens := c.limiter.TokensAt(now); tokens < 1 && c.limiter.Limit() > 0 {
		wait := time.Duration((1 - tokens) / float64(c.limiter.Limit()) * float64(time.Second))
		remaining = max(remaining, wait)
	}
	return remaining
}

func (c *Cooldown) blocked() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remaining := c.until.Sub(c.now()); remaining > 0 {
		return remaining
	}
	return 0
}
