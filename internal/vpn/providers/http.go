package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

const (
	maxResponseBytes = 1 << 20
	userAgent        = "TeeworldsDiscordBot/1.0"
)

// ErrNotConfigured marks an adapter that lacks credentials or data.
var ErrNotConfigured = errors.New("provider is not configured")

// apiClient performs paced GET requests for one provider and translates
// rate limit answers into cooldowns.
type apiClient struct {
	name            string
	http            *http.Client
	cooldown        *vpn.Cooldown
	defaultCooldown time.Duration
}

func (c *apiClient) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if err := c.cooldown.Acquire(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	req.Header.Set("User-Agent", userAgent)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: execute request: %w", c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		wait := retryAfter(resp.Header.Get("Retry-After"), c.defaultCooldown)
		c.cooldown.Trigger(wait)
		return nil, &vpn.CooldownError{Provider: c.name, Remaining: wait}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%s: unexpected status %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", c.name, err)
	}
	return body, nil
}

func (c *apiClient) RemainingCooldown() time.Duration {
	return c.cooldown.Remaining()
}

// retryAfter understands both delay-seconds and HTTP-date values.
func retryAfter(value string, fallback time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return fallback
}

func httpClientOr(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
