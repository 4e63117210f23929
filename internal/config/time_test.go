package config

import (
	"testing"
	"time"
)

func TestCalculateMillisecondsOfCheckingPeriod(t *testing.T) {
	timer := Timer{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}
	want := uint64((24*60*60 + 2*60*60 + 3*60 + 4) * 1000)

	if got := CalculateMillisecondsOfCheckingPeriod(timer); got != want {
		t.Fatalf("CalculateMillisecondsOfCheckingPeriod returned %d, want %d", got, want)
	}
}

func TestCalculateBetweenTime(t *testing.T) {
	t.Run("enforces minimum interval", func(t *testing.T) {
		if got := CalculateBetweenTime(Timer{}); got != time.Second {
			t.Fatalf("CalculateBetweenTime returned %s, want 1s", got)
		}
	})

	t.Run("returns configured duration", func(t *testing.T) {
		if got := CalculateBetweenTime(Timer{Minutes: 1, Seconds: 30}); got != 90*time.Second {
			t.Fatalf("CalculateBetweenTime returned %s, want 1m30s", got)
		}
	})
}

func TestIntervalsFallBackToDefaults(t *testing.T) {
	var cfg Config

	if got := cfg.PollInterval(); got != defaultPollInterval {
		t.Fatalf("PollInterval returned %s, want %s", got, defaultPollInterval)
	}
	if got := cfg.FlushInterval(); got != defaultFlushInterval {
		t.Fatalf("FlushInterval returned %s, want %s", got, defaultFlushInterval)
	}
	if got := cfg.BlocklistRefreshInterval(); got != defaultBlocklistRefreshInterval {
		t.Fatalf("BlocklistRefreshInterval returned %s, want %s", got, defaultBlocklistRefreshInterval)
	}
	if got := cfg.QueryTimeout(); got != time.Second {
		t.Fatalf("QueryTimeout returned %s, want 1s", got)
	}
	if got := cfg.RequestTimeout(); got != 10*time.Second {
		t.Fatalf("RequestTimeout returned %s, want 10s", got)
	}
}

func TestIntervalsUseConfiguredTimers(t *testing.T) {
	var cfg Config
	cfg.Poller.PollTimer = Timer{Seconds: 10}
	cfg.Poller.QueryTimeoutMs = 250
	cfg.VPN.Blocklist.RefreshTimer = Timer{Hours: 6}

	if got := cfg.PollInterval(); got != 10*time.Second {
		t.Fatalf("PollInterval returned %s, want 10s", got)
	}
	if got := cfg.QueryTimeout(); got != 250*time.Millisecond {
		t.Fatalf("QueryTimeout returned %s, want 250ms", got)
	}
	if got := cfg.BlocklistRefreshInterval(); got != 6*time.Hour {
		t.Fatalf("BlocklistRefreshInterval returned %s, want 6h", got)
	}
}
