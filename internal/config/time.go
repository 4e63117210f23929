package config

import "time"

const (
	defaultPollInterval             = 5 * time.Second
	defaultFlushInterval            = 5 * time.Second
	defaultBlocklistRefreshInterval = 12 * time.Hour
	defaultQueryTimeout             = time.Second
	defaultRequestTimeout           = 10 * time.Second
)

// CalculateBetweenTime converts a timer into a duration with a one second floor.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := CalculateMillisecondsOfCheckingPeriod(timer)

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func CalculateMillisecondsOfCheckingPeriod(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

func (c Config) PollInterval() time.Duration {
	return timerOrDefault(c.Poller.PollTimer, defaultPollInterval)
}

func (c Config) FlushInterval() time.Duration {
	return timerOrDefault(c.VPN.FlushTimer, defaultFlushInterval)
}

func (c Config) BlocklistRefreshInterval() time.Duration {
	return timerOrDefault(c.VPN.Blocklist.RefreshTimer, defaultBlocklistRefreshInterval)
}

func (c Config) QueryTimeout() time.Duration {
	return millisOrDefault(c.Poller.QueryTimeoutMs, defaultQueryTimeout)
}

func (c Config) RequestTimeout() time.Duration {
	return millisOrDefault(c.VPN.RequestTimeoutMs, defaultRequestTimeout)
}

func timerOrDefault(timer Timer, fallback time.Duration) time.Duration {
	if timer.IsZero() {
		return fallback
	}
	return CalculateBetweenTime(timer)
}

func millisOrDefault(ms uint32, fallback time.Duration) time.Duration {
	if ms == 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
