package resilience

import (
	"math"
	"time"
)

// Config is a retry schedule plus an optional circuit breaker. Zero fields
// take the value from DefaultConfig.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// RetryJitter spreads each wait by up to this fraction in either direction.
	// Zero keeps the schedule exact.
	RetryJitter float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// DestroyPolicy retries removal of the index while other readers still hold
// it: 10 attempts, waits 1s, 2s, 4s, 8s, then 10s.
func DestroyPolicy() Config {
	return Config{
		RetryMaxAttempts:    10,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     10 * time.Second,
		RetryMultiplier:     2,
	}
}

// ProviderPolicy makes one attempt per call and trips the breaker when the
// provider keeps failing.
func ProviderPolicy() Config {
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = 1
	cfg.BreakerMinRequests = 5
	return cfg
}

// PublishPolicy retries an event publish briefly while the bus reconnects.
func PublishPolicy() Config {
	cfg := DefaultConfig()
	cfg.RetryJitter = 0.2
	return cfg
}

func positive[T int | uint32 | float64 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	out.RetryMaxAttempts = positive(out.RetryMaxAttempts, def.RetryMaxAttempts)
	out.RetryInitialBackoff = positive(out.RetryInitialBackoff, def.RetryInitialBackoff)
	out.RetryMaxBackoff = max(positive(out.RetryMaxBackoff, def.RetryMaxBackoff), out.RetryInitialBackoff)
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	out.RetryJitter = min(max(out.RetryJitter, 0), 1)

	out.BreakerMinRequests = positive(out.BreakerMinRequests, def.BreakerMinRequests)
	if out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = 0
	}
	out.BreakerFailureRatio = positive(out.BreakerFailureRatio, def.BreakerFailureRatio)
	out.BreakerOpenTimeout = positive(out.BreakerOpenTimeout, def.BreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = positive(out.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return out
}

// Backoff returns the wait after the given failed attempt, before jitter:
// initial * multiplier^(attempt-1), capped at RetryMaxBackoff.
func (c Config) Backoff(attempt int) time.Duration {
	cfg := c.normalize()
	wait := float64(cfg.RetryInitialBackoff) * math.Pow(cfg.RetryMultiplier, float64(max(attempt-1, 0)))
	if wait >= float64(cfg.RetryMaxBackoff) {
		return cfg.RetryMaxBackoff
	}
	return time.Duration(wait)
}
