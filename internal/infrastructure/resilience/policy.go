package resilience

import "time"

// Config tunes retries and the per-operation circuit breaker.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig makes a single attempt per call. OCR outcomes are terminal, so retries
// are opt-in; the breaker still sheds load from a dead engine.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      20 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return out
}

func (c Config) backoff(attempt int) time.Duration {
	wait := c.RetryInitialBackoff
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * c.RetryMultiplier)
		if wait >= c.RetryMaxBackoff {
			return c.RetryMaxBackoff
		}
	}
	return wait
}
