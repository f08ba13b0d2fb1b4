package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Classification tells the executor what to do with a failed attempt.
type Classification struct {
	Retryable     bool
	RecordFailure bool
}

type Classifier func(err error) Classification

// Executor wraps outbound calls with retries and one circuit breaker per operation name.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Execute runs fn under the policy registered for operation.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return errors.New("resilience: nil operation")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = terminal
	}
	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classify)
	}
	_, err := e.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, op, fn, classify)
	})
	return err
}

// Do is Execute for calls that produce a value.
func Do[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), classify Classifier) (T, error) {
	var out T
	if e == nil {
		return fn(ctx)
	}
	err := e.Execute(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, classify)
	return out, err
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classify Classifier) error {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.RetryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr).Retryable || attempt == e.cfg.RetryMaxAttempts {
			return lastErr
		}

		wait := e.cfg.backoff(attempt)
		e.logger.Warn("retry_attempt",
			"operation", op,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", lastErr,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func (e *Executor) breaker(op string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[op]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = cb
	return cb
}

// IsCircuitOpen reports whether err was produced by a tripped breaker rather than the call itself.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func terminal(error) Classification {
	return Classification{Retryable: false, RecordFailure: true}
}
