package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker in front of the pool.
type BreakerConfig struct {
	Enabled          bool
	Name             string
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // closed-state count reset period
	Timeout          time.Duration // open-state duration before half-open
	FailureThreshold uint32        // consecutive failures that trip the breaker
}

// DefaultBreakerConfig returns a disabled breaker with sensible thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "postgres",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker trips after repeated connection-level failures so callers fail fast
// while the database is unreachable. Query errors (constraint violations,
// syntax errors, cancellations) never count as failures.
//
// A nil *Breaker is valid and lets every call through.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// NewBreaker creates a breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return !isConnectionError(err)
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(fn func() error) error {
	if b == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return translateBreakerError(err)
}

// Allow reports ErrNoConnection while the breaker is open. It does not record
// an outcome; QueryRow results surface errors lazily and cannot be counted.
func (b *Breaker) Allow() error {
	if b == nil || b.cb.State() != gobreaker.StateOpen {
		return nil
	}
	return translateBreakerError(gobreaker.ErrOpenState)
}

// State returns the breaker state as a string.
func (b *Breaker) State() string {
	if b == nil {
		return "disabled"
	}
	return b.cb.State().String()
}

func translateBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &InitializationError{Err: errors.Join(ErrNoConnection, err)}
	}
	return err
}

// isConnectionError reports whether err means the server could not be reached.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P0x is server shutdown.
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	return pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded)
}
