// Package retry provides bounded retry logic with linear or exponential
// backoff for the tracking service.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Strategy selects how the delay between attempts grows.
type Strategy int

const (
	// Exponential multiplies the delay by Multiplier after each attempt.
	Exponential Strategy = iota
	// Linear uses attempt*InitialDelay (2s, 4s, 6s, ... for a 2s base),
	// matching the client transport's reconnect schedule.
	Linear
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (0 = run once)
	InitialDelay time.Duration // Initial delay between attempts
	MaxDelay     time.Duration // Maximum delay between attempts (0 = uncapped for Linear)
	Multiplier   float64       // Backoff multiplier for Exponential (typically 2.0)
	Strategy     Strategy      // Delay growth strategy
	AddJitter    bool          // Add randomness to prevent thundering herd
}

// DefaultConfig returns sensible defaults for retry operations
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Strategy:     Exponential,
		AddJitter:    true,
	}
}

// Reconnect returns the client transport's reconnect schedule: 5 attempts
// with linear backoff on a 2s base (2s, 4s, 6s, 8s, 10s), no jitter.
func Reconnect() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		Strategy:     Linear,
	}
}

// Delay returns the wait before the given attempt (1-based). For Linear the
// delay is attempt*InitialDelay; for Exponential it is
// InitialDelay*Multiplier^(attempt-1). MaxDelay caps the result when set.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch c.Strategy {
	case Linear:
		delay = time.Duration(attempt) * c.InitialDelay
	default:
		delay = c.InitialDelay
		for i := 1; i < attempt; i++ {
			next := float64(delay) * c.Multiplier
			if c.MaxDelay > 0 && next > float64(c.MaxDelay) {
				return c.MaxDelay
			}
			delay = time.Duration(next)
		}
	}

	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do executes fn with retry according to cfg.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	cfg.applyDefaults()

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		// Non-retryable errors fail immediately
		if IsNonRetryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}

		// Don't sleep after the last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		sleepDuration := cfg.Delay(attempt)
		if cfg.AddJitter && sleepDuration > 0 {
			// Add up to 25% jitter using thread-safe random
			randMu.Lock()
			jitter := time.Duration(randSource.Int63n(int64(sleepDuration/4) + 1))
			randMu.Unlock()
			sleepDuration += jitter
		}

		timer := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

func (c Config) validate() error {
	if c.InitialDelay < 0 {
		return errors.New("retry: InitialDelay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if c.Multiplier < 0 {
		return errors.New("retry: Multiplier cannot be negative")
	}
	if c.MaxDelay > 0 && c.InitialDelay > 0 && c.MaxDelay < c.InitialDelay {
		return errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
}
