// Package retry runs fallible operations with exponential backoff. Only
// errors the classifier considers transient are retried; everything else
// surfaces immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flaresync/flaresync/faults"
)

// ErrRetriesExhausted wraps the final error once the retry budget is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 60 * time.Second
)

type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	IsRetryable  func(error) bool
	OnRetry      func(attempt int, delay time.Duration, err error)
}

type Option func(*Config)

func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

func WithIsRetryable(fn func(error) bool) Option {
	return func(c *Config) {
		c.IsRetryable = fn
	}
}

func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

func defaultConfig() *Config {
	return &Config{
		MaxRetries:   defaultMaxRetries,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		IsRetryable:  faults.Transient,
		OnRetry:      defaultOnRetry,
	}
}

func defaultOnRetry(attempt int, delay time.Duration, err error) {
	slog.Warn("Operation failed, retrying", "attempt", attempt, "wait", delay, "error", err)
}

// Do executes fn until it succeeds, fails permanently, or exhausts the retry
// budget. The first execution does not count against the budget, so fn runs
// at most 1+MaxRetries times. The backoff delay doubles after every retry and
// is capped at MaxDelay.
func Do[T any](ctx context.Context, fn func() (T, error), opts ...Option) (T, error) {
	var zero T

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.InitialDelay
	retries := 0
	for {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if !cfg.IsRetryable(err) {
			return zero, err
		}
		if retries >= cfg.MaxRetries {
			return zero, fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(retries+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		retries++
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
