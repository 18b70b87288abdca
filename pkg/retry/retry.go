// Package retry runs operations under an exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0; +/- this fraction of each delay
	MaxSameErrorType int     // after N consecutive same-type errors, stop retrying (0 = never)
}

// DefaultConfig is used for startup database connections:
// 3 retries from 100ms, doubling, capped at 5s, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// ForGeneration builds the policy for model calls from the llm config values.
func ForGeneration(maxRetries int, backoff time.Duration) *Config {
	return &Config{
		MaxRetries:       maxRetries,
		InitialDelay:     backoff,
		MaxDelay:         8 * backoff,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 3,
	}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// backoff tracks the delay between attempts.
type backoff struct {
	cfg   *Config
	delay time.Duration
}

// wait sleeps for the current delay and grows it. It returns ctx.Err() if
// the context ends first.
func (b *backoff) wait(ctx context.Context) error {
	timer := time.NewTimer(applyJitter(b.delay, b.cfg.JitterFactor))
	defer timer.Stop()

	select {
	case <-timer.C:
		b.delay = time.Duration(float64(b.delay) * b.cfg.Multiplier)
		if b.delay > b.cfg.MaxDelay {
			b.delay = b.cfg.MaxDelay
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DoWithResult retries fn on any error until it succeeds or retries run out.
// The last result and error are returned on exhaustion.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	b := &backoff{cfg: cfg, delay: cfg.InitialDelay}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if attempt < cfg.MaxRetries {
			if err := b.wait(ctx); err != nil {
				return result, err
			}
		}
	}
	return result, lastErr
}

// DoWithResultIfRetryable retries only transient errors (see IsRetryable).
// A permanent error is returned immediately. After MaxSameErrorType
// consecutive failures of one type the error is treated as permanent.
func DoWithResultIfRetryable[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	var lastType string
	sameCount := 0
	b := &backoff{cfg: cfg, delay: cfg.InitialDelay}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if !IsRetryable(err) {
			return result, err
		}

		errType := classifyErrorType(err)
		if errType == lastType {
			sameCount++
			if cfg.MaxSameErrorType > 0 && sameCount >= cfg.MaxSameErrorType {
				return result, fmt.Errorf("repeated error (%d times, type=%s): %w", sameCount, errType, err)
			}
		} else {
			sameCount = 1
			lastType = errType
		}

		if attempt < cfg.MaxRetries {
			if err := b.wait(ctx); err != nil {
				return result, err
			}
		}
	}
	return result, lastErr
}

// RetryableError is implemented by errors that know whether they are transient.
type RetryableError interface {
	error
	IsRetryable() bool
}

// IsRetryable reports whether err is worth retrying. An error in the chain
// implementing RetryableError decides; otherwise known transient messages
// (connection resets, timeouts, 429/5xx) are matched.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"i/o timeout",
	"network is unreachable",
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"overloaded",
	"service unavailable",
	"too many requests",
}

// classifyErrorType buckets an error for the same-error escalation check.
func classifyErrorType(err error) string {
	errStr := strings.ToLower(err.Error())

	for _, code := range []string{"503", "502", "504", "500", "429"} {
		if strings.Contains(errStr, code) {
			return code
		}
	}
	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return "connection"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return "rate_limit"
	case strings.Contains(errStr, "overloaded"):
		return "overloaded"
	}
	return "unknown"
}
