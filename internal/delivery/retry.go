package delivery

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RetryPolicy retries failed deliveries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy makes 3 attempts, waiting 1s then 2s, never more than 30s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
	}
}

// Substrings of error messages from channels that do not say whether an
// error is temporary. Transient markers are checked first.
var (
	transientMarkers = []string{"connection refused", "connection reset", "timeout", "temporary failure", "too many requests"}
	permanentMarkers = []string{"invalid", "unauthorized", "forbidden", "chat not found"}
)

// ShouldRetry reports whether attempt (1-indexed) may be followed by another.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	return attempt <= p.MaxAttempts && isRetryable(err)
}

func isRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNoHandler), errors.Is(err, context.Canceled):
		return false
	}
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, transientMarkers) {
		return true
	}
	return !containsAny(msg, permanentMarkers)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NextDelay is the wait after the given attempt: InitialDelay grown by
// Multiplier per earlier attempt, capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute calls fn until it succeeds, fails permanently, runs out of
// attempts, or ctx ends during a backoff. The last error is returned.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.MaxAttempts || !p.ShouldRetry(err, attempt) {
			return err
		}
		timer := time.NewTimer(p.NextDelay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
	}
	return err
}
