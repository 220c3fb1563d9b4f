package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy governs re-attempts of a failed fetch. Delays grow as
// BaseDelay × Factor^attempt. Only errors matching one of the
// RetryableSubstrings (or a retryable Kind) are retried; anything else aborts
// immediately.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Factor     float64
	// RetryableSubstrings is the allow-list of transient error fragments.
	RetryableSubstrings []string
}

// DefaultRetryPolicy matches the transient failures worth re-attempting:
// connection resets, DNS hiccups, and timeouts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		Factor:     2.0,
		RetryableSubstrings: []string{
			"connection reset",
			"connection refused",
			"no such host",
			"timeout",
			"temporary failure",
			"EOF",
		},
	}
}

// Delay returns the backoff before the given zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	f := p.Factor
	if f <= 0 {
		f = 2.0
	}
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= f
	}
	return time.Duration(d)
}

// Retryable reports whether the error qualifies for another attempt.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindTimeout, KindRateLimited, KindServerError:
		return true
	case KindNotFound, KindAccessDenied, KindSizeExceeded:
		return false
	}
	msg := err.Error()
	for _, frag := range p.RetryableSubstrings {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// Do runs fn under the policy. The backoff sleep holds no locks and is cut
// short by context cancellation.
func (p RetryPolicy) Do(ctx context.Context, locator string, fn func() (*Content, error)) (*Content, error) {
	attempts := p.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt - 1)
			log.Debug().Str("url", locator).Int("attempt", attempt).
				Dur("backoff", delay).Msg("retrying fetch")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		c, err := fn()
		if err == nil {
			return c, nil
		}
		lastErr = err
		if !p.Retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}
