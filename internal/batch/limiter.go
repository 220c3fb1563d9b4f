package batch

import (
	"context"
	"sync"
	"time"
)

// limiter serializes dispatch timing: a per-domain clock enforcing the
// minimum interval between requests to one domain, and a global clock
// enforcing the floor delay between any two dispatches. Clocks are read and
// advanced under one mutex; the actual waiting happens outside the lock
// with a re-check loop so a sleeping worker never blocks the others.
type limiter struct {
	mu           sync.Mutex
	lastByDomain map[string]time.Time
	lastGlobal   time.Time

	defaultInterval time.Duration
	perDomain       map[string]time.Duration
	globalDelay     time.Duration
}

func newLimiter(opts Options) *limiter {
	return &limiter{
		lastByDomain:    make(map[string]time.Time),
		defaultInterval: opts.DomainRateLimit,
		perDomain:       opts.DomainRateLimits,
		globalDelay:     opts.GlobalDelay,
	}
}

// interval returns the spacing for one domain, with a per-resource override
// taking precedence over per-domain and default configuration, and the
// floor raising whichever of those applies.
func (l *limiter) interval(domain string, override, floor time.Duration) time.Duration {
	iv := l.defaultInterval
	if d, ok := l.perDomain[domain]; ok {
		iv = d
	}
	if override > 0 {
		iv = override
	}
	if floor > iv {
		iv = floor
	}
	return iv
}

// acquire blocks until a dispatch to the domain is allowed, then claims the
// slot. It returns the time spent waiting.
func (l *limiter) acquire(ctx context.Context, domain string, override, floor time.Duration) (time.Duration, error) {
	interval := l.interval(domain, override, floor)
	if interval <= 0 && l.globalDelay <= 0 {
		return 0, nil
	}

	var waited time.Duration
	for {
		l.mu.Lock()
		now := time.Now()
		next := now
		if interval > 0 {
			if last, ok := l.lastByDomain[domain]; ok {
				if t := last.Add(interval); t.After(next) {
					next = t
				}
			}
		}
		if l.globalDelay > 0 && !l.lastGlobal.IsZero() {
			if t := l.lastGlobal.Add(l.globalDelay); t.After(next) {
				next = t
			}
		}
		if !next.After(now) {
			l.lastByDomain[domain] = now
			l.lastGlobal = now
			l.mu.Unlock()
			return waited, nil
		}
		sleep := next.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return waited, ctx.Err()
		case <-timer.C:
			waited += sleep
		}
		// Another worker may have claimed the slot while we slept; loop
		// and re-check.
	}
}
