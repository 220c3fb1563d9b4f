package batch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pagesift/pagesift/internal/fetch"
)

// Orchestrator schedules pipeline runs for a whole batch.
type Orchestrator struct {
	runner Runner
}

// New returns an orchestrator driving the given runner.
func New(runner Runner) *Orchestrator {
	return &Orchestrator{runner: runner}
}

// ProcessBatch runs every resource under the batch options. The returned
// result is always complete; the error is non-nil only when
// ContinueOnError is false and a resource failed, or on context
// cancellation.
func (o *Orchestrator) ProcessBatch(ctx context.Context, configs []URLConfig, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	// Higher priority dispatches first; ties keep input order.
	ordered := make([]URLConfig, len(configs))
	copy(ordered, configs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	limits := newLimiter(opts)
	res := &Result{Summary: Summary{PerDomain: make(map[string]DomainStats)}}
	if opts.CollectIssues {
		res.Issues = &Issues{PerURL: make(map[string]IssueCounts)}
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, cfg := range ordered {
		cfg := cfg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			domain := cfg.Domain()
			var floor time.Duration
			if opts.DomainIntervalFloor != nil {
				floor = opts.DomainIntervalFloor(gctx, cfg.URL)
			}
			waited, err := limits.acquire(gctx, domain, cfg.RateLimit, floor)
			if err != nil {
				// Cancelled while throttled; the resource was never
				// dispatched.
				return nil
			}

			runStart := time.Now()
			run, err := o.runner.Run(gctx, cfg)
			elapsed := time.Since(runStart)

			mu.Lock()
			defer mu.Unlock()
			stats := res.Summary.PerDomain[domain]
			stats.Requests++
			stats.Wait += waited
			res.Summary.PerDomain[domain] = stats
			res.Summary.RateLimitWait += waited

			if err != nil {
				log.Warn().Str("url", cfg.URL).Err(err).Msg("resource failed")
				res.Failed = append(res.Failed, Failure{
					URL:      cfg.URL,
					SourceID: cfg.SourceID,
					Err:      err,
					Context:  failureContext(err),
					Attempts: attemptCount(err),
				})
				if !opts.ContinueOnError {
					return err
				}
				return nil
			}

			run.URL = cfg.URL
			run.Duration = elapsed
			res.Successful = append(res.Successful, *run)
			if res.Issues != nil {
				counts := IssueCounts{Warnings: len(run.Warnings), Critical: run.CriticalCount}
				key := cfg.URL
				if cfg.SourceID != "" {
					key = cfg.SourceID
				}
				res.Issues.PerURL[key] = counts
				res.Issues.Totals.Warnings += counts.Warnings
				res.Issues.Totals.Critical += counts.Critical
			}
			return nil
		})
	}

	runErr := g.Wait()

	res.Summary.Total = len(res.Successful) + len(res.Failed)
	res.Summary.Succeeded = len(res.Successful)
	res.Summary.FailedCount = len(res.Failed)
	res.Summary.TotalDuration = time.Since(start)
	if n := len(res.Successful); n > 0 {
		var sum time.Duration
		for _, s := range res.Successful {
			sum += s.Duration
		}
		res.Summary.AvgDuration = sum / time.Duration(n)
	}
	if res.Issues != nil {
		res.Issues.Totals.Errors = len(res.Failed)
		for _, f := range res.Failed {
			key := f.URL
			if f.SourceID != "" {
				key = f.SourceID
			}
			counts := res.Issues.PerURL[key]
			counts.Errors++
			res.Issues.PerURL[key] = counts
		}
	}

	if runErr != nil && !opts.ContinueOnError {
		return res, &Error{Failures: res.Failed}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// failureContext extracts a short human-readable hint from known error
// shapes.
func failureContext(err error) string {
	if kind := fetch.KindOf(err); kind != fetch.KindUnknown {
		return "fetch: " + kind.String()
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, ':'); i > 0 {
		return msg[:i]
	}
	return ""
}

// attemptCount reports how many fetch attempts an aggregate error carries,
// defaulting to one.
func attemptCount(err error) int {
	var agg *fetch.AggregateError
	if errors.As(err, &agg) && len(agg.Attempts) > 0 {
		return len(agg.Attempts)
	}
	return 1
}
