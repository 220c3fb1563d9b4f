// Package batch runs many resources through the ingestion pipeline
// concurrently, under a global worker ceiling and per-domain rate limits,
// aggregating partial failures instead of aborting on the first one.
package batch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pagesift/pagesift/internal/clean"
	"github.com/pagesift/pagesift/internal/fetch"
	"github.com/pagesift/pagesift/internal/process"
)

// URLConfig describes one resource and its per-resource overrides.
type URLConfig struct {
	URL      string
	SourceID string
	// Priority orders execution, higher first.
	Priority int
	// RateLimit overrides the batch's per-domain interval for this
	// resource's domain.
	RateLimit time.Duration
	// Fetch, Process and Clean override the batch-wide defaults when set.
	Fetch   *fetch.Options
	Process *process.Options
	Clean   map[string]clean.Config
}

// Domain returns the rate-limit key for the resource: the URL host, or the
// whole locator for non-URL inputs such as local paths.
func (c URLConfig) Domain() string {
	u, err := url.Parse(c.URL)
	if err != nil || u.Hostname() == "" {
		return "local"
	}
	return strings.ToLower(u.Hostname())
}

// Options controls a whole batch run.
type Options struct {
	// Concurrency bounds simultaneously in-flight resources.
	Concurrency int
	// ContinueOnError records per-resource failures and keeps going. When
	// false the first failure cancels remaining work.
	ContinueOnError bool
	// DomainRateLimit is the default minimum interval between dispatches
	// to the same domain. Zero disables domain throttling.
	DomainRateLimit time.Duration
	// DomainRateLimits overrides the default per domain.
	DomainRateLimits map[string]time.Duration
	// GlobalDelay is a floor between any two dispatches across the batch.
	GlobalDelay time.Duration
	// CollectIssues enables the per-URL issue rollup in the result.
	CollectIssues bool
	// DomainIntervalFloor optionally supplies a minimum dispatch interval
	// for a URL, such as a robots.txt crawl delay. The largest of this
	// floor, the per-resource override, and the domain configuration wins.
	DomainIntervalFloor func(ctx context.Context, url string) time.Duration
}

// DefaultOptions runs five workers and keeps going on failures.
func DefaultOptions() Options {
	return Options{Concurrency: 5, ContinueOnError: true}
}

func (o *Options) validate() error {
	if o.Concurrency == 0 {
		o.Concurrency = 5
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", o.Concurrency)
	}
	return nil
}

// RunResult is what the pipeline reports back for one successfully
// processed resource.
type RunResult struct {
	SourceID       string
	URL            string
	FinalText      string
	CleanersUsed   []string
	Duration       time.Duration
	OriginalLength int
	FinalLength    int
	Warnings       []string
	CriticalCount  int
}

// Runner executes one resource's full pipeline. The ingestion pipeline
// implements it; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cfg URLConfig) (*RunResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cfg URLConfig) (*RunResult, error)

func (f RunnerFunc) Run(ctx context.Context, cfg URLConfig) (*RunResult, error) {
	return f(ctx, cfg)
}

// Failure records one resource that did not complete.
type Failure struct {
	URL      string
	SourceID string
	Err      error
	Context  string
	Attempts int
}

// DomainStats summarizes dispatches for one domain.
type DomainStats struct {
	Requests int
	Wait     time.Duration
}

// Summary totals a batch run. Total always equals len(Successful) plus
// len(Failed) of the owning result.
type Summary struct {
	Total         int
	Succeeded     int
	FailedCount   int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	RateLimitWait time.Duration
	PerDomain     map[string]DomainStats
}

// IssueCounts tallies cleaning diagnostics.
type IssueCounts struct {
	Errors   int
	Warnings int
	Critical int
}

// Issues rolls up cleaning diagnostics per URL and in total.
type Issues struct {
	PerURL map[string]IssueCounts
	Totals IssueCounts
}

// Result is the complete outcome of a batch. Per-resource failures live in
// Failed; the batch itself only errors when ContinueOnError is false.
type Result struct {
	Successful []RunResult
	Failed     []Failure
	Summary    Summary
	Issues     *Issues
}

// Error aggregates the failures that aborted a batch.
type Error struct {
	Failures []Failure
}

func (e *Error) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("batch aborted: %s: %v", f.URL, f.Err)
	}
	return fmt.Sprintf("batch aborted with %d failures, first: %s: %v",
		len(e.Failures), e.Failures[0].URL, e.Failures[0].Err)
}

func (e *Error) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0].Err
}
