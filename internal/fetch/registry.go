package fetch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Fetcher is one retrieval strategy. Implementations carry an explicit Name
// tag; the registry never inspects runtime types.
type Fetcher interface {
	// CanFetch reports whether this strategy understands the locator.
	CanFetch(locator string) bool
	// Fetch retrieves the resource.
	Fetch(ctx context.Context, locator string, opts Options) (*Content, error)
	// TestConnectivity performs a cheap existence probe without downloading
	// the full content.
	TestConnectivity(ctx context.Context, locator string) error
	// Name is the stable strategy tag.
	Name() string
}

// Registry holds an ordered list of fetcher strategies and a shared retry
// policy. Fetch tries each capable strategy in registration order, each
// attempt wrapped in the retry policy; a strategy's failure is logged and the
// next one is tried. Only exhaustion of all capable strategies surfaces an
// error.
type Registry struct {
	mu       sync.RWMutex
	fetchers []Fetcher
	policy   RetryPolicy
}

// NewRegistry returns a registry with the given retry policy and no
// strategies. Use DefaultRegistry for the standard HTTP+file setup.
func NewRegistry(policy RetryPolicy) *Registry {
	return &Registry{policy: policy}
}

// DefaultRegistry returns a registry with the HTTP and file strategies under
// the default retry policy.
func DefaultRegistry() *Registry {
	r := NewRegistry(DefaultRetryPolicy())
	r.Add(NewHTTPFetcher())
	r.Add(NewFileFetcher())
	return r
}

// Add appends a strategy. Registration order is trial order.
func (r *Registry) Add(f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers = append(r.fetchers, f)
}

// Remove drops the strategy with the given name. It reports whether a
// strategy was removed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.fetchers {
		if f.Name() == name {
			r.fetchers = append(r.fetchers[:i], r.fetchers[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the registered strategy names in trial order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.fetchers))
	for i, f := range r.fetchers {
		names[i] = f.Name()
	}
	return names
}

// Count returns the number of registered strategies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fetchers)
}

func (r *Registry) capable(locator string) []Fetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Fetcher, 0, len(r.fetchers))
	for _, f := range r.fetchers {
		if f.CanFetch(locator) {
			out = append(out, f)
		}
	}
	return out
}

// Fetch retrieves the resource via the first capable strategy that succeeds.
func (r *Registry) Fetch(ctx context.Context, locator string, opts Options) (*Content, error) {
	capable := r.capable(locator)
	if len(capable) == 0 {
		return nil, &AggregateError{Locator: locator}
	}

	var attempts []error
	for _, f := range capable {
		c, err := r.policy.Do(ctx, locator, func() (*Content, error) {
			return f.Fetch(ctx, locator, opts)
		})
		if err == nil {
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Err(err).Str("url", locator).Str("fetcher", f.Name()).
			Msg("fetch strategy failed")
		attempts = append(attempts, err)
	}
	return nil, &AggregateError{Locator: locator, Attempts: attempts}
}

// TestConnectivity probes reachability via the first capable strategy.
func (r *Registry) TestConnectivity(ctx context.Context, locator string) error {
	capable := r.capable(locator)
	if len(capable) == 0 {
		return &AggregateError{Locator: locator}
	}
	var last error
	for _, f := range capable {
		if last = f.TestConnectivity(ctx, locator); last == nil {
			return nil
		}
	}
	return last
}
