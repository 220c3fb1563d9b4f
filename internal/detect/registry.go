package detect

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pagesift/pagesift/internal/content"
)

// Outcome pairs one strategy's classification with its error, for callers
// that want to inspect disagreement between strategies.
type Outcome struct {
	Strategy       string
	Classification content.Classification
	Err            error
}

// Registry composes detection strategies.
//
// Tie-break discipline: Detect returns the first strategy in ascending
// priority order whose confidence exceeds MinConfidence. DetectBest instead
// takes the global maximum confidence across all attempted strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with the extension, header, and content
// strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Add(NewExtensionDetector())
	r.Add(NewHeaderDetector())
	r.Add(NewContentDetector())
	return r
}

// Add registers a strategy, keeping the list sorted by ascending priority.
// Ties keep insertion order.
func (r *Registry) Add(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, s)
	sort.SliceStable(r.strategies, func(i, j int) bool {
		return r.strategies[i].Priority() < r.strategies[j].Priority()
	})
}

// Remove drops the strategy with the given name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.strategies {
		if s.Name() == name {
			r.strategies = append(r.strategies[:i], r.strategies[i+1:]...)
			return true
		}
	}
	return false
}

// List returns registered strategy names in priority order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Count returns the number of registered strategies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

func (r *Registry) snapshot() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Detect classifies the resource via the first capable strategy whose
// confidence exceeds MinConfidence. When no strategy is capable or all fail,
// it returns the explicit UNKNOWN classification with zero confidence rather
// than an error.
func (r *Registry) Detect(ctx context.Context, locator string) content.Classification {
	for _, s := range r.snapshot() {
		if !s.CanDetect(locator) {
			continue
		}
		c, err := s.Detect(ctx, locator)
		if err != nil {
			log.Debug().Err(err).Str("url", locator).Str("detector", s.Name()).
				Msg("detection strategy failed")
			continue
		}
		c.ClampConfidence()
		if c.Confidence > MinConfidence {
			return c
		}
	}
	return content.Unknown()
}

// DetectAll runs every capable strategy and returns all outcomes sorted by
// (success, confidence) descending.
func (r *Registry) DetectAll(ctx context.Context, locator string) []Outcome {
	var outcomes []Outcome
	for _, s := range r.snapshot() {
		if !s.CanDetect(locator) {
			continue
		}
		c, err := s.Detect(ctx, locator)
		c.ClampConfidence()
		outcomes = append(outcomes, Outcome{Strategy: s.Name(), Classification: c, Err: err})
	}
	sort.SliceStable(outcomes, func(i, j int) bool {
		oi, oj := outcomes[i], outcomes[j]
		if (oi.Err == nil) != (oj.Err == nil) {
			return oi.Err == nil
		}
		return oi.Classification.Confidence > oj.Classification.Confidence
	})
	return outcomes
}

// DetectBest runs all capable strategies and returns the classification with
// the globally highest confidence, or UNKNOWN when nothing succeeded.
func (r *Registry) DetectBest(ctx context.Context, locator string) content.Classification {
	for _, o := range r.DetectAll(ctx, locator) {
		if o.Err == nil && o.Classification.Confidence > MinConfidence {
			return o.Classification
		}
	}
	return content.Unknown()
}
