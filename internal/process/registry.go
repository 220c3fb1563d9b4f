package process

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pagesift/pagesift/internal/content"
)

// Outcome pairs one processor's result with its error, for diagnostic
// multi-strategy evaluation.
type Outcome struct {
	Processor string
	Result    *Result
	Err       error
}

// Registry composes processors. Process picks the first capable processor in
// registration order; the generic text processor acts as the explicit
// fallback for unrecognized types.
type Registry struct {
	mu         sync.RWMutex
	processors []Processor
	fallback   Processor
}

// NewRegistry returns an empty registry with the given fallback.
func NewRegistry(fallback Processor) *Registry {
	return &Registry{fallback: fallback}
}

// DefaultRegistry returns a registry with every format strategy and the text
// fallback.
func DefaultRegistry() *Registry {
	r := NewRegistry(NewTextProcessor())
	r.Add(NewHTMLProcessor())
	r.Add(NewPDFProcessor())
	r.Add(NewDOCXProcessor())
	r.Add(NewDOCProcessor())
	r.Add(NewXLSXProcessor())
	r.Add(NewRTFProcessor())
	r.Add(NewTextProcessor())
	return r
}

// Add appends a processor. Registration order is trial order.
func (r *Registry) Add(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors = append(r.processors, p)
}

// Remove drops the processor with the given name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.processors {
		if p.Name() == name {
			r.processors = append(r.processors[:i], r.processors[i+1:]...)
			return true
		}
	}
	return false
}

// List returns registered processor names in trial order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.processors))
	for i, p := range r.processors {
		names[i] = p.Name()
	}
	return names
}

// Count returns the number of registered processors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.processors)
}

func (r *Registry) capable(t content.Type) []Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Processor, 0, len(r.processors))
	for _, p := range r.processors {
		if p.CanProcess(t) {
			out = append(out, p)
		}
	}
	return out
}

// Process extracts content via the first capable processor, or the fallback
// when none claims the type.
func (r *Registry) Process(ctx context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	capable := r.capable(t)
	if len(capable) == 0 {
		log.Debug().Str("type", t.String()).Msg("no processor claims type, using fallback")
		return r.fallback.Process(ctx, data, t, opts)
	}
	return capable[0].Process(ctx, data, t, opts)
}

// ProcessAll runs every capable processor for diagnostic comparison, sorted
// by success then extracted text length descending.
func (r *Registry) ProcessAll(ctx context.Context, data []byte, t content.Type, opts Options) []Outcome {
	var outcomes []Outcome
	for _, p := range r.capable(t) {
		res, err := p.Process(ctx, data, t, opts)
		outcomes = append(outcomes, Outcome{Processor: p.Name(), Result: res, Err: err})
	}
	sort.SliceStable(outcomes, func(i, j int) bool {
		oi, oj := outcomes[i], outcomes[j]
		if (oi.Err == nil) != (oj.Err == nil) {
			return oi.Err == nil
		}
		li, lj := 0, 0
		if oi.Result != nil {
			li = len(oi.Result.Text)
		}
		if oj.Result != nil {
			lj = len(oj.Result.Text)
		}
		return li > lj
	})
	return outcomes
}

// ProcessBest returns the top ProcessAll outcome, or the fallback result
// when every capable processor failed.
func (r *Registry) ProcessBest(ctx context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	outcomes := r.ProcessAll(ctx, data, t, opts)
	for _, o := range outcomes {
		if o.Err == nil {
			return o.Result, nil
		}
	}
	if len(outcomes) == 0 {
		return r.fallback.Process(ctx, data, t, opts)
	}
	return nil, outcomes[len(outcomes)-1].Err
}
