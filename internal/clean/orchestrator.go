package clean

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// defaultChainCleaners names the default stage set per text format, in the
// order the stages run (priorities already encode this order; the lists
// exist so chains only carry relevant stages).
var defaultChainCleaners = map[TextFormat][]string{
	FormatHTML:     {"structural-sanitizer", "markup-sanitizer", "readability-extraction", "normalization"},
	FormatMarkdown: {"markdown-normalization", "normalization"},
	FormatPlain:    {"string-normalization", "normalization"},
	FormatMixed:    {"string-normalization", "normalization"},
}

// Orchestrator builds cleaning chains from the shared registry and applies
// per-source configuration overrides fetched from the store at call time.
// Default chains are built once and cloned per override, never mutated.
type Orchestrator struct {
	registry *Registry
	store    ConfigStore
	defaults map[TextFormat]*Chain
}

// NewOrchestrator wires a registry and an optional config store. A nil
// store disables per-source overrides.
func NewOrchestrator(registry *Registry, store ConfigStore) (*Orchestrator, error) {
	o := &Orchestrator{
		registry: registry,
		store:    store,
		defaults: make(map[TextFormat]*Chain),
	}
	for format, names := range defaultChainCleaners {
		chain := NewChain()
		for _, name := range names {
			c, ok := registry.Get(name)
			if !ok {
				return nil, fmt.Errorf("default chain for %s needs unregistered cleaner %s", format, name)
			}
			chain.Add(c, DefaultConfig())
		}
		o.defaults[format] = chain
	}
	return o, nil
}

// ChainFor returns the chain for the given format and source. With no
// source-specific configuration the shared default chain is returned
// directly; any override is applied to a clone.
func (o *Orchestrator) ChainFor(format TextFormat, sourceID string) (*Chain, error) {
	base, ok := o.defaults[format]
	if !ok {
		base = o.defaults[FormatMixed]
	}
	if o.store == nil || sourceID == "" {
		return base, nil
	}

	var clone *Chain
	for _, name := range base.Names() {
		cfg, found, err := o.store.GetConfig(sourceID, name)
		if err != nil {
			return nil, fmt.Errorf("load config for %s/%s: %w", sourceID, name, err)
		}
		if !found {
			continue
		}
		if clone == nil {
			clone = base.Clone()
		}
		clone.Configure(name, cfg)
		log.Debug().Str("source", sourceID).Str("cleaner", name).Msg("applied per-source cleaner override")
	}
	if clone != nil {
		return clone, nil
	}
	return base, nil
}

// Process cleans text in the given format using the source's chain.
func (o *Orchestrator) Process(ctx context.Context, text string, format TextFormat, sourceID string) (*ChainResult, error) {
	chain, err := o.ChainFor(format, sourceID)
	if err != nil {
		return nil, err
	}
	return chain.Process(ctx, text, format)
}
