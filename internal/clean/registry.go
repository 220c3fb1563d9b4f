package clean

import (
	"sort"
	"sync"
)

// Registry holds the process-wide set of named cleaner instances. Cleaners
// are singleton-scoped: chains reference the shared instance rather than
// constructing their own. Lookups are frequent and concurrent; mutation is
// an administrative operation.
type Registry struct {
	mu       sync.RWMutex
	cleaners map[string]Cleaner
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cleaners: make(map[string]Cleaner)}
}

// DefaultRegistry returns a registry with every built-in cleaner.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Add(NewStructuralSanitizer())
	r.Add(NewMarkupSanitizer())
	r.Add(NewReadabilityExtractor())
	r.Add(NewMarkdownNormalizer())
	r.Add(NewStringNormalizer())
	r.Add(NewUnicodeNormalizer())
	return r
}

// Add registers a cleaner under its name, replacing any previous instance.
func (r *Registry) Add(c Cleaner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleaners[c.Name()] = c
}

// Remove drops the named cleaner.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cleaners[name]; !ok {
		return false
	}
	delete(r.cleaners, name)
	return true
}

// Get looks up a cleaner by name.
func (r *Registry) Get(name string) (Cleaner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cleaners[name]
	return c, ok
}

// List returns registered names, sorted for determinism.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.cleaners))
	for name := range r.cleaners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered cleaners.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cleaners)
}
