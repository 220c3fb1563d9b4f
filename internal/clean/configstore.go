package clean

import (
	"path"
	"sync"
)

// ConfigStore persists per-source cleaner configuration. The durable
// implementation lives outside this module; the orchestrator only needs
// these four operations.
type ConfigStore interface {
	// GetConfig returns the stored configuration for one source and tool.
	// The second return is false when nothing is stored.
	GetConfig(sourceID, tool string) (Config, bool, error)
	// SetConfig stores the configuration for one source and tool.
	SetConfig(sourceID, tool string, cfg Config) error
	// BatchSetConfig stores the same configuration for many sources.
	BatchSetConfig(sourceIDs []string, tool string, cfg Config) error
	// ApplyConfigTemplate stores the configuration for every known source
	// whose identifier matches the glob pattern, returning how many were
	// affected.
	ApplyConfigTemplate(pattern, tool string, cfg Config) (int, error)
}

// MemoryStore is an in-process ConfigStore for tests and the CLI.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]map[string]Config // sourceID -> tool -> config
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]map[string]Config)}
}

func (m *MemoryStore) GetConfig(sourceID, tool string) (Config, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[sourceID][tool]
	return cfg, ok, nil
}

func (m *MemoryStore) SetConfig(sourceID, tool string, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(sourceID, tool, cfg)
	return nil
}

func (m *MemoryStore) BatchSetConfig(sourceIDs []string, tool string, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range sourceIDs {
		m.set(id, tool, cfg)
	}
	return nil
}

// ApplyConfigTemplate matches known source identifiers against a glob
// pattern and applies the configuration to each match.
func (m *MemoryStore) ApplyConfigTemplate(pattern, tool string, cfg Config) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	affected := 0
	for id := range m.configs {
		ok, err := path.Match(pattern, id)
		if err != nil {
			return 0, err
		}
		if ok {
			m.set(id, tool, cfg)
			affected++
		}
	}
	return affected, nil
}

func (m *MemoryStore) set(sourceID, tool string, cfg Config) {
	tools, ok := m.configs[sourceID]
	if !ok {
		tools = make(map[string]Config)
		m.configs[sourceID] = tools
	}
	tools[tool] = cfg
}
