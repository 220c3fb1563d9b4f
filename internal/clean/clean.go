// Package clean runs extracted text through an ordered chain of sanitizers
// and normalizers. Each cleaner declares the text formats it handles and a
// priority; a chain stable-sorts its stages by descending priority, skips
// disabled or format-mismatched stages, and halts early on a critical
// failure or when text becomes empty.
package clean

import (
	"context"
	"fmt"
	"time"
)

// TextFormat classifies the text a cleaner operates on.
type TextFormat string

const (
	FormatHTML     TextFormat = "html"
	FormatMarkdown TextFormat = "markdown"
	FormatPlain    TextFormat = "plain"
	// FormatMixed marks cleaners that accept any textual input.
	FormatMixed TextFormat = "mixed"
)

// Config is the per-cleaner configuration attached to a chain stage.
type Config struct {
	Enabled bool           `yaml:"enabled" json:"enabled"`
	Params  map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// DefaultConfig enables a stage with no parameters.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// ParamString reads a string parameter with a fallback.
func (c Config) ParamString(key, fallback string) string {
	if s, ok := c.Params[key].(string); ok {
		return s
	}
	return fallback
}

// ParamInt reads an integer parameter with a fallback. YAML and JSON decode
// numbers differently, so both int and float64 are accepted.
func (c Config) ParamInt(key string, fallback int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

// ParamBool reads a boolean parameter with a fallback.
func (c Config) ParamBool(key string, fallback bool) bool {
	if b, ok := c.Params[key].(bool); ok {
		return b
	}
	return fallback
}

// StageResult records one cleaner's pass over the text.
type StageResult struct {
	CleanerName    string
	OriginalLength int
	CleanedLength  int
	Warnings       []string
	Critical       bool
	Text           string
}

// ChainResult aggregates a full chain run.
type ChainResult struct {
	FinalText     string
	StageResults  []StageResult
	Warnings      []string
	TotalDuration time.Duration
	// Halted is set when the chain stopped before its last stage.
	Halted bool
}

// Cleaner is one stage implementation. Instances are singleton-scoped and
// shared across chains, so Clean must be safe for concurrent use.
type Cleaner interface {
	// Clean transforms text. A returned error with Critical set in the
	// result stops the chain for this resource.
	Clean(ctx context.Context, text string, cfg Config) (StageResult, error)
	// Name is the stable registry key.
	Name() string
	// Formats lists the text formats this cleaner accepts.
	Formats() []TextFormat
	// Priority orders stages within a chain, higher first.
	Priority() int
}

// Error is a single stage's failure.
type Error struct {
	Cleaner  string
	Critical bool
	Err      error
}

func (e *Error) Error() string {
	sev := "recoverable"
	if e.Critical {
		sev = "critical"
	}
	return fmt.Sprintf("clean stage %s (%s): %v", e.Cleaner, sev, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// supportsFormat reports whether a cleaner accepts the given format. Mixed
// cleaners accept everything.
func supportsFormat(c Cleaner, format TextFormat) bool {
	for _, f := range c.Formats() {
		if f == format || f == FormatMixed {
			return true
		}
	}
	return false
}
