// Package detect classifies resources by content type. Three strategies run
// in ascending priority: extension mapping (cheap, syntactic), header probing
// (HEAD with ranged-GET fallback), and content sniffing over a bounded sample
// (magic numbers, text ratio, structural heuristics). A registry composes
// them and always returns a classification, falling back to UNKNOWN with zero
// confidence.
package detect

import (
	"context"
	"fmt"

	"github.com/pagesift/pagesift/internal/content"
)

// Confidence levels by detection method. Content sniffing is most specific,
// headers carry server intent, extensions are a syntactic guess.
const (
	ConfidenceExtension = 0.8
	ConfidenceHeader    = 0.9
	ConfidenceMagic     = 0.95

	// MinConfidence is the registry's acceptance threshold for Detect.
	MinConfidence = 0.1
)

// Strategy is one detection approach.
type Strategy interface {
	// CanDetect reports whether the strategy understands the locator.
	CanDetect(locator string) bool
	// Detect classifies the resource. It fails only when the underlying
	// probe itself failed despite CanDetect having matched.
	Detect(ctx context.Context, locator string) (content.Classification, error)
	// Name is the stable strategy tag stamped into classification metadata.
	Name() string
	// Priority orders strategies; lower runs first.
	Priority() int
}

// Error is a detection probe failure.
type Error struct {
	Strategy string
	Locator  string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("detect %s via %s: %v", e.Locator, e.Strategy, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Metadata keys stamped by strategies.
const (
	MetaMethod   = "detectionMethod"
	MetaPattern  = "matchedPattern"
	MetaDetector = "detector"
	MetaPriority = "priority"
)
