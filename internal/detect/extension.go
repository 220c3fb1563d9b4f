package detect

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pagesift/pagesift/internal/content"
)

// ExtensionDetector classifies by the trailing path segment after the last
// dot. It is a pure function of the path: identical extensions yield
// identical classifications regardless of host.
type ExtensionDetector struct{}

// NewExtensionDetector returns the extension strategy.
func NewExtensionDetector() *ExtensionDetector {
	return &ExtensionDetector{}
}

func (d *ExtensionDetector) Name() string  { return "extension" }
func (d *ExtensionDetector) Priority() int { return 1 }

// CanDetect reports whether the locator carries a known extension.
func (d *ExtensionDetector) CanDetect(locator string) bool {
	_, ok := extensionOf(locator)
	return ok
}

// Detect maps the extension to its expected type at fixed confidence.
func (d *ExtensionDetector) Detect(_ context.Context, locator string) (content.Classification, error) {
	ext, ok := extensionOf(locator)
	if !ok {
		return content.Classification{}, &Error{Strategy: d.Name(), Locator: locator,
			Err: fmt.Errorf("no file extension")}
	}
	tm, ok := content.ByExtension(ext)
	if !ok {
		return content.Classification{}, &Error{Strategy: d.Name(), Locator: locator,
			Err: fmt.Errorf("unknown extension %q", ext)}
	}
	c := content.Classification{
		Type:       tm.Type,
		MIMEType:   tm.MIME,
		Confidence: ConfidenceExtension,
		Metadata: map[string]string{
			MetaMethod:   "extension",
			MetaPattern:  "." + ext,
			MetaDetector: d.Name(),
			MetaPriority: strconv.Itoa(d.Priority()),
		},
	}
	c.ClampConfidence()
	return c, nil
}

// extensionOf extracts a known lower-case extension from the locator's path,
// ignoring query and fragment.
func extensionOf(locator string) (string, bool) {
	path := locator
	if u, err := url.Parse(strings.TrimSpace(locator)); err == nil && u.Path != "" {
		path = u.Path
	}
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return "", false
	}
	ext := strings.ToLower(path[i+1:])
	if strings.ContainsAny(ext, "/\\") {
		return "", false
	}
	if _, ok := content.ByExtension(ext); !ok {
		return "", false
	}
	return ext, true
}
