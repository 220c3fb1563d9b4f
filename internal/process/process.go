// Package process extracts normalized text and structured artifacts (tables,
// links, images, headings) from raw bytes of a declared content type. One
// processor exists per format family; a registry composes them with a generic
// text fallback.
package process

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pagesift/pagesift/internal/content"
)

// DefaultMaxTextLength bounds extracted text when the caller does not say
// otherwise.
const DefaultMaxTextLength = 1 << 20 // 1 MiB of text

// Ellipsis marks text truncated at a word boundary.
const Ellipsis = "…"

// Options controls extraction. Each field is independently defaulted.
type Options struct {
	ExtractImages      bool
	ExtractLinks       bool
	ExtractMetadata    bool
	MaxTextLength      int
	PreserveFormatting bool

	// TableTolerance tunes the plain-text table alignment heuristic.
	TableTolerance TableTolerance
}

// DefaultOptions extracts everything with the default length cap.
func DefaultOptions() Options {
	return Options{
		ExtractImages:   true,
		ExtractLinks:    true,
		ExtractMetadata: true,
		MaxTextLength:   DefaultMaxTextLength,
		TableTolerance:  DefaultTableTolerance(),
	}
}

// validate fills defaults and rejects nonsensical values.
func (o *Options) validate() error {
	if o.MaxTextLength == 0 {
		o.MaxTextLength = DefaultMaxTextLength
	}
	if o.MaxTextLength < 0 {
		return fmt.Errorf("maxTextLength must be positive, got %d", o.MaxTextLength)
	}
	if o.TableTolerance.MinAgreement == 0 && o.TableTolerance.OffsetWindow == 0 {
		o.TableTolerance = DefaultTableTolerance()
	}
	return nil
}

// Result is the outcome of processing one resource. The caller owns it;
// processors retain no references.
type Result struct {
	Text      string
	Title     string
	Metadata  map[string]string
	Images    []content.Image
	Links     []content.Link
	Tables    []content.Table
	Structure []content.Section
}

// Metadata keys stamped by the shared base behavior.
const (
	MetaProcessor      = "processor"
	MetaExtractedAt    = "extractedAt"
	MetaOriginalLength = "originalLength"
	MetaTruncated      = "truncated"
)

// Processor is one format-specific extraction strategy.
type Processor interface {
	// CanProcess reports whether this processor handles the content type.
	CanProcess(t content.Type) bool
	// Process extracts text and artifacts from raw bytes.
	Process(ctx context.Context, data []byte, t content.Type, opts Options) (*Result, error)
	// Name is the stable strategy tag stamped into result metadata.
	Name() string
}

// Error wraps an underlying parser failure.
type Error struct {
	Processor string
	Type      content.Type
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("process %s via %s: %v", e.Type, e.Processor, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// run wraps a format-specific extraction with the shared base behavior:
// option validation, word-boundary truncation, and metadata stamping.
func run(name string, t content.Type, opts Options, extract func(Options) (*Result, error)) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, &Error{Processor: name, Type: t, Err: err}
	}
	res, err := extract(opts)
	if err != nil {
		return nil, &Error{Processor: name, Type: t, Err: err}
	}
	if res.Metadata == nil {
		res.Metadata = map[string]string{}
	}
	originalLen := len(res.Text)
	truncated := false
	res.Text, truncated = TruncateAtWord(res.Text, opts.MaxTextLength)
	res.Metadata[MetaProcessor] = name
	res.Metadata[MetaExtractedAt] = time.Now().UTC().Format(time.RFC3339)
	res.Metadata[MetaOriginalLength] = strconv.Itoa(originalLen)
	if truncated {
		res.Metadata[MetaTruncated] = "true"
	}
	return res, nil
}

// TruncateAtWord cuts text to at most max bytes, never mid-word, appending
// the ellipsis marker when anything was cut. It reports whether truncation
// happened.
func TruncateAtWord(text string, max int) (string, bool) {
	if max <= 0 || len(text) <= max {
		return text, false
	}
	cut := text[:max]
	// Back up to the last whitespace so no word is split.
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRightFunc(cut, unicode.IsSpace) + Ellipsis, true
}

// InferTitle applies the shared title heuristics over extracted text: a
// markdown heading, an underlined heading, then the first short line.
func InferTitle(text string) string {
	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
		// Setext style: a line underlined with = or -.
		if i+1 < len(lines) {
			under := strings.TrimSpace(lines[i+1])
			if len(under) >= 3 && (strings.Trim(under, "=") == "" || strings.Trim(under, "-") == "") {
				return line
			}
		}
		if len(line) <= 120 {
			return line
		}
		break
	}
	return ""
}

// Outline derives a heading/section outline by scanning for heading markers
// and slicing the text between consecutive headings.
func Outline(text string) []content.Section {
	lines := strings.Split(text, "\n")
	type head struct {
		idx   int
		level int
		title string
	}
	var heads []head
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		level := 0
		for level < len(line) && line[level] == '#' {
			level++
		}
		if level > 6 || level == len(line) || line[level] != ' ' {
			continue
		}
		heads = append(heads, head{idx: i, level: level, title: strings.TrimSpace(line[level:])})
	}
	if len(heads) == 0 {
		return nil
	}
	sections := make([]content.Section, 0, len(heads))
	for i, h := range heads {
		end := len(lines)
		if i+1 < len(heads) {
			end = heads[i+1].idx
		}
		body := strings.TrimSpace(strings.Join(lines[h.idx+1:end], "\n"))
		sections = append(sections, content.Section{Heading: h.title, Level: h.level, Text: body})
	}
	return sections
}
