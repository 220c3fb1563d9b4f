package clean

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

var htmlTagRe = regexp.MustCompile(`(?s)<[a-zA-Z][^>]*>`)

// fallbackPageURL anchors relative links when the source URL is unknown.
var fallbackPageURL = &url.URL{Scheme: "https", Host: "localhost"}

// ReadabilityExtractor isolates the main article content, dropping
// navigation chrome the structural pass could not identify. Input that no
// longer contains markup (an earlier stage already converted it) passes
// through untouched.
type ReadabilityExtractor struct{}

// NewReadabilityExtractor returns the main-content extraction stage.
func NewReadabilityExtractor() *ReadabilityExtractor {
	return &ReadabilityExtractor{}
}

func (r *ReadabilityExtractor) Name() string          { return "readability-extraction" }
func (r *ReadabilityExtractor) Formats() []TextFormat { return []TextFormat{FormatHTML} }
func (r *ReadabilityExtractor) Priority() int         { return 80 }

func (r *ReadabilityExtractor) Clean(_ context.Context, text string, cfg Config) (StageResult, error) {
	res := StageResult{CleanerName: r.Name(), OriginalLength: len(text), Text: text, CleanedLength: len(text)}

	if !htmlTagRe.MatchString(text) {
		return res, nil
	}

	pageURL := fallbackPageURL
	if raw := cfg.ParamString("sourceURL", ""); raw != "" {
		if u, err := url.Parse(raw); err == nil {
			pageURL = u
		}
	}
	article, err := readability.FromReader(strings.NewReader(text), pageURL)
	if err != nil {
		// Not every page is an article; keep the input and note it.
		res.Warnings = append(res.Warnings, fmt.Sprintf("readability extraction failed: %v", err))
		return res, nil
	}

	out := strings.TrimSpace(article.TextContent)
	if out == "" {
		res.Warnings = append(res.Warnings, "readability produced no content, keeping input")
		return res, nil
	}
	if article.Title != "" && !strings.Contains(out, article.Title) {
		out = article.Title + "\n\n" + out
	}

	res.Text = out
	res.CleanedLength = len(out)
	return res, nil
}
