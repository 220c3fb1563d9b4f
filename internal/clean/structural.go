package clean

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// disallowedSelectors are removed wholesale from HTML input. Each removal is
// reported as a warning so downstream consumers can audit what was dropped.
var disallowedSelectors = []string{
	"script", "style", "noscript", "iframe", "object", "embed",
	"form", "input", "button", "nav", "footer", "aside",
}

// StructuralSanitizer strips executable and boilerplate nodes from HTML
// before any content extraction runs.
type StructuralSanitizer struct{}

// NewStructuralSanitizer returns the HTML structural sanitizer.
func NewStructuralSanitizer() *StructuralSanitizer {
	return &StructuralSanitizer{}
}

func (s *StructuralSanitizer) Name() string          { return "structural-sanitizer" }
func (s *StructuralSanitizer) Formats() []TextFormat { return []TextFormat{FormatHTML} }
func (s *StructuralSanitizer) Priority() int         { return 100 }

func (s *StructuralSanitizer) Clean(_ context.Context, text string, cfg Config) (StageResult, error) {
	res := StageResult{CleanerName: s.Name(), OriginalLength: len(text), Text: text}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		res.Critical = true
		return res, fmt.Errorf("parse html: %w", err)
	}

	for _, sel := range disallowedSelectors {
		if n := doc.Find(sel).Length(); n > 0 {
			doc.Find(sel).Remove()
			res.Warnings = append(res.Warnings, fmt.Sprintf("removed %d disallowed %s element(s)", n, sel))
		}
	}

	// Inline event handlers survive node removal; strip them attribute by
	// attribute.
	handlers := 0
	doc.Find("*").Each(func(_ int, el *goquery.Selection) {
		for _, node := range el.Nodes {
			kept := node.Attr[:0]
			for _, attr := range node.Attr {
				if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					handlers++
					continue
				}
				if strings.EqualFold(attr.Key, "href") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(attr.Val)), "javascript:") {
					handlers++
					continue
				}
				kept = append(kept, attr)
			}
			node.Attr = kept
		}
	})
	if handlers > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("removed %d script-bearing attribute(s)", handlers))
	}

	out, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(out) == "" {
		out, err = doc.Html()
		if err != nil {
			res.Critical = true
			return res, fmt.Errorf("render html: %w", err)
		}
	}

	res.Text = out
	res.CleanedLength = len(out)
	return res, nil
}
