package clean

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// MarkupSanitizer converts sanitized HTML into markdown, leaving only
// declarative markup in the text.
type MarkupSanitizer struct {
	converter *md.Converter
}

// NewMarkupSanitizer returns the HTML to markdown stage.
func NewMarkupSanitizer() *MarkupSanitizer {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &MarkupSanitizer{converter: conv}
}

func (m *MarkupSanitizer) Name() string          { return "markup-sanitizer" }
func (m *MarkupSanitizer) Formats() []TextFormat { return []TextFormat{FormatHTML} }
func (m *MarkupSanitizer) Priority() int         { return 90 }

func (m *MarkupSanitizer) Clean(_ context.Context, text string, cfg Config) (StageResult, error) {
	res := StageResult{CleanerName: m.Name(), OriginalLength: len(text), Text: text}

	out, err := m.converter.ConvertString(text)
	if err != nil {
		res.Critical = true
		return res, fmt.Errorf("convert to markdown: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" && strings.TrimSpace(text) != "" {
		res.Warnings = append(res.Warnings, "conversion produced empty markdown, keeping input")
		res.CleanedLength = len(text)
		return res, nil
	}

	res.Text = out
	res.CleanedLength = len(out)
	return res, nil
}
