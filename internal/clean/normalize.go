package clean

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	excessiveNewlinesRe = regexp.MustCompile(`\n{3,}`)
	emptyEmphasisRe     = regexp.MustCompile(`(\*\*\s*\*\*|\*\s*\*|__\s*__|_\s*_)`)
	trailingHashesRe    = regexp.MustCompile(`(?m)^(#{1,6} .*?)\s+#+\s*$`)
	bareHashLineRe      = regexp.MustCompile(`(?m)^#{1,6}\s*$\n?`)
	trailingSpaceRe     = regexp.MustCompile(`(?m)[ \t]+$`)
)

// MarkdownNormalizer tidies markdown produced by conversion: collapses
// excessive blank lines, drops empty emphasis pairs and dangling heading
// markers.
type MarkdownNormalizer struct{}

// NewMarkdownNormalizer returns the markdown tidy-up stage.
func NewMarkdownNormalizer() *MarkdownNormalizer {
	return &MarkdownNormalizer{}
}

func (m *MarkdownNormalizer) Name() string { return "markdown-normalization" }
func (m *MarkdownNormalizer) Formats() []TextFormat {
	return []TextFormat{FormatMarkdown, FormatMixed}
}
func (m *MarkdownNormalizer) Priority() int { return 70 }

func (m *MarkdownNormalizer) Clean(_ context.Context, text string, cfg Config) (StageResult, error) {
	res := StageResult{CleanerName: m.Name(), OriginalLength: len(text)}

	out := text
	if n := len(emptyEmphasisRe.FindAllString(out, -1)); n > 0 {
		out = emptyEmphasisRe.ReplaceAllString(out, "")
		res.Warnings = append(res.Warnings, "removed empty emphasis markers")
	}
	out = trailingHashesRe.ReplaceAllString(out, "$1")
	out = bareHashLineRe.ReplaceAllString(out, "")
	out = trailingSpaceRe.ReplaceAllString(out, "")
	out = excessiveNewlinesRe.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)

	res.Text = out
	res.CleanedLength = len(out)
	return res, nil
}

// StringNormalizer collapses runs of whitespace inside lines and trims the
// edges, for plain text inputs with ragged spacing.
type StringNormalizer struct{}

// NewStringNormalizer returns the whitespace collapse stage.
func NewStringNormalizer() *StringNormalizer {
	return &StringNormalizer{}
}

func (s *StringNormalizer) Name() string          { return "string-normalization" }
func (s *StringNormalizer) Formats() []TextFormat { return []TextFormat{FormatPlain, FormatMixed} }
func (s *StringNormalizer) Priority() int         { return 60 }

func (s *StringNormalizer) Clean(_ context.Context, text string, cfg Config) (StageResult, error) {
	res := StageResult{CleanerName: s.Name(), OriginalLength: len(text)}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	cleaned := strings.TrimSpace(strings.Join(out, "\n"))

	res.Text = cleaned
	res.CleanedLength = len(cleaned)
	return res, nil
}

// UnicodeNormalizer canonicalizes text to NFC and strips control characters
// other than newline and tab. It runs last in every default chain.
type UnicodeNormalizer struct{}

// NewUnicodeNormalizer returns the unicode canonicalization stage.
func NewUnicodeNormalizer() *UnicodeNormalizer {
	return &UnicodeNormalizer{}
}

func (u *UnicodeNormalizer) Name() string          { return "normalization" }
func (u *UnicodeNormalizer) Formats() []TextFormat { return []TextFormat{FormatMixed} }
func (u *UnicodeNormalizer) Priority() int         { return 50 }

func (u *UnicodeNormalizer) Clean(_ context.Context, text string, cfg Config) (StageResult, error) {
	res := StageResult{CleanerName: u.Name(), OriginalLength: len(text)}

	out := norm.NFC.String(text)
	stripped := 0
	out = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFEFF' {
			stripped++
			return -1
		}
		return r
	}, out)
	if stripped > 0 {
		res.Warnings = append(res.Warnings, "stripped control characters")
	}
	out = strings.TrimSpace(out)

	res.Text = out
	res.CleanedLength = len(out)
	return res, nil
}
