package process

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pagesift/pagesift/internal/content"
)

// RTFProcessor strips RTF control words and groups, keeping the document
// text. Escaped hex characters and the common special-character controls
// (\par, \tab, \line) are translated; everything else is dropped.
type RTFProcessor struct{}

// NewRTFProcessor returns the RTF strategy.
func NewRTFProcessor() *RTFProcessor {
	return &RTFProcessor{}
}

func (p *RTFProcessor) Name() string { return "rtf" }

func (p *RTFProcessor) CanProcess(t content.Type) bool {
	return t == content.TypeRTF
}

func (p *RTFProcessor) Process(_ context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	return run(p.Name(), t, opts, func(opts Options) (*Result, error) {
		if !strings.HasPrefix(string(data[:min(len(data), 5)]), `{\rtf`) {
			return nil, fmt.Errorf("missing rtf header")
		}
		text := stripRTF(string(data))

		res := &Result{
			Text:     text,
			Metadata: map[string]string{},
		}
		res.Title = InferTitle(text)
		res.Structure = Outline(text)
		if opts.ExtractMetadata {
			res.Metadata["wordCount"] = strconv.Itoa(len(strings.Fields(text)))
		}
		return res, nil
	})
}

// destinations whose whole group content is metadata rather than text.
var rtfSkipGroups = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
	"object":     true,
}

// stripRTF walks the token stream by hand. Depth tracking lets whole skip
// destinations be dropped without regex backtracking.
func stripRTF(src string) string {
	var b strings.Builder
	skipDepth := 0
	depth := 0
	i := 0
	for i < len(src) {
		c := src[i]
		switch c {
		case '{':
			depth++
			i++
		case '}':
			if skipDepth > 0 && depth <= skipDepth {
				skipDepth = 0
			}
			depth--
			i++
		case '\\':
			i++
			if i >= len(src) {
				break
			}
			// Escaped literal braces and backslash.
			if src[i] == '{' || src[i] == '}' || src[i] == '\\' {
				if skipDepth == 0 {
					b.WriteByte(src[i])
				}
				i++
				continue
			}
			// Hex escape \'hh.
			if src[i] == '\'' && i+2 < len(src) {
				if v, err := strconv.ParseUint(src[i+1:i+3], 16, 8); err == nil && skipDepth == 0 {
					b.WriteByte(byte(v))
				}
				i += 3
				continue
			}
			// Control word: letters then optional numeric parameter.
			start := i
			for i < len(src) && isASCIILetter(src[i]) {
				i++
			}
			word := src[start:i]
			for i < len(src) && (src[i] == '-' || (src[i] >= '0' && src[i] <= '9')) {
				i++
			}
			// One space after a control word is a delimiter, not text.
			if i < len(src) && src[i] == ' ' {
				i++
			}
			if skipDepth == 0 {
				switch word {
				case "par", "line", "sect", "page":
					b.WriteString("\n")
				case "tab":
					b.WriteString("\t")
				case "emdash":
					b.WriteString("—")
				case "endash":
					b.WriteString("–")
				default:
					if rtfSkipGroups[word] {
						skipDepth = depth
					}
				}
			}
		default:
			if skipDepth == 0 && c != '\r' && c != '\n' {
				b.WriteByte(c)
			}
			i++
		}
	}
	return collapseBlankLines(b.String())
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
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
	return strings.TrimSpace(strings.Join(out, "\n"))
}
