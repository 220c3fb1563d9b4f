package process

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/pagesift/pagesift/internal/content"
)

// oleSignature is the compound file header every legacy .doc starts with.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// DOCProcessor extracts text from legacy binary Word documents by scanning
// for printable character runs, in both single-byte and UTF-16 encodings.
// The OLE container is not fully parsed; runs shorter than the threshold are
// treated as structure noise and dropped.
type DOCProcessor struct{}

// NewDOCProcessor returns the legacy DOC strategy.
func NewDOCProcessor() *DOCProcessor {
	return &DOCProcessor{}
}

func (p *DOCProcessor) Name() string { return "doc" }

func (p *DOCProcessor) CanProcess(t content.Type) bool {
	return t == content.TypeDOC
}

const minRunLength = 16

func (p *DOCProcessor) Process(_ context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	return run(p.Name(), t, opts, func(opts Options) (*Result, error) {
		if len(data) < len(oleSignature) {
			return nil, fmt.Errorf("short document: %d bytes", len(data))
		}
		for i, b := range oleSignature {
			if data[i] != b {
				return nil, fmt.Errorf("not an OLE compound document")
			}
		}

		runs := printableRuns(data)
		text := strings.Join(runs, "\n")

		res := &Result{
			Text:     text,
			Metadata: map[string]string{},
		}
		res.Title = InferTitle(text)
		res.Tables = DetectAlignedTables(text, opts.TableTolerance)
		res.Structure = Outline(text)
		if opts.ExtractMetadata {
			res.Metadata["runCount"] = strconv.Itoa(len(runs))
			res.Metadata["wordCount"] = strconv.Itoa(len(strings.Fields(text)))
		}
		return res, nil
	})
}

// printableRuns collects maximal runs of printable characters, trying UTF-16
// little-endian first (how Word stores most text) and falling back to
// single-byte runs.
func printableRuns(data []byte) []string {
	var runs []string

	// UTF-16LE pass: pairs of (printable, 0x00).
	var u16 []uint16
	flush16 := func() {
		if len(u16) >= minRunLength {
			s := strings.TrimSpace(string(utf16.Decode(u16)))
			if s != "" {
				runs = append(runs, s)
			}
		}
		u16 = u16[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		u := uint16(data[i]) | uint16(data[i+1])<<8
		r := rune(u)
		if u != 0 && (unicode.IsPrint(r) || r == '\n' || r == '\t') && u < 0xD800 {
			u16 = append(u16, u)
			continue
		}
		flush16()
	}
	flush16()

	if len(runs) > 0 {
		return dedupeRuns(runs)
	}

	// Single-byte fallback.
	var b strings.Builder
	flush8 := func() {
		if b.Len() >= minRunLength {
			s := strings.TrimSpace(b.String())
			if s != "" {
				runs = append(runs, s)
			}
		}
		b.Reset()
	}
	for _, c := range data {
		if c == '\n' || c == '\t' || (c >= 0x20 && c < 0x7F) {
			b.WriteByte(c)
			continue
		}
		flush8()
	}
	flush8()
	return dedupeRuns(runs)
}

// dedupeRuns drops exact consecutive duplicates, common in OLE streams that
// store the same text in multiple places.
func dedupeRuns(runs []string) []string {
	out := runs[:0]
	prev := ""
	for _, r := range runs {
		if r == prev {
			continue
		}
		out = append(out, r)
		prev = r
	}
	return out
}
