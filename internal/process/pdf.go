package process

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pagesift/pagesift/internal/content"
)

// PDFProcessor extracts text per page, records the page count, and runs the
// column-alignment heuristic over the text to recover tables.
type PDFProcessor struct{}

// NewPDFProcessor returns the PDF strategy.
func NewPDFProcessor() *PDFProcessor {
	return &PDFProcessor{}
}

func (p *PDFProcessor) Name() string { return "pdf" }

func (p *PDFProcessor) CanProcess(t content.Type) bool {
	return t == content.TypePDF
}

// Process extracts text from each page. Pages that fail to parse are skipped
// rather than failing the document.
func (p *PDFProcessor) Process(_ context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	return run(p.Name(), t, opts, func(opts Options) (*Result, error) {
		reader, err := pdf.NewReader(bytesReaderAt(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("open pdf: %w", err)
		}

		var b strings.Builder
		numPages := reader.NumPage()
		extracted := 0
		for i := 1; i <= numPages; i++ {
			page := reader.Page(i)
			if page.V.IsNull() {
				continue
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				continue
			}
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(text)
			extracted++
		}

		res := &Result{
			Text:     b.String(),
			Metadata: map[string]string{},
		}
		res.Title = InferTitle(res.Text)
		res.Tables = DetectAlignedTables(res.Text, opts.TableTolerance)
		res.Structure = Outline(res.Text)
		if opts.ExtractMetadata {
			res.Metadata["pageCount"] = strconv.Itoa(numPages)
			res.Metadata["pagesWithText"] = strconv.Itoa(extracted)
			res.Metadata["wordCount"] = strconv.Itoa(len(strings.Fields(res.Text)))
		}
		return res, nil
	})
}

// bytesReaderAt adapts a byte slice to io.ReaderAt for the pdf reader.
type bytesReaderAt []byte

func (r bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset")
	}
	if off >= int64(len(r)) {
		return 0, io.EOF
	}
	n := copy(p, r[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
