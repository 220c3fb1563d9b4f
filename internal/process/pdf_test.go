package process

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"github.com/pagesift/pagesift/internal/content"
)

// buildPDF renders a small document with a known number of pages.
func buildPDF(t *testing.T, pages []string) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.MultiCell(180, 8, text, "", "L", false)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

func TestPDFProcessor_ExtractsTextAndPageCount(t *testing.T) {
	data := buildPDF(t, []string{
		"Quarterly earnings summary for the board.",
		"Appendix with supporting figures.",
	})
	p := NewPDFProcessor()
	res, err := p.Process(context.Background(), data, content.TypePDF, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "Quarterly earnings") {
		t.Fatalf("first page text missing: %q", res.Text)
	}
	if !strings.Contains(res.Text, "Appendix") {
		t.Fatalf("second page text missing: %q", res.Text)
	}
	if res.Metadata["pageCount"] != "2" {
		t.Fatalf("unexpected pageCount: %q", res.Metadata["pageCount"])
	}
	if res.Metadata[MetaProcessor] != "pdf" {
		t.Fatalf("unexpected processor tag: %q", res.Metadata[MetaProcessor])
	}
}

func TestPDFProcessor_RejectsGarbage(t *testing.T) {
	p := NewPDFProcessor()
	if _, err := p.Process(context.Background(), []byte("%PDF-not really"), content.TypePDF, DefaultOptions()); err == nil {
		t.Fatalf("expected parse error for malformed pdf")
	}
}
