package process

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pagesift/pagesift/internal/content"
)

// buildDOCX assembles a minimal WordprocessingML container in memory.
func buildDOCX(t *testing.T, documentXML, coreXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := map[string]string{
		"word/document.xml": documentXML,
	}
	if coreXML != "" {
		entries["docProps/core.xml"] = coreXML
	}
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const docxParagraphs = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
<w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Score</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>Alice</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>10</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
</w:body>
</w:document>`

const docxCore = `<?xml version="1.0"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Scores Report</dc:title>
</cp:coreProperties>`

func TestDOCXProcessor_ParagraphsAndTables(t *testing.T) {
	data := buildDOCX(t, docxParagraphs, docxCore)
	p := NewDOCXProcessor()
	res, err := p.Process(context.Background(), data, content.TypeDOCX, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "Scores Report" {
		t.Fatalf("expected core properties title, got %q", res.Title)
	}
	if !strings.Contains(res.Text, "First paragraph.") || !strings.Contains(res.Text, "Second paragraph.") {
		t.Fatalf("paragraph text missing: %q", res.Text)
	}
	if strings.Contains(res.Text, "Alice") {
		t.Fatalf("table cell leaked into running text: %q", res.Text)
	}
	if len(res.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(res.Tables))
	}
	tbl := res.Tables[0]
	if strings.Join(tbl.Headers, "|") != "Name|Score" {
		t.Fatalf("unexpected headers: %v", tbl.Headers)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][0] != "Alice" {
		t.Fatalf("unexpected rows: %v", tbl.Rows)
	}
	if res.Metadata["paragraphCount"] != "2" {
		t.Fatalf("unexpected paragraphCount: %q", res.Metadata["paragraphCount"])
	}
}

func TestDOCXProcessor_MissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.Close()
	p := NewDOCXProcessor()
	if _, err := p.Process(context.Background(), buf.Bytes(), content.TypeDOCX, DefaultOptions()); err == nil {
		t.Fatalf("expected error for container without document part")
	}
}

func TestDOCXProcessor_NotAZip(t *testing.T) {
	p := NewDOCXProcessor()
	if _, err := p.Process(context.Background(), []byte("plain text"), content.TypeDOCX, DefaultOptions()); err == nil {
		t.Fatalf("expected container error")
	}
}
