package process

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pagesift/pagesift/internal/content"
)

// DOCXProcessor reads the WordprocessingML inside the zip container:
// paragraphs and document tables from word/document.xml, the title from the
// core properties part when present.
type DOCXProcessor struct{}

// NewDOCXProcessor returns the DOCX strategy.
func NewDOCXProcessor() *DOCXProcessor {
	return &DOCXProcessor{}
}

func (p *DOCXProcessor) Name() string { return "docx" }

func (p *DOCXProcessor) CanProcess(t content.Type) bool {
	return t == content.TypeDOCX
}

func (p *DOCXProcessor) Process(_ context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	return run(p.Name(), t, opts, func(opts Options) (*Result, error) {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("open docx container: %w", err)
		}

		docXML, err := readZipEntry(zr, "word/document.xml")
		if err != nil {
			return nil, fmt.Errorf("read document part: %w", err)
		}

		paragraphs, tables, err := parseWordDocument(docXML)
		if err != nil {
			return nil, fmt.Errorf("parse document part: %w", err)
		}

		res := &Result{
			Text:     strings.Join(paragraphs, "\n\n"),
			Tables:   tables,
			Metadata: map[string]string{},
		}

		if coreXML, err := readZipEntry(zr, "docProps/core.xml"); err == nil {
			res.Title = coreTitle(coreXML)
		}
		if res.Title == "" {
			res.Title = InferTitle(res.Text)
		}
		res.Structure = Outline(res.Text)
		if opts.ExtractMetadata {
			res.Metadata["paragraphCount"] = strconv.Itoa(len(paragraphs))
			res.Metadata["tableCount"] = strconv.Itoa(len(tables))
			res.Metadata["wordCount"] = strconv.Itoa(len(strings.Fields(res.Text)))
		}
		return res, nil
	})
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %s not found", name)
}

// parseWordDocument streams the WordprocessingML, collecting text runs per
// paragraph and cells per table. Paragraphs inside tables belong to their
// cells, not the running text.
func parseWordDocument(data []byte) ([]string, []content.Table, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var paragraphs []string
	var tables []content.Table

	var para strings.Builder
	var cell strings.Builder
	var row []string
	var table *content.Table
	inCell := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tbl":
				table = &content.Table{}
			case "tr":
				row = nil
			case "tc":
				inCell = true
				cell.Reset()
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &el); err != nil {
					return nil, nil, err
				}
				if inCell {
					cell.WriteString(text)
				} else {
					para.WriteString(text)
				}
			case "br", "cr":
				if inCell {
					cell.WriteString("\n")
				} else {
					para.WriteString("\n")
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				if !inCell {
					if text := strings.TrimSpace(para.String()); text != "" {
						paragraphs = append(paragraphs, text)
					}
					para.Reset()
				}
			case "tc":
				inCell = false
				row = append(row, strings.TrimSpace(cell.String()))
			case "tr":
				if table != nil && len(row) > 0 {
					if table.Headers == nil {
						table.Headers = row
					} else {
						table.Rows = append(table.Rows, row)
					}
				}
			case "tbl":
				if table != nil && (table.Headers != nil || len(table.Rows) > 0) {
					tables = append(tables, *table)
				}
				table = nil
			}
		}
	}
	return paragraphs, tables, nil
}

// coreTitle pulls dc:title out of the core properties part.
func coreTitle(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if el, ok := tok.(xml.StartElement); ok && el.Name.Local == "title" {
			var title string
			if err := dec.DecodeElement(&title, &el); err != nil {
				return ""
			}
			return strings.TrimSpace(title)
		}
	}
}
