package process

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/pagesift/pagesift/internal/content"
)

// HTMLProcessor extracts text, title, links, images, tables, and a heading
// outline from HTML documents. Non-UTF8 payloads are decoded via the
// declared or sniffed charset first.
type HTMLProcessor struct{}

// NewHTMLProcessor returns the HTML strategy.
func NewHTMLProcessor() *HTMLProcessor {
	return &HTMLProcessor{}
}

func (p *HTMLProcessor) Name() string { return "html" }

// CanProcess accepts HTML and generic webpage types.
func (p *HTMLProcessor) CanProcess(t content.Type) bool {
	return t == content.TypeHTML || t == content.TypeWebpage
}

// Process parses the document and extracts the requested artifacts.
func (p *HTMLProcessor) Process(_ context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	return run(p.Name(), t, opts, func(opts Options) (*Result, error) {
		reader, err := charset.NewReader(bytes.NewReader(data), "")
		if err != nil {
			reader = bytes.NewReader(data)
		}
		doc, err := goquery.NewDocumentFromReader(reader)
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}

		res := &Result{Metadata: map[string]string{}}
		res.Title = htmlTitle(doc)

		// Boilerplate containers contribute navigation noise, not content.
		doc.Find("script, style, noscript, nav, footer, aside, iframe").Remove()

		if opts.ExtractLinks {
			doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
				href, _ := s.Attr("href")
				href = strings.TrimSpace(href)
				if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
					return
				}
				res.Links = append(res.Links, content.Link{
					URL:  href,
					Text: strings.TrimSpace(s.Text()),
				})
			})
		}
		if opts.ExtractImages {
			doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
				src, _ := s.Attr("src")
				if strings.TrimSpace(src) == "" {
					return
				}
				alt, _ := s.Attr("alt")
				res.Images = append(res.Images, content.Image{URL: src, Alt: strings.TrimSpace(alt)})
			})
		}

		res.Tables = htmlTables(doc)
		res.Structure = htmlOutline(doc)
		res.Text = htmlText(doc, opts.PreserveFormatting)

		if opts.ExtractMetadata {
			res.Metadata["linkCount"] = strconv.Itoa(len(res.Links))
			res.Metadata["imageCount"] = strconv.Itoa(len(res.Images))
			res.Metadata["tableCount"] = strconv.Itoa(len(res.Tables))
			res.Metadata["wordCount"] = strconv.Itoa(len(strings.Fields(res.Text)))
			if lang, ok := doc.Find("html").Attr("lang"); ok {
				res.Metadata["language"] = lang
			}
		}
		return res, nil
	})
}

// htmlTitle prefers the title element, then Open Graph metadata, then the
// first h1.
func htmlTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("head title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = strings.TrimSpace(og); og != "" {
			return og
		}
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// htmlText walks block-level elements, preserving paragraph breaks.
func htmlText(doc *goquery.Document, preserveFormatting bool) string {
	var b strings.Builder
	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return normalizeSpace(doc.Text(), preserveFormatting)
	}
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, th").Each(func(_ int, s *goquery.Selection) {
		// Skip elements that contain other block elements to avoid
		// emitting the same text twice.
		if s.Find("p, li, pre, blockquote").Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	})
	out := b.String()
	if strings.TrimSpace(out) == "" {
		out = root.Text()
	}
	return normalizeSpace(out, preserveFormatting)
}

func normalizeSpace(s string, preserveFormatting bool) string {
	if preserveFormatting {
		return strings.TrimSpace(s)
	}
	lines := strings.Split(s, "\n")
	var out []string
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
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// htmlTables converts table elements into artifact tables. Header cells come
// from th elements, or from the first row when the table has none.
func htmlTables(doc *goquery.Document) []content.Table {
	var tables []content.Table
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var t content.Table
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			isHeader := false
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				if goquery.NodeName(cell) == "th" {
					isHeader = true
				}
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}
			if isHeader && t.Headers == nil {
				t.Headers = cells
				return
			}
			if t.Headers == nil && len(t.Rows) == 0 {
				t.Headers = cells
				return
			}
			t.Rows = append(t.Rows, cells)
		})
		if t.Headers != nil || len(t.Rows) > 0 {
			tables = append(tables, t)
		}
	})
	return tables
}

// htmlOutline builds sections from h1–h6, slicing the text that follows each
// heading up to the next one.
func htmlOutline(doc *goquery.Document) []content.Section {
	var sections []content.Section
	headings := doc.Find("h1, h2, h3, h4, h5, h6")
	headings.Each(func(i int, h *goquery.Selection) {
		level := int(goquery.NodeName(h)[1] - '0')
		var body strings.Builder
		for n := h.Next(); n.Length() > 0; n = n.Next() {
			name := goquery.NodeName(n)
			if len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
				break
			}
			text := strings.TrimSpace(n.Text())
			if text != "" {
				body.WriteString(text)
				body.WriteString("\n")
			}
		}
		sections = append(sections, content.Section{
			Heading: strings.TrimSpace(h.Text()),
			Level:   level,
			Text:    strings.TrimSpace(body.String()),
		})
	})
	return sections
}
