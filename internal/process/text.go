package process

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pagesift/pagesift/internal/content"
)

// TextProcessor handles the textual family: plain text, CSV, JSON, XML, and
// Markdown. It is also the registry's explicit fallback for unrecognized
// types.
type TextProcessor struct{}

// NewTextProcessor returns the generic text strategy.
func NewTextProcessor() *TextProcessor {
	return &TextProcessor{}
}

func (p *TextProcessor) Name() string { return "text" }

// CanProcess accepts every textual type. As the registry fallback it is also
// asked to process unknown types, which it treats as plain text.
func (p *TextProcessor) CanProcess(t content.Type) bool {
	switch t {
	case content.TypeTXT, content.TypeText, content.TypeCSV, content.TypeJSON,
		content.TypeXML, content.TypeMarkdown, content.TypeUnknown:
		return true
	default:
		return false
	}
}

func (p *TextProcessor) Process(_ context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	return run(p.Name(), t, opts, func(opts Options) (*Result, error) {
		switch t {
		case content.TypeCSV:
			return p.csv(data, opts)
		case content.TypeJSON:
			return p.json(data, opts)
		case content.TypeXML:
			return p.xml(data, opts)
		case content.TypeMarkdown:
			return p.markdown(data, opts)
		default:
			return p.plain(data, opts)
		}
	})
}

func (p *TextProcessor) plain(data []byte, opts Options) (*Result, error) {
	text := string(data)
	if !opts.PreserveFormatting {
		text = collapseBlankLines(text)
	}
	res := &Result{Text: text, Metadata: map[string]string{}}
	res.Title = InferTitle(text)
	res.Tables = DetectAlignedTables(text, opts.TableTolerance)
	res.Structure = Outline(text)
	if opts.ExtractMetadata {
		res.Metadata["lineCount"] = strconv.Itoa(strings.Count(text, "\n") + 1)
		res.Metadata["wordCount"] = strconv.Itoa(len(strings.Fields(text)))
	}
	return res, nil
}

func (p *TextProcessor) csv(data []byte, opts Options) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var table content.Table
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if table.Headers == nil {
			table.Headers = record
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	if table.Headers == nil {
		return nil, fmt.Errorf("empty csv")
	}

	res := &Result{
		Text:     string(data),
		Tables:   []content.Table{table},
		Metadata: map[string]string{},
	}
	if opts.ExtractMetadata {
		res.Metadata["columnCount"] = strconv.Itoa(len(table.Headers))
		res.Metadata["rowCount"] = strconv.Itoa(len(table.Rows))
	}
	return res, nil
}

func (p *TextProcessor) json(data []byte, opts Options) (*Result, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	res := &Result{Text: string(pretty), Metadata: map[string]string{}}
	if m, ok := v.(map[string]any); ok {
		for _, key := range []string{"title", "name", "id"} {
			if s, ok := m[key].(string); ok && s != "" {
				res.Title = s
				break
			}
		}
		if opts.ExtractMetadata {
			res.Metadata["topLevelKeys"] = strconv.Itoa(len(m))
		}
	}
	if arr, ok := v.([]any); ok && opts.ExtractMetadata {
		res.Metadata["elementCount"] = strconv.Itoa(len(arr))
	}
	return res, nil
}

func (p *TextProcessor) xml(data []byte, opts Options) (*Result, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var b strings.Builder
	var rootName string
	elements := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			elements++
			if rootName == "" {
				rootName = el.Name.Local
			}
		case xml.CharData:
			text := strings.TrimSpace(string(el))
			if text != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
	}
	res := &Result{Text: strings.TrimSpace(b.String()), Metadata: map[string]string{}}
	res.Title = InferTitle(res.Text)
	if opts.ExtractMetadata {
		res.Metadata["rootElement"] = rootName
		res.Metadata["elementCount"] = strconv.Itoa(elements)
	}
	return res, nil
}

var (
	mdLinkRe  = regexp.MustCompile(`(?m)(?:^|[^!])\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)
	mdImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)
)

func (p *TextProcessor) markdown(data []byte, opts Options) (*Result, error) {
	text := string(data)
	res := &Result{Text: text, Metadata: map[string]string{}}
	res.Title = InferTitle(text)
	res.Structure = Outline(text)

	if opts.ExtractLinks {
		for _, m := range mdLinkRe.FindAllStringSubmatch(text, -1) {
			res.Links = append(res.Links, content.Link{URL: m[2], Text: m[1]})
		}
	}
	if opts.ExtractImages {
		for _, m := range mdImageRe.FindAllStringSubmatch(text, -1) {
			res.Images = append(res.Images, content.Image{URL: m[2], Alt: m[1]})
		}
	}
	res.Tables = markdownTables(text)

	if opts.ExtractMetadata {
		res.Metadata["headingCount"] = strconv.Itoa(len(res.Structure))
		res.Metadata["wordCount"] = strconv.Itoa(len(strings.Fields(text)))
	}
	return res, nil
}

// markdownTables parses pipe tables: a header row, a separator of dashes,
// then data rows.
func markdownTables(text string) []content.Table {
	lines := strings.Split(text, "\n")
	var tables []content.Table
	i := 0
	for i < len(lines) {
		if !isPipeRow(lines[i]) || i+1 >= len(lines) || !isSeparatorRow(lines[i+1]) {
			i++
			continue
		}
		t := content.Table{Headers: splitPipeRow(lines[i])}
		i += 2
		for i < len(lines) && isPipeRow(lines[i]) {
			t.Rows = append(t.Rows, splitPipeRow(lines[i]))
			i++
		}
		tables = append(tables, t)
	}
	return tables
}

func isPipeRow(line string) bool {
	line = strings.TrimSpace(line)
	return strings.Count(line, "|") >= 2 && strings.HasPrefix(line, "|")
}

func isSeparatorRow(line string) bool {
	line = strings.TrimSpace(line)
	if !isPipeRow(line) {
		return false
	}
	return strings.Trim(line, "|-: \t") == ""
}

func splitPipeRow(line string) []string {
	line = strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}
