package process

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pagesift/pagesift/internal/content"
)

// XLSXProcessor extracts each sheet as one table and renders a plain-text
// view of the cells. Sheet names land in metadata.
type XLSXProcessor struct{}

// NewXLSXProcessor returns the spreadsheet strategy.
func NewXLSXProcessor() *XLSXProcessor {
	return &XLSXProcessor{}
}

func (p *XLSXProcessor) Name() string { return "xlsx" }

func (p *XLSXProcessor) CanProcess(t content.Type) bool {
	return t == content.TypeXLSX
}

func (p *XLSXProcessor) Process(_ context.Context, data []byte, t content.Type, opts Options) (*Result, error) {
	return run(p.Name(), t, opts, func(opts Options) (*Result, error) {
		wb, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer wb.Close()

		res := &Result{Metadata: map[string]string{}}
		sheets := wb.GetSheetList()
		var b strings.Builder
		cellCount := 0

		for _, sheet := range sheets {
			rows, err := wb.GetRows(sheet)
			if err != nil {
				return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
			}
			if len(rows) == 0 {
				continue
			}
			table := content.Table{Headers: rows[0]}
			if len(rows) > 1 {
				table.Rows = rows[1:]
			}
			res.Tables = append(res.Tables, table)

			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString("# ")
			b.WriteString(sheet)
			b.WriteString("\n")
			for _, row := range rows {
				b.WriteString(strings.Join(row, "\t"))
				b.WriteString("\n")
				cellCount += len(row)
			}
		}

		res.Text = b.String()
		if title, err := wb.GetDocProps(); err == nil && title != nil && strings.TrimSpace(title.Title) != "" {
			res.Title = strings.TrimSpace(title.Title)
		} else if len(sheets) > 0 {
			res.Title = sheets[0]
		}
		res.Structure = Outline(res.Text)
		if opts.ExtractMetadata {
			res.Metadata["sheetNames"] = strings.Join(sheets, ",")
			res.Metadata["sheetCount"] = strconv.Itoa(len(sheets))
			res.Metadata["cellCount"] = strconv.Itoa(cellCount)
		}
		return res, nil
	})
}
