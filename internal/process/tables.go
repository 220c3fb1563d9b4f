package process

import (
	"strings"

	"github.com/pagesift/pagesift/internal/content"
)

// TableTolerance tunes the column-alignment heuristic for tables embedded in
// unstructured text (PDF, legacy DOC). The defaults are empirical; both
// knobs are configuration, not invariants.
type TableTolerance struct {
	// MinAgreement is the fraction of column offsets that must line up
	// between consecutive rows.
	MinAgreement float64
	// OffsetWindow is how many characters an offset may drift and still
	// count as the same column.
	OffsetWindow int
}

// DefaultTableTolerance matches the tuning the heuristic was developed with.
func DefaultTableTolerance() TableTolerance {
	return TableTolerance{MinAgreement: 0.7, OffsetWindow: 3}
}

// DetectAlignedTables scans plain text for runs of lines whose column start
// offsets agree within the tolerance, treating each run of three or more
// lines as one table. The first qualifying line supplies the headers.
func DetectAlignedTables(text string, tol TableTolerance) []content.Table {
	if tol.MinAgreement <= 0 {
		tol.MinAgreement = DefaultTableTolerance().MinAgreement
	}
	if tol.OffsetWindow <= 0 {
		tol.OffsetWindow = DefaultTableTolerance().OffsetWindow
	}

	lines := strings.Split(text, "\n")
	var tables []content.Table
	var runLines []string
	var runOffsets []int

	flush := func() {
		if len(runLines) >= 3 {
			tables = append(tables, tableFromRun(runLines))
		}
		runLines = runLines[:0]
		runOffsets = nil
	}

	for _, line := range lines {
		offsets := columnOffsets(line)
		// A table row needs at least two columns.
		if len(offsets) < 2 {
			flush()
			continue
		}
		if runOffsets == nil || offsetsAgree(runOffsets, offsets, tol) {
			if runOffsets == nil {
				runOffsets = offsets
			}
			runLines = append(runLines, line)
			continue
		}
		flush()
		runOffsets = offsets
		runLines = append(runLines, line)
	}
	flush()
	return tables
}

// columnOffsets records the character offsets where non-whitespace runs
// begin, provided they are separated by at least two spaces (single spaces
// separate words, not columns).
func columnOffsets(line string) []int {
	var offsets []int
	inRun := false
	spaces := 0
	for i, r := range line {
		if r == ' ' || r == '\t' {
			if r == '\t' {
				spaces += 2
			} else {
				spaces++
			}
			inRun = false
			continue
		}
		if !inRun && (len(offsets) == 0 || spaces >= 2) {
			offsets = append(offsets, i)
		}
		inRun = true
		spaces = 0
	}
	return offsets
}

// offsetsAgree reports whether enough of the reference offsets reappear in
// the candidate within the window.
func offsetsAgree(ref, cand []int, tol TableTolerance) bool {
	if len(ref) == 0 || len(cand) == 0 {
		return false
	}
	matched := 0
	for _, ro := range ref {
		for _, co := range cand {
			d := ro - co
			if d < 0 {
				d = -d
			}
			if d <= tol.OffsetWindow {
				matched++
				break
			}
		}
	}
	return float64(matched)/float64(len(ref)) >= tol.MinAgreement
}

// tableFromRun splits each line of a qualifying run into cells on two or
// more spaces. The first line supplies the headers.
func tableFromRun(lines []string) content.Table {
	split := func(line string) []string {
		var cells []string
		for _, cell := range strings.Split(collapseTabs(line), "  ") {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				cells = append(cells, cell)
			}
		}
		return cells
	}
	t := content.Table{Headers: split(lines[0])}
	for _, line := range lines[1:] {
		t.Rows = append(t.Rows, split(line))
	}
	return t
}

func collapseTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
