// Package ingest turns decoded sheets into records: it finds the header row,
// maps exported labels to canonical fields and extracts typed rows.
package ingest

import (
	"fmt"
	"slices"
	"strings"
)

// Table is a grid of cell text with optional column labels. A raw sheet has
// nil Columns; ResolveHeader fills them in.
type Table struct {
	Columns []string
	Rows    [][]string
}

// DefaultRequired is the label set that identifies a schedule header row.
var DefaultRequired = []string{"DATA", "EQUIPE"}

// headerMarkers are auxiliary rows that sit directly above the real header in
// some exports.
var headerMarkers = []string{"BASE", "PLANILHA", "AUX", "R$ PROGRAMACAO"}

const headerScanRows = 30

func normLabel(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func normRow(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = normLabel(c)
	}
	return out
}

func containsAll(row, names []string) bool {
	for _, n := range names {
		if !slices.Contains(row, n) {
			return false
		}
	}
	return true
}

func containsAny(row, names []string) bool {
	return slices.ContainsFunc(names, func(n string) bool { return slices.Contains(row, n) })
}

// ResolveHeader locates the header row of t. required defaults to
// DefaultRequired. Labels are compared after upper-casing and trimming, cells
// must equal a required name exactly, and the first matching row wins.
//
// When no row qualifies within the first 30, every column whose values
// contain a required name is relabelled to it. ErrHeaderNotFound is returned
// only when not a single required label could be placed.
func ResolveHeader(t Table, required ...string) (*Table, error) {
	if len(required) == 0 {
		required = DefaultRequired
	}
	required = normRow(required)

	if t.Columns != nil {
		cols := normRow(t.Columns)
		if containsAll(cols, required) {
			return &Table{Columns: cols, Rows: t.Rows}, nil
		}
	}

	limit := min(headerScanRows, len(t.Rows))
	for i := 0; i < limit; i++ {
		row := normRow(t.Rows[i])
		if containsAll(row, required) {
			return &Table{Columns: row, Rows: t.Rows[i+1:]}, nil
		}
		if containsAny(row, headerMarkers) && i+1 < len(t.Rows) {
			next := normRow(t.Rows[i+1])
			if containsAll(next, required) {
				return &Table{Columns: next, Rows: t.Rows[i+2:]}, nil
			}
		}
	}

	return relabelByValue(t, required)
}

// relabelByValue is the last resort for sheets whose header sits beyond the
// scan window or is split across merged cells.
func relabelByValue(t Table, required []string) (*Table, error) {
	keep := nonEmptyColumns(t.Rows, len(t.Columns))
	out := &Table{Columns: make([]string, len(keep))}
	for j, c := range keep {
		if c < len(t.Columns) {
			out.Columns[j] = normLabel(t.Columns[c])
		}
	}
	for _, row := range t.Rows {
		cells := make([]string, len(keep))
		for j, c := range keep {
			cells[j] = cell(row, c)
		}
		out.Rows = append(out.Rows, cells)
	}

	found := false
	for j := range keep {
		for _, name := range required {
			if columnHas(out.Rows, j, name) {
				out.Columns[j] = name
				found = true
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: none of %v", ErrHeaderNotFound, required)
	}
	return out, nil
}

func columnHas(rows [][]string, col int, name string) bool {
	for _, row := range rows {
		if normLabel(cell(row, col)) == name {
			return true
		}
	}
	return false
}

// nonEmptyColumns returns the indexes of columns holding at least one
// non-blank cell. width is a lower bound on the column count.
func nonEmptyColumns(rows [][]string, width int) []int {
	for _, row := range rows {
		width = max(width, len(row))
	}
	var keep []int
	for c := 0; c < width; c++ {
		for _, row := range rows {
			if strings.TrimSpace(cell(row, c)) != "" {
				keep = append(keep, c)
				break
			}
		}
	}
	return keep
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
