package workbook

import "github.com/hazyhaar/obras/record"

// Format identifies a workbook encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// Sheet is one named grid of raw cell text. Rows keep their original
// positions; short rows are not padded.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Empty reports whether no cell of the sheet holds text.
func (s Sheet) Empty() bool {
	for _, row := range s.Rows {
		for _, cell := range row {
			if !record.Blank(cell) {
				return false
			}
		}
	}
	return true
}

// Workbook is the decoded content of one uploaded or downloaded file.
type Workbook struct {
	Name   string  `json:"name"`
	Format Format  `json:"format"`
	Sheets []Sheet `json:"sheets"`
}

// Sheet returns the first sheet whose name matches name ignoring case,
// accents and surrounding spaces.
func (w *Workbook) Sheet(name string) (Sheet, bool) {
	want := record.Fold(name)
	for _, s := range w.Sheets {
		if record.Fold(s.Name) == want {
			return s, true
		}
	}
	return Sheet{}, false
}
