package workbook

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// readCSV decodes a single-sheet CSV export. Legacy exports saved by Excel on
// Windows are Windows-1252; anything that is not valid UTF-8 is decoded as
// such.
func readCSV(name string, data []byte) ([]Sheet, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, err
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	sheet := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return []Sheet{{Name: sheet, Rows: rows}}, nil
}

// sniffLines bounds the lines inspected by delimiter. It matches the
// header scan window plus the banner rows above it.
const sniffLines = 20

// delimiter picks among ';', ',' and tab the one that occurs most often on a
// single line within the first sniffLines non-blank lines. Banner and blank
// rows above the header carry no separator and are outweighed by the header.
func delimiter(data []byte) rune {
	best, count := ',', 0
	seen := 0
	for line := range bytes.Lines(data) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		for _, c := range []rune{';', ',', '\t'} {
			if n := bytes.Count(line, []byte(string(c))); n > count {
				best, count = c, n
			}
		}
		if seen++; seen == sniffLines {
			break
		}
	}
	return best
}
