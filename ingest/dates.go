package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/obras/record"
	"github.com/xuri/excelize/v2"
)

// Serial numbers outside this window are plain numbers, not dates
// (1954-10-03 .. 2119-01-10).
const (
	minSerial = 20000
	maxSerial = 80000
)

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2/1/06",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006",
	"02.01.2006",
}

// CoerceDate reads a cell as a calendar day. Cells hold Excel serials when
// they come from xlsx files and text in every other case.
func CoerceDate(v string) (record.Date, bool) {
	v = strings.TrimSpace(v)
	if record.Blank(v) {
		return record.Date{}, false
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if serial < minSerial || serial > maxSerial {
			return record.Date{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return record.Date{}, false
		}
		return record.NewDate(t), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return record.NewDate(t), true
		}
	}
	if d, err := record.ParseDate(v); err == nil {
		return d, true
	}
	return record.Date{}, false
}
