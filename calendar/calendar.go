// Package calendar classifies dates into the organisation's reporting weeks.
//
// Weeks default to fixed seven-day blocks from the first of the month. Some
// months of 2026 follow published tables with uneven boundaries instead, and
// the first February week of that year starts on January 26.
package calendar

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hazyhaar/obras/record"
)

// span maps days [from, to] of a month to a week. to == 0 leaves the range
// open to the end of the month.
type span struct {
	from, to int
	week     int
}

type monthKey struct {
	year  int
	month time.Month
}

var tables = map[monthKey][]span{
	{2026, time.January}: {
		{26, 0, 1},
	},
	{2026, time.February}: {
		{1, 7, 1}, {8, 14, 2}, {15, 21, 3}, {22, 28, 4}, {29, 0, 5},
	},
	{2026, time.March}: {
		{1, 7, 1}, {8, 14, 2}, {15, 21, 3}, {22, 28, 4}, {29, 0, 5},
	},
	{2026, time.April}: {
		{1, 4, 1}, {5, 11, 2}, {12, 18, 3}, {19, 25, 4}, {26, 0, 5},
	},
}

// WeekOf returns the reporting week of t.
func WeekOf(t time.Time) int {
	day := t.Day()
	for _, s := range tables[monthKey{t.Year(), t.Month()}] {
		if day >= s.from && (s.to == 0 || day <= s.to) {
			return s.week
		}
	}
	return (day-1)/7 + 1
}

// Dated is anything carrying a record date.
type Dated interface {
	RecordDate() record.Date
}

// crossesBoundary reports whether the selector takes in the tail of the
// previous month.
func crossesBoundary(month, week string) bool {
	return month == "02" && week == "1"
}

// Match reports whether d falls in the (month, week) selector. Empty
// selectors match every value; invalid dates never match.
func Match(d record.Date, month, week string) bool {
	if !d.Valid() {
		return false
	}
	t := d.Time()
	if crossesBoundary(month, week) {
		return (t.Month() == time.February && WeekOf(t) == 1) ||
			(t.Month() == time.January && t.Day() >= 26)
	}
	if month != "" && fmt.Sprintf("%02d", int(t.Month())) != month {
		return false
	}
	if week != "" && strconv.Itoa(WeekOf(t)) != week {
		return false
	}
	return true
}

// Filter keeps the records whose date matches the selector, in order.
func Filter[T Dated](recs []T, month, week string) []T {
	var out []T
	for _, r := range recs {
		if Match(r.RecordDate(), month, week) {
			out = append(out, r)
		}
	}
	return out
}

// Current returns the selector covering now. Late January days that belong
// to the first February week select February.
func Current(now time.Time) (month, week string) {
	if now.Month() == time.January && now.Day() >= 26 {
		if _, ok := tables[monthKey{now.Year(), time.January}]; ok {
			return "02", "1"
		}
	}
	return fmt.Sprintf("%02d", int(now.Month())), strconv.Itoa(WeekOf(now))
}

// Span lists every day from the earliest to the latest valid date, or only
// the first three days when compact. Invalid dates are ignored.
func Span(dates []record.Date, compact bool) []record.Date {
	var first, last record.Date
	for _, d := range dates {
		if !d.Valid() {
			continue
		}
		if !first.Valid() || d.Before(first) {
			first = d
		}
		if !last.Valid() || last.Before(d) {
			last = d
		}
	}
	if !first.Valid() {
		return nil
	}
	if compact {
		last = first.AddDays(2)
	}
	var out []record.Date
	for d := first; !last.Before(d); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
