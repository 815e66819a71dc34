package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical rendering of every accepted date: DD/MM/YYYY.
const DateLayout = "02/01/2006"

// Date is a calendar day. It keeps the parsed value and renders DD/MM/YYYY
// only when serialised. A date loaded from a store that could not be parsed
// keeps its raw text so rewriting the store never alters it.
type Date struct {
	t   time.Time
	raw string
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts DD/MM/YYYY and YYYY-MM-DD, optionally followed by a time
// part ("2026-02-01T00:00:00", "01/02/2026 08:00").
func ParseDate(s string) (Date, error) {
	base := dateText(s)
	if base == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrBadDate)
	}
	for _, layout := range []string{DateLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, base); err == nil {
			return NewDate(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// dateText strips a trailing time part and placeholders.
func dateText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == Placeholder {
		return ""
	}
	s = strings.Replace(s, "T", " ", 1)
	return strings.Fields(s)[0]
}

// RawDate keeps text that is not a date so it can be written back unchanged.
func RawDate(text string) Date {
	text = strings.TrimSpace(text)
	if text == "" || text == Placeholder {
		return Date{}
	}
	return Date{raw: text}
}

// Time returns the day at UTC midnight, or the zero time.
func (d Date) Time() time.Time { return d.t }

// Valid reports whether d holds a parsed day.
func (d Date) Valid() bool { return !d.t.IsZero() }

// Day, Month and Year are shorthands over the parsed value.
func (d Date) Day() int          { return d.t.Day() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Year() int         { return d.t.Year() }

// Before compares two valid dates.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// AddDays returns the date n days later (or earlier when n < 0).
func (d Date) AddDays(n int) Date {
	if !d.Valid() {
		return d
	}
	return Date{t: d.t.AddDate(0, 0, n)}
}

// String renders DD/MM/YYYY, the raw text of an unparsable date, or the
// placeholder for an empty one.
func (d Date) String() string {
	switch {
	case d.Valid():
		return d.t.Format(DateLayout)
	case d.raw != "":
		return d.raw
	default:
		return Placeholder
	}
}

// MarshalJSON writes the date as a string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a string (canonical or ISO) or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = Date{raw: jsonText(b)}
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || s == Placeholder {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{raw: s}
		return nil
	}
	*d = parsed
	return nil
}
