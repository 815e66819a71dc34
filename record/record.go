// Package record defines the normalised rows produced by workbook ingestion:
// schedule entries and completed works, with their identity key and the
// helpers shared by every stage (placeholder, text folding, decimals).
package record

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Placeholder replaces every missing text value.
const Placeholder = "-"

// ErrBadDate is returned when a date cannot be parsed.
var ErrBadDate = errors.New("record: unparsable date")

// Schedule is one planned field-work entry.
type Schedule struct {
	ID          string `json:"id"`
	Date        Date   `json:"data"`
	Period      string `json:"periodo"`
	Type        string `json:"tipo"`
	Team        string `json:"equipe"`
	Foreman     string `json:"encarregado"`
	Supervisor  string `json:"supervisor"`
	WithLV      string `json:"com_lv"`
	Incident    string `json:"si_inc"`
	PEP         string `json:"pep"`
	Note        string `json:"nota"`
	Location    string `json:"local"`
	Status      string `json:"status"`
	Condition   string `json:"condicao"`
	Observation string `json:"obs"`
}

// Key is the deduplication identity: date, team, PEP, note, location, period.
type Key [6]string

// Key returns the identity of s. Two entries with equal keys are the same
// logical entry whatever their other fields hold.
func (s Schedule) Key() Key {
	return Key{s.Date.String(), s.Team, s.PEP, s.Note, s.Location, s.Period}
}

// RecordDate exposes the entry date to calendar filters.
func (s Schedule) RecordDate() Date { return s.Date }

type textField[T any] struct {
	name string
	ptr  func(*T) *string
}

var scheduleText = []textField[Schedule]{
	{"id", func(s *Schedule) *string { return &s.ID }},
	{"periodo", func(s *Schedule) *string { return &s.Period }},
	{"tipo", func(s *Schedule) *string { return &s.Type }},
	{"equipe", func(s *Schedule) *string { return &s.Team }},
	{"encarregado", func(s *Schedule) *string { return &s.Foreman }},
	{"supervisor", func(s *Schedule) *string { return &s.Supervisor }},
	{"com_lv", func(s *Schedule) *string { return &s.WithLV }},
	{"si_inc", func(s *Schedule) *string { return &s.Incident }},
	{"pep", func(s *Schedule) *string { return &s.PEP }},
	{"nota", func(s *Schedule) *string { return &s.Note }},
	{"local", func(s *Schedule) *string { return &s.Location }},
	{"status", func(s *Schedule) *string { return &s.Status }},
	{"condicao", func(s *Schedule) *string { return &s.Condition }},
	{"obs", func(s *Schedule) *string { return &s.Observation }},
}

// NewSchedule returns an entry whose every text field holds the placeholder.
func NewSchedule() Schedule {
	var s Schedule
	for _, f := range scheduleText {
		*f.ptr(&s) = Placeholder
	}
	return s
}

// Set assigns a text field by its canonical name. It reports false for
// unknown names and for "data", which callers assign as a Date.
func (s *Schedule) Set(name, value string) bool {
	for _, f := range scheduleText {
		if f.name == name {
			*f.ptr(s) = value
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes a flat store object. Numbers and booleans written by
// older exports are kept as text; absent fields become the placeholder.
func (s *Schedule) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = NewSchedule()
	for name, v := range raw {
		if name == "data" {
			if err := s.Date.UnmarshalJSON(v); err != nil {
				return err
			}
			continue
		}
		s.Set(name, jsonText(v))
	}
	return nil
}

// Completed is one row of the completed-works sheet.
type Completed struct {
	Base         string  `json:"base"`
	Work         string  `json:"obra"`
	Status       string  `json:"status"`
	Quantity     float64 `json:"qtd_prog"`
	Start        Date    `json:"inic"`
	End          Date    `json:"conc"`
	StartWeek    string  `json:"inic_sem"`
	EndWeek      string  `json:"conc_sem"`
	Progress     string  `json:"prog"`
	Amount       float64 `json:"valor"`
	RunningTotal float64 `json:"andamento"`
	Visit        string  `json:"vizita"`
}

var completedText = []textField[Completed]{
	{"base", func(c *Completed) *string { return &c.Base }},
	{"obra", func(c *Completed) *string { return &c.Work }},
	{"status", func(c *Completed) *string { return &c.Status }},
	{"inic_sem", func(c *Completed) *string { return &c.StartWeek }},
	{"conc_sem", func(c *Completed) *string { return &c.EndWeek }},
	{"prog", func(c *Completed) *string { return &c.Progress }},
	{"vizita", func(c *Completed) *string { return &c.Visit }},
}

var completedNumbers = map[string]func(*Completed) *float64{
	"qtd_prog":  func(c *Completed) *float64 { return &c.Quantity },
	"valor":     func(c *Completed) *float64 { return &c.Amount },
	"andamento": func(c *Completed) *float64 { return &c.RunningTotal },
}

// NewCompleted returns a row with placeholders in text fields and zeros in
// numeric ones.
func NewCompleted() Completed {
	var c Completed
	for _, f := range completedText {
		*f.ptr(&c) = Placeholder
	}
	return c
}

// Set assigns a text or numeric field by canonical name. Numeric fields are
// parsed with ParseDecimal. Dates ("inic", "conc") are assigned by callers.
func (c *Completed) Set(name, value string) bool {
	for _, f := range completedText {
		if f.name == name {
			*f.ptr(c) = value
			return true
		}
	}
	if ptr, ok := completedNumbers[name]; ok {
		*ptr(c) = ParseDecimal(value)
		return true
	}
	return false
}

// UnmarshalJSON decodes a flat store object. Amounts written as Brazilian
// decimal text are parsed; absent fields take their defaults.
func (c *Completed) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = NewCompleted()
	for name, v := range raw {
		switch name {
		case "inic":
			if err := c.Start.UnmarshalJSON(v); err != nil {
				return err
			}
		case "conc":
			if err := c.End.UnmarshalJSON(v); err != nil {
				return err
			}
		default:
			c.Set(name, jsonText(v))
		}
	}
	return nil
}

func jsonText(v json.RawMessage) string {
	if text := strings.TrimSpace(string(v)); text == "null" || text == "" {
		return Placeholder
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return strings.TrimSpace(string(v))
}
