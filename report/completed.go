// Package report derives the views served from the working set: completed
// works metrics and filters, pending items, critical schedule entries and
// where teams are working this week.
package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/hazyhaar/obras/record"
)

// PendingItem is a completed work still missing its amount or running total.
type PendingItem struct {
	Base   string `json:"base"`
	Work   string `json:"obra"`
	Reason string `json:"motivo"`
}

func (p PendingItem) String() string {
	return fmt.Sprintf("%s - %s (%s)", p.Base, p.Work, p.Reason)
}

func pendingOf(c record.Completed) (PendingItem, bool) {
	var reasons []string
	if c.Amount <= 0 {
		reasons = append(reasons, "Valor")
	}
	if c.RunningTotal <= 0 {
		reasons = append(reasons, "AND")
	}
	if len(reasons) == 0 {
		return PendingItem{}, false
	}
	return PendingItem{
		Base:   orPlaceholder(c.Base),
		Work:   orPlaceholder(c.Work),
		Reason: strings.Join(reasons, ", "),
	}, true
}

// Pending lists the completed works whose amount or running total is not
// positive, in input order.
func Pending(recs []record.Completed) []PendingItem {
	var out []PendingItem
	for _, c := range recs {
		if p, ok := pendingOf(c); ok {
			out = append(out, p)
		}
	}
	return out
}

// Share is one entry of a count breakdown.
type Share struct {
	Name    string  `json:"nome"`
	Count   int     `json:"quantidade"`
	Percent float64 `json:"percentual"`
}

// ValueShare is one entry of an amount breakdown.
type ValueShare struct {
	Name    string  `json:"nome"`
	Value   float64 `json:"valor"`
	Percent float64 `json:"percentual"`
}

// Summary aggregates a set of completed works.
type Summary struct {
	Total        int           `json:"total"`
	MeanDays     float64       `json:"media_dias"`
	MaxDays      int           `json:"maior_duracao"`
	TopBase      Share         `json:"base_top"`
	Bases        []Share       `json:"bases"`
	Statuses     []Share       `json:"status"`
	BaseValues   []ValueShare  `json:"bases_valor"`
	TotalValue   float64       `json:"total_valor"`
	TotalRunning float64       `json:"total_andamento"`
	Pending      []PendingItem `json:"faltantes"`
}

// counter counts names, remembering first-seen order for ties.
type counter struct {
	order []string
	n     map[string]int
}

func (c *counter) add(name string) {
	if c.n == nil {
		c.n = map[string]int{}
	}
	if _, ok := c.n[name]; !ok {
		c.order = append(c.order, name)
	}
	c.n[name]++
}

func (c *counter) shares(total int) []Share {
	out := make([]Share, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, Share{Name: name, Count: c.n[name], Percent: percent(float64(c.n[name]), float64(total))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Metrics summarises recs. A work's value is its amount plus its running
// total; durations count both the start and end day.
func Metrics(recs []record.Completed) Summary {
	var (
		bases, statuses counter
		valueOrder      []string
		values          = map[string]float64{}
		durations       []int
		s               = Summary{Total: len(recs), TopBase: Share{Name: record.Placeholder}}
	)
	for _, c := range recs {
		base := strings.TrimSpace(c.Base)
		if base == "" {
			base = "Sem base"
		}
		bases.add(base)
		statuses.add(orPlaceholder(c.Status))

		value := c.Amount + c.RunningTotal
		s.TotalValue += value
		s.TotalRunning += c.RunningTotal
		if _, ok := values[base]; !ok {
			valueOrder = append(valueOrder, base)
		}
		values[base] += value

		if p, ok := pendingOf(c); ok {
			s.Pending = append(s.Pending, p)
		}
		if c.Start.Valid() && c.End.Valid() {
			days := int(c.End.Time().Sub(c.Start.Time()).Hours()/24) + 1
			durations = append(durations, days)
		}
	}

	if len(durations) > 0 {
		sum := 0
		for _, d := range durations {
			sum += d
			s.MaxDays = max(s.MaxDays, d)
		}
		s.MeanDays = round(float64(sum)/float64(len(durations)), 1)
	}

	s.Bases = bases.shares(s.Total)
	s.Statuses = statuses.shares(s.Total)
	if len(s.Bases) > 0 {
		s.TopBase = s.Bases[0]
	}
	for _, name := range valueOrder {
		s.BaseValues = append(s.BaseValues, ValueShare{Name: name, Value: values[name], Percent: percent(values[name], s.TotalValue)})
	}
	sort.SliceStable(s.BaseValues, func(i, j int) bool { return s.BaseValues[i].Value > s.BaseValues[j].Value })

	s.TotalValue = round(s.TotalValue, 2)
	s.TotalRunning = round(s.TotalRunning, 2)
	return s
}

// Filters select completed works. Empty fields match everything.
type Filters struct {
	Base   string
	Status string
	// Month is a two-digit month matched against the end date, or the start
	// date when the work has no end date.
	Month     string
	StartWeek string
	EndWeek   string
	From      record.Date
	To        record.Date
}

// FilterCompleted applies f to recs, keeping order.
func FilterCompleted(recs []record.Completed, f Filters) []record.Completed {
	base := strings.ToUpper(strings.TrimSpace(f.Base))
	status := strings.ToUpper(strings.TrimSpace(f.Status))
	wantStart := weekNumber(f.StartWeek)
	wantEnd := weekNumber(f.EndWeek)

	var out []record.Completed
	for _, c := range recs {
		if base != "" && strings.ToUpper(strings.TrimSpace(c.Base)) != base {
			continue
		}
		if status != "" && strings.ToUpper(strings.TrimSpace(c.Status)) != status {
			continue
		}
		if wantStart != 0 && weekNumber(c.StartWeek) != wantStart {
			continue
		}
		if wantEnd != 0 && weekNumber(c.EndWeek) != wantEnd {
			continue
		}

		ref := c.End
		if !ref.Valid() {
			ref = c.Start
		}
		if f.Month != "" && (!ref.Valid() || fmt.Sprintf("%02d", int(ref.Month())) != f.Month) {
			continue
		}
		if f.From.Valid() && (!ref.Valid() || ref.Before(f.From)) {
			continue
		}
		if f.To.Valid() && (!ref.Valid() || f.To.Before(ref)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// weekNumber reads the digits of a week label ("SEM 05" -> 5); 0 when none.
func weekNumber(label string) int {
	var digits strings.Builder
	for _, r := range label {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

func percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return round(part/total*100, 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func orPlaceholder(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return record.Placeholder
	}
	return s
}
