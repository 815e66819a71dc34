// Package roster normalises team codes and restricts records to the teams
// and bases the organisation tracks.
package roster

import (
	"slices"
	"sort"
	"strings"

	"github.com/hazyhaar/obras/record"
)

// DefaultTeams are the tracked field teams.
var DefaultTeams = []string{
	"MA-BCB-O001M", "MA-BCB-O002M", "MA-BCB-O003M", "MA-BCB-O004M",
	"MA-BCB-O005M", "MA-BCB-O006M", "MA-BCB-T001M", "MA-ITM-O001M",
	"MA-ITM-O002M", "MA-ITM-O003M", "MA-ITM-O004M", "MA-STI-T001M",
	"MA-STI-O001M", "MA-STI-O002M", "MA-STI-O003M", "MA-STI-O004M",
}

// Base is an operating base: its short code, the team-code prefix of its
// teams and the town it sits in.
type Base struct {
	Code   string `yaml:"code"`
	Prefix string `yaml:"prefix"`
	Town   string `yaml:"town"`
}

// DefaultBases are the three bases of the region.
var DefaultBases = []Base{
	{Code: "BCB", Prefix: "MA-BCB", Town: "BACABAL"},
	{Code: "ITM", Prefix: "MA-ITM", Town: "ITAPECURU"},
	{Code: "STI", Prefix: "MA-STI", Town: "SANTA INES"},
}

// Normalize fixes the typos found in team codes over the years: embedded
// spaces, lower case and a zero typed for the letter O in the team serial
// ("MA-STI-0001M" is "MA-STI-O001M").
func Normalize(code string) string {
	c := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), " ", ""))
	if c == "" || c == record.Placeholder {
		return c
	}
	c = strings.ReplaceAll(c, "MA-STI-000", "MA-STI-O00")
	if strings.HasPrefix(c, "MA-STI-0") {
		c = strings.Replace(c, "0M", "OM", 1)
	}
	parts := strings.SplitN(c, "-", 3)
	if len(parts) == 3 && strings.HasPrefix(parts[2], "0") {
		parts[2] = "O" + parts[2][1:]
		c = strings.Join(parts, "-")
	}
	return c
}

// Roster is the set of tracked teams and bases.
type Roster struct {
	teams []string
	index map[string]struct{}
	bases []Base
}

// New builds a roster. Nil arguments use the defaults.
func New(teams []string, bases []Base) *Roster {
	if teams == nil {
		teams = DefaultTeams
	}
	if bases == nil {
		bases = DefaultBases
	}
	r := &Roster{index: make(map[string]struct{}, len(teams)), bases: bases}
	for _, t := range teams {
		n := Normalize(t)
		if _, dup := r.index[n]; dup {
			continue
		}
		r.index[n] = struct{}{}
		r.teams = append(r.teams, n)
	}
	return r
}

// Teams returns the normalised tracked teams in declaration order.
func (r *Roster) Teams() []string { return slices.Clone(r.teams) }

// Bases returns the configured bases.
func (r *Roster) Bases() []Base { return slices.Clone(r.bases) }

// Allowed reports whether code normalises to a tracked team.
func (r *Roster) Allowed(code string) bool {
	_, ok := r.index[Normalize(code)]
	return ok
}

// Filter keeps the records of tracked teams, rewriting their team code to the
// normalised form.
func (r *Roster) Filter(recs []record.Schedule) []record.Schedule {
	out := make([]record.Schedule, 0, len(recs))
	for _, s := range recs {
		if !r.Allowed(s.Team) {
			continue
		}
		s.Team = Normalize(s.Team)
		out = append(out, s)
	}
	return out
}

// BaseOf returns the base code whose prefix appears in the team code, or "".
func (r *Roster) BaseOf(team string) string {
	code := Normalize(team)
	for _, b := range r.bases {
		if strings.Contains(code, b.Prefix) {
			return b.Code
		}
	}
	return ""
}

// BaseByName resolves a base from its code or its town name, ignoring case
// and accents ("Santa Inês" -> STI).
func (r *Roster) BaseByName(name string) (Base, bool) {
	n := record.Fold(name)
	for _, b := range r.bases {
		if n == b.Code || n == record.Fold(b.Town) {
			return b, true
		}
	}
	return Base{}, false
}

// Ordered lists the normalised teams present in recs: tracked teams in
// roster order, then any others sorted.
func (r *Roster) Ordered(recs []record.Schedule) []string {
	present := map[string]struct{}{}
	for _, s := range recs {
		if record.Blank(s.Team) {
			continue
		}
		present[Normalize(s.Team)] = struct{}{}
	}
	var out, extras []string
	for _, t := range r.teams {
		if _, ok := present[t]; ok {
			out = append(out, t)
		}
	}
	for t := range present {
		if _, tracked := r.index[t]; !tracked {
			extras = append(extras, t)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}
