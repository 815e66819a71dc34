package report

import (
	"sort"
	"strings"

	"github.com/hazyhaar/obras/record"
	"github.com/hazyhaar/obras/roster"
)

// CriticalConditions flag schedule entries that cannot proceed.
var CriticalConditions = map[string]bool{
	"SEM PEP":    true,
	"ABER/LOG":   true,
	"SEM STATUS": true,
}

// ApplyConditions fills the condition of each entry from its status when the
// sheet left it blank.
func ApplyConditions(recs []record.Schedule) {
	for i := range recs {
		ApplyCondition(&recs[i])
	}
}

// ApplyCondition is ApplyConditions for a single entry.
func ApplyCondition(s *record.Schedule) {
	if !record.Blank(s.Condition) {
		s.Condition = strings.TrimSpace(s.Condition)
		return
	}
	if !record.Blank(s.Status) {
		s.Condition = strings.TrimSpace(s.Status)
		return
	}
	s.Condition = record.Placeholder
}

// Critical is the earliest critical entry of one PEP (or note).
type Critical struct {
	PEP       string      `json:"pep"`
	Note      string      `json:"nota"`
	Date      record.Date `json:"data"`
	Condition string      `json:"condicao"`
	Location  string      `json:"local"`
	Team      string      `json:"equipe"`
}

// CriticalByPEP groups entries in a critical condition by PEP, falling back to
// the note and then to the entry id, and keeps the earliest of each group.
// The result is sorted by date; undated groups come last.
func CriticalByPEP(recs []record.Schedule) []Critical {
	var order []string
	groups := map[string]Critical{}
	for _, s := range recs {
		cond := strings.ToUpper(orPlaceholder(s.Condition))
		if !CriticalConditions[cond] {
			continue
		}
		key := s.PEP
		if record.Blank(key) {
			key = s.Note
		}
		if record.Blank(key) {
			key = "REGISTRO-" + s.ID
		}
		existing, seen := groups[key]
		if seen && !earlier(s.Date, existing.Date) {
			continue
		}
		if !seen {
			order = append(order, key)
		}
		groups[key] = Critical{
			PEP:       orPlaceholder(s.PEP),
			Note:      orPlaceholder(s.Note),
			Date:      s.Date,
			Condition: cond,
			Location:  orPlaceholder(s.Location),
			Team:      orPlaceholder(s.Team),
		}
	}

	out := make([]Critical, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return earlier(out[i].Date, out[j].Date) })
	return out
}

// earlier orders valid dates before invalid ones.
func earlier(a, b record.Date) bool {
	if a.Valid() && b.Valid() {
		return a.Before(b)
	}
	return a.Valid() && !b.Valid()
}

// Scheduled reports whether a status marks planned work ("PROGRAMADO",
// "Programada").
func Scheduled(status string) bool {
	return strings.HasPrefix(record.Fold(status), "PROGRAMAD")
}

// Visit is one scheduled stop of a team at a location.
type Visit struct {
	Team   string      `json:"equipe"`
	Date   record.Date `json:"data"`
	Status string      `json:"status"`
	Period string      `json:"periodo"`
	Base   string      `json:"base"`
}

// Location groups the scheduled visits to one place.
type Location struct {
	Name   string  `json:"local"`
	Visits []Visit `json:"projetos"`
}

// Locations groups scheduled entries by location, in first-seen order. base
// restricts to one base (code or town) and is ignored when unknown; team
// restricts to one team code.
func Locations(recs []record.Schedule, r *roster.Roster, base, team string) []Location {
	if b, ok := r.BaseByName(base); ok {
		base = b.Code
	} else {
		base = ""
	}
	if team = strings.TrimSpace(team); team != "" {
		team = roster.Normalize(team)
	}

	var order []string
	groups := map[string][]Visit{}
	for _, s := range recs {
		if !Scheduled(s.Status) {
			continue
		}
		code := roster.Normalize(s.Team)
		if record.Blank(code) || (team != "" && code != team) {
			continue
		}
		b := r.BaseOf(code)
		if base != "" && b != base {
			continue
		}
		loc := strings.TrimSpace(s.Location)
		if record.Blank(loc) {
			continue
		}
		if _, ok := groups[loc]; !ok {
			order = append(order, loc)
		}
		groups[loc] = append(groups[loc], Visit{Team: code, Date: s.Date, Status: s.Status, Period: s.Period, Base: b})
	}

	out := make([]Location, 0, len(order))
	for _, loc := range order {
		out = append(out, Location{Name: loc, Visits: groups[loc]})
	}
	return out
}

// TeamCard is the week of one tracked team.
type TeamCard struct {
	Team    string            `json:"equipe"`
	Entries []record.Schedule `json:"projetos"`
	// MainLocation is the location of the latest entry.
	MainLocation string `json:"local_principal"`
}

// ByTeam groups entries per team, tracked teams first in roster order, each
// sorted by date.
func ByTeam(recs []record.Schedule, r *roster.Roster) []TeamCard {
	groups := map[string][]record.Schedule{}
	for _, s := range recs {
		s.Team = roster.Normalize(s.Team)
		groups[s.Team] = append(groups[s.Team], s)
	}
	var out []TeamCard
	for _, team := range r.Ordered(recs) {
		entries := groups[team]
		sort.SliceStable(entries, func(i, j int) bool { return earlier(entries[i].Date, entries[j].Date) })
		out = append(out, TeamCard{
			Team:         team,
			Entries:      entries,
			MainLocation: orPlaceholder(entries[len(entries)-1].Location),
		})
	}
	return out
}
