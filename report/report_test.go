package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hazyhaar/obras/record"
	"github.com/hazyhaar/obras/roster"
)

func completed(t *testing.T, js string) record.Completed {
	t.Helper()
	var c record.Completed
	if err := json.Unmarshal([]byte(js), &c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMetricsSumsValuesAndPending(t *testing.T) {
	recs := []record.Completed{
		completed(t, `{"base":"BCB","status":"LIB/ATEC","valor":"1.000,00","andamento":"200,00","inic":"01/02/2026","conc":"05/02/2026","obra":"MA-001"}`),
		completed(t, `{"base":"ITM","status":"SEM PEP","valor":"-","andamento":0,"inic":"02/02/2026","conc":"06/02/2026","obra":"MA-002"}`),
	}
	m := Metrics(recs)

	if m.Total != 2 {
		t.Errorf("total = %d", m.Total)
	}
	// Each work is worth valor + andamento.
	if m.TotalValue != 1200 {
		t.Errorf("total value = %v, want 1200", m.TotalValue)
	}
	if m.TotalRunning != 200 {
		t.Errorf("total running = %v", m.TotalRunning)
	}
	if m.BaseValues[0].Name != "BCB" {
		t.Errorf("top value base = %q", m.BaseValues[0].Name)
	}
	want := []PendingItem{{Base: "ITM", Work: "MA-002", Reason: "Valor, AND"}}
	if diff := cmp.Diff(want, m.Pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
	if m.MeanDays != 5 || m.MaxDays != 5 {
		t.Errorf("durations = %v mean, %d max", m.MeanDays, m.MaxDays)
	}
}

func TestMetricsShares(t *testing.T) {
	recs := []record.Completed{
		completed(t, `{"base":"ITM","obra":"1","status":"A","valor":1,"andamento":1}`),
		completed(t, `{"base":"BCB","obra":"2","status":"B","valor":1,"andamento":1}`),
		completed(t, `{"base":"BCB","obra":"3","status":"C","valor":1,"andamento":1}`),
	}
	m := Metrics(recs)
	wantBases := []Share{{"BCB", 2, 66.7}, {"ITM", 1, 33.3}}
	if diff := cmp.Diff(wantBases, m.Bases); diff != "" {
		t.Errorf("bases mismatch (-want +got):\n%s", diff)
	}
	if m.TopBase.Name != "BCB" || m.TopBase.Count != 2 {
		t.Errorf("top base = %+v", m.TopBase)
	}
	// Ties keep first-seen order.
	if m.Statuses[0].Name != "A" || m.Statuses[1].Name != "B" {
		t.Errorf("statuses = %+v", m.Statuses)
	}
	if len(m.Pending) != 0 {
		t.Errorf("pending = %+v", m.Pending)
	}
}

func TestMetricsEmpty(t *testing.T) {
	m := Metrics(nil)
	if m.Total != 0 || m.TopBase.Name != record.Placeholder || m.MeanDays != 0 {
		t.Errorf("empty metrics = %+v", m)
	}
}

func TestFilterCompleted(t *testing.T) {
	recs := []record.Completed{
		completed(t, `{"base":"BCB","obra":"1","status":"LIB/ATEC","inic_sem":"SEM 5","conc_sem":"6","inic":"01/02/2026","conc":"05/02/2026"}`),
		completed(t, `{"base":"ITM","obra":"2","status":"CONCLUIDA","inic_sem":"5","inic":"20/03/2026"}`),
		completed(t, `{"base":"bcb","obra":"3","status":"lib/atec","conc":"a definir"}`),
	}
	date := func(s string) record.Date {
		d, err := record.ParseDate(s)
		if err != nil {
			t.Fatal(err)
		}
		return d
	}

	tests := []struct {
		name string
		f    Filters
		want []string
	}{
		{"none", Filters{}, []string{"1", "2", "3"}},
		{"base", Filters{Base: "bcb"}, []string{"1", "3"}},
		{"status", Filters{Status: "LIB/ATEC"}, []string{"1", "3"}},
		{"start week", Filters{StartWeek: "5"}, []string{"1", "2"}},
		{"end week", Filters{EndWeek: "sem 6"}, []string{"1"}},
		{"month falls back to start", Filters{Month: "03"}, []string{"2"}},
		{"from", Filters{From: date("06/02/2026")}, []string{"2"}},
		{"to", Filters{To: date("05/02/2026")}, []string{"1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range FilterCompleted(recs, tt.f) {
				got = append(got, c.Work)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func entry(t *testing.T, id, date, team, pep, note, status, cond, loc string) record.Schedule {
	t.Helper()
	s := record.NewSchedule()
	s.ID, s.Team, s.PEP, s.Note, s.Status, s.Condition, s.Location = id, team, pep, note, status, cond, loc
	if d, err := record.ParseDate(date); err == nil {
		s.Date = d
	}
	return s
}

func TestApplyConditions(t *testing.T) {
	recs := []record.Schedule{
		entry(t, "1", "", "", "", "", "PROGRAMADO", "-", ""),
		entry(t, "2", "", "", "", "", "PROGRAMADO", " SEM PEP ", ""),
		entry(t, "3", "", "", "", "", "-", "-", ""),
	}
	ApplyConditions(recs)
	got := []string{recs[0].Condition, recs[1].Condition, recs[2].Condition}
	if diff := cmp.Diff([]string{"PROGRAMADO", "SEM PEP", "-"}, got); diff != "" {
		t.Errorf("conditions mismatch (-want +got):\n%s", diff)
	}
}

func TestCriticalByPEP(t *testing.T) {
	recs := []record.Schedule{
		entry(t, "1", "05/02/2026", "MA-BCB-O001M", "PEP-1", "-", "", "SEM PEP", "Bacabal"),
		entry(t, "2", "03/02/2026", "MA-BCB-O001M", "PEP-1", "-", "", "sem pep", "Lago Verde"),
		entry(t, "3", "01/02/2026", "MA-ITM-O001M", "-", "N-9", "", "ABER/LOG", "Itapecuru"),
		entry(t, "4", "", "MA-STI-O001M", "-", "-", "", "SEM STATUS", "Pindaré"),
		entry(t, "5", "01/01/2026", "MA-STI-O001M", "PEP-2", "-", "", "PROGRAMADO", "Pindaré"),
	}
	got := CriticalByPEP(recs)
	if len(got) != 3 {
		t.Fatalf("groups = %d, want 3: %+v", len(got), got)
	}
	if got[0].Note != "N-9" || got[1].PEP != "PEP-1" || got[2].Team != "MA-STI-O001M" {
		t.Errorf("order = %+v", got)
	}
	if got[1].Location != "Lago Verde" || got[1].Date.String() != "03/02/2026" {
		t.Errorf("earliest entry not kept: %+v", got[1])
	}
	if got[1].Condition != "SEM PEP" {
		t.Errorf("condition = %q", got[1].Condition)
	}
}

func TestLocations(t *testing.T) {
	r := roster.New(nil, nil)
	recs := []record.Schedule{
		entry(t, "1", "02/02/2026", "MA-BCB-0001M", "", "", "PROGRAMADO", "", "Bacabal"),
		entry(t, "2", "02/02/2026", "MA-ITM-O001M", "", "", "Programada", "", "Vargem Grande"),
		entry(t, "3", "03/02/2026", "MA-BCB-O002M", "", "", "PROGRAMADO", "", "Bacabal"),
		entry(t, "4", "03/02/2026", "MA-BCB-O002M", "", "", "CANCELADO", "", "Bacabal"),
		entry(t, "5", "03/02/2026", "MA-BCB-O003M", "", "", "PROGRAMADO", "", "-"),
	}

	all := Locations(recs, r, "", "")
	if len(all) != 2 || all[0].Name != "Bacabal" || len(all[0].Visits) != 2 {
		t.Fatalf("locations = %+v", all)
	}
	if all[0].Visits[0].Team != "MA-BCB-O001M" || all[0].Visits[0].Base != "BCB" {
		t.Errorf("visit = %+v", all[0].Visits[0])
	}

	if got := Locations(recs, r, "itm", ""); len(got) != 1 || got[0].Name != "Vargem Grande" {
		t.Errorf("base filter = %+v", got)
	}
	if got := Locations(recs, r, "Bacabal", "ma-bcb-o002m"); len(got) != 1 || len(got[0].Visits) != 1 {
		t.Errorf("team filter = %+v", got)
	}
	if got := Locations(recs, r, "XYZ", ""); len(got) != 2 {
		t.Errorf("unknown base should be ignored, got %d groups", len(got))
	}
}

func TestByTeam(t *testing.T) {
	r := roster.New([]string{"MA-ITM-O001M", "MA-BCB-O001M"}, nil)
	recs := []record.Schedule{
		entry(t, "1", "04/02/2026", "MA-BCB-O001M", "", "", "", "", "Lago Verde"),
		entry(t, "2", "02/02/2026", "MA-BCB-0001M", "", "", "", "", "Bacabal"),
		entry(t, "3", "02/02/2026", "MA-XXX-O001M", "", "", "", "", "Codó"),
		entry(t, "4", "03/02/2026", "MA-ITM-O001M", "", "", "", "", "-"),
	}
	cards := ByTeam(recs, r)
	var teams []string
	for _, c := range cards {
		teams = append(teams, c.Team)
	}
	if diff := cmp.Diff([]string{"MA-ITM-O001M", "MA-BCB-O001M", "MA-XXX-O001M"}, teams); diff != "" {
		t.Fatalf("team order mismatch (-want +got):\n%s", diff)
	}
	bcb := cards[1]
	if bcb.Entries[0].ID != "2" || bcb.MainLocation != "Lago Verde" {
		t.Errorf("bcb card = %+v", bcb)
	}
	if cards[0].MainLocation != "-" {
		t.Errorf("main location = %q", cards[0].MainLocation)
	}
}

func TestWriteCompletedCSV(t *testing.T) {
	c := record.NewCompleted()
	c.Base, c.Work, c.Status = "BCB", "MA-1", "CONCLUÍDA"
	c.Amount, c.RunningTotal, c.Quantity = 1000.5, 200, 3
	c.Start, _ = record.ParseDate("01/02/2026")

	var buf strings.Builder
	if err := WriteCompletedCSV(&buf, []record.Completed{c}); err != nil {
		t.Fatal(err)
	}
	want := "base,obra,status,qtd_prog,inic,conc,inic_sem,conc_sem,prog,andamento,valor,vizita\n" +
		"BCB,MA-1,CONCLUÍDA,3,01/02/2026,-,-,-,-,200,1000.5,-\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}
