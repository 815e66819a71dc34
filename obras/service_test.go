package obras

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hazyhaar/obras/idgen"
	"github.com/hazyhaar/obras/internal/dropbox"
	"github.com/hazyhaar/obras/report"
	"github.com/hazyhaar/obras/runlog"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedClock(day int) func() time.Time {
	return func() time.Time { return time.Date(2026, 2, day, 12, 0, 0, 0, time.UTC) }
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

func newService(t *testing.T, cfg *Config, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock(5)), WithIDGenerator(idgen.Sequence("run"))}, opts...)
	s, err := New(cfg, quiet, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// controlWorkbook is a small "Controle - Obras" export: a schedule sheet
// with a title above the header and a completed-works sheet.
func controlWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "PROGRAMAÇÃO"); err != nil {
		t.Fatal(err)
	}
	schedule := [][]any{
		{"PROGRAMAÇÃO SEMANAL"},
		{},
		{"DATA", "EQUIPE", "PEP", "NOTA", "LOCAL", "STATUS", "PERÍODO"},
		{"03/02/2026", "MA-BCB-O001M", "PEP-1", "N1", "Bacabal", "PROGRAMADO", "MANHÃ"},
		{"04/02/2026", "MA-ITM-O001M", "", "N2", "Itapecuru", "SEM PEP", ""},
		{"05/02/2026", "MA-XXX-O999M", "PEP-9", "N9", "Outro", "PROGRAMADO", ""},
		{"20/01/2026", "MA-STI-0001M", "PEP-3", "N3", "Santa Inês", "PROGRAMADO", ""},
	}
	for i, row := range schedule {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("PROGRAMAÇÃO", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.NewSheet("CONCLUÍDAS"); err != nil {
		t.Fatal(err)
	}
	completed := [][]any{
		{"BASE", "OBRA", "STATUS", "VALOR", "ANDAMENTO", "CONC"},
		{"BCB", "MA-1", "CONCLUÍDA", "1.000,00", "200,00", "05/02/2026"},
		{"ITM", "MA-2", "EM ANDAMENTO", "", "", ""},
	}
	for i, row := range completed {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("CONCLUÍDAS", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImportWorkbook(t *testing.T) {
	ctx := context.Background()
	s := newService(t, testConfig(t))

	res, err := s.Import(ctx, "Controle - Obras.xlsx", bytes.NewReader(controlWorkbook(t)), SourceUpload)
	if err != nil {
		t.Fatal(err)
	}
	if res.Schedule != 3 || res.WorkingSet != 3 || res.Completed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Run.ID != "run-1" || res.Run.Status != runlog.StatusOK || len(res.Run.SHA256) != 64 {
		t.Errorf("run = %+v", res.Run)
	}

	for _, r := range s.Records() {
		if r.Team == "MA-XXX-O999M" {
			t.Error("untracked team admitted")
		}
		if r.Team == "MA-STI-0001M" {
			t.Error("team code not normalised")
		}
	}

	week := s.Schedule("02", "1", "")
	if len(week) != 2 {
		t.Fatalf("week 1 = %d entries, want 2", len(week))
	}
	if got := s.Schedule("02", "1", "Bacabal"); len(got) != 1 || got[0].Team != "MA-BCB-O001M" {
		t.Errorf("base filter = %+v", got)
	}
	if got := s.Schedule("", "", ""); len(got) != 3 {
		t.Errorf("empty selectors = %d entries, want the whole working set", len(got))
	}
	if m, w := s.CurrentWeek(); m != "02" || w != "1" {
		t.Errorf("current week = %s/%s", m, w)
	}

	crit := s.Critical("02", "1")
	if len(crit) != 1 || crit[0].Note != "N2" || crit[0].Condition != "SEM PEP" {
		t.Errorf("critical = %+v", crit)
	}
	if crit := s.Critical("01", ""); len(crit) != 0 {
		t.Errorf("january critical = %+v", crit)
	}

	locs := s.Locations("", "")
	if len(locs) != 1 || locs[0].Name != "Bacabal" || locs[0].Visits[0].Base != "BCB" {
		t.Errorf("locations = %+v", locs)
	}

	cards := s.Teams("02", "1")
	if len(cards) != 2 || cards[0].Team != "MA-BCB-O001M" {
		t.Errorf("team cards = %+v", cards)
	}

	if m := s.Metrics(report.Filters{}); m.TotalValue != 1200 || m.Total != 2 {
		t.Errorf("metrics = %+v", m)
	}
	pending := s.Pending()
	if len(pending) != 1 || pending[0].Work != "MA-2" {
		t.Errorf("pending = %+v", pending)
	}
	if got := s.Completed(report.Filters{Base: "bcb"}); len(got) != 1 {
		t.Errorf("completed filter = %d", len(got))
	}

	var csv strings.Builder
	if err := s.ExportCompleted(&csv, report.Filters{}); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(csv.String(), "\n"); lines != 3 {
		t.Errorf("csv lines = %d, want 3", lines)
	}
}

func TestImportPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	s := newService(t, cfg)
	if _, err := s.Import(ctx, "Controle - Obras.xlsx", bytes.NewReader(controlWorkbook(t)), SourceUpload); err != nil {
		t.Fatal(err)
	}
	s.Close()

	again := newService(t, cfg)
	if got := len(again.Records()); got != 3 {
		t.Errorf("reloaded working set = %d, want 3", got)
	}
	if got := len(again.Completed(report.Filters{})); got != 2 {
		t.Errorf("reloaded completed = %d, want 2", got)
	}
	runs, err := again.Runs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Source != SourceUpload {
		t.Errorf("runs = %+v", runs)
	}
}

func TestImportWithoutTrackedTeams(t *testing.T) {
	ctx := context.Background()
	s := newService(t, testConfig(t))
	if _, err := s.Import(ctx, "Controle - Obras.xlsx", bytes.NewReader(controlWorkbook(t)), SourceUpload); err != nil {
		t.Fatal(err)
	}

	csv := "DATA;EQUIPE;LOCAL\n03/02/2026;MA-XXX-O001M;Longe\n"
	res, err := s.Import(ctx, "outra.csv", strings.NewReader(csv), SourceUpload)
	if !errors.Is(err, ErrNoAllowedTeams) {
		t.Fatalf("err = %v, want ErrNoAllowedTeams", err)
	}
	if !Rejected(err) {
		t.Error("no tracked team should be a rejected input")
	}
	if res.Run.Status != runlog.StatusError {
		t.Errorf("run status = %q", res.Run.Status)
	}
	if got := len(s.Records()); got != 3 {
		t.Errorf("working set changed: %d", got)
	}
	if got := len(s.Completed(report.Filters{})); got != 2 {
		t.Errorf("upload without teams replaced completed works: %d", got)
	}
}

func TestImportRequiredColumns(t *testing.T) {
	// A legend row carrying DATA and EQUIPE sits above the real header.
	csv := "DATA;EQUIPE;;\n;;;\nDATA;EQUIPE;PEP;LOCAL\n03/02/2026;MA-BCB-O001M;PEP-7;Bacabal\n"

	tests := []struct {
		name     string
		required []string
		wantPEP  string
	}{
		{"default labels stop at the legend", nil, "-"},
		{"configured labels reach the header", []string{"DATA", "EQUIPE", "PEP"}, "PEP-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.required != nil {
				cfg.RequiredColumns.Schedule = tt.required
			}
			s := newService(t, cfg)
			if _, err := s.Import(context.Background(), "prog.csv", strings.NewReader(csv), SourceUpload); err != nil {
				t.Fatal(err)
			}
			recs := s.Records()
			if len(recs) != 1 || recs[0].PEP != tt.wantPEP {
				t.Errorf("records = %+v, want one with pep %q", recs, tt.wantPEP)
			}
		})
	}
}

func TestImportUnreadableWorkbook(t *testing.T) {
	s := newService(t, testConfig(t))
	_, err := s.Import(context.Background(), "notas.pdf", strings.NewReader("%PDF"), SourceUpload)
	if err == nil {
		t.Fatal("pdf accepted")
	}
	if !Rejected(err) {
		t.Errorf("err = %v, want a rejected input", err)
	}
	runs, _ := s.Runs(context.Background(), 1)
	if len(runs) != 1 || runs[0].Status != runlog.StatusError || runs[0].Error == "" {
		t.Errorf("failed import not journaled: %+v", runs)
	}
}

type fakeRemote struct {
	body  []byte
	err   error
	calls int
}

func (f *fakeRemote) Download(_ context.Context, path string) (*dropbox.File, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sum := sha256.Sum256(f.body)
	return &dropbox.File{Path: path, Name: "Controle - Obras.xlsx", Body: f.body, SHA256: hex.EncodeToString(sum[:])}, nil
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{body: controlWorkbook(t)}
	s := newService(t, testConfig(t), WithRemote(remote))

	first, err := s.Sync(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if first.Skipped || first.WorkingSet != 3 || first.Run.Source != SourceDropbox {
		t.Fatalf("first sync = %+v", first)
	}

	second, err := s.Sync(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Skipped || second.Run.Status != runlog.StatusSkipped {
		t.Errorf("unchanged workbook not skipped: %+v", second)
	}

	forced, err := s.Sync(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if forced.Skipped {
		t.Error("forced sync skipped")
	}

	remote.err = errors.New("dropbox down")
	if _, err := s.Sync(ctx, false); err == nil || Rejected(err) {
		t.Fatalf("download error = %v, want a retryable error", err)
	}
	runs, _ := s.Runs(ctx, 10)
	if len(runs) != 4 || runs[0].Status != runlog.StatusError {
		t.Errorf("runs = %+v", runs)
	}
	if remote.calls != 4 {
		t.Errorf("downloads = %d", remote.calls)
	}
}

func TestSyncWithoutRemote(t *testing.T) {
	s := newService(t, testConfig(t))
	if _, err := s.Sync(context.Background(), false); !errors.Is(err, ErrNoRemote) {
		t.Fatalf("err = %v, want ErrNoRemote", err)
	}
}

func TestNotifyPending(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.WebhookURL = srv.URL
	s := newService(t, cfg)
	if _, err := s.Import(context.Background(), "Controle - Obras.xlsx", bytes.NewReader(controlWorkbook(t)), SourceUpload); err != nil {
		t.Fatal(err)
	}
	if err := s.NotifyPending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got["content"], "ITM - MA-2") {
		t.Errorf("content = %q", got["content"])
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	s := newService(t, cfg)
	if _, err := s.Import(ctx, "Controle - Obras.xlsx", bytes.NewReader(controlWorkbook(t)), SourceUpload); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if len(s.Records()) != 0 {
		t.Error("working set not cleared")
	}
	s.Close()

	again := newService(t, cfg)
	if len(again.Records()) != 0 {
		t.Error("stores not cleared on disk")
	}
	if len(again.Completed(report.Filters{})) != 2 {
		t.Error("completed works should survive a schedule clear")
	}
}
