// Package obras wires the ingestion pipeline into one service: it reads a
// schedule workbook, keeps the tracked teams' entries, reconciles them with
// the stores on disk, journals the run, and answers the calendar, location
// and completed-works queries.
package obras

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/obras/calendar"
	"github.com/hazyhaar/obras/idgen"
	"github.com/hazyhaar/obras/ingest"
	"github.com/hazyhaar/obras/internal/dropbox"
	"github.com/hazyhaar/obras/notify"
	"github.com/hazyhaar/obras/record"
	"github.com/hazyhaar/obras/recstore"
	"github.com/hazyhaar/obras/report"
	"github.com/hazyhaar/obras/roster"
	"github.com/hazyhaar/obras/runlog"
	"github.com/hazyhaar/obras/workbook"
)

// Import sources recorded in the run journal.
const (
	SourceUpload  = "upload"
	SourceDropbox = "dropbox"
	SourceWatch   = "watch"
)

// Downloader fetches the remote workbook.
type Downloader interface {
	Download(ctx context.Context, path string) (*dropbox.File, error)
}

// Result describes one import or sync.
type Result struct {
	Run        runlog.Run
	Schedule   int // entries of tracked teams read from the workbook
	Completed  int
	WorkingSet int
	Skipped    bool // remote workbook unchanged since the last import
}

// Service is the obras orchestrator. It is safe for concurrent use.
type Service struct {
	cfg       *Config
	logger    *slog.Logger
	reader    *workbook.Reader
	extractor *ingest.Extractor
	roster    *roster.Roster
	store     *recstore.Store
	journal   *runlog.Journal
	notifier  *notify.Webhook
	remote    Downloader
	now       func() time.Time
	newID     idgen.Generator

	mu        sync.RWMutex
	completed []record.Completed
}

// Option configures a Service.
type Option func(*Service)

// WithRemote replaces the Dropbox client built from the configuration.
func WithRemote(d Downloader) Option { return func(s *Service) { s.remote = d } }

// WithClock sets the time source used for reconciliation and the current
// week.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithIDGenerator sets the run id generator.
func WithIDGenerator(g idgen.Generator) Option { return func(s *Service) { s.newID = g } }

// WithNotifier replaces the webhook built from the configuration.
func WithNotifier(w *notify.Webhook) Option { return func(s *Service) { s.notifier = w } }

// New opens the stores and the run journal. A nil logger uses
// slog.Default().
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:       cfg,
		logger:    logger,
		reader:    workbook.New(workbook.Config{MaxFileSize: cfg.MaxFileBytes(), Logger: logger}),
		extractor: ingest.NewExtractor(logger).WithRequired(cfg.RequiredColumns.Schedule, cfg.RequiredColumns.Completed),
		roster:    cfg.Roster(),
		now:       time.Now,
		newID:     idgen.Default,
	}
	for _, o := range opts {
		o(s)
	}
	if s.notifier == nil {
		s.notifier = notify.New(notify.Config{URL: cfg.WebhookURL, Secret: cfg.WebhookSecret, Logger: logger})
	}
	if s.remote == nil {
		if dc := cfg.DropboxClientConfig(); dc.Configured() {
			dc.Logger = logger
			client, err := dropbox.New(dc)
			if err != nil {
				return nil, err
			}
			s.remote = client
		}
	}

	store, err := recstore.Open(recstore.Options{
		CachePath:   cfg.Path(cfg.CacheFile),
		HistoryPath: cfg.Path(cfg.HistoryFile),
		HorizonDays: cfg.HistoryDays,
		Filter:      s.admit,
		Logger:      logger,
		Now:         func() time.Time { return s.now() },
	})
	if err != nil {
		return nil, err
	}
	s.store = store

	journal, err := runlog.Open(cfg.Path(cfg.RunlogDB), runlog.WithIDGenerator(s.newID), runlog.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("obras: open run journal: %w", err)
	}
	s.journal = journal

	s.completed = recstore.Load[record.Completed](cfg.Path(cfg.CompletedFile), logger)
	logger.Info("obras: service ready",
		"data_dir", cfg.DataDir, "records", store.Len(), "completed", len(s.completed), "remote", s.remote != nil)
	return s, nil
}

// Close releases the run journal.
func (s *Service) Close() error { return s.journal.Close() }

// Config returns the service configuration.
func (s *Service) Config() *Config { return s.cfg }

// Roster returns the tracked teams and bases.
func (s *Service) Roster() *roster.Roster { return s.roster }

// admit keeps tracked teams and fills conditions.
func (s *Service) admit(recs []record.Schedule) []record.Schedule {
	out := s.roster.Filter(recs)
	report.ApplyConditions(out)
	return out
}

// Import reads a workbook, reconciles the tracked teams' entries into the
// stores and replaces the completed works. When no tracked team is found
// the stores are left untouched and ErrNoAllowedTeams is returned; remote
// and watched imports still refresh the completed works.
func (s *Service) Import(ctx context.Context, name string, r io.Reader, source string) (Result, error) {
	run := runlog.Run{StartedAt: s.now(), Source: source, FileName: filepath.Base(name)}
	h := sha256.New()

	res, err := s.importWorkbook(ctx, name, io.TeeReader(r, h), source)
	run.SHA256 = hex.EncodeToString(h.Sum(nil))
	run.ScheduleCount, run.CompletedCount, run.WorkingSet = res.Schedule, res.Completed, res.WorkingSet
	res.Run = s.journalRun(ctx, run, err)
	return res, err
}

func (s *Service) importWorkbook(ctx context.Context, name string, r io.Reader, source string) (Result, error) {
	wb, err := s.reader.Read(ctx, name, r)
	if err != nil {
		return Result{}, err
	}
	schedule, err := s.extractor.LoadSchedule(wb)
	if err != nil {
		return Result{}, err
	}
	completed, err := s.extractor.LoadCompleted(wb)
	if err != nil {
		return Result{}, err
	}

	admitted := s.admit(schedule)
	res := Result{Schedule: len(admitted), Completed: len(completed)}

	if len(admitted) == 0 {
		if source != SourceUpload {
			s.replaceCompleted(completed)
		}
		res.WorkingSet = s.store.Len()
		return res, fmt.Errorf("%w: %d entries read", ErrNoAllowedTeams, len(schedule))
	}

	res.WorkingSet = len(s.store.Ingest(admitted))
	s.replaceCompleted(completed)
	s.logger.Info("obras: imported",
		"file", name, "source", source, "entries", len(admitted), "working_set", res.WorkingSet, "completed", len(completed))
	return res, nil
}

func (s *Service) replaceCompleted(recs []record.Completed) {
	if recs == nil {
		recs = []record.Completed{}
	}
	s.mu.Lock()
	s.completed = recs
	s.mu.Unlock()
	if err := recstore.Save(s.cfg.Path(s.cfg.CompletedFile), recs); err != nil {
		s.logger.Warn("obras: completed works not persisted", "error", err)
	}
}

func (s *Service) journalRun(ctx context.Context, run runlog.Run, err error) runlog.Run {
	run.FinishedAt = s.now()
	if err != nil {
		run.Status, run.Error = runlog.StatusError, err.Error()
	}
	stored, jerr := s.journal.Record(context.WithoutCancel(ctx), run)
	if jerr != nil {
		s.logger.Warn("obras: run not journaled", "error", jerr)
		return run
	}
	return stored
}

// ImportFile imports the workbook at path.
func (s *Service) ImportFile(ctx context.Context, path, source string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return s.Import(ctx, filepath.Base(path), f, source)
}

// Sync downloads the configured remote workbook and imports it. An
// unchanged workbook is skipped unless force or sync.force is set.
func (s *Service) Sync(ctx context.Context, force bool) (Result, error) {
	if s.remote == nil {
		return Result{}, ErrNoRemote
	}
	start := s.now()
	f, err := s.remote.Download(ctx, s.cfg.Dropbox.Path)
	if err != nil {
		run := s.journalRun(ctx, runlog.Run{StartedAt: start, Source: SourceDropbox, FileName: filepath.Base(s.cfg.Dropbox.Path)}, err)
		return Result{Run: run}, err
	}

	if !force && !s.cfg.Sync.Force {
		last, err := s.journal.LastHash(ctx, SourceDropbox)
		if err != nil {
			s.logger.Warn("obras: last hash unavailable", "error", err)
		}
		if last != "" && last == f.SHA256 {
			run := s.journalRun(ctx, runlog.Run{
				StartedAt: start, Source: SourceDropbox, FileName: f.Name,
				SHA256: f.SHA256, WorkingSet: s.store.Len(), Status: runlog.StatusSkipped,
			}, nil)
			s.logger.Info("obras: remote workbook unchanged", "path", f.Path, "sha256", f.SHA256)
			return Result{Run: run, WorkingSet: run.WorkingSet, Skipped: true}, nil
		}
	}
	return s.Import(ctx, f.Name, bytes.NewReader(f.Body), SourceDropbox)
}

// Schedule returns the working-set entries in the (month, week) selector,
// optionally restricted to one base (code or town). An empty month or week
// matches every value on that axis.
func (s *Service) Schedule(month, week, base string) []record.Schedule {
	recs := calendar.Filter(s.store.Records(), month, week)
	b, ok := s.roster.BaseByName(base)
	if !ok {
		return recs
	}
	return slices.DeleteFunc(recs, func(r record.Schedule) bool { return s.roster.BaseOf(r.Team) != b.Code })
}

// CurrentWeek returns the (month, week) selector of today.
func (s *Service) CurrentWeek() (month, week string) {
	return calendar.Current(s.now())
}

// Records returns the whole working set.
func (s *Service) Records() []record.Schedule { return s.store.Records() }

// Teams groups the selected week per tracked team.
func (s *Service) Teams(month, week string) []report.TeamCard {
	return report.ByTeam(s.Schedule(month, week, ""), s.roster)
}

// Critical lists the earliest critical entry of each PEP in the (month,
// week) selector.
func (s *Service) Critical(month, week string) []report.Critical {
	return report.CriticalByPEP(s.Schedule(month, week, ""))
}

// Locations groups the current week's scheduled entries by location.
func (s *Service) Locations(base, team string) []report.Location {
	month, week := s.CurrentWeek()
	return report.Locations(s.Schedule(month, week, ""), s.roster, base, team)
}

// Completed returns the completed works matching f.
func (s *Service) Completed(f report.Filters) []record.Completed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return report.FilterCompleted(s.completed, f)
}

// Metrics summarises the completed works matching f.
func (s *Service) Metrics(f report.Filters) report.Summary {
	return report.Metrics(s.Completed(f))
}

// Pending lists every completed work with a missing amount.
func (s *Service) Pending() []report.PendingItem {
	return report.Pending(s.Completed(report.Filters{}))
}

// NotifyPending posts the pending list to the configured webhook.
func (s *Service) NotifyPending(ctx context.Context) error {
	return s.notifier.NotifyPending(ctx, s.Pending())
}

// ExportCompleted writes the completed works matching f as CSV.
func (s *Service) ExportCompleted(w io.Writer, f report.Filters) error {
	return report.WriteCompletedCSV(w, s.Completed(f))
}

// Clear empties the schedule stores and the working set. Completed works
// are kept.
func (s *Service) Clear() error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.logger.Info("obras: schedule cleared")
	return nil
}

// Runs lists recent ingestion runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]runlog.Run, error) {
	return s.journal.Recent(ctx, limit)
}
