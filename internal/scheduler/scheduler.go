// Package scheduler runs the periodic remote sync on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a scheduled unit of work. Its error is logged, never fatal.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner whose jobs receive the Run context.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu    sync.RWMutex
	ctx   context.Context
	names map[string]cron.EntryID
}

// New creates a scheduler. Overlapping runs of the same job are skipped.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    context.Background(),
		names:  make(map[string]cron.EntryID),
	}
}

// Add registers job under name with a standard five-field spec or a
// descriptor such as "@every 30m" or "@hourly".
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("scheduler: %s: invalid spec %q: %w", name, spec, err)
	}
	id, err := s.cron.AddFunc(spec, func() {
		s.mu.RLock()
		ctx := s.ctx
		s.mu.RUnlock()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduler: job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		s.logger.Info("scheduler: job done", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("scheduler: %s: %w", name, err)
	}
	s.mu.Lock()
	s.names[name] = id
	s.mu.Unlock()
	return nil
}

// Next returns the next activation of the named job, or the zero time
// before Run has started it.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.RLock()
	id, ok := s.names[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Run starts the jobs and blocks until ctx is cancelled and running jobs
// have returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler: started", "jobs", len(s.cron.Entries()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler: stopped")
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, "error", err)...)
}
