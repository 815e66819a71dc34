// Package watch polls a workbook file for changes and re-runs an import when
// the file settles. A change is any difference in the file's (size, mtime)
// token; the action fires once the token has been stable for the debounce
// window, so a spreadsheet still being written is not read half-way.
//
//	w := watch.New(watch.FileDetector(path), watch.Options{Interval: 2*time.Second, Debounce: 5*time.Second})
//	go w.OnChange(ctx, func(ctx context.Context) error { return svc.ImportFile(ctx, path, "watch") })
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Detector returns a version token. Two different tokens mean the watched
// object changed.
type Detector func(ctx context.Context) (string, error)

// FileDetector tokens a file by size and modification time.
func FileDetector(path string) Detector {
	return func(context.Context) (string, error) {
		fi, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if fi.IsDir() {
			return "", fmt.Errorf("watch: %s is a directory", path)
		}
		return fmt.Sprintf("%d:%d", fi.Size(), fi.ModTime().UnixNano()), nil
	}
}

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 2s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes restart it. 0 fires on the next poll.
	Debounce time.Duration
	// FireOnStart runs the action once for the token seen at startup.
	FireOnStart bool
	// Permanent reports action errors that retrying the same token cannot
	// fix. The token then advances as if the action had succeeded.
	Permanent func(error) bool
	Logger    *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher runs an action when its detector reports a new token. It is safe
// for concurrent use.
type Watcher struct {
	detect Detector
	opts   Options

	mu      sync.Mutex
	version string

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher. Call OnChange to start it.
func New(detect Detector, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{detect: detect, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version is the token of the last successfully processed change.
func (w *Watcher) Version() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.version
}

func (w *Watcher) setVersion(v string) {
	w.mu.Lock()
	w.version = v
	w.mu.Unlock()
}

// OnChange blocks until ctx is cancelled. When the action fails the token
// is not advanced, so the next poll retries it, unless Options.Permanent
// accepts the error.
func (w *Watcher) OnChange(ctx context.Context, action func(context.Context) error) {
	log := w.opts.Logger

	initial, err := w.detect(ctx)
	switch {
	case err != nil:
		log.Warn("watch: initial check failed", "error", err)
	case w.opts.FireOnStart:
		w.fire(ctx, action, initial)
	default:
		w.setVersion(initial)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		debounce *time.Timer
		fireCh   <-chan time.Time
		pending  string
		waiting  bool
	)
	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			log.Info("watch: stopped")
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: check failed", "error", err)
				continue
			}
			if cur == w.Version() || (waiting && cur == pending) {
				continue
			}
			w.changes.Add(1)
			pending, waiting = cur, true
			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, pending)
				waiting = false
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			fireCh = debounce.C
			log.Debug("watch: change detected, debouncing", "token", cur)

		case <-fireCh:
			fireCh = nil
			if waiting {
				w.fire(ctx, action, pending)
				waiting = false
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func(context.Context) error, token string) {
	log := w.opts.Logger
	start := time.Now()
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		if w.opts.Permanent != nil && w.opts.Permanent(err) {
			w.setVersion(token)
			log.Warn("watch: input rejected, waiting for the next change", "error", err, "token", token)
			return
		}
		log.Error("watch: action failed", "error", err, "token", token)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.setVersion(token)
	log.Info("watch: action complete", "token", token, "duration", elapsed)
}
