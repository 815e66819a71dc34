package recstore

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/obras/record"
)

// Options configures a Store.
type Options struct {
	CachePath   string
	HistoryPath string

	// HorizonDays is taken as given: zero sends every record dated before
	// today to the history. Negative values are rejected by Open.
	HorizonDays int

	// Filter, when set, is applied to the records loaded at Open.
	Filter func([]record.Schedule) []record.Schedule

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Store owns the in-memory working set for one cache/history pair. Stores
// opened on the same pair share a lock, so their read-modify-write cycles
// never interleave.
type Store struct {
	opts   Options
	logger *slog.Logger
	pair   *sync.Mutex

	mu      sync.RWMutex
	records []record.Schedule
}

var pairLocks sync.Map // pairKey -> *sync.Mutex

type pairKey struct{ cache, history string }

func lockFor(cachePath, historyPath string) *sync.Mutex {
	key := pairKey{absPath(cachePath), absPath(historyPath)}
	v, _ := pairLocks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Open loads history and cache, applies the filter and deduplicates.
func Open(opts Options) (*Store, error) {
	if opts.CachePath == "" || opts.HistoryPath == "" {
		return nil, ErrNoPath
	}
	if opts.HorizonDays < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadHorizon, opts.HorizonDays)
	}
	opts.defaults()
	s := &Store{
		opts:   opts,
		logger: opts.Logger,
		pair:   lockFor(opts.CachePath, opts.HistoryPath),
	}

	s.pair.Lock()
	defer s.pair.Unlock()

	history := Load[record.Schedule](opts.HistoryPath, s.logger)
	cache := Load[record.Schedule](opts.CachePath, s.logger)
	recs := append(history, cache...)
	if opts.Filter != nil {
		recs = opts.Filter(recs)
	}
	s.records = Deduplicate(recs)
	s.logger.Info("store opened", "cache", opts.CachePath, "records", len(s.records))
	return s, nil
}

// Ingest reconciles recs into the stores and replaces the working set.
// It returns a copy of the new set.
func (s *Store) Ingest(recs []record.Schedule) []record.Schedule {
	s.pair.Lock()
	defer s.pair.Unlock()

	merged := Reconcile(recs, s.opts.CachePath, s.opts.HistoryPath, s.opts.HorizonDays, s.opts.Now(), s.logger)

	s.mu.Lock()
	s.records = merged
	s.mu.Unlock()
	return slices.Clone(merged)
}

// Records returns a copy of the working set.
func (s *Store) Records() []record.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Len returns the size of the working set.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear empties both stores and the working set.
func (s *Store) Clear() error {
	s.pair.Lock()
	defer s.pair.Unlock()

	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()

	if err := Save[record.Schedule](s.opts.CachePath, nil); err != nil {
		return err
	}
	return Save[record.Schedule](s.opts.HistoryPath, nil)
}

