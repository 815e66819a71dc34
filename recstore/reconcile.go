// Package recstore keeps the schedule working set: two JSON stores split by
// record age, merged and deduplicated on every ingestion.
//
// The cache holds records dated within the horizon (default 7 days before
// today) plus those whose date cannot be read; the history holds the rest.
// History only grows; the cache is replaced by each ingestion.
package recstore

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/obras/record"
)

// DefaultHorizonDays separates the cache from the history.
const DefaultHorizonDays = 7

// Record is what the stores need from a record kind.
type Record interface {
	Key() record.Key
	RecordDate() record.Date
}

// Deduplicate keeps the first record of each key, preserving order.
func Deduplicate[T Record](recs []T) []T {
	seen := make(map[record.Key]struct{}, len(recs))
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// PartitionByAge splits recs around now minus horizonDays. Records dated
// before that day are older; the rest, and any without a readable date, are
// recent.
func PartitionByAge[T Record](recs []T, horizonDays int, now time.Time) (older, recent []T) {
	limit := record.NewDate(now).AddDays(-horizonDays)
	for _, r := range recs {
		d := r.RecordDate()
		if d.Valid() && d.Before(limit) {
			older = append(older, r)
		} else {
			recent = append(recent, r)
		}
	}
	return older, recent
}

// Reconcile merges newRecs into the stores and returns the new working set,
// history first. horizonDays is used as given. The existing cache is not carried over: the recent part of
// newRecs replaces it. Persistence failures are logged and do not affect the
// returned set.
func Reconcile(newRecs []record.Schedule, cachePath, historyPath string, horizonDays int, now time.Time, logger *slog.Logger) []record.Schedule {
	if logger == nil {
		logger = slog.Default()
	}

	history := Deduplicate(Load[record.Schedule](historyPath, logger))
	older, recent := PartitionByAge(newRecs, horizonDays, now)
	history = Deduplicate(append(history, older...))
	cache := Deduplicate(recent)

	if err := Save(historyPath, history); err != nil {
		logger.Error("history not persisted", "path", historyPath, "error", err)
	}
	if err := Save(cachePath, cache); err != nil {
		logger.Error("cache not persisted", "path", cachePath, "error", err)
	}
	logger.Info("stores reconciled",
		"incoming", len(newRecs), "history", len(history), "cache", len(cache))

	out := make([]record.Schedule, 0, len(history)+len(cache))
	out = append(out, history...)
	return append(out, cache...)
}
