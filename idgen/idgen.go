// Package idgen produces identifiers for ingestion runs and other journal
// rows. A Generator is injected where ids are created so tests can swap in a
// deterministic sequence.
package idgen

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator returns a new unique identifier on every call.
type Generator func() string

// UUIDv7 returns time-ordered RFC 9562 identifiers, so journal rows sort by
// creation time.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every id from gen: Prefixed("run_", UUIDv7()).
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns prefix-1, prefix-2, ... It is safe for concurrent use.
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// Default is the generator used when none is configured.
var Default = Prefixed("run_", UUIDv7())

// Valid reports whether id, after an optional prefix ending in "_", is a
// parseable UUID.
func Valid(id string) bool {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	_, err := uuid.Parse(id)
	return err == nil
}
