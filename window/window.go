// Package window provides a generic time-bounded container for timestamped
// payloads. Entries are kept in arrival order and evicted once they fall
// behind the window width; eviction scans from the oldest entry and stops at
// the first retained one, so each entry is evicted at most once.
package window

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWidth is returned when a window is created with a
	// non-positive width.
	ErrInvalidWidth = errors.New("window width must be positive")
	// ErrNonMonotonic is returned when a timestamp regresses relative to the
	// last accepted one. The operation is rejected without mutating state.
	ErrNonMonotonic = errors.New("non-monotonic timestamp")
)

// Entry is a single timestamped payload held by a Window.
type Entry[T any] struct {
	TsMs    int64 `json:"ts_ms"`
	Payload T     `json:"payload"`
}

// Window holds (timestamp, payload) pairs inside a sliding time span.
// Instances are single-owner and not safe for concurrent use.
type Window[T any] struct {
	widthMs int64
	entries []Entry[T]
	lastTs  int64
	hasLast bool
}

// New creates a window spanning widthMs milliseconds.
func New[T any](widthMs int64) (*Window[T], error) {
	if widthMs <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, widthMs)
	}
	return &Window[T]{widthMs: widthMs}, nil
}

// WidthMs returns the window span in milliseconds.
func (w *Window[T]) WidthMs() int64 { return w.widthMs }

// Add appends a payload at the given timestamp (any supported unit) and
// evicts entries that fell out of the window. Timestamps must be
// non-decreasing per instance.
func (w *Window[T]) Add(ts int64, payload T) error {
	tsMs := NormalizeToMillis(ts)
	if w.hasLast && tsMs < w.lastTs {
		return fmt.Errorf("%w: %d < %d", ErrNonMonotonic, tsMs, w.lastTs)
	}
	w.lastTs = tsMs
	w.hasLast = true
	w.entries = append(w.entries, Entry[T]{TsMs: tsMs, Payload: payload})
	w.evict(tsMs)
	return nil
}

// EvictTo drops all entries older than now minus the window width. The
// timestamp is normalized like in Add.
func (w *Window[T]) EvictTo(now int64) {
	w.evict(NormalizeToMillis(now))
}

func (w *Window[T]) evict(nowMs int64) {
	cutoff := nowMs - w.widthMs
	i := 0
	for i < len(w.entries) && w.entries[i].TsMs < cutoff {
		i++
	}
	if i > 0 {
		w.entries = w.entries[i:]
	}
}

// Snapshot evicts against the latest entry and returns a copy of the live
// entries in insertion order.
func (w *Window[T]) Snapshot() []Entry[T] {
	if len(w.entries) == 0 {
		return nil
	}
	w.evict(w.entries[len(w.entries)-1].TsMs)
	out := make([]Entry[T], len(w.entries))
	copy(out, w.entries)
	return out
}

// Latest returns the most recently added payload.
func (w *Window[T]) Latest() (T, bool) {
	if len(w.entries) == 0 {
		var zero T
		return zero, false
	}
	return w.entries[len(w.entries)-1].Payload, true
}

// Len returns the number of entries currently held.
func (w *Window[T]) Len() int { return len(w.entries) }
