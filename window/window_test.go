package window

import (
	"errors"
	"testing"
)

// 13-digit base so timestamps are recognized as milliseconds.
const baseTs int64 = 1_700_000_000_000

func TestWindowAddAndSnapshot(t *testing.T) {
	w, err := New[string](10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := w.Add(baseTs+1_000, "a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.Add(baseTs+5_000, "b"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.Add(baseTs+11_500, "c"); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Cutoff is base+1500, so "a" is gone.
	snap := w.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}
	if snap[0].Payload != "b" || snap[1].Payload != "c" {
		t.Errorf("snapshot order = %v", snap)
	}

	latest, ok := w.Latest()
	if !ok || latest != "c" {
		t.Errorf("Latest() = %q, %v, want c, true", latest, ok)
	}
}

func TestWindowEvictTo(t *testing.T) {
	w, _ := New[int](10_000)
	for _, off := range []int64{500, 1_999, 2_000, 3_000} {
		if err := w.Add(baseTs+off, int(off)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// window_ms=10000, now=base+12000: everything before base+2000 drops.
	w.EvictTo(baseTs + 12_000)
	snap := w.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}
	if snap[0].TsMs != baseTs+2_000 || snap[1].TsMs != baseTs+3_000 {
		t.Errorf("retained = %v", snap)
	}
}

func TestWindowRejectsNonMonotonic(t *testing.T) {
	w, _ := New[int](1_000)
	if err := w.Add(baseTs+5_000, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := w.Add(baseTs+4_999, 2)
	if !errors.Is(err, ErrNonMonotonic) {
		t.Fatalf("err = %v, want ErrNonMonotonic", err)
	}
	if w.Len() != 1 {
		t.Errorf("rejected add mutated window, len = %d", w.Len())
	}

	// Equal timestamps are fine, insertion order is kept.
	if err := w.Add(baseTs+5_000, 3); err != nil {
		t.Fatalf("add at equal ts: %v", err)
	}
	snap := w.Snapshot()
	if snap[0].Payload != 1 || snap[1].Payload != 3 {
		t.Errorf("tie order = %v", snap)
	}
}

func TestWindowNormalizesUnits(t *testing.T) {
	w, _ := New[string](10_000)
	// Seconds, then nanoseconds of a later instant.
	if err := w.Add(1_700_000_000, "s"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := w.Add(1_700_000_005_000_000_000, "ns"); err != nil {
		t.Fatalf("add: %v", err)
	}
	snap := w.Snapshot()
	if snap[0].TsMs != 1_700_000_000_000 || snap[1].TsMs != 1_700_000_005_000 {
		t.Errorf("normalized timestamps = %v", snap)
	}
}

func TestWindowEmpty(t *testing.T) {
	w, _ := New[float64](1_000)
	if _, ok := w.Latest(); ok {
		t.Error("Latest on empty window reported ok")
	}
	if snap := w.Snapshot(); snap != nil {
		t.Errorf("Snapshot on empty window = %v", snap)
	}
}

func TestNewRejectsBadWidth(t *testing.T) {
	if _, err := New[int](0); !errors.Is(err, ErrInvalidWidth) {
		t.Errorf("err = %v, want ErrInvalidWidth", err)
	}
}
