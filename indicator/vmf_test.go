package indicator

import (
	"math"
	"testing"
)

func TestVMFInsufficientData(t *testing.T) {
	if _, ok := VMF(nil, 20); ok {
		t.Error("empty input reported ok")
	}
	points := make([]TradePoint, 30)
	for i := range points {
		points[i] = TradePoint{TsMs: baseTs + int64(i)*1_000, Qty: 100}
	}
	// 30 points < 2*20.
	if _, ok := VMF(points, 20); ok {
		t.Error("30 points with N=20 reported ok")
	}
	if _, ok := VMF(points, 0); ok {
		t.Error("zero smoothing period reported ok")
	}
}

func TestVMFManualCalculation(t *testing.T) {
	// N=3 with six trades at uneven spacing.
	points := []TradePoint{
		{TsMs: baseTs + 1_000, Qty: 150},
		{TsMs: baseTs + 2_000, Qty: 300},
		{TsMs: baseTs + 4_000, Qty: 600},
		{TsMs: baseTs + 5_000, Qty: 100},
		{TsMs: baseTs + 6_000, Qty: 150},
		{TsMs: baseTs + 9_000, Qty: 900},
	}
	// Velocities: [300, 300, 100, 150, 300]
	// Smoothed (N=3): [700/3, 550/3, 550/3], mean 200
	// z = (550/3 - 200) / sqrt(5000)/3 = -50/sqrt(5000) ≈ -0.70711
	got, ok := VMF(points, 3)
	if !ok {
		t.Fatal("manual case reported absent")
	}
	want := -50 / math.Sqrt(5000)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("vmf = %v, want %v", got, want)
	}
}

func TestVMFAggregatesSameTimestamp(t *testing.T) {
	points := []TradePoint{
		{TsMs: baseTs + 1_000, Qty: 100},
		{TsMs: baseTs + 1_000, Qty: 50},
		{TsMs: baseTs + 1_000, Qty: 25},
	}
	for i := 2; i < 10; i++ {
		points = append(points, TradePoint{TsMs: baseTs + int64(i)*1_000, Qty: 100})
	}
	got, ok := VMF(points, 3)
	if !ok {
		t.Fatal("aggregated case reported absent")
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("vmf = %v", got)
	}
}

func TestVMFZeroStdDev(t *testing.T) {
	// Constant flow: every velocity identical, σ = 0 yields 0.
	points := make([]TradePoint, 10)
	for i := range points {
		points[i] = TradePoint{TsMs: baseTs + int64(i)*1_000, Qty: 100}
	}
	got, ok := VMF(points, 3)
	if !ok {
		t.Fatal("constant flow reported absent")
	}
	if got != 0 {
		t.Errorf("vmf = %v, want 0", got)
	}
}
