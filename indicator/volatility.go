// Package indicator holds simple stateless indicators computed over window
// snapshots: interval-aware volatility, total size and volume-weighted
// market flow. They operate on the data a window.Window currently holds and
// keep no state of their own.
package indicator

import (
	"math"
	"sort"

	"microstat-go/window"
)

// PricePoint is a timestamped log-price sample.
type PricePoint struct {
	TsMs     int64
	LogPrice float64
}

// Volatility computes per-minute volatility from log-price samples with
// uneven spacing: sqrt(Σ Δv² / Σ Δt) with Δt in minutes. Timestamps are
// normalized and the points sorted before differencing. It reports ok=false
// with fewer than two points or no positive interval.
func Volatility(points []PricePoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}

	sorted := make([]PricePoint, len(points))
	for i, p := range points {
		sorted[i] = PricePoint{TsMs: window.NormalizeToMillis(p.TsMs), LogPrice: p.LogPrice}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TsMs < sorted[j].TsMs })

	var sumSq, totalMin float64
	for i := 0; i < len(sorted)-1; i++ {
		dtMin := float64(sorted[i+1].TsMs-sorted[i].TsMs) / 60_000.0
		if dtMin <= 0 {
			continue
		}
		dv := sorted[i+1].LogPrice - sorted[i].LogPrice
		sumSq += dv * dv
		totalMin += dtMin
	}
	if totalMin <= 0 {
		return 0, false
	}
	return math.Sqrt(sumSq / totalMin), true
}
