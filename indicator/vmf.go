package indicator

import (
	"math"
	"sort"

	"microstat-go/window"
)

// TradePoint is a timestamped traded quantity.
type TradePoint struct {
	TsMs int64
	Qty  float64
}

// VMF computes the normalized volume-weighted market flow over a window
// snapshot:
//
//  1. trades sharing a timestamp are aggregated,
//  2. instantaneous velocity v_k = q_k / Δt_sec between consecutive
//     timestamps,
//  3. the velocities are smoothed with an N-trade rolling mean,
//  4. the latest smoothed value is z-scored against the last N smoothed
//     values.
//
// It reports ok=false below 2·N input points or when too few valid
// intervals remain; a zero standard deviation yields 0.
func VMF(points []TradePoint, smoothingTrades int) (float64, bool) {
	if smoothingTrades <= 0 || len(points) < 2*smoothingTrades {
		return 0, false
	}

	// Aggregate by normalized timestamp.
	byTs := make(map[int64]float64)
	for _, p := range points {
		byTs[window.NormalizeToMillis(p.TsMs)] += p.Qty
	}
	if len(byTs) < 2 {
		return 0, false
	}
	ts := make([]int64, 0, len(byTs))
	for t := range byTs {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })

	velocities := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		dtSec := float64(ts[i]-ts[i-1]) / 1000.0
		if dtSec <= 0 {
			continue
		}
		velocities = append(velocities, byTs[ts[i]]/dtSec)
	}
	if len(velocities) < smoothingTrades {
		return 0, false
	}

	// Rolling N-trade mean of velocities.
	smoothed := make([]float64, 0, len(velocities)-smoothingTrades+1)
	for i := smoothingTrades - 1; i < len(velocities); i++ {
		sum := 0.0
		for _, v := range velocities[i-smoothingTrades+1 : i+1] {
			sum += v
		}
		smoothed = append(smoothed, sum/float64(smoothingTrades))
	}
	if len(smoothed) < smoothingTrades {
		return 0, false
	}

	// Z-score of the latest smoothed value against the last N.
	norm := smoothed[len(smoothed)-smoothingTrades:]
	mean := 0.0
	for _, v := range norm {
		mean += v
	}
	mean /= float64(len(norm))
	variance := 0.0
	for _, v := range norm {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(norm))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0, true
	}
	return (smoothed[len(smoothed)-1] - mean) / std, true
}
