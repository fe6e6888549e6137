package markout

import (
	"go.uber.org/zap"

	"microstat-go/window"
)

// GroupPrintsByTimestamp partitions raw prints into coalesced groups keyed by
// normalized timestamp, preserving arrival order within each group.
func GroupPrintsByTimestamp(prints []Print) map[int64][]Print {
	groups := make(map[int64][]Print)
	for _, p := range prints {
		ts := window.NormalizeToMillis(p.TimestampMs)
		groups[ts] = append(groups[ts], p)
	}
	return groups
}

// MidPrice returns the mid of a bid/ask pair.
func MidPrice(bid, ask float64) float64 {
	return (bid + ask) / 2
}

// ValidateL2Consistency checks that a timestamp carrying coalesced L3 prints
// saw exactly one combined L2 book update. The check is advisory: a mismatch
// is logged and reported but never blocks aggregation.
func (c *Calculator) ValidateL2Consistency(tsMs int64, l3Count, l2Count int) bool {
	if l3Count > 0 && l2Count != 1 {
		c.log.Warn("expected one combined L2 update for coalesced L3 prints",
			zap.Int64("ts_ms", window.NormalizeToMillis(tsMs)),
			zap.Int("l3_prints", l3Count),
			zap.Int("l2_updates", l2Count))
		return false
	}
	return true
}
