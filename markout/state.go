package markout

import (
	"fmt"

	"go.uber.org/zap"

	"microstat-go/window"
)

// State is the serializable snapshot of a calculator: the config, the
// pending and completed observation buffers, and the monotonic counters.
type State struct {
	Config           Config                      `json:"config"`
	Pending          []Observation               `json:"pending"`
	BuyWindow        []window.Entry[Observation] `json:"buy_window"`
	SellWindow       []window.Entry[Observation] `json:"sell_window"`
	TradeCount       int64                       `json:"trade_count"`
	LastTsMs         *int64                      `json:"last_ts_ms,omitempty"`
	LastCompletionMs int64                       `json:"last_completion_ms,omitempty"`
}

// State returns a snapshot sufficient to reconstruct the calculator exactly.
func (c *Calculator) State() State {
	st := State{
		Config:           c.cfg,
		Pending:          append([]Observation(nil), c.pending...),
		BuyWindow:        c.buyWin.Snapshot(),
		SellWindow:       c.sellWin.Snapshot(),
		TradeCount:       c.tradeCount,
		LastCompletionMs: c.lastCompletion,
	}
	if c.hasLast {
		ts := c.lastTs
		st.LastTsMs = &ts
	}
	return st
}

// Restore builds a calculator from a snapshot, refilling the completion-time
// windows in order under the snapshot's config.
func Restore(st State, log *zap.Logger) (*Calculator, error) {
	c, err := New(st.Config, log)
	if err != nil {
		return nil, fmt.Errorf("restore markout: %w", err)
	}
	c.pending = append(c.pending, st.Pending...)
	for _, e := range st.BuyWindow {
		if err := c.buyWin.Add(e.TsMs, e.Payload); err != nil {
			return nil, fmt.Errorf("restore markout buy window: %w", err)
		}
	}
	for _, e := range st.SellWindow {
		if err := c.sellWin.Add(e.TsMs, e.Payload); err != nil {
			return nil, fmt.Errorf("restore markout sell window: %w", err)
		}
	}
	c.tradeCount = st.TradeCount
	c.lastCompletion = st.LastCompletionMs
	if st.LastTsMs != nil {
		c.lastTs = *st.LastTsMs
		c.hasLast = true
	}
	return c, nil
}

// Migrate produces a new calculator carrying the old instance's pending and
// completed observations under a new configuration. Horizon parameters apply
// to observations scheduled after the migration; historical observations keep
// the targets and deltas they were recorded with, so the window is blended
// until one full width elapses. The old instance remains valid.
func Migrate(old *Calculator, cfg Config) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	st := old.State()
	st.Config = cfg
	return Restore(st, old.log)
}
