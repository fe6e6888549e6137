package imbalance

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OpenSegment is the serialized form of the currently open segment.
type OpenSegment struct {
	StartMs int64           `json:"start_ms"`
	Value   decimal.Decimal `json:"value"`
}

// State is the serializable snapshot of a calculator. Weights are derived
// and therefore not serialized; Restore recomputes them from the config.
type State struct {
	Config   Config       `json:"config"`
	Segments []Segment    `json:"segments"`
	Open     *OpenSegment `json:"open,omitempty"`
	LastTsMs *int64       `json:"last_ts_ms,omitempty"`
}

// State returns a snapshot sufficient to reconstruct the calculator exactly.
func (c *Calculator) State() State {
	st := State{
		Config:   c.cfg,
		Segments: append([]Segment(nil), c.segments...),
	}
	if c.hasOpen {
		st.Open = &OpenSegment{StartMs: c.openStart, Value: c.openValue}
	}
	if c.hasLast {
		ts := c.lastTs
		st.LastTsMs = &ts
	}
	return st
}

// Restore builds a calculator from a snapshot, recomputing the weight vector
// from the snapshot's config.
func Restore(st State, log *zap.Logger) (*Calculator, error) {
	c, err := New(st.Config, log)
	if err != nil {
		return nil, fmt.Errorf("restore queue imbalance: %w", err)
	}
	c.segments = append(c.segments, st.Segments...)
	if st.Open != nil {
		c.openStart = st.Open.StartMs
		c.openValue = st.Open.Value
		c.hasOpen = true
	}
	if st.LastTsMs != nil {
		c.lastTs = *st.LastTsMs
		c.hasLast = true
	}
	return c, nil
}

// Migrate produces a new calculator carrying the old instance's segment
// history under a new configuration. Weight vectors are rebuilt from the new
// config; historical segments stay expressed in old-config units, so the
// window is blended until one full width elapses. The old instance remains
// valid.
func Migrate(old *Calculator, cfg Config) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	st := old.State()
	st.Config = cfg
	return Restore(st, old.log)
}
