package concentration

import (
	"fmt"

	"go.uber.org/zap"
)

// BucketState is the serialized form of one bucket: the raw fill buffer in
// arrival order. Derived scalars are rebuilt on restore by replaying it, so
// the round trip is exact.
type BucketState struct {
	Fills []fillRec `json:"fills"`
}

// State is the serializable snapshot of a calculator. It round-trips through
// encoding/json with decimal quantities encoded as strings.
type State struct {
	Config   Config      `json:"config"`
	Combined BucketState `json:"combined"`
	Buy      BucketState `json:"buy"`
	Sell     BucketState `json:"sell"`
	LastTsMs *int64      `json:"last_ts_ms,omitempty"`
}

// State returns a snapshot sufficient to reconstruct the calculator exactly.
func (c *Calculator) State() State {
	st := State{
		Config:   c.cfg,
		Combined: BucketState{Fills: append([]fillRec(nil), c.combined.fills...)},
		Buy:      BucketState{Fills: append([]fillRec(nil), c.buy.fills...)},
		Sell:     BucketState{Fills: append([]fillRec(nil), c.sell.fills...)},
	}
	if c.hasLast {
		ts := c.lastTs
		st.LastTsMs = &ts
	}
	return st
}

// Restore builds a calculator from a snapshot, replaying each bucket's fill
// buffer to rebuild the derived scalars under the snapshot's config.
func Restore(st State, log *zap.Logger) (*Calculator, error) {
	c, err := New(st.Config, log)
	if err != nil {
		return nil, fmt.Errorf("restore avci: %w", err)
	}
	restoreBucket(c.combined, st.Combined)
	restoreBucket(c.buy, st.Buy)
	restoreBucket(c.sell, st.Sell)
	if st.LastTsMs != nil {
		c.lastTs = *st.LastTsMs
		c.hasLast = true
	}
	return c, nil
}

func restoreBucket(b *bucket, st BucketState) {
	for _, f := range st.Fills {
		b.insert(f.TsMs, f.TakerID, f.Qty)
	}
}

// Migrate produces a new calculator carrying the old instance's full window
// history under a new configuration. The old instance remains valid. The
// result is a blended window: historical fills stay as recorded, only
// eviction going forward uses the new width, so readings converge to the new
// regime after one full window elapses.
func Migrate(old *Calculator, cfg Config) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	st := old.State()
	st.Config = cfg
	return Restore(st, old.log)
}
