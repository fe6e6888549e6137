// Package imbalance implements the queue imbalance indicator: a tick-grid,
// exponentially distance-weighted depth ratio integrated over time.
//
// Each book update yields an instantaneous imbalance
//
//	IB_t = (D_bid − D_ask) / (D_bid + D_ask)
//
// where D_bid/D_ask are decay-weighted depths on a grid of kLevels prices
// spaced by tickSize from the touch outward. IB_t is held piecewise-constant
// between updates; the query surface integrates it over a sliding window.
//
// Undefined instantaneous values (zero denominator or missing touch) are
// treated as gaps: the open segment is closed and nothing accumulates until
// the next defined value, so empty-book intervals carry no weight in the
// time-weighted mean.
package imbalance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microstat-go/window"
)

var (
	ErrInvalidConfig = errors.New("invalid queue imbalance config")
	ErrNonMonotonic  = errors.New("non-monotonic timestamp")
)

// Config holds the queue imbalance parameters. Derived weights are
// precomputed from it; replace it only through Migrate.
type Config struct {
	KLevels       int             `json:"k_levels"`
	TickSize      decimal.Decimal `json:"tick_size"`
	HalfLifeTicks decimal.Decimal `json:"half_life_ticks"`
	WindowMs      int64           `json:"window_ms"`
}

func (c Config) validate() error {
	if c.KLevels <= 0 {
		return fmt.Errorf("%w: k_levels must be positive, got %d", ErrInvalidConfig, c.KLevels)
	}
	if c.TickSize.Sign() <= 0 {
		return fmt.Errorf("%w: tick_size must be positive, got %s", ErrInvalidConfig, c.TickSize)
	}
	if c.HalfLifeTicks.Sign() <= 0 {
		return fmt.Errorf("%w: half_life_ticks must be positive, got %s", ErrInvalidConfig, c.HalfLifeTicks)
	}
	if c.WindowMs <= 0 {
		return fmt.Errorf("%w: window_ms must be positive, got %d", ErrInvalidConfig, c.WindowMs)
	}
	return nil
}

// Level is one price level of a depth snapshot.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookUpdate is a book-changing event. A nil BestBid or BestAsk marks a
// missing touch price; the update is then recorded as a gap.
type BookUpdate struct {
	TimestampMs int64
	BestBid     *decimal.Decimal
	BestAsk     *decimal.Decimal
	Bids        []Level
	Asks        []Level
}

// Segment is a closed piecewise-constant interval of the instantaneous value.
type Segment struct {
	StartMs int64           `json:"start_ms"`
	EndMs   int64           `json:"end_ms"`
	Value   decimal.Decimal `json:"value"`
}

// Calculator maintains the segment model and answers time-weighted queries.
// Instances are single-owner; feed one instrument's book updates in
// timestamp order.
type Calculator struct {
	cfg     Config
	weights []decimal.Decimal

	segments  []Segment
	openStart int64
	openValue decimal.Decimal
	hasOpen   bool

	lastTs  int64
	hasLast bool
	log     *zap.Logger
}

// New creates a calculator and precomputes the weight vector. A nil logger
// disables advisory logging.
func New(cfg Config, log *zap.Logger) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	weights, err := ExponentialWeights(cfg.KLevels, cfg.HalfLifeTicks)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{cfg: cfg, weights: weights, log: log}, nil
}

// Config returns the active configuration.
func (c *Calculator) Config() Config { return c.cfg }

// Weights returns the precomputed decay weights, w_1 first.
func (c *Calculator) Weights() []decimal.Decimal {
	return append([]decimal.Decimal(nil), c.weights...)
}

// gridSizes projects the depth levels onto the tick grid around the touch.
// Levels off the grid or beyond kLevels are ignored; grid prices with no
// depth stay zero.
func gridSizes(touch decimal.Decimal, tick decimal.Decimal, kLevels int, levels []Level, away int) []decimal.Decimal {
	sizes := make([]decimal.Decimal, kLevels)
	for _, lv := range levels {
		diff := lv.Price.Sub(touch).Mul(decimal.NewFromInt(int64(away)))
		if diff.Sign() < 0 {
			continue
		}
		q := diff.DivRound(tick, 0)
		if !q.Mul(tick).Equal(diff) {
			continue
		}
		i := q.IntPart()
		if i >= 0 && i < int64(kLevels) {
			sizes[i] = sizes[i].Add(lv.Size)
		}
	}
	return sizes
}

// instantaneous computes IB_t for one snapshot, reporting ok=false when the
// weighted depth sums to zero.
func (c *Calculator) instantaneous(b BookUpdate) (decimal.Decimal, bool) {
	bidSizes := gridSizes(*b.BestBid, c.cfg.TickSize, c.cfg.KLevels, b.Bids, -1)
	askSizes := gridSizes(*b.BestAsk, c.cfg.TickSize, c.cfg.KLevels, b.Asks, +1)

	var dBid, dAsk decimal.Decimal
	for k, w := range c.weights {
		dBid = dBid.Add(w.Mul(bidSizes[k]))
		dAsk = dAsk.Add(w.Mul(askSizes[k]))
	}
	denom := dBid.Add(dAsk)
	if denom.IsZero() {
		return decimal.Decimal{}, false
	}
	return dBid.Sub(dAsk).Div(denom), true
}

// WeightedQueueDiff returns the raw decay-weighted depth difference
// D_bid − D_ask for a snapshot, without touching segment state. It reports
// ok=false when both weighted depths are zero. Unlike IB_t it is unbounded.
func (c *Calculator) WeightedQueueDiff(b BookUpdate) (decimal.Decimal, bool) {
	if b.BestBid == nil || b.BestAsk == nil {
		return decimal.Decimal{}, false
	}
	bidSizes := gridSizes(*b.BestBid, c.cfg.TickSize, c.cfg.KLevels, b.Bids, -1)
	askSizes := gridSizes(*b.BestAsk, c.cfg.TickSize, c.cfg.KLevels, b.Asks, +1)

	var dBid, dAsk decimal.Decimal
	for k, w := range c.weights {
		dBid = dBid.Add(w.Mul(bidSizes[k]))
		dAsk = dAsk.Add(w.Mul(askSizes[k]))
	}
	if dBid.IsZero() && dAsk.IsZero() {
		return decimal.Decimal{}, false
	}
	return dBid.Sub(dAsk), true
}

// Update processes a book update: computes IB_t and advances the segment
// model. It returns the instantaneous value and whether it is defined.
// Timestamp regression is rejected without mutating state.
func (c *Calculator) Update(b BookUpdate) (decimal.Decimal, bool, error) {
	nowMs := window.NormalizeToMillis(b.TimestampMs)
	if c.hasLast && nowMs < c.lastTs {
		return decimal.Decimal{}, false, fmt.Errorf("%w: %d < %d", ErrNonMonotonic, nowMs, c.lastTs)
	}
	c.lastTs = nowMs
	c.hasLast = true

	var value decimal.Decimal
	defined := false
	if b.BestBid != nil && b.BestAsk != nil {
		value, defined = c.instantaneous(b)
	}

	switch {
	case !c.hasOpen && defined:
		c.openStart = nowMs
		c.openValue = value
		c.hasOpen = true
	case c.hasOpen && !defined:
		c.closeOpen(nowMs)
	case c.hasOpen && defined && !value.Equal(c.openValue):
		c.closeOpen(nowMs)
		c.openStart = nowMs
		c.openValue = value
		c.hasOpen = true
	}
	// Unchanged value keeps the open segment running.

	return value, defined, nil
}

func (c *Calculator) closeOpen(endMs int64) {
	if endMs > c.openStart {
		c.segments = append(c.segments, Segment{StartMs: c.openStart, EndMs: endMs, Value: c.openValue})
	}
	c.hasOpen = false
}

func (c *Calculator) prune(windowStartMs int64) {
	i := 0
	for i < len(c.segments) && c.segments[i].EndMs <= windowStartMs {
		i++
	}
	if i > 0 {
		c.segments = c.segments[i:]
	}
}

// TimeWeightedMean integrates the piecewise-constant value over [T−W, T] and
// returns Σ value·Δt / Σ Δt. It reports ok=false when no segment overlaps
// the window.
func (c *Calculator) TimeWeightedMean(t int64) (decimal.Decimal, bool) {
	T := window.NormalizeToMillis(t)
	windowStart := T - c.cfg.WindowMs
	c.prune(windowStart)

	var num, den decimal.Decimal
	for _, seg := range c.segments {
		start, end := seg.StartMs, seg.EndMs
		if start < windowStart {
			start = windowStart
		}
		if end > T {
			end = T
		}
		if end > start {
			dt := decimal.NewFromInt(end - start)
			num = num.Add(seg.Value.Mul(dt))
			den = den.Add(dt)
		}
	}
	if c.hasOpen && c.openStart < T {
		start := c.openStart
		if start < windowStart {
			start = windowStart
		}
		if T > start {
			dt := decimal.NewFromInt(T - start)
			num = num.Add(c.openValue.Mul(dt))
			den = den.Add(dt)
		}
	}

	if den.IsZero() {
		return decimal.Decimal{}, false
	}
	return num.Div(den), true
}
