// Package markout implements the markout skew indicator: the difference
// between buy-side and sell-side mean mid-price drift measured a fixed
// horizon after each trade.
//
// Prints sharing one timestamp are coalesced by the caller's feed adapter and
// handed over as a group with the pre-trade mid m(t⁻). Each non-empty side of
// a group becomes one Scheduled observation. When its horizon resolves — a
// wall-clock offset τ or a trade-count offset K — the observation completes
// with delta = m(u) − m(t⁻) and enters a completion-time window keyed on u,
// not on the trade time.
package markout

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"microstat-go/window"
)

var (
	ErrInvalidConfig   = errors.New("invalid markout config")
	ErrNonMonotonic    = errors.New("non-monotonic timestamp")
	ErrHorizonMode     = errors.New("completion call does not match horizon mode")
	ErrBatchedHorizons = errors.New("multiple distinct clock horizons in one completion call")
)

// HorizonType selects how an observation's evaluation point is scheduled.
type HorizonType string

const (
	// HorizonClock evaluates τ milliseconds after the trade.
	HorizonClock HorizonType = "clock"
	// HorizonEvent evaluates after K further trades.
	HorizonEvent HorizonType = "event"
)

// Config holds the markout parameters.
type Config struct {
	Horizon  HorizonType `json:"horizon"`
	TauMs    int64       `json:"tau_ms,omitempty"`
	KTrades  int64       `json:"k_trades,omitempty"`
	WindowMs int64       `json:"window_ms"`
}

func (c Config) validate() error {
	switch c.Horizon {
	case HorizonClock:
		if c.TauMs <= 0 {
			return fmt.Errorf("%w: clock horizon requires positive tau_ms, got %d", ErrInvalidConfig, c.TauMs)
		}
	case HorizonEvent:
		if c.KTrades <= 0 {
			return fmt.Errorf("%w: event horizon requires positive k_trades, got %d", ErrInvalidConfig, c.KTrades)
		}
	default:
		return fmt.Errorf("%w: unknown horizon type %q", ErrInvalidConfig, c.Horizon)
	}
	if c.WindowMs <= 0 {
		return fmt.Errorf("%w: window_ms must be positive, got %d", ErrInvalidConfig, c.WindowMs)
	}
	return nil
}

// Print is a single L3 trade print inside a coalesced group.
type Print struct {
	TimestampMs   int64
	Price         float64
	Qty           float64
	AggressorSign int // +1 buy aggressor, -1 sell aggressor
}

// Observation is one side of a coalesced trade group. It is Scheduled at
// creation and Completed once its horizon resolves; Delta stays nil until
// then. An observation never regresses state.
type Observation struct {
	StartMs     int64    `json:"start_ms"`
	Side        int      `json:"side"`
	PreMid      float64  `json:"pre_mid"`
	TargetMs    int64    `json:"target_ms,omitempty"`    // clock horizon
	TargetTrade int64    `json:"target_trade,omitempty"` // event horizon
	CompletedMs int64    `json:"completed_ms,omitempty"`
	Delta       *float64 `json:"delta,omitempty"`
}

// SkewResult is the point-in-time skew readout. MPlus, MMinus and Skew are
// nil when the corresponding window side is empty.
type SkewResult struct {
	MPlus  *float64
	MMinus *float64
	Skew   *float64
	NBuys  int
	NSells int
}

// Calculator is the markout state machine. Instances are single-owner and
// each owns its trade counter; independent instruments need independent
// instances.
type Calculator struct {
	cfg     Config
	pending []Observation
	buyWin  *window.Window[Observation]
	sellWin *window.Window[Observation]

	tradeCount     int64 // event-horizon trade counter
	lastTs         int64
	hasLast        bool
	lastCompletion int64
	log            *zap.Logger
}

// New creates a calculator. A nil logger disables advisory logging.
func New(cfg Config, log *zap.Logger) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	buyWin, err := window.New[Observation](cfg.WindowMs)
	if err != nil {
		return nil, err
	}
	sellWin, err := window.New[Observation](cfg.WindowMs)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{cfg: cfg, buyWin: buyWin, sellWin: sellWin, log: log}, nil
}

// Config returns the active configuration.
func (c *Calculator) Config() Config { return c.cfg }

// TradeCount returns the number of trades processed so far (event horizons).
func (c *Calculator) TradeCount() int64 { return c.tradeCount }

// PendingCount returns the number of scheduled, not yet completed
// observations.
func (c *Calculator) PendingCount() int { return len(c.pending) }

// AddGroup records a coalesced group of prints sharing one timestamp, with
// the caller-supplied pre-trade mid. It creates up to two Scheduled
// observations (one per non-empty side) and returns them. For event horizons
// the trade counter advances by len(prints) after scheduling.
func (c *Calculator) AddGroup(tsMs int64, prints []Print, preMid float64) ([]Observation, error) {
	if len(prints) == 0 {
		return nil, nil
	}
	now := window.NormalizeToMillis(tsMs)
	if c.hasLast && now < c.lastTs {
		return nil, fmt.Errorf("%w: %d < %d", ErrNonMonotonic, now, c.lastTs)
	}
	c.lastTs = now
	c.hasLast = true

	var buys, sells int
	for _, p := range prints {
		switch p.AggressorSign {
		case 1:
			buys++
		case -1:
			sells++
		default:
			c.log.Warn("print with unknown aggressor sign ignored",
				zap.Int64("ts_ms", now), zap.Int("sign", p.AggressorSign))
		}
	}

	var created []Observation
	if buys > 0 {
		created = append(created, c.schedule(now, 1, preMid))
	}
	if sells > 0 {
		created = append(created, c.schedule(now, -1, preMid))
	}
	if c.cfg.Horizon == HorizonEvent {
		c.tradeCount += int64(len(prints))
	}
	return created, nil
}

func (c *Calculator) schedule(tsMs int64, side int, preMid float64) Observation {
	obs := Observation{StartMs: tsMs, Side: side, PreMid: preMid}
	switch c.cfg.Horizon {
	case HorizonClock:
		obs.TargetMs = tsMs + c.cfg.TauMs
	case HorizonEvent:
		obs.TargetTrade = c.tradeCount + c.cfg.KTrades
	}
	c.pending = append(c.pending, obs)
	return obs
}

// CompleteClock resolves clock horizons that are due at time u using that
// time's mid. Observations sharing one target may complete together, but a
// call that would complete more than one distinct target time is rejected
// without mutating state: each distinct horizon needs its own mid.
func (c *Calculator) CompleteClock(u int64, mid float64) ([]Observation, error) {
	if c.cfg.Horizon != HorizonClock {
		return nil, fmt.Errorf("%w: calculator uses %s horizons", ErrHorizonMode, c.cfg.Horizon)
	}
	uMs := window.NormalizeToMillis(u)

	var distinct int64 = -1
	for _, obs := range c.pending {
		if obs.TargetMs > uMs {
			continue
		}
		if distinct >= 0 && obs.TargetMs != distinct {
			return nil, fmt.Errorf("%w: targets %d and %d due at %d", ErrBatchedHorizons, distinct, obs.TargetMs, uMs)
		}
		distinct = obs.TargetMs
	}

	return c.completeDue(uMs, mid, func(obs Observation) (int64, bool) {
		return obs.TargetMs, obs.TargetMs <= uMs
	})
}

// CompleteEvent resolves event horizons whose target trade count has been
// reached, all with the current call's mid and completion time. Unlike the
// clock case, multiple observations with different targets may legitimately
// share one call.
func (c *Calculator) CompleteEvent(tsMs int64, mid float64) ([]Observation, error) {
	if c.cfg.Horizon != HorizonEvent {
		return nil, fmt.Errorf("%w: calculator uses %s horizons", ErrHorizonMode, c.cfg.Horizon)
	}
	now := window.NormalizeToMillis(tsMs)
	if now < c.lastCompletion {
		return nil, fmt.Errorf("%w: completion at %d after %d", ErrNonMonotonic, now, c.lastCompletion)
	}
	return c.completeDue(now, mid, func(obs Observation) (int64, bool) {
		return now, obs.TargetTrade <= c.tradeCount
	})
}

// completeDue moves due observations from pending into their side's
// completion-time window. completionAt reports whether an observation is due
// and at which time it completes.
func (c *Calculator) completeDue(nowMs int64, mid float64, completionAt func(Observation) (int64, bool)) ([]Observation, error) {
	var completed []Observation
	remaining := make([]Observation, 0, len(c.pending))
	for _, obs := range c.pending {
		u, due := completionAt(obs)
		if !due {
			remaining = append(remaining, obs)
			continue
		}
		delta := mid - obs.PreMid
		obs.CompletedMs = u
		obs.Delta = &delta
		if obs.Side == 1 {
			if err := c.buyWin.Add(u, obs); err != nil {
				return nil, fmt.Errorf("complete markout: %w", err)
			}
		} else {
			if err := c.sellWin.Add(u, obs); err != nil {
				return nil, fmt.Errorf("complete markout: %w", err)
			}
		}
		if u > c.lastCompletion {
			c.lastCompletion = u
		}
		completed = append(completed, obs)
	}
	c.pending = remaining
	return completed, nil
}

// Skew evicts both completion-time windows to T and returns the
// side-conditional means and their difference.
func (c *Calculator) Skew(t int64) SkewResult {
	T := window.NormalizeToMillis(t)
	c.buyWin.EvictTo(T)
	c.sellWin.EvictTo(T)

	res := SkewResult{}
	res.MPlus, res.NBuys = windowMean(c.buyWin)
	res.MMinus, res.NSells = windowMean(c.sellWin)
	if res.MPlus != nil && res.MMinus != nil {
		skew := *res.MPlus - *res.MMinus
		res.Skew = &skew
	}
	return res
}

func windowMean(w *window.Window[Observation]) (*float64, int) {
	var sum float64
	n := 0
	for _, e := range w.Snapshot() {
		if e.Payload.Delta == nil {
			continue
		}
		sum += *e.Payload.Delta
		n++
	}
	if n == 0 {
		return nil, 0
	}
	mean := sum / float64(n)
	return &mean, n
}
