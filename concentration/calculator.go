// Package concentration implements the Aggressive Volume Concentration Index
// (AVCI): a Herfindahl-style measure of how concentrated taker-aggressive
// volume is inside a sliding time window.
//
//	AVCI = Σ_j (v_j / V)² = Σ2 / V²
//
// AVCI is 1 when a single taker accounts for all volume and 1/N when volume
// splits equally across N takers. The calculator keeps three independent
// buckets — combined, buy-only and sell-only — fed from the same fill stream.
package concentration

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microstat-go/window"
)

var (
	ErrInvalidConfig = errors.New("invalid avci config")
	ErrInvalidFill   = errors.New("invalid fill")
	ErrNonMonotonic  = errors.New("non-monotonic timestamp")
)

// Config holds the AVCI parameters. Replacing it on a live calculator is
// forbidden; use Migrate instead.
type Config struct {
	WindowMs int64 `json:"window_ms"`
}

func (c Config) validate() error {
	if c.WindowMs <= 0 {
		return fmt.Errorf("%w: window_ms must be positive, got %d", ErrInvalidConfig, c.WindowMs)
	}
	return nil
}

// Fill is a single taker-aggressive execution. TakerID must be stable across
// partial fills of the same order.
type Fill struct {
	TimestampMs int64
	TakerID     string
	Side        int // +1 buy aggressor, -1 sell aggressor
	Qty         decimal.Decimal
}

// BucketMetrics is the point-in-time readout of one bucket. AVCI, AVCIExcess
// and NEff are nil while the bucket holds no volume.
type BucketMetrics struct {
	AVCI       *decimal.Decimal
	AVCIExcess *decimal.Decimal
	NEff       *decimal.Decimal
	Takers     int
	Volume     decimal.Decimal
}

// Metrics groups the three bucket readouts.
type Metrics struct {
	Combined BucketMetrics
	Buy      BucketMetrics
	Sell     BucketMetrics
}

type fillRec struct {
	TsMs    int64           `json:"ts_ms"`
	TakerID string          `json:"taker_id"`
	Qty     decimal.Decimal `json:"qty"`
}

// bucket maintains per-taker volume plus the running scalars V, Σ2 and N for
// one sub-stream. Insert and evict are O(1) per fill.
type bucket struct {
	fills   []fillRec
	volumes map[string]decimal.Decimal
	total   decimal.Decimal // V
	sumSq   decimal.Decimal // Σ2
	takers  int             // N
}

func newBucket() *bucket {
	return &bucket{volumes: make(map[string]decimal.Decimal)}
}

func (b *bucket) insert(tsMs int64, takerID string, qty decimal.Decimal) {
	b.fills = append(b.fills, fillRec{TsMs: tsMs, TakerID: takerID, Qty: qty})

	old := b.volumes[takerID]
	next := old.Add(qty)

	b.total = b.total.Add(qty)
	// Σ2 += (x+q)² − x²
	b.sumSq = b.sumSq.Sub(old.Mul(old)).Add(next.Mul(next))
	if old.IsZero() {
		b.takers++
	}
	b.volumes[takerID] = next
}

func (b *bucket) evictBefore(cutoffMs int64) {
	i := 0
	for i < len(b.fills) && b.fills[i].TsMs < cutoffMs {
		rec := b.fills[i]
		i++

		old := b.volumes[rec.TakerID]
		next := old.Sub(rec.Qty)

		b.total = b.total.Sub(rec.Qty)
		b.sumSq = b.sumSq.Sub(old.Mul(old)).Add(next.Mul(next))
		if next.IsZero() {
			delete(b.volumes, rec.TakerID)
			b.takers--
		} else {
			b.volumes[rec.TakerID] = next
		}
	}
	if i > 0 {
		b.fills = b.fills[i:]
	}
}

func (b *bucket) metrics() BucketMetrics {
	m := BucketMetrics{Takers: b.takers, Volume: b.total}
	if b.total.Sign() <= 0 {
		return m
	}
	avci := b.sumSq.Div(b.total.Mul(b.total))
	excess := decimal.NewFromInt(int64(b.takers)).Mul(avci).Sub(decimal.NewFromInt(1))
	m.AVCI = &avci
	m.AVCIExcess = &excess
	if !avci.IsZero() {
		neff := decimal.NewFromInt(1).Div(avci)
		m.NEff = &neff
	}
	return m
}

// topShare returns the volume share of the k largest takers.
func (b *bucket) topShare(k int) (decimal.Decimal, bool) {
	if k <= 0 || b.total.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	vols := make([]decimal.Decimal, 0, len(b.volumes))
	for _, v := range b.volumes {
		vols = append(vols, v)
	}
	sort.Slice(vols, func(i, j int) bool { return vols[i].GreaterThan(vols[j]) })
	if k > len(vols) {
		k = len(vols)
	}
	top := decimal.Decimal{}
	for _, v := range vols[:k] {
		top = top.Add(v)
	}
	return top.Div(b.total), true
}

// Calculator is the AVCI state machine. Instances are single-owner; feed one
// instrument's fills in timestamp order.
type Calculator struct {
	cfg      Config
	combined *bucket
	buy      *bucket
	sell     *bucket
	lastTs   int64
	hasLast  bool
	log      *zap.Logger
}

// New creates a calculator with the given config. A nil logger disables
// advisory logging.
func New(cfg Config, log *zap.Logger) (*Calculator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{
		cfg:      cfg,
		combined: newBucket(),
		buy:      newBucket(),
		sell:     newBucket(),
		log:      log,
	}, nil
}

// Config returns the active configuration.
func (c *Calculator) Config() Config { return c.cfg }

// AddFill inserts a fill into the combined bucket and the bucket matching its
// side. Qty must be positive and timestamps non-decreasing; violations are
// rejected without mutating state.
func (c *Calculator) AddFill(f Fill) error {
	if f.Qty.Sign() <= 0 {
		return fmt.Errorf("%w: qty must be positive, got %s", ErrInvalidFill, f.Qty)
	}
	if f.Side != 1 && f.Side != -1 {
		return fmt.Errorf("%w: side must be +1 or -1, got %d", ErrInvalidFill, f.Side)
	}
	tsMs := window.NormalizeToMillis(f.TimestampMs)
	if c.hasLast && tsMs < c.lastTs {
		return fmt.Errorf("%w: %d < %d", ErrNonMonotonic, tsMs, c.lastTs)
	}
	c.lastTs = tsMs
	c.hasLast = true

	c.combined.insert(tsMs, f.TakerID, f.Qty)
	if f.Side == 1 {
		c.buy.insert(tsMs, f.TakerID, f.Qty)
	} else {
		c.sell.insert(tsMs, f.TakerID, f.Qty)
	}
	return nil
}

// EvictTo drops fills that fall out of the window ending at now.
func (c *Calculator) EvictTo(now int64) {
	cutoff := window.NormalizeToMillis(now) - c.cfg.WindowMs
	c.combined.evictBefore(cutoff)
	c.buy.evictBefore(cutoff)
	c.sell.evictBefore(cutoff)
}

// Metrics returns the current readout of all three buckets.
func (c *Calculator) Metrics() Metrics {
	return Metrics{
		Combined: c.combined.metrics(),
		Buy:      c.buy.metrics(),
		Sell:     c.sell.metrics(),
	}
}

// TopKShare returns the combined-bucket volume share of the k largest takers.
// The ranking is computed on demand, not maintained incrementally.
func (c *Calculator) TopKShare(k int) (decimal.Decimal, bool) {
	return c.combined.topShare(k)
}
