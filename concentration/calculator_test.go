package concentration_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstat-go/concentration"
)

// 13-digit base so timestamps are recognized as milliseconds.
const baseTs int64 = 1_700_000_000_000

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newCalc(t *testing.T, windowMs int64) *concentration.Calculator {
	t.Helper()
	c, err := concentration.New(concentration.Config{WindowMs: windowMs}, nil)
	require.NoError(t, err)
	return c
}

func fill(offsetMs int64, taker string, side int, qty string) concentration.Fill {
	return concentration.Fill{
		TimestampMs: baseTs + offsetMs,
		TakerID:     taker,
		Side:        side,
		Qty:         dec(qty),
	}
}

func TestThreeTakerScenario(t *testing.T) {
	c := newCalc(t, 10_000)
	for _, f := range []concentration.Fill{
		fill(1_000, "A", 1, "60"),
		fill(2_000, "B", 1, "25"),
		fill(3_000, "C", 1, "15"),
	} {
		require.NoError(t, c.AddFill(f))
	}

	m := c.Metrics().Combined
	assert.Equal(t, 3, m.Takers)
	assert.True(t, m.Volume.Equal(dec("100")))
	require.NotNil(t, m.AVCI)
	// 0.6² + 0.25² + 0.15² = 0.445
	assert.True(t, m.AVCI.Equal(dec("0.445")), "avci = %s", m.AVCI)

	// All fills were buys: buy bucket mirrors combined, sell bucket is empty.
	buy := c.Metrics().Buy
	require.NotNil(t, buy.AVCI)
	assert.True(t, buy.AVCI.Equal(dec("0.445")))
	sell := c.Metrics().Sell
	assert.Nil(t, sell.AVCI)
	assert.Equal(t, 0, sell.Takers)
}

func TestEqualSplitGivesOneOverN(t *testing.T) {
	c := newCalc(t, 60_000)
	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		require.NoError(t, c.AddFill(fill(int64(1_000+i), id, 1, "10")))
	}

	m := c.Metrics().Combined
	require.NotNil(t, m.AVCI)
	assert.True(t, m.AVCI.Equal(dec("0.2")), "avci = %s", m.AVCI)
	require.NotNil(t, m.AVCIExcess)
	assert.True(t, m.AVCIExcess.IsZero(), "excess = %s", m.AVCIExcess)
	require.NotNil(t, m.NEff)
	assert.True(t, m.NEff.Equal(dec("5")), "n_eff = %s", m.NEff)
}

func TestSingleTakerIsOne(t *testing.T) {
	c := newCalc(t, 60_000)
	require.NoError(t, c.AddFill(fill(1_000, "whale", -1, "3")))
	require.NoError(t, c.AddFill(fill(2_000, "whale", -1, "7")))

	m := c.Metrics().Combined
	require.NotNil(t, m.AVCI)
	assert.True(t, m.AVCI.Equal(dec("1")))
	assert.Equal(t, 1, m.Takers)
}

func TestEvictionReturnsToAbsent(t *testing.T) {
	c := newCalc(t, 10_000)
	require.NoError(t, c.AddFill(fill(1_000, "A", 1, "60")))
	require.NoError(t, c.AddFill(fill(1_500, "B", -1, "40")))

	// window_ms=10000, now=base+12000: cutoff base+2000 drops both fills.
	c.EvictTo(baseTs + 12_000)
	m := c.Metrics()
	assert.Nil(t, m.Combined.AVCI)
	assert.Equal(t, 0, m.Combined.Takers)
	assert.True(t, m.Combined.Volume.IsZero())
	assert.Nil(t, m.Buy.AVCI)
	assert.Nil(t, m.Sell.AVCI)
}

func TestPartialEvictionKeepsTaker(t *testing.T) {
	c := newCalc(t, 10_000)
	require.NoError(t, c.AddFill(fill(1_000, "A", 1, "4")))
	require.NoError(t, c.AddFill(fill(8_000, "A", 1, "6")))

	c.EvictTo(baseTs + 12_000) // drops only the first fill
	m := c.Metrics().Combined
	assert.Equal(t, 1, m.Takers)
	assert.True(t, m.Volume.Equal(dec("6")))
	require.NotNil(t, m.AVCI)
	assert.True(t, m.AVCI.Equal(dec("1")))
}

func TestTopKShare(t *testing.T) {
	c := newCalc(t, 60_000)
	require.NoError(t, c.AddFill(fill(1_000, "A", 1, "60")))
	require.NoError(t, c.AddFill(fill(2_000, "B", 1, "25")))
	require.NoError(t, c.AddFill(fill(3_000, "C", 1, "15")))

	share, ok := c.TopKShare(1)
	require.True(t, ok)
	assert.True(t, share.Equal(dec("0.6")), "share = %s", share)

	share, ok = c.TopKShare(2)
	require.True(t, ok)
	assert.True(t, share.Equal(dec("0.85")), "share = %s", share)

	// k beyond the taker count covers everything.
	share, ok = c.TopKShare(10)
	require.True(t, ok)
	assert.True(t, share.Equal(dec("1")))

	_, ok = c.TopKShare(0)
	assert.False(t, ok)
}

func TestContractViolations(t *testing.T) {
	c := newCalc(t, 10_000)
	require.NoError(t, c.AddFill(fill(5_000, "A", 1, "1")))

	err := c.AddFill(fill(4_000, "B", 1, "1"))
	assert.ErrorIs(t, err, concentration.ErrNonMonotonic)

	err = c.AddFill(fill(6_000, "B", 1, "0"))
	assert.ErrorIs(t, err, concentration.ErrInvalidFill)

	err = c.AddFill(fill(6_000, "B", 2, "1"))
	assert.ErrorIs(t, err, concentration.ErrInvalidFill)

	// Rejections left state untouched.
	m := c.Metrics().Combined
	assert.Equal(t, 1, m.Takers)
	assert.True(t, m.Volume.Equal(dec("1")))

	_, err = concentration.New(concentration.Config{WindowMs: 0}, nil)
	assert.ErrorIs(t, err, concentration.ErrInvalidConfig)
}

func TestStateRoundTrip(t *testing.T) {
	c := newCalc(t, 10_000)
	require.NoError(t, c.AddFill(fill(1_000, "A", 1, "60")))
	require.NoError(t, c.AddFill(fill(2_000, "B", -1, "25")))
	require.NoError(t, c.AddFill(fill(3_000, "C", 1, "15")))

	raw, err := json.Marshal(c.State())
	require.NoError(t, err)
	var st concentration.State
	require.NoError(t, json.Unmarshal(raw, &st))

	restored, err := concentration.Restore(st, nil)
	require.NoError(t, err)

	// Subsequent behavior must match bit for bit.
	for _, calc := range []*concentration.Calculator{c, restored} {
		require.NoError(t, calc.AddFill(fill(4_000, "A", 1, "5")))
		calc.EvictTo(baseTs + 11_500)
	}
	want, got := c.Metrics(), restored.Metrics()
	require.NotNil(t, got.Combined.AVCI)
	assert.True(t, want.Combined.AVCI.Equal(*got.Combined.AVCI))
	assert.Equal(t, want.Combined.Takers, got.Combined.Takers)
	assert.True(t, want.Combined.Volume.Equal(got.Combined.Volume))
	assert.True(t, want.Buy.Volume.Equal(got.Buy.Volume))
	assert.True(t, want.Sell.Volume.Equal(got.Sell.Volume))
}

func TestMigratePreservesHistory(t *testing.T) {
	c := newCalc(t, 10_000)
	require.NoError(t, c.AddFill(fill(1_000, "A", 1, "60")))
	require.NoError(t, c.AddFill(fill(2_000, "B", 1, "40")))

	migrated, err := concentration.Migrate(c, concentration.Config{WindowMs: 2_500})
	require.NoError(t, err)
	assert.Equal(t, int64(2_500), migrated.Config().WindowMs)

	// History survives the migration verbatim.
	m := migrated.Metrics().Combined
	assert.Equal(t, 2, m.Takers)
	assert.True(t, m.Volume.Equal(dec("100")))

	// Going forward the new, narrower width drives eviction.
	migrated.EvictTo(baseTs + 4_000) // cutoff base+1500 drops the first fill
	m = migrated.Metrics().Combined
	assert.Equal(t, 1, m.Takers)
	assert.True(t, m.Volume.Equal(dec("40")))

	// The old instance is still usable under the old config.
	c.EvictTo(baseTs + 4_000)
	old := c.Metrics().Combined
	assert.Equal(t, 2, old.Takers)
}
