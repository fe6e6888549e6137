package imbalance

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ExponentialWeights returns the distance weights w_k = 2^{-(k-1)/HL} for
// k = 1..kLevels, with the half-life expressed in ticks. When 1/HL is an
// integer the exponents are integral and the weights are exact powers of two;
// otherwise the fractional power is taken through float64.
func ExponentialWeights(kLevels int, halfLifeTicks decimal.Decimal) ([]decimal.Decimal, error) {
	if kLevels <= 0 {
		return nil, fmt.Errorf("%w: k_levels must be positive, got %d", ErrInvalidConfig, kLevels)
	}
	if halfLifeTicks.Sign() <= 0 {
		return nil, fmt.Errorf("%w: half_life_ticks must be positive, got %s", ErrInvalidConfig, halfLifeTicks)
	}

	weights := make([]decimal.Decimal, kLevels)
	one := decimal.NewFromInt(1)
	two := decimal.NewFromInt(2)

	invHL := one.Div(halfLifeTicks)
	if invHL.IsInteger() {
		step := invHL.IntPart()
		for k := 0; k < kLevels; k++ {
			weights[k] = one.Div(two.Pow(decimal.NewFromInt(int64(k) * step)))
		}
		return weights, nil
	}

	hl, _ := halfLifeTicks.Float64()
	for k := 0; k < kLevels; k++ {
		weights[k] = decimal.NewFromFloat(math.Pow(2, -float64(k)/hl))
	}
	return weights, nil
}
