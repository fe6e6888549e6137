package imbalance

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestExponentialWeightsIntegerStep(t *testing.T) {
	tests := []struct {
		name     string
		kLevels  int
		halfLife string
		want     []string
	}{
		{
			name:     "half-life one tick",
			kLevels:  4,
			halfLife: "1",
			want:     []string{"1", "0.5", "0.25", "0.125"},
		},
		{
			name:     "half-life half a tick",
			kLevels:  3,
			halfLife: "0.5",
			want:     []string{"1", "0.25", "0.0625"},
		},
		{
			name:     "single level",
			kLevels:  1,
			halfLife: "1",
			want:     []string{"1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hl, _ := decimal.NewFromString(tt.halfLife)
			got, err := ExponentialWeights(tt.kLevels, hl)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				want, _ := decimal.NewFromString(w)
				if !got[i].Equal(want) {
					t.Errorf("w[%d] = %s, want %s", i, got[i], want)
				}
			}
		})
	}
}

func TestExponentialWeightsFractionalStep(t *testing.T) {
	hl := decimal.NewFromInt(2) // 1/HL = 0.5, fractional exponent path
	got, err := ExponentialWeights(3, hl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got[0].Equal(decimal.NewFromInt(1)) {
		t.Errorf("w[0] = %s, want 1", got[0])
	}
	// w_2 = 2^{-1/2}
	w1, _ := got[1].Float64()
	if math.Abs(w1-math.Pow(2, -0.5)) > 1e-12 {
		t.Errorf("w[1] = %v, want 2^-0.5", w1)
	}
	// w_3 = 2^{-1} = 0.5
	w2, _ := got[2].Float64()
	if math.Abs(w2-0.5) > 1e-12 {
		t.Errorf("w[2] = %v, want 0.5", w2)
	}
}

func TestExponentialWeightsRejectsBadInput(t *testing.T) {
	if _, err := ExponentialWeights(0, decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("k_levels=0 err = %v, want ErrInvalidConfig", err)
	}
	if _, err := ExponentialWeights(3, decimal.Zero); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("half_life=0 err = %v, want ErrInvalidConfig", err)
	}
}
