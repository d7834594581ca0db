package fee

import (
	"math/big"
	"math/rand"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalc(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		rate   uint32
		want   int64
	}{
		{"zero rate", 1000, 0, 0},
		{"one percent of 100", 100, 100, 1},
		{"one percent of 200", 200, 100, 2},
		{"rounds down", 99, 100, 0},
		{"full rate", 12345, MaxRateBps, 12345},
		{"zero amount", 0, 500, 0},
		{"odd", 333, 333, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calc(sdkmath.NewInt(tt.amount), tt.rate)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestCalcNilAmount(t *testing.T) {
	assert.True(t, Calc(sdkmath.Int{}, 100).IsZero())
}

func TestCalcClampsRate(t *testing.T) {
	assert.Equal(t, int64(500), Calc(sdkmath.NewInt(500), MaxRateBps+1).Int64())
}

func TestCalcLargeAmounts(t *testing.T) {
	large := new(big.Int).Lsh(big.NewInt(1), 252)
	amount := sdkmath.NewIntFromBigInt(large)

	var got sdkmath.Int
	require.NotPanics(t, func() { got = Calc(amount, 100) })
	want := new(big.Int).Quo(new(big.Int).Mul(large, big.NewInt(100)), big.NewInt(BpsDenominator))
	assert.Equal(t, 0, got.BigInt().Cmp(want), "got %s, want %s", got, want)

	// the widest amount an SDK Int holds keeps its full value at 100%
	widest := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), sdkmath.MaxBitLen), big.NewInt(1))
	max := sdkmath.NewIntFromBigInt(widest)
	require.NotPanics(t, func() { got = Calc(max, MaxRateBps) })
	assert.True(t, got.Equal(max))
}

func TestCalcBoundsAndMonotonicity(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		amount := sdkmath.NewInt(r.Int63n(1_000_000_000))
		rate := uint32(r.Intn(int(MaxRateBps) + 1))

		f := Calc(amount, rate)
		assert.False(t, f.IsNegative())
		assert.True(t, f.LTE(amount), "fee %s above amount %s", f, amount)

		if rate < MaxRateBps {
			assert.True(t, Calc(amount, rate+1).GTE(f), "not monotonic in rate")
		}
		assert.True(t, Calc(amount.AddRaw(1), rate).GTE(f), "not monotonic in amount")
	}
}

func TestValidateRate(t *testing.T) {
	assert.True(t, ValidateRate(0, 500))
	assert.True(t, ValidateRate(500, 500))
	assert.False(t, ValidateRate(501, 500))
	assert.False(t, ValidateRate(MaxRateBps+1, MaxRateBps+5))
}
