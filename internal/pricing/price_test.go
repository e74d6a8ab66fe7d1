package pricing

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func q64(mult uint64) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(mult), 64)
}

func TestSqrtPriceToPrice(t *testing.T) {
	cases := []struct {
		name       string
		sqrt       *uint256.Int
		decA, decB uint8
		want       string
	}{
		{"unit", q64(1), 6, 6, "1"},
		{"decimals shift", q64(1), 9, 6, "1000"},
		{"inverse shift", q64(1), 6, 9, "0.001"},
		{"square", q64(3), 6, 6, "9"},
		{"half", new(uint256.Int).Lsh(uint256.NewInt(1), 63), 6, 6, "0.25"},
		{"zero", uint256.NewInt(0), 9, 6, "0"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := SqrtPriceToPrice(tc.sqrt, tc.decA, tc.decB)
			want := decimal.RequireFromString(tc.want)
			assert.True(t, want.Equal(got), "want %s got %s", want, got)
		})
	}
}

func TestFees(t *testing.T) {
	assert.True(t, decimal.RequireFromString("0.003").Equal(FeeFraction(3000)))
	assert.True(t, decimal.NewFromInt(30).Equal(FeeBps(3000)))
	assert.True(t, decimal.RequireFromString("0.01").Equal(FeeBps(1)))
}

func TestEstimateSpot(t *testing.T) {
	price := decimal.NewFromInt(150)

	est, err := EstimateSpot(1_000_000_000, price, 9, 6, 3000, true)
	require.NoError(t, err)
	assert.Equal(t, "149550000", est.AmountOut.String())
	assert.Equal(t, "3000000", est.Fee.String())

	est, err = EstimateSpot(150_000_000, price, 9, 6, 3000, false)
	require.NoError(t, err)
	assert.Equal(t, "997000000", est.AmountOut.String())
	assert.Equal(t, "450000", est.Fee.String())

	_, err = EstimateSpot(1, decimal.Zero, 9, 6, 3000, true)
	assert.ErrorIs(t, err, ErrZeroPrice)
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, uint64(995), ApplySlippage(1000, 50))
	assert.Equal(t, uint64(1000), ApplySlippage(1000, 0))
	assert.Equal(t, uint64(0), ApplySlippage(1000, 10000))
}
