package pricing

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// divisionPlaces is the rounding applied when removing the Q64.64 scale.
const divisionPlaces = 24

var (
	q128 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), 0)

	// feeRateScale converts a pool fee rate (hundredths of a basis point)
	// into a fraction.
	feeRateScale = decimal.NewFromInt(1_000_000)

	ErrZeroPrice = errors.New("pool price is zero")
)

// SqrtPriceToPrice converts a Q64.64 sqrt price into the human price of token
// A in units of token B: (sqrt / 2^64)^2 * 10^(decimalsA - decimalsB).
func SqrtPriceToPrice(sqrtPrice *uint256.Int, decimalsA, decimalsB uint8) decimal.Decimal {
	if sqrtPrice.IsZero() {
		return decimal.Zero
	}
	s := decimal.NewFromBigInt(sqrtPrice.ToBig(), 0)
	return s.Mul(s).DivRound(q128, divisionPlaces).Shift(int32(decimalsA) - int32(decimalsB))
}

// FeeFraction returns the pool fee as a fraction, 3000 -> 0.003.
func FeeFraction(feeRate uint16) decimal.Decimal {
	return decimal.NewFromInt(int64(feeRate)).Div(feeRateScale)
}

// FeeBps returns the pool fee in basis points, 3000 -> 30.
func FeeBps(feeRate uint16) decimal.Decimal {
	return decimal.NewFromInt(int64(feeRate)).Div(decimal.NewFromInt(100))
}

// SpotEstimate is the output of a swap priced at the current pool price
// with the pool fee taken from the input. It ignores price impact, so it is
// only an upper bound for anything but small amounts.
type SpotEstimate struct {
	AmountOut decimal.Decimal // raw units of the output token
	Fee       decimal.Decimal // raw units of the input token
}

// EstimateSpot prices amountIn (raw units) at price, the human price of A in
// B. aToB selects the swap direction.
func EstimateSpot(amountIn uint64, price decimal.Decimal, decimalsA, decimalsB uint8, feeRate uint16, aToB bool) (SpotEstimate, error) {
	if price.Sign() <= 0 {
		return SpotEstimate{}, ErrZeroPrice
	}

	in := decimal.NewFromBigInt(new(big.Int).SetUint64(amountIn), 0)
	fee := in.Mul(FeeFraction(feeRate)).Ceil()
	net := in.Sub(fee)

	var out decimal.Decimal
	if aToB {
		out = net.Shift(-int32(decimalsA)).Mul(price).Shift(int32(decimalsB))
	} else {
		out = net.Shift(-int32(decimalsB)).DivRound(price, divisionPlaces).Shift(int32(decimalsA))
	}

	return SpotEstimate{AmountOut: out.Floor(), Fee: fee}, nil
}

// ApplySlippage calculates minimum output with slippage tolerance
// slippageBps: basis points (e.g., 100 = 1%, 50 = 0.5%)
func ApplySlippage(amountOut uint64, slippageBps uint16) uint64 {
	if slippageBps >= 10000 {
		return 0
	}

	result := new(big.Int).Mul(new(big.Int).SetUint64(amountOut), big.NewInt(int64(10000-slippageBps)))
	result.Div(result, big.NewInt(10000))

	return result.Uint64()
}
