// Package fee computes withdraw fees from basis-point rates.
package fee

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/ammvault/internal/utils"
)

const (
	// BpsDenominator is the number of basis points in 100%.
	BpsDenominator = 10_000
	// MaxRateBps caps every configurable fee rate.
	MaxRateBps uint32 = BpsDenominator
)

var bpsDenominator = sdkmath.NewInt(BpsDenominator)

// Calc returns floor(amount * rateBps / 10000). The result never exceeds amount for a rate
// within MaxRateBps. Nil or non-positive amounts carry no fee. The product is taken at full width,
// so any amount that fits an SDK Int has a fee.
func Calc(amount sdkmath.Int, rateBps uint32) sdkmath.Int {
	if amount.IsNil() || !amount.IsPositive() || rateBps == 0 {
		return sdkmath.ZeroInt()
	}
	if rateBps > MaxRateBps {
		rateBps = MaxRateBps
	}
	fee, err := utils.MulDivFloor(amount, sdkmath.NewIntFromUint64(uint64(rateBps)), bpsDenominator)
	if err != nil {
		// the quotient is at most amount, so this is unreachable for a valid amount
		return sdkmath.ZeroInt()
	}
	return fee
}

// ValidateRate reports whether rateBps lies within limitBps and the absolute cap.
func ValidateRate(rateBps, limitBps uint32) bool {
	return rateBps <= limitBps && rateBps <= MaxRateBps
}
