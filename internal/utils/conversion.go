/*
This file contains common utility functions for integer share math on SDK ints and for rendering
basis-point rates for display.

All multiplications go through big.Int so that a product of two 256-bit amounts never overflows;
only the (bounded) quotient is converted back into an SDK Int.
*/

package utils

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil      = errors.New("amount is nil")
	ErrAmountNegative = errors.New("amount is negative")
	ErrDivisionByZero = errors.New("division by zero")
	ErrResultOverflow = errors.New("result exceeds the maximum int width")
)

// MulDivFloor returns floor(a * b / c).
func MulDivFloor(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	return mulDiv(a, b, c, false)
}

// MulDivCeil returns ceil(a * b / c).
func MulDivCeil(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	return mulDiv(a, b, c, true)
}

func mulDiv(a, b, c sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	for _, v := range []sdkmath.Int{a, b, c} {
		if err := ValidateAmount(v); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if c.IsZero() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}

	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	quo, rem := new(big.Int).QuoRem(num, c.BigInt(), new(big.Int))
	if roundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return toInt(quo)
}

// SqrtProduct returns floor(sqrt(a * b)).
func SqrtProduct(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := ValidateAmount(a); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := ValidateAmount(b); err != nil {
		return sdkmath.ZeroInt(), err
	}
	prod := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return toInt(prod.Sqrt(prod))
}

// ValidateAmount rejects nil and negative amounts.
func ValidateAmount(v sdkmath.Int) error {
	if v.IsNil() {
		return ErrAmountNil
	}
	if v.IsNegative() {
		return ErrAmountNegative
	}
	return nil
}

func toInt(v *big.Int) (sdkmath.Int, error) {
	if v.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d bits", ErrResultOverflow, v.BitLen())
	}
	return sdkmath.NewIntFromBigInt(v), nil
}

// BpsToPercent renders a basis-point rate as a percentage (100 bps -> 1).
func BpsToPercent(bps uint32) decimal.Decimal {
	return decimal.New(int64(bps), -2)
}
