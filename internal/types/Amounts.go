package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Amounts is a (base, quote) pair of asset amounts.
type Amounts struct {
	Base  sdkmath.Int `json:"base"`
	Quote sdkmath.Int `json:"quote"`
}

// NewAmounts builds an Amounts pair from int64 values.
func NewAmounts(base, quote int64) Amounts {
	return Amounts{Base: sdkmath.NewInt(base), Quote: sdkmath.NewInt(quote)}
}

// ZeroAmounts returns a pair of zeros.
func ZeroAmounts() Amounts {
	return Amounts{Base: sdkmath.ZeroInt(), Quote: sdkmath.ZeroInt()}
}

// Normalize replaces nil legs with zero.
func (a Amounts) Normalize() Amounts {
	if a.Base.IsNil() {
		a.Base = sdkmath.ZeroInt()
	}
	if a.Quote.IsNil() {
		a.Quote = sdkmath.ZeroInt()
	}
	return a
}

func (a Amounts) Add(o Amounts) Amounts {
	a, o = a.Normalize(), o.Normalize()
	return Amounts{Base: a.Base.Add(o.Base), Quote: a.Quote.Add(o.Quote)}
}

func (a Amounts) Sub(o Amounts) Amounts {
	a, o = a.Normalize(), o.Normalize()
	return Amounts{Base: a.Base.Sub(o.Base), Quote: a.Quote.Sub(o.Quote)}
}

// IsZero reports whether both legs are zero.
func (a Amounts) IsZero() bool {
	a = a.Normalize()
	return a.Base.IsZero() && a.Quote.IsZero()
}

// IsAnyNegative reports whether either leg is below zero.
func (a Amounts) IsAnyNegative() bool {
	a = a.Normalize()
	return a.Base.IsNegative() || a.Quote.IsNegative()
}

// GTE reports whether both legs are at least the legs of o.
func (a Amounts) GTE(o Amounts) bool {
	a, o = a.Normalize(), o.Normalize()
	return a.Base.GTE(o.Base) && a.Quote.GTE(o.Quote)
}

func (a Amounts) Equal(o Amounts) bool {
	a, o = a.Normalize(), o.Normalize()
	return a.Base.Equal(o.Base) && a.Quote.Equal(o.Quote)
}

// Coins converts the pair into a coin set for the market's assets. Zero legs are dropped.
func (a Amounts) Coins(baseAsset, quoteAsset string) sdk.Coins {
	a = a.Normalize()
	return sdk.NewCoins(sdk.NewCoin(baseAsset, a.Base), sdk.NewCoin(quoteAsset, a.Quote))
}

func (a Amounts) String() string {
	a = a.Normalize()
	return fmt.Sprintf("(%s, %s)", a.Base, a.Quote)
}
