/*

Concentrated-liquidity curve math shared by the range planner and the simulated venue.

Prices are quote per base. A tick t has price 1.0001^t, so its square root is 1.0001^(t/2). Amounts
for liquidity L in [lower, upper] at square-root price sp follow the usual range formulas:

	sp <= sa:       base = L*(sb-sa)/(sa*sb), quote = 0
	sa < sp < sb:   base = L*(sb-sp)/(sp*sb), quote = L*(sp-sa)
	sp >= sb:       base = 0,                 quote = L*(sb-sa)

Amounts a position takes are rounded up and amounts it returns are rounded down, so the venue never
pays out more than it holds. LiquidityForAmounts inverts the formulas for the rounded-up direction.

*/

package curve

import (
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/elys-network/ammvault/internal/types"
)

const tickBase = 1.0001

// SqrtPriceAtTick returns 1.0001^(tick/2).
func SqrtPriceAtTick(tick int32) decimal.Decimal {
	return decimal.NewFromFloat(math.Pow(tickBase, float64(tick)/2))
}

// TickAtSqrtPrice returns the greatest tick whose square-root price does not exceed sp.
func TickAtSqrtPrice(sp decimal.Decimal) int32 {
	f, _ := sp.Float64()
	if f <= 0 {
		return types.MinTick
	}
	t := math.Floor(2 * math.Log(f) / math.Log(tickBase))
	switch {
	case t < float64(types.MinTick):
		return types.MinTick
	case t > float64(types.MaxTick):
		return types.MaxTick
	}
	tick := int32(t)
	// float rounding can land one tick off the true floor
	if tick > types.MinTick && SqrtPriceAtTick(tick).GreaterThan(sp) {
		tick--
	} else if tick < types.MaxTick && SqrtPriceAtTick(tick+1).LessThanOrEqual(sp) {
		tick++
	}
	return tick
}

// PriceAtTick returns the quote-per-base price of tick.
func PriceAtTick(tick int32) decimal.Decimal {
	sp := SqrtPriceAtTick(tick)
	return sp.Mul(sp)
}

// AmountsForLiquidity returns the base and quote backing liquidity in [lower, upper] at sp.
func AmountsForLiquidity(liquidity sdkmath.Int, lower, upper int32, sp decimal.Decimal, roundUp bool) types.Amounts {
	if liquidity.IsNil() || !liquidity.IsPositive() || lower >= upper {
		return types.ZeroAmounts()
	}
	l := decimal.NewFromBigInt(liquidity.BigInt(), 0)
	sa, sb := SqrtPriceAtTick(lower), SqrtPriceAtTick(upper)

	base, quote := decimal.Zero, decimal.Zero
	switch {
	case sp.LessThanOrEqual(sa):
		base = l.Mul(sb.Sub(sa)).Div(sa.Mul(sb))
	case sp.GreaterThanOrEqual(sb):
		quote = l.Mul(sb.Sub(sa))
	default:
		base = l.Mul(sb.Sub(sp)).Div(sp.Mul(sb))
		quote = l.Mul(sp.Sub(sa))
	}
	return types.Amounts{Base: round(base, roundUp), Quote: round(quote, roundUp)}
}

// LiquidityForAmounts returns the most liquidity in [lower, upper] whose rounded-up cost at sp fits
// inside amounts.
func LiquidityForAmounts(amounts types.Amounts, lower, upper int32, sp decimal.Decimal) sdkmath.Int {
	amounts = amounts.Normalize()
	if lower >= upper || amounts.IsAnyNegative() || !sp.IsPositive() {
		return sdkmath.ZeroInt()
	}
	sa, sb := SqrtPriceAtTick(lower), SqrtPriceAtTick(upper)
	// one unit of each leg is held back for the rounding of the cost
	base, quote := spare(amounts.Base), spare(amounts.Quote)

	var l decimal.Decimal
	switch {
	case sp.LessThanOrEqual(sa):
		l = base.Mul(sa).Mul(sb).Div(sb.Sub(sa))
	case sp.GreaterThanOrEqual(sb):
		l = quote.Div(sb.Sub(sa))
	default:
		l = decimal.Min(
			base.Mul(sp).Mul(sb).Div(sb.Sub(sp)),
			quote.Div(sp.Sub(sa)),
		)
	}

	if l.BigInt().BitLen() >= sdkmath.MaxBitLen {
		return sdkmath.ZeroInt()
	}
	liquidity := round(l, false)
	for i := 0; i < maxFitSteps && liquidity.IsPositive(); i++ {
		if amounts.GTE(AmountsForLiquidity(liquidity, lower, upper, sp, true)) {
			return liquidity
		}
		liquidity = liquidity.Sub(liquidity.QuoRaw(1_000_000).AddRaw(1))
	}
	return sdkmath.ZeroInt()
}

const maxFitSteps = 8

func spare(amount sdkmath.Int) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount.SubRaw(1).BigInt(), 0)
}

// SwapStep moves sp through liquidity for amountIn (after fees) and returns the new square-root
// price and the amount paid out, rounded down.
func SwapStep(sp decimal.Decimal, liquidity, amountIn sdkmath.Int, baseForQuote bool) (decimal.Decimal, sdkmath.Int) {
	l := decimal.NewFromBigInt(liquidity.BigInt(), 0)
	in := decimal.NewFromBigInt(amountIn.BigInt(), 0)
	if l.IsZero() || in.IsZero() {
		return sp, sdkmath.ZeroInt()
	}

	if baseForQuote {
		// 1/sp' = 1/sp + in/L
		next := l.Mul(sp).Div(l.Add(in.Mul(sp)))
		return next, round(l.Mul(sp.Sub(next)), false)
	}
	// sp' = sp + in/L
	next := sp.Add(in.Div(l))
	return next, round(l.Mul(next.Sub(sp)).Div(sp.Mul(next)), false)
}

func round(d decimal.Decimal, up bool) sdkmath.Int {
	if d.IsNegative() {
		return sdkmath.ZeroInt()
	}
	if up {
		d = d.Ceil()
	} else {
		d = d.Floor()
	}
	return sdkmath.NewIntFromBigInt(d.BigInt())
}
