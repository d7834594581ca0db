/*

Proportional share pricing.

Shares are a pro-rata claim on the market's assets (reserves plus committed principal). Every
division floors in favour of the existing holders: mints round down, amounts pulled from the
depositor round up, payouts round down. Assets are tracked by the ledger and never read from bank
balances, so a direct transfer to the vault account cannot move the share price.

*/

package strategy

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/ammvault/internal/types"
	"github.com/elys-network/ammvault/internal/utils"
)

// Proportional is the default Pricer.
type Proportional struct{}

var _ Pricer = Proportional{}

// InitialShares mints floor(sqrt(base * quote)).
func (Proportional) InitialShares(deposit types.Amounts) (sdkmath.Int, error) {
	deposit = deposit.Normalize()
	if !deposit.Base.IsPositive() || !deposit.Quote.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrAmountZero
	}
	shares, err := utils.SqrtProduct(deposit.Base, deposit.Quote)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("initial shares: %w", err)
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), types.ErrDepositTooSmall
	}
	return shares, nil
}

// DepositShares mints the minimum of the per-leg pro-rata share counts over the legs the market
// holds, then pulls ceil(shares * asset / totalShares) of each leg.
func (Proportional) DepositShares(offered, assets types.Amounts, totalShares sdkmath.Int) (types.Amounts, sdkmath.Int, error) {
	offered, assets = offered.Normalize(), assets.Normalize()
	if offered.IsAnyNegative() || assets.IsAnyNegative() {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), utils.ErrAmountNegative
	}
	if totalShares.IsNil() || !totalShares.IsPositive() {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), types.ErrUseDepositInitial
	}
	if assets.IsZero() {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), types.ErrEmptyPool
	}

	shares := sdkmath.Int{}
	for _, leg := range []struct{ offered, asset sdkmath.Int }{
		{offered.Base, assets.Base},
		{offered.Quote, assets.Quote},
	} {
		if leg.asset.IsZero() {
			continue
		}
		s, err := utils.MulDivFloor(leg.offered, totalShares, leg.asset)
		if err != nil {
			return types.ZeroAmounts(), sdkmath.ZeroInt(), fmt.Errorf("deposit shares: %w", err)
		}
		if shares.IsNil() || s.LT(shares) {
			shares = s
		}
	}
	if shares.IsNil() || shares.IsZero() {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), types.ErrDepositTooSmall
	}

	used, err := pull(shares, totalShares, assets)
	if err != nil {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), err
	}
	if !offered.GTE(used) {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), errors.New("deposit shares: consumed amounts exceed offered amounts")
	}
	return used, shares, nil
}

// WithdrawAmounts pays floor(shares * asset / totalShares) of each leg.
func (Proportional) WithdrawAmounts(shares, totalShares sdkmath.Int, assets types.Amounts) (types.Amounts, error) {
	assets = assets.Normalize()
	if shares.IsNil() || !shares.IsPositive() {
		return types.ZeroAmounts(), types.ErrSharesZero
	}
	if totalShares.IsNil() || shares.GT(totalShares) {
		return types.ZeroAmounts(), types.ErrInsuffShares
	}

	base, err := utils.MulDivFloor(shares, assets.Base, totalShares)
	if err != nil {
		return types.ZeroAmounts(), fmt.Errorf("withdraw amounts: %w", err)
	}
	quote, err := utils.MulDivFloor(shares, assets.Quote, totalShares)
	if err != nil {
		return types.ZeroAmounts(), fmt.Errorf("withdraw amounts: %w", err)
	}
	return types.Amounts{Base: base, Quote: quote}, nil
}

func pull(shares, totalShares sdkmath.Int, assets types.Amounts) (types.Amounts, error) {
	base, err := utils.MulDivCeil(shares, assets.Base, totalShares)
	if err != nil {
		return types.ZeroAmounts(), fmt.Errorf("deposit amounts: %w", err)
	}
	quote, err := utils.MulDivCeil(shares, assets.Quote, totalShares)
	if err != nil {
		return types.ZeroAmounts(), fmt.Errorf("deposit amounts: %w", err)
	}
	return types.Amounts{Base: base, Quote: quote}, nil
}
