package ledger

import (
	"sort"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/ammvault/internal/fee"
	"github.com/elys-network/ammvault/internal/types"
)

// WithdrawFeeRate returns a market's withdraw fee in basis points.
func (l *Ledger) WithdrawFeeRate(id types.MarketID) (uint32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.get(id)
	if err != nil {
		return 0, err
	}
	return m.feeRate, nil
}

// SetWithdrawFee changes a market's withdraw fee. The new rate must differ from the current one and
// stay at or below both limitBps and fee.MaxRateBps.
func (l *Ledger) SetWithdrawFee(id types.MarketID, rateBps, limitBps uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.get(id)
	if err != nil {
		return err
	}
	if rateBps == m.feeRate {
		return types.ErrFeeUnchanged
	}
	if !fee.ValidateRate(rateBps, limitBps) {
		return types.ErrFeeOverflow.Wrapf("rate %d bps, maximum %d bps", rateBps, min(limitBps, fee.MaxRateBps))
	}
	m.feeRate = rateBps
	return nil
}

// AccruedFees returns the withdraw fees accrued for asset.
func (l *Ledger) AccruedFees(asset string) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if v, ok := l.fees[asset]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

// FeeAssets lists the assets with a non-zero accrued balance, sorted.
func (l *Ledger) FeeAssets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	assets := make([]string, 0, len(l.fees))
	for asset, v := range l.fees {
		if v.IsPositive() {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	return assets
}

// CollectFees decrements the accrued fees of asset by amount.
func (l *Ledger) CollectFees(asset string, amount sdkmath.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.IsNil() || !amount.IsPositive() {
		return types.ErrAmountZero
	}
	accrued, ok := l.fees[asset]
	if !ok || accrued.LT(amount) {
		return types.ErrInsuffFees.Wrapf("asset %s, requested %s", asset, amount)
	}
	if remaining := accrued.Sub(amount); remaining.IsZero() {
		delete(l.fees, asset)
	} else {
		l.fees[asset] = remaining
	}
	return nil
}

func (l *Ledger) accrue(asset string, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	if cur, ok := l.fees[asset]; ok {
		l.fees[asset] = cur.Add(amount)
		return
	}
	l.fees[asset] = amount
}
