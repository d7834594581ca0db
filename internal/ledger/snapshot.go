package ledger

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/ammvault/internal/types"
)

// Checkpoint is a copy of one market record and of the accrued fees, taken before a call mutates
// them.
type Checkpoint struct {
	id     types.MarketID
	market *market // nil when the market did not exist
	fees   map[string]sdkmath.Int
}

// Checkpoint copies the state a call on id may touch. The zero MarketID checkpoints only the fees.
func (l *Ledger) Checkpoint(id types.MarketID) Checkpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cp := Checkpoint{id: id, fees: copyFees(l.fees)}
	if m, ok := l.markets[id]; ok {
		cp.market = m.clone()
	}
	return cp
}

// Revert restores the state captured by cp.
func (l *Ledger) Revert(cp Checkpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !cp.id.IsZero() {
		if cp.market == nil {
			delete(l.markets, cp.id)
		} else {
			l.markets[cp.id] = cp.market.clone()
		}
	}
	l.fees = copyFees(cp.fees)
}

// ExportMarket fills the ledger fields of a market snapshot.
func (l *Ledger) ExportMarket(id types.MarketID) (types.MarketState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.get(id)
	if err != nil {
		return types.MarketState{}, err
	}
	shares := make(map[string]sdkmath.Int, len(m.shares))
	for k, v := range m.shares {
		shares[k] = v
	}
	return types.MarketState{
		ID:              id,
		BaseAsset:       m.baseAsset,
		QuoteAsset:      m.quoteAsset,
		TotalShares:     m.totalShares,
		WithdrawFeeRate: m.feeRate,
		Reserves:        m.reserves,
		Shares:          shares,
	}, nil
}

// ExportFees copies the accrued fee balances.
func (l *Ledger) ExportFees() map[string]sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyFees(l.fees)
}

// ImportMarket restores a market record. The share balances must add up to the total supply.
func (l *Ledger) ImportMarket(state types.MarketState) error {
	sum := sdkmath.ZeroInt()
	shares := make(map[string]sdkmath.Int, len(state.Shares))
	for account, v := range state.Shares {
		if v.IsNil() || v.IsNegative() {
			return types.ErrInvalidState.Wrapf("market %s: negative balance for %s", state.ID, account)
		}
		if v.IsZero() {
			continue
		}
		shares[account] = v
		sum = sum.Add(v)
	}
	total := state.TotalShares
	if total.IsNil() {
		total = sdkmath.ZeroInt()
	}
	if !sum.Equal(total) {
		return types.ErrInvalidState.Wrapf("market %s: balances sum to %s, total shares %s", state.ID, sum, total)
	}
	reserves := state.Reserves.Normalize()
	if reserves.IsAnyNegative() {
		return types.ErrInvalidState.Wrapf("market %s: negative reserves", state.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.markets[state.ID] = &market{
		baseAsset:   state.BaseAsset,
		quoteAsset:  state.QuoteAsset,
		totalShares: total,
		shares:      shares,
		feeRate:     state.WithdrawFeeRate,
		reserves:    reserves,
	}
	return nil
}

// ImportFees replaces the accrued fee balances.
func (l *Ledger) ImportFees(fees map[string]sdkmath.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fees = make(map[string]sdkmath.Int, len(fees))
	for asset, v := range fees {
		if !v.IsNil() && v.IsPositive() {
			l.fees[asset] = v
		}
	}
}

func copyFees(src map[string]sdkmath.Int) map[string]sdkmath.Int {
	dst := make(map[string]sdkmath.Int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
