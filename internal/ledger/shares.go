package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/fee"
	"github.com/elys-network/ammvault/internal/types"
)

// Withdrawal is the outcome of a share redemption.
type Withdrawal struct {
	Shares sdkmath.Int   `json:"shares"`
	Gross  types.Amounts `json:"gross"`
	Fee    types.Amounts `json:"fee"`
	Net    types.Amounts `json:"net"`
}

// DepositInitial bootstraps a market: it mints the first shares to depositor and moves amounts into
// the market's reserves. It fails with ErrUseDeposit once shares exist and with ErrAmountZero when
// either amount is zero.
func (l *Ledger) DepositInitial(id types.MarketID, depositor sdk.AccAddress, amounts types.Amounts) (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.get(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if m.totalShares.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrUseDeposit
	}
	amounts = amounts.Normalize()
	if amounts.IsAnyNegative() {
		return sdkmath.ZeroInt(), types.ErrInvalidAmount.Wrapf("deposit %s", amounts)
	}
	if amounts.Base.IsZero() || amounts.Quote.IsZero() {
		return sdkmath.ZeroInt(), types.ErrAmountZero
	}

	shares, err := l.pricer.InitialShares(amounts)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	account := depositor.String()
	m.shares[account] = m.balance(account).Add(shares)
	m.totalShares = m.totalShares.Add(shares)
	m.reserves = m.reserves.Add(amounts)

	ledgerLogger.Info().
		Stringer("market", id).
		Str("depositor", account).
		Stringer("amounts", amounts).
		Stringer("shares", shares).
		Msg("Market bootstrapped")
	return shares, nil
}

// Deposit mints shares proportional to the value added against the market's assets, which are its
// reserves plus deployed, the amounts its placed positions would return now. Only the consumed amounts enter the
// reserves; the rest of the offer stays with the depositor.
func (l *Ledger) Deposit(id types.MarketID, depositor sdk.AccAddress, offered, deployed types.Amounts) (types.Amounts, sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.get(id)
	if err != nil {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), err
	}
	if !m.totalShares.IsPositive() {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), types.ErrUseDepositInitial
	}
	offered = offered.Normalize()
	if offered.IsAnyNegative() {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), types.ErrInvalidAmount.Wrapf("deposit %s", offered)
	}
	if offered.IsZero() {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), types.ErrAmountZero
	}

	used, shares, err := l.pricer.DepositShares(offered, m.assets(deployed), m.totalShares)
	if err != nil {
		return types.ZeroAmounts(), sdkmath.ZeroInt(), err
	}

	account := depositor.String()
	m.shares[account] = m.balance(account).Add(shares)
	m.totalShares = m.totalShares.Add(shares)
	m.reserves = m.reserves.Add(used)

	ledgerLogger.Info().
		Stringer("market", id).
		Str("depositor", account).
		Stringer("used", used).
		Stringer("shares", shares).
		Msg("Deposit recorded")
	return used, shares, nil
}

// PreviewWithdraw prices a redemption without changing state.
func (l *Ledger) PreviewWithdraw(id types.MarketID, depositor sdk.AccAddress, shares sdkmath.Int, deployed types.Amounts) (Withdrawal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.get(id)
	if err != nil {
		return Withdrawal{}, err
	}
	return l.price(m, depositor.String(), shares, deployed)
}

// Withdraw burns shares from depositor and takes the gross amounts out of the market's reserves.
// The fee part is credited to the accrued fees of each asset; the net part is what the caller pays
// out. It fails with ErrInsuffReserves when the reserves cannot cover the gross amounts, in which case
// the caller has to unwind placed positions first.
func (l *Ledger) Withdraw(id types.MarketID, depositor sdk.AccAddress, shares sdkmath.Int, deployed types.Amounts) (Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.get(id)
	if err != nil {
		return Withdrawal{}, err
	}
	account := depositor.String()
	w, err := l.price(m, account, shares, deployed)
	if err != nil {
		return Withdrawal{}, err
	}
	if !m.reserves.GTE(w.Gross) {
		return Withdrawal{}, types.ErrInsuffReserves.Wrapf("reserves %s, gross %s", m.reserves, w.Gross)
	}

	remaining := m.balance(account).Sub(shares)
	if remaining.IsZero() {
		delete(m.shares, account)
	} else {
		m.shares[account] = remaining
	}
	m.totalShares = m.totalShares.Sub(shares)
	m.reserves = m.reserves.Sub(w.Gross)
	l.accrue(m.baseAsset, w.Fee.Base)
	l.accrue(m.quoteAsset, w.Fee.Quote)

	ledgerLogger.Info().
		Stringer("market", id).
		Str("depositor", account).
		Stringer("shares", shares).
		Stringer("gross", w.Gross).
		Stringer("fee", w.Fee).
		Msg("Withdrawal recorded")
	return w, nil
}

func (l *Ledger) price(m *market, account string, shares sdkmath.Int, deployed types.Amounts) (Withdrawal, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return Withdrawal{}, types.ErrSharesZero
	}
	if m.balance(account).LT(shares) {
		return Withdrawal{}, types.ErrInsuffShares.Wrapf("balance %s, requested %s", m.balance(account), shares)
	}

	gross, err := l.pricer.WithdrawAmounts(shares, m.totalShares, m.assets(deployed))
	if err != nil {
		return Withdrawal{}, err
	}
	feeAmounts := types.Amounts{
		Base:  fee.Calc(gross.Base, m.feeRate),
		Quote: fee.Calc(gross.Quote, m.feeRate),
	}
	net := gross.Sub(feeAmounts)
	if net.IsAnyNegative() {
		return Withdrawal{}, fmt.Errorf("withdraw: fee %s exceeds gross %s", feeAmounts, gross)
	}
	return Withdrawal{Shares: shares, Gross: gross, Fee: feeAmounts, Net: net}, nil
}
