package vault

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/events"
	"github.com/elys-network/ammvault/internal/ledger"
	"github.com/elys-network/ammvault/internal/types"
)

// DepositResult is what a proportional deposit consumed and minted.
type DepositResult struct {
	Used   types.Amounts `json:"used"`
	Shares sdkmath.Int   `json:"shares"`
}

// DepositInitial bootstraps a market with the first deposit and pulls both amounts from depositor.
func (v *Vault) DepositInitial(ctx context.Context, depositor sdk.AccAddress, market types.MarketID, amounts types.Amounts) (shares sdkmath.Int, err error) {
	defer func() { v.metrics.ObserveCall("deposit_initial", err) }()

	if depositor.Empty() {
		return sdkmath.ZeroInt(), types.ErrInvalidAddress
	}
	ctx, leave, err := v.enter(ctx, "deposit_initial")
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer leave()

	base, quote, err := v.ledger.Assets(market)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	t := v.begin(market)
	shares, err = v.ledger.DepositInitial(market, depositor, amounts)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.bank.SendCoins(ctx, depositor, v.account, amounts.Coins(base, quote)); err != nil {
		return sdkmath.ZeroInt(), t.rollback(ctx, transferError(err))
	}

	v.persistMarket(ctx, market)
	v.emit(ctx, events.New(events.TypeDeposit, market,
		"depositor", depositor.String(),
		"base", amounts.Normalize().Base.String(),
		"quote", amounts.Normalize().Quote.String(),
		"shares", shares.String(),
		"initial", "true",
	))
	return shares, nil
}

// Deposit adds liquidity to a bootstrapped market. Shares are priced against the reserves plus what
// the placed positions are worth at the venue now. Only the amounts the pricer consumes are pulled
// from depositor.
func (v *Vault) Deposit(ctx context.Context, depositor sdk.AccAddress, market types.MarketID, offered types.Amounts) (res DepositResult, err error) {
	defer func() { v.metrics.ObserveCall("deposit", err) }()

	if depositor.Empty() {
		return DepositResult{}, types.ErrInvalidAddress
	}
	ctx, leave, err := v.enter(ctx, "deposit")
	if err != nil {
		return DepositResult{}, err
	}
	defer leave()

	base, quote, err := v.ledger.Assets(market)
	if err != nil {
		return DepositResult{}, err
	}
	deployed, err := v.deployed(ctx, market)
	if err != nil {
		return DepositResult{}, err
	}

	t := v.begin(market)
	used, shares, err := v.ledger.Deposit(market, depositor, offered, deployed)
	if err != nil {
		return DepositResult{}, err
	}
	if err := v.bank.SendCoins(ctx, depositor, v.account, used.Coins(base, quote)); err != nil {
		return DepositResult{}, t.rollback(ctx, transferError(err))
	}

	v.persistMarket(ctx, market)
	v.emit(ctx, events.New(events.TypeDeposit, market,
		"depositor", depositor.String(),
		"base", used.Base.String(),
		"quote", used.Quote.String(),
		"shares", shares.String(),
	))
	return DepositResult{Used: used, Shares: shares}, nil
}

// Withdraw burns shares and pays the net amounts to depositor, priced like Deposit. When the reserves
// cannot cover the payout, the placed positions are pulled from the venue first and the withdrawal
// is priced again against what they returned.
func (v *Vault) Withdraw(ctx context.Context, depositor sdk.AccAddress, market types.MarketID, shares sdkmath.Int) (w ledger.Withdrawal, err error) {
	defer func() { v.metrics.ObserveCall("withdraw", err) }()

	if depositor.Empty() {
		return ledger.Withdrawal{}, types.ErrInvalidAddress
	}
	ctx, leave, err := v.enter(ctx, "withdraw")
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	defer leave()

	base, quote, err := v.ledger.Assets(market)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	deployed, err := v.deployed(ctx, market)
	if err != nil {
		return ledger.Withdrawal{}, err
	}

	t := v.begin(market)
	w, err = v.ledger.Withdraw(market, depositor, shares, deployed)
	if errors.Is(err, types.ErrInsuffReserves) {
		vaultLogger.Info().Stringer("market", market).Msg("Reserves short, unwinding placed positions")
		if err := t.withdrawAll(ctx); err != nil {
			return ledger.Withdrawal{}, t.rollback(ctx, err)
		}
		w, err = v.ledger.Withdraw(market, depositor, shares, types.ZeroAmounts())
	}
	if err != nil {
		return ledger.Withdrawal{}, t.rollback(ctx, err)
	}

	if coins := w.Net.Coins(base, quote); !coins.IsZero() {
		if err := v.bank.SendCoins(ctx, v.account, depositor, coins); err != nil {
			return ledger.Withdrawal{}, t.rollback(ctx, transferError(err))
		}
	}

	v.persistMarket(ctx, market)
	if !w.Fee.IsZero() {
		v.persistGlobal(ctx)
	}
	v.emit(ctx, events.New(events.TypeWithdraw, market,
		"depositor", depositor.String(),
		"shares", shares.String(),
		"base", w.Net.Base.String(),
		"quote", w.Net.Quote.String(),
		"fee_base", w.Fee.Base.String(),
		"fee_quote", w.Fee.Quote.String(),
	))
	return w, nil
}

// PreviewWithdraw prices a withdrawal of shares by account without changing state. It takes no call
// guard, so the result may be stale by the time a Withdraw runs.
func (v *Vault) PreviewWithdraw(ctx context.Context, market types.MarketID, account sdk.AccAddress, shares sdkmath.Int) (ledger.Withdrawal, error) {
	if account.Empty() {
		return ledger.Withdrawal{}, types.ErrInvalidAddress
	}
	deployed, err := v.deployed(ctx, market)
	if err != nil {
		return ledger.Withdrawal{}, err
	}
	return v.ledger.PreviewWithdraw(market, account, shares, deployed)
}
