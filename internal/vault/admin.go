package vault

import (
	"context"
	"strconv"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/events"
	"github.com/elys-network/ammvault/internal/types"
)

// AddMarket registers a venue market. Adding a market that is already registered fails with
// ErrMarketExists.
func (v *Vault) AddMarket(ctx context.Context, caller sdk.AccAddress, market types.MarketID) (err error) {
	defer func() { v.metrics.ObserveCall("add_market", err) }()

	if err := v.onlyOwner(caller); err != nil {
		return err
	}
	ctx, leave, err := v.enter(ctx, "add_market")
	if err != nil {
		return err
	}
	defer leave()

	if market.IsZero() {
		return types.ErrInvalidMarket.Wrap("empty market id")
	}
	if v.ledger.HasMarket(market) {
		return types.ErrMarketExists.Wrapf("market %s", market)
	}
	info, err := v.venue.MarketInfo(ctx, market)
	if err != nil {
		return venueError("market info", err)
	}
	if err := validateMarketInfo(market, info); err != nil {
		return err
	}

	t := v.begin(market)
	if err := v.ledger.AddMarket(market, info.BaseAsset, info.QuoteAsset); err != nil {
		return t.rollback(ctx, err)
	}
	if err := v.store.Init(market); err != nil {
		return t.rollback(ctx, err)
	}

	vaultLogger.Info().Stringer("market", market).Str("base", info.BaseAsset).Str("quote", info.QuoteAsset).Msg("Market added")
	v.persistMarket(ctx, market)
	v.emit(ctx, events.New(events.TypeMarketAdded, market, "base_asset", info.BaseAsset, "quote_asset", info.QuoteAsset))
	return nil
}

func validateMarketInfo(market types.MarketID, info types.MarketInfo) error {
	if info.ID != market {
		return types.ErrInvalidMarket.Wrapf("venue returned descriptor for %s", info.ID)
	}
	if err := sdk.ValidateDenom(info.BaseAsset); err != nil {
		return types.ErrInvalidMarket.Wrapf("base asset: %s", err)
	}
	if err := sdk.ValidateDenom(info.QuoteAsset); err != nil {
		return types.ErrInvalidMarket.Wrapf("quote asset: %s", err)
	}
	if info.BaseAsset == info.QuoteAsset {
		return types.ErrInvalidMarket.Wrapf("base and quote are both %s", info.BaseAsset)
	}
	return nil
}

// SetWithdrawFee changes the withdraw fee of a market.
func (v *Vault) SetWithdrawFee(ctx context.Context, caller sdk.AccAddress, market types.MarketID, rateBps uint32) (err error) {
	defer func() { v.metrics.ObserveCall("set_withdraw_fee", err) }()

	if err := v.onlyOwner(caller); err != nil {
		return err
	}
	ctx, leave, err := v.enter(ctx, "set_withdraw_fee")
	if err != nil {
		return err
	}
	defer leave()

	previous, err := v.ledger.WithdrawFeeRate(market)
	if err != nil {
		return err
	}
	if err := v.ledger.SetWithdrawFee(market, rateBps, v.maxFeeBps); err != nil {
		return err
	}

	vaultLogger.Info().Stringer("market", market).Uint32("from_bps", previous).Uint32("to_bps", rateBps).Msg("Withdraw fee changed")
	v.persistMarket(ctx, market)
	v.emit(ctx, events.New(events.TypeWithdrawFeeSet, market,
		"previous_bps", strconv.FormatUint(uint64(previous), 10),
		"rate_bps", strconv.FormatUint(uint64(rateBps), 10),
	))
	return nil
}

// CollectWithdrawFees pays amount of the accrued fees of asset to receiver.
func (v *Vault) CollectWithdrawFees(ctx context.Context, caller, receiver sdk.AccAddress, asset string, amount sdkmath.Int) (err error) {
	defer func() { v.metrics.ObserveCall("collect_withdraw_fees", err) }()

	if err := v.onlyOwner(caller); err != nil {
		return err
	}
	ctx, leave, err := v.enter(ctx, "collect_withdraw_fees")
	if err != nil {
		return err
	}
	defer leave()

	if receiver.Empty() {
		return types.ErrInvalidAddress.Wrap("empty receiver")
	}
	if err := sdk.ValidateDenom(asset); err != nil {
		return types.ErrInvalidAmount.Wrapf("asset %q: %s", asset, err)
	}

	t := v.begin(types.MarketID{})
	if err := v.ledger.CollectFees(asset, amount); err != nil {
		return err
	}
	if err := v.bank.SendCoins(ctx, v.account, receiver, sdk.NewCoins(sdk.NewCoin(asset, amount))); err != nil {
		return t.rollback(ctx, transferError(err))
	}

	vaultLogger.Info().Str("asset", asset).Stringer("amount", amount).Str("receiver", receiver.String()).Msg("Withdraw fees collected")
	v.persistGlobal(ctx)
	v.emit(ctx, events.New(events.TypeFeesCollected, types.MarketID{},
		"asset", asset,
		"amount", amount.String(),
		"receiver", receiver.String(),
	))
	return nil
}

// TransferOwner hands the admin surface to newOwner.
func (v *Vault) TransferOwner(ctx context.Context, caller, newOwner sdk.AccAddress) (err error) {
	defer func() { v.metrics.ObserveCall("transfer_owner", err) }()

	if err := v.onlyOwner(caller); err != nil {
		return err
	}
	ctx, leave, err := v.enter(ctx, "transfer_owner")
	if err != nil {
		return err
	}
	defer leave()

	if newOwner.Empty() {
		return types.ErrInvalidAddress.Wrap("empty owner")
	}

	v.ownerMu.Lock()
	previous := v.owner
	if newOwner.Equals(previous) {
		v.ownerMu.Unlock()
		return types.ErrSameOwner
	}
	v.owner = newOwner
	v.ownerMu.Unlock()

	vaultLogger.Info().Str("from", previous.String()).Str("to", newOwner.String()).Msg("Ownership transferred")
	v.persistGlobal(ctx)
	v.emit(ctx, events.New(events.TypeOwnerTransferred, types.MarketID{},
		"previous_owner", previous.String(),
		"new_owner", newOwner.String(),
	))
	return nil
}
