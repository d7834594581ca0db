package vault

import (
	"context"
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/events"
	"github.com/elys-network/ammvault/internal/strategy"
	"github.com/elys-network/ammvault/internal/types"
)

// UpdatePositions is called by the venue right before it executes trade on market. It replaces the
// placed positions with the queued ones when they differ and does nothing otherwise.
func (v *Vault) UpdatePositions(ctx context.Context, caller sdk.AccAddress, market types.MarketID, trade types.TradeParams) (err error) {
	if !caller.Equals(v.venueAddress) {
		v.metrics.ObserveCall("update_positions", types.ErrOnlyMarketManager)
		vaultLogger.Warn().Str("caller", caller.String()).Stringer("market", market).Msg("Rejected update from unregistered caller")
		return types.ErrOnlyMarketManager
	}
	defer func() { v.metrics.ObserveCall("update_positions", err) }()

	ctx, leave, err := v.enter(ctx, "update_positions")
	if err != nil {
		return err
	}
	defer leave()

	queue, placed, err := v.deriveQueue(ctx, market, trade)
	if err != nil {
		return err
	}
	if types.EqualPositions(placed, queue) {
		v.metrics.HookNoop()
		vaultLogger.Debug().Stringer("market", market).Msg("Queued positions equal placed positions")
		return nil
	}

	t := v.begin(market)
	if err := t.withdrawAll(ctx); err != nil {
		return t.rollback(ctx, err)
	}
	if err := t.placeAll(ctx, queue); err != nil {
		return t.rollback(ctx, err)
	}

	vaultLogger.Info().
		Stringer("market", market).
		Int("withdrawn", len(placed)).
		Int("placed", len(queue)).
		Bool("base_for_quote", trade.BaseForQuote).
		Msg("Positions updated")

	v.persistMarket(ctx, market)
	kv := []string{
		"withdrawn", strconv.Itoa(len(placed)),
		"placed", strconv.Itoa(len(queue)),
	}
	for i, pos := range queue {
		kv = append(kv, "position_"+strconv.Itoa(i), pos.String())
	}
	v.emit(ctx, events.New(events.TypePositionsUpdated, market, kv...))
	return nil
}

// QueuedPositions returns what the next UpdatePositions call would place for trade. It never changes
// state.
func (v *Vault) QueuedPositions(ctx context.Context, market types.MarketID, trade types.TradeParams) ([]types.Position, error) {
	queue, _, err := v.deriveQueue(ctx, market, trade)
	return queue, err
}

// PlacedPositions returns the positions held at the venue. An empty slice means no position.
func (v *Vault) PlacedPositions(market types.MarketID) ([]types.Position, error) {
	return v.store.Placed(market)
}

func (v *Vault) deriveQueue(ctx context.Context, market types.MarketID, trade types.TradeParams) ([]types.Position, []types.Position, error) {
	if !v.ledger.HasMarket(market) {
		return nil, nil, types.ErrUnknownMarket.Wrapf("market %s", market)
	}
	info, err := v.venue.MarketInfo(ctx, market)
	if err != nil {
		return nil, nil, venueError("market info", err)
	}
	placed, err := v.store.Placed(market)
	if err != nil {
		return nil, nil, err
	}
	deployed, err := v.deployed(ctx, market)
	if err != nil {
		return nil, nil, err
	}
	reserves, err := v.ledger.Reserves(market)
	if err != nil {
		return nil, nil, err
	}

	queue, err := v.planner.DeriveQueue(strategy.QueueInput{
		Market: info,
		Trade:  trade,
		Placed: placed,
		Assets: reserves.Add(deployed),
	})
	if err != nil {
		return nil, nil, types.ErrInvalidState.Wrapf("derive queue: %s", err)
	}
	// A queue without liquidity is the Empty state.
	out := make([]types.Position, 0, len(queue))
	for _, pos := range queue {
		if !pos.IsZero() {
			out = append(out, pos)
		}
	}
	return out, placed, nil
}
