package vault

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/types"
)

// Venue is the external AMM the vault provides liquidity to. Every call may fail; a failure aborts the
// vault call that made it.
type Venue interface {
	// MarketInfo returns the market descriptor, including the current tick.
	MarketInfo(ctx context.Context, market types.MarketID) (types.MarketInfo, error)

	// PlacePosition adds liquidity in [pos.Lower, pos.Upper] and returns the amounts it consumed.
	PlacePosition(ctx context.Context, market types.MarketID, pos types.Position) (types.Amounts, error)

	// WithdrawPosition removes the liquidity and returns the amounts paid back, including earned fees.
	WithdrawPosition(ctx context.Context, market types.MarketID, pos types.Position) (types.Amounts, error)

	// PositionValue returns what WithdrawPosition would pay for pos right now.
	PositionValue(ctx context.Context, market types.MarketID, pos types.Position) (types.Amounts, error)
}

// Bank moves assets between accounts. A send either moves every coin or none.
type Bank interface {
	SendCoins(ctx context.Context, from, to sdk.AccAddress, amt sdk.Coins) error
}

// Persister stores committed state. Failures are logged and counted; they never undo a call.
type Persister interface {
	SaveMarketState(ctx context.Context, state types.MarketState) error
	SaveGlobalState(ctx context.Context, state types.GlobalState) error
}

// Hook is the entry point the venue calls before executing a trade.
type Hook interface {
	UpdatePositions(ctx context.Context, caller sdk.AccAddress, market types.MarketID, trade types.TradeParams) error
}

var _ Hook = (*Vault)(nil)
