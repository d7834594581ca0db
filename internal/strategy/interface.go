package strategy

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/ammvault/internal/types"
)

// Pricer decides how many shares a deposit mints and what a withdrawal pays.
// Implementations must keep per-share value constant across deposits and withdrawals: a holder's
// claim may only grow through venue yield, never through another depositor's rounding.
type Pricer interface {
	// InitialShares prices the bootstrap deposit of an empty market.
	InitialShares(deposit types.Amounts) (sdkmath.Int, error)

	// DepositShares prices a deposit against the market's current assets and share supply.
	// It returns the amounts actually consumed, which never exceed the offered amounts.
	DepositShares(offered, assets types.Amounts, totalShares sdkmath.Int) (used types.Amounts, shares sdkmath.Int, err error)

	// WithdrawAmounts returns the gross amounts redeemed by shares.
	WithdrawAmounts(shares, totalShares sdkmath.Int, assets types.Amounts) (types.Amounts, error)
}

// QueueInput is everything a Planner may look at. It only contains state the vault and the venue
// both observe, so the derived queue is replayable.
type QueueInput struct {
	Market types.MarketInfo
	Trade  types.TradeParams
	Placed []types.Position
	Assets types.Amounts // reserves plus the principal of placed positions
}

// Planner derives the positions the vault should hold once the incoming trade executes.
type Planner interface {
	DeriveQueue(in QueueInput) ([]types.Position, error)
}
