/*

This file contains the default parameters of the vault.

The range parameters drive the placement strategy; the simulation parameters seed the in-process
venue the vault runs against in sim mode.

*/

package config

import (
	"time"

	"github.com/elys-network/ammvault/internal/strategy"
	"github.com/elys-network/ammvault/internal/types"
)

// DefaultRangeParameters is the placement strategy used by the service.
var DefaultRangeParameters = strategy.RangeParams{
	HalfWidthTicks: 600, // Range spans about +/-6% around the current price.
	// Rationale: wide enough that ordinary volatility keeps the position in range between
	// rebalances, narrow enough that the liquidity stays concentrated near the price.

	RebalanceBufferTicks: 150, // Re-centre once the tick is within 150 ticks of a bound.
	// Rationale: re-centring before the bound is crossed avoids a window in which the vault
	// earns no fees. A quarter of the half width keeps repositioning infrequent.

	SkewTicks: 0, // No trade-direction skew.
	// Rationale: skewing anticipates the trade but also leaves more of the range on the side the
	// price is moving away from. Off until there is data to tune it.

	ResizeToleranceBps: 200, // Keep the placed liquidity while it is within 2% of the target.
	// Rationale: earned fees and small price moves shift the fundable liquidity on every trade.
	// Replacing the position for each of those costs a withdraw and a place per trade.
}

// DefaultSimulation seeds the in-process venue and its trader.
var DefaultSimulation = types.SimulationParameters{
	Markets: []types.SimulatedMarket{
		{BaseAsset: "uatom", QuoteAsset: "uusdc", FeeTierBps: 30, TickSpacing: 10, Tick: 0},
		{BaseAsset: "uosmo", QuoteAsset: "uusdc", FeeTierBps: 5, TickSpacing: 1, Tick: -6932},
	},
	TraderFunds:    1_000_000_000_000,
	MaxTradeAmount: 5_000_000,
	TradesPerCycle: 4,

	Depositors:       3,
	DepositorFunds:   10_000_000_000,
	MaxDepositAmount: 50_000_000,

	TradeInterval: 30 * time.Second,
	Seed:          1,
}
