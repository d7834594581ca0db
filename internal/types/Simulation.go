package types

import "time"

// SimulatedMarket seeds one market of the in-process venue.
type SimulatedMarket struct {
	BaseAsset   string `json:"base_asset"`
	QuoteAsset  string `json:"quote_asset"`
	FeeTierBps  uint32 `json:"fee_tier_bps"`
	TickSpacing int32  `json:"tick_spacing"`
	Tick        int32  `json:"tick"` // starting tick
}

// SimulationParameters drive the simulated venue and its trader.
type SimulationParameters struct {
	Markets        []SimulatedMarket `json:"markets"`
	TraderFunds    int64             `json:"trader_funds"`     // minted per asset to the trader
	MaxTradeAmount int64             `json:"max_trade_amount"` // upper bound of one trade
	TradesPerCycle int               `json:"trades_per_cycle"`

	Depositors       int   `json:"depositors"`
	DepositorFunds   int64 `json:"depositor_funds"`    // minted per asset to each depositor
	MaxDepositAmount int64 `json:"max_deposit_amount"` // upper bound of one deposit leg

	TradeInterval time.Duration `json:"trade_interval"`
	Seed          int64         `json:"seed"`
}
