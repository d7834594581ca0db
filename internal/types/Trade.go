package types

import (
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// TradeParams describes the trade the venue is about to execute when it calls the update hook.
type TradeParams struct {
	Trader       sdk.AccAddress `json:"trader,omitempty"`
	BaseForQuote bool           `json:"base_for_quote"` // true when the trader sells base, pushing the price down
	Amount       sdkmath.Int    `json:"amount"`         // input amount of the trade
}

// HasAmount reports whether the trade carries a positive input amount.
func (t TradeParams) HasAmount() bool {
	return !t.Amount.IsNil() && t.Amount.IsPositive()
}
