/*

Exported snapshots of vault state. These are what the persistence layer writes and what a vault
is restored from at startup.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// MarketState is the complete per-market record.
type MarketState struct {
	ID              MarketID               `json:"id"`
	BaseAsset       string                 `json:"base_asset"`
	QuoteAsset      string                 `json:"quote_asset"`
	TotalShares     sdkmath.Int            `json:"total_shares"`
	WithdrawFeeRate uint32                 `json:"withdraw_fee_rate"`
	Reserves        Amounts                `json:"reserves"`
	Shares          map[string]sdkmath.Int `json:"shares"` // bech32 account -> shares
	Placed          []PlacedPosition       `json:"placed"`
}

// GlobalState holds the process-wide part of the vault: the owner and accrued withdraw fees.
type GlobalState struct {
	Owner        string                 `json:"owner"`
	WithdrawFees map[string]sdkmath.Int `json:"withdraw_fees"` // asset -> accrued amount
}

// VaultState is everything needed to rebuild a vault.
type VaultState struct {
	Global  GlobalState   `json:"global"`
	Markets []MarketState `json:"markets"`
}
