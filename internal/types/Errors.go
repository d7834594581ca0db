/*

Error definitions for the vault.

Every failure surfaces as one of six kinds (the first block) and a specific registered code
(the second block) identifying the exact condition. types.KindOf maps a specific error to its kind.

*/

package types

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace of every registered vault error.
const ModuleName = "ammvault"

// Error kinds
var (
	ErrUnauthorized        = errorsmod.Register(ModuleName, 2, "unauthorized")
	ErrInvalidAmount       = errorsmod.Register(ModuleName, 3, "invalid amount")
	ErrInvalidState        = errorsmod.Register(ModuleName, 4, "invalid state")
	ErrInsufficientBalance = errorsmod.Register(ModuleName, 5, "insufficient balance")
	ErrInvalidConfig       = errorsmod.Register(ModuleName, 6, "invalid config")
	ErrExternalFailure     = errorsmod.Register(ModuleName, 7, "external failure")
)

// Specific errors
var (
	ErrOnlyOwner         = errorsmod.Register(ModuleName, 10, "caller is not the owner")
	ErrOnlyMarketManager = errorsmod.Register(ModuleName, 11, "caller is not the market manager")

	ErrAmountZero      = errorsmod.Register(ModuleName, 20, "amount is zero")
	ErrSharesZero      = errorsmod.Register(ModuleName, 21, "shares are zero")
	ErrDepositTooSmall = errorsmod.Register(ModuleName, 22, "deposit mints no shares")

	ErrUseDeposit        = errorsmod.Register(ModuleName, 30, "shares exist, use deposit")
	ErrUseDepositInitial = errorsmod.Register(ModuleName, 31, "no shares exist, use initial deposit")
	ErrUnknownMarket     = errorsmod.Register(ModuleName, 32, "market not found")
	ErrMarketExists      = errorsmod.Register(ModuleName, 33, "market already exists")
	ErrReentrantCall     = errorsmod.Register(ModuleName, 34, "re-entrant call")
	ErrEmptyPool         = errorsmod.Register(ModuleName, 35, "market holds no assets")
	ErrCallInFlight      = errorsmod.Register(ModuleName, 36, "another call is in flight")

	ErrInsuffShares   = errorsmod.Register(ModuleName, 40, "insufficient shares")
	ErrInsuffFees     = errorsmod.Register(ModuleName, 41, "insufficient accrued fees")
	ErrInsuffReserves = errorsmod.Register(ModuleName, 42, "insufficient market reserves")

	ErrFeeUnchanged   = errorsmod.Register(ModuleName, 50, "fee rate unchanged")
	ErrFeeOverflow    = errorsmod.Register(ModuleName, 51, "fee rate above maximum")
	ErrSameOwner      = errorsmod.Register(ModuleName, 52, "new owner is the current owner")
	ErrInvalidAddress = errorsmod.Register(ModuleName, 53, "invalid address")
	ErrInvalidMarket  = errorsmod.Register(ModuleName, 54, "invalid market descriptor")

	ErrTransferFailed = errorsmod.Register(ModuleName, 60, "asset transfer failed")
	ErrVenueFailure   = errorsmod.Register(ModuleName, 61, "venue call failed")
)

var kinds = []struct{ specific, kind *errorsmod.Error }{
	{ErrOnlyOwner, ErrUnauthorized},
	{ErrOnlyMarketManager, ErrUnauthorized},
	{ErrAmountZero, ErrInvalidAmount},
	{ErrSharesZero, ErrInvalidAmount},
	{ErrDepositTooSmall, ErrInvalidAmount},
	{ErrUseDeposit, ErrInvalidState},
	{ErrUseDepositInitial, ErrInvalidState},
	{ErrUnknownMarket, ErrInvalidState},
	{ErrMarketExists, ErrInvalidState},
	{ErrReentrantCall, ErrInvalidState},
	{ErrEmptyPool, ErrInvalidState},
	{ErrCallInFlight, ErrInvalidState},
	{ErrInsuffShares, ErrInsufficientBalance},
	{ErrInsuffFees, ErrInsufficientBalance},
	{ErrInsuffReserves, ErrInsufficientBalance},
	{ErrFeeUnchanged, ErrInvalidConfig},
	{ErrFeeOverflow, ErrInvalidConfig},
	{ErrSameOwner, ErrInvalidConfig},
	{ErrInvalidAddress, ErrInvalidConfig},
	{ErrInvalidMarket, ErrInvalidConfig},
	{ErrTransferFailed, ErrExternalFailure},
	{ErrVenueFailure, ErrExternalFailure},
}

// KindOf returns the error kind of err, or nil when err is not a vault error.
func KindOf(err error) *errorsmod.Error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k.specific) {
			return k.kind
		}
	}
	for _, kind := range []*errorsmod.Error{
		ErrUnauthorized, ErrInvalidAmount, ErrInvalidState,
		ErrInsufficientBalance, ErrInvalidConfig, ErrExternalFailure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
