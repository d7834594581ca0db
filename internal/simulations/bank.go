package simulations

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Bank is an in-memory ledger of account balances. A send moves every coin or none.
type Bank struct {
	mu       sync.Mutex
	balances map[string]sdk.Coins
	failNext error
}

func NewBank() *Bank {
	return &Bank{balances: make(map[string]sdk.Coins)}
}

// Mint credits coins to addr.
func (b *Bank) Mint(addr sdk.AccAddress, coins sdk.Coins) error {
	if err := coins.Validate(); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr.String()] = b.balances[addr.String()].Add(coins...)
	return nil
}

// Balance returns every coin held by addr.
func (b *Bank) Balance(addr sdk.AccAddress) sdk.Coins {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[addr.String()]
}

// BalanceOf returns the amount of denom held by addr.
func (b *Bank) BalanceOf(addr sdk.AccAddress, denom string) sdkmath.Int {
	return b.Balance(addr).AmountOf(denom)
}

// FailNext makes the next SendCoins call fail with err.
func (b *Bank) FailNext(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

// SendCoins moves amt from one account to another.
func (b *Bank) SendCoins(_ context.Context, from, to sdk.AccAddress, amt sdk.Coins) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
	if err := amt.Validate(); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if amt.Empty() {
		return nil
	}
	remaining, hasNeg := b.balances[from.String()].SafeSub(amt...)
	if hasNeg {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, b.balances[from.String()], amt)
	}
	b.balances[from.String()] = remaining
	b.balances[to.String()] = b.balances[to.String()].Add(amt...)
	return nil
}
