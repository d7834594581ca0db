package driver

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/simulations"
	"github.com/elys-network/ammvault/internal/types"
	"github.com/elys-network/ammvault/internal/vault"
)

// TraderAddress is the account every simulated trade is made from.
var TraderAddress = sdk.AccAddress([]byte("sim-trader__________"))

// Depositors returns the accounts of n simulated depositors.
func Depositors(n int) []sdk.AccAddress {
	out := make([]sdk.AccAddress, n)
	for i := range out {
		out[i] = sdk.AccAddress([]byte(fmt.Sprintf("sim-depositor-%06d", i)))
	}
	return out
}

// Setup creates the simulated markets, registers v as their hook, adds any market v does not
// know yet and funds the trader and depositors.
func Setup(ctx context.Context, venue *simulations.Venue, bank *simulations.Bank, v *vault.Vault, params types.SimulationParameters) ([]types.MarketID, error) {
	var (
		ids    []types.MarketID
		assets = map[string]struct{}{}
	)
	for _, m := range params.Markets {
		id, err := venue.CreateMarket(m.BaseAsset, m.QuoteAsset, m.FeeTierBps, m.TickSpacing, m.Tick)
		if err != nil {
			return nil, fmt.Errorf("create market %s/%s: %w", m.BaseAsset, m.QuoteAsset, err)
		}
		if err := venue.RegisterHook(id, v); err != nil {
			return nil, fmt.Errorf("register hook on %s: %w", id, err)
		}
		if _, err := v.Market(id); err != nil {
			if err := v.AddMarket(ctx, v.Owner(), id); err != nil {
				return nil, fmt.Errorf("add market %s: %w", id, err)
			}
		}
		ids = append(ids, id)
		assets[m.BaseAsset] = struct{}{}
		assets[m.QuoteAsset] = struct{}{}
	}

	if err := bank.Mint(TraderAddress, fund(assets, params.TraderFunds)); err != nil {
		return nil, fmt.Errorf("fund trader: %w", err)
	}
	for _, depositor := range Depositors(params.Depositors) {
		if err := bank.Mint(depositor, fund(assets, params.DepositorFunds)); err != nil {
			return nil, fmt.Errorf("fund depositor %s: %w", depositor, err)
		}
	}
	return ids, nil
}

func fund(assets map[string]struct{}, amount int64) sdk.Coins {
	coins := sdk.NewCoins()
	if amount <= 0 {
		return coins
	}
	for asset := range assets {
		coins = coins.Add(sdk.NewInt64Coin(asset, amount))
	}
	return coins
}

// Reseed prepares a persisted vault state for a fresh simulated venue. The venue keeps nothing
// across restarts, so the principal of every placed position is folded back into the reserves
// and the custody account is minted what the restored ledger says it holds.
func Reseed(state types.VaultState, bank *simulations.Bank, custody sdk.AccAddress) (types.VaultState, error) {
	holdings := sdk.NewCoins()
	out := types.VaultState{Global: state.Global}
	for _, m := range state.Markets {
		reserves := m.Reserves.Normalize()
		for _, p := range m.Placed {
			reserves = reserves.Add(p.Principal)
		}
		m.Reserves = reserves
		m.Placed = nil
		out.Markets = append(out.Markets, m)

		if reserves.IsAnyNegative() {
			return types.VaultState{}, fmt.Errorf("market %s has negative reserves %s", m.ID, reserves)
		}
		holdings = holdings.Add(reserves.Coins(m.BaseAsset, m.QuoteAsset)...)
	}
	for asset, amount := range state.Global.WithdrawFees {
		if amount.IsNil() || !amount.IsPositive() {
			continue
		}
		holdings = holdings.Add(sdk.NewCoin(asset, amount))
	}

	if !holdings.IsZero() {
		if err := bank.Mint(custody, holdings); err != nil {
			return types.VaultState{}, fmt.Errorf("fund custody: %w", err)
		}
	}
	return out, nil
}
