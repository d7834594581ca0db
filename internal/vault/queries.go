package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/ledger"
	"github.com/elys-network/ammvault/internal/positions"
	"github.com/elys-network/ammvault/internal/types"
)

// MarketSummary is the read-only view of one market. Committed is the principal the placed positions
// consumed, so Assets is the book value at cost; PreviewWithdraw prices against the venue instead.
type MarketSummary struct {
	ID              types.MarketID   `json:"id"`
	BaseAsset       string           `json:"base_asset"`
	QuoteAsset      string           `json:"quote_asset"`
	TotalShares     sdkmath.Int      `json:"total_shares"`
	WithdrawFeeRate uint32           `json:"withdraw_fee_rate"`
	Reserves        types.Amounts    `json:"reserves"`
	Committed       types.Amounts    `json:"committed"`
	Assets          types.Amounts    `json:"assets"`
	Placed          []types.Position `json:"placed"`
}

// Owner returns the current owner.
func (v *Vault) Owner() sdk.AccAddress {
	v.ownerMu.RLock()
	defer v.ownerMu.RUnlock()
	return v.owner
}

func (v *Vault) UserShares(market types.MarketID, account sdk.AccAddress) (sdkmath.Int, error) {
	return v.ledger.UserShares(market, account)
}

func (v *Vault) TotalShares(market types.MarketID) (sdkmath.Int, error) {
	return v.ledger.TotalShares(market)
}

func (v *Vault) WithdrawFeeRate(market types.MarketID) (uint32, error) {
	return v.ledger.WithdrawFeeRate(market)
}

// WithdrawFees returns the accrued, uncollected withdraw fees of asset.
func (v *Vault) WithdrawFees(asset string) sdkmath.Int {
	return v.ledger.AccruedFees(asset)
}

// FeeAssets lists assets with accrued withdraw fees.
func (v *Vault) FeeAssets() []string {
	return v.ledger.FeeAssets()
}

// Market summarises one market.
func (v *Vault) Market(market types.MarketID) (MarketSummary, error) {
	state, err := v.exportMarket(market)
	if err != nil {
		return MarketSummary{}, err
	}
	committed, err := v.store.Committed(market)
	if err != nil {
		return MarketSummary{}, err
	}
	placed := make([]types.Position, 0, len(state.Placed))
	for _, p := range state.Placed {
		placed = append(placed, p.Position)
	}
	return MarketSummary{
		ID:              state.ID,
		BaseAsset:       state.BaseAsset,
		QuoteAsset:      state.QuoteAsset,
		TotalShares:     state.TotalShares,
		WithdrawFeeRate: state.WithdrawFeeRate,
		Reserves:        state.Reserves,
		Committed:       committed,
		Assets:          state.Reserves.Add(committed),
		Placed:          placed,
	}, nil
}

// Markets summarises every market.
func (v *Vault) Markets() ([]MarketSummary, error) {
	ids := v.ledger.Markets()
	out := make([]MarketSummary, 0, len(ids))
	for _, id := range ids {
		s, err := v.Market(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Export snapshots the whole vault.
func (v *Vault) Export() (types.VaultState, error) {
	state := types.VaultState{Global: v.exportGlobal()}
	for _, id := range v.ledger.Markets() {
		m, err := v.exportMarket(id)
		if err != nil {
			return types.VaultState{}, err
		}
		state.Markets = append(state.Markets, m)
	}
	return state, nil
}

// Restore loads a snapshot into a vault that has no markets yet. An empty owner in the snapshot keeps
// the configured one. Every market is checked before any is loaded, so a bad snapshot leaves the vault
// untouched.
func (v *Vault) Restore(state types.VaultState) error {
	_, leave, err := v.enter(context.Background(), "restore")
	if err != nil {
		return err
	}
	defer leave()

	if len(v.ledger.Markets()) > 0 {
		return types.ErrInvalidState.Wrap("restore into a vault with markets")
	}
	var owner sdk.AccAddress
	if state.Global.Owner != "" {
		owner, err = sdk.AccAddressFromBech32(state.Global.Owner)
		if err != nil {
			return types.ErrInvalidAddress.Wrapf("owner %q: %s", state.Global.Owner, err)
		}
	}
	if err := checkSnapshot(state.Markets); err != nil {
		return err
	}

	checkpoints := make([]snapshot, 0, len(state.Markets))
	for _, m := range state.Markets {
		checkpoints = append(checkpoints, v.snapshot(m.ID))
		if err := v.importMarket(m); err != nil {
			for i := len(checkpoints) - 1; i >= 0; i-- {
				v.restore(checkpoints[i])
			}
			return err
		}
	}
	v.ledger.ImportFees(state.Global.WithdrawFees)
	if !owner.Empty() {
		v.ownerMu.Lock()
		v.owner = owner
		v.ownerMu.Unlock()
	}

	for _, m := range state.Markets {
		v.metrics.SetMarket(m)
	}
	vaultLogger.Info().Int("markets", len(state.Markets)).Msg("Vault state restored")
	return nil
}

// checkSnapshot loads markets into a scratch ledger and store, which run the same checks as the real
// import.
func checkSnapshot(markets []types.MarketState) error {
	scratch, store := ledger.New(nil), positions.NewStore()
	seen := make(map[types.MarketID]bool, len(markets))
	for _, m := range markets {
		if seen[m.ID] {
			return types.ErrMarketExists.Wrapf("market %s listed twice", m.ID)
		}
		seen[m.ID] = true
		if err := validateMarketInfo(m.ID, types.MarketInfo{ID: m.ID, BaseAsset: m.BaseAsset, QuoteAsset: m.QuoteAsset}); err != nil {
			return err
		}
		if err := scratch.ImportMarket(m); err != nil {
			return err
		}
		if err := store.Import(m.ID, m.Placed); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vault) importMarket(m types.MarketState) error {
	if err := v.ledger.ImportMarket(m); err != nil {
		return err
	}
	return v.store.Import(m.ID, m.Placed)
}

func (v *Vault) exportMarket(market types.MarketID) (types.MarketState, error) {
	state, err := v.ledger.ExportMarket(market)
	if err != nil {
		return types.MarketState{}, err
	}
	state.Placed, err = v.store.Entries(market)
	if err != nil {
		return types.MarketState{}, err
	}
	return state, nil
}

func (v *Vault) exportGlobal() types.GlobalState {
	return types.GlobalState{Owner: v.Owner().String(), WithdrawFees: v.ledger.ExportFees()}
}
