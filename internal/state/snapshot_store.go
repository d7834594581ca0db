// ./internal/state/snapshot_store.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/ammvault/internal/types"
)

// Store persists vault state in the tables created by EnsureSchema.
type Store struct {
	db *sql.DB
}

// NewStore returns a store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type marketRow struct {
	marketID        string
	baseAsset       string
	quoteAsset      string
	totalShares     string
	withdrawFeeRate int64
	reserveBase     string
	reserveQuote    string
	shares          []byte
	placed          []byte
}

func encodeMarket(m types.MarketState) (marketRow, error) {
	if m.ID.IsZero() {
		return marketRow{}, fmt.Errorf("market state without id")
	}
	shares := m.Shares
	if shares == nil {
		shares = map[string]sdkmath.Int{}
	}
	sharesJSON, err := json.Marshal(shares)
	if err != nil {
		return marketRow{}, fmt.Errorf("failed to marshal shares: %w", err)
	}
	placed := m.Placed
	if placed == nil {
		placed = []types.PlacedPosition{}
	}
	placedJSON, err := json.Marshal(placed)
	if err != nil {
		return marketRow{}, fmt.Errorf("failed to marshal placed positions: %w", err)
	}
	reserves := m.Reserves.Normalize()
	return marketRow{
		marketID:        m.ID.String(),
		baseAsset:       m.BaseAsset,
		quoteAsset:      m.QuoteAsset,
		totalShares:     intString(m.TotalShares),
		withdrawFeeRate: int64(m.WithdrawFeeRate),
		reserveBase:     reserves.Base.String(),
		reserveQuote:    reserves.Quote.String(),
		shares:          sharesJSON,
		placed:          placedJSON,
	}, nil
}

func decodeMarket(r marketRow) (types.MarketState, error) {
	id, err := types.ParseMarketID(r.marketID)
	if err != nil {
		return types.MarketState{}, err
	}
	m := types.MarketState{
		ID:              id,
		BaseAsset:       r.baseAsset,
		QuoteAsset:      r.quoteAsset,
		WithdrawFeeRate: uint32(r.withdrawFeeRate),
	}
	if m.TotalShares, err = parseInt("total_shares", r.totalShares); err != nil {
		return types.MarketState{}, err
	}
	if m.Reserves.Base, err = parseInt("reserve_base", r.reserveBase); err != nil {
		return types.MarketState{}, err
	}
	if m.Reserves.Quote, err = parseInt("reserve_quote", r.reserveQuote); err != nil {
		return types.MarketState{}, err
	}
	if err := json.Unmarshal(r.shares, &m.Shares); err != nil {
		return types.MarketState{}, fmt.Errorf("failed to unmarshal shares of %s: %w", r.marketID, err)
	}
	if err := json.Unmarshal(r.placed, &m.Placed); err != nil {
		return types.MarketState{}, fmt.Errorf("failed to unmarshal placed positions of %s: %w", r.marketID, err)
	}
	return m, nil
}

func intString(i sdkmath.Int) string {
	if i.IsNil() {
		return "0"
	}
	return i.String()
}

func parseInt(column, s string) (sdkmath.Int, error) {
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid %s %q", column, s)
	}
	return i, nil
}

// SaveMarketState upserts the record of one market.
func (s *Store) SaveMarketState(ctx context.Context, m types.MarketState) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	r, err := encodeMarket(m)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO vault_markets (
			market_id, base_asset, quote_asset, total_shares, withdraw_fee_rate,
			reserve_base, reserve_quote, shares, placed, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP)
		ON CONFLICT (market_id) DO UPDATE SET
			total_shares = EXCLUDED.total_shares,
			withdraw_fee_rate = EXCLUDED.withdraw_fee_rate,
			reserve_base = EXCLUDED.reserve_base,
			reserve_quote = EXCLUDED.reserve_quote,
			shares = EXCLUDED.shares,
			placed = EXCLUDED.placed,
			updated_at = CURRENT_TIMESTAMP;
	`
	_, err = s.db.ExecContext(ctx, query,
		r.marketID, r.baseAsset, r.quoteAsset, r.totalShares, r.withdrawFeeRate,
		r.reserveBase, r.reserveQuote, r.shares, r.placed,
	)
	if err != nil {
		return fmt.Errorf("failed to save market state %s: %w", r.marketID, err)
	}

	log.Debug().
		Str("market", r.marketID).
		Str("total_shares", r.totalShares).
		Int("placed", len(m.Placed)).
		Msg("Market state saved to database")
	return nil
}

// SaveGlobalState replaces the owner and accrued fee record.
func (s *Store) SaveGlobalState(ctx context.Context, g types.GlobalState) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	fees := g.WithdrawFees
	if fees == nil {
		fees = map[string]sdkmath.Int{}
	}
	feesJSON, err := json.Marshal(fees)
	if err != nil {
		return fmt.Errorf("failed to marshal withdraw_fees: %w", err)
	}

	query := `
		INSERT INTO vault_global (id, owner, withdraw_fees, updated_at)
		VALUES (1, $1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			withdraw_fees = EXCLUDED.withdraw_fees,
			updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := s.db.ExecContext(ctx, query, g.Owner, feesJSON); err != nil {
		return fmt.Errorf("failed to save global state: %w", err)
	}
	log.Debug().Str("owner", g.Owner).Int("fee_assets", len(fees)).Msg("Global state saved to database")
	return nil
}

// LoadVaultState reads everything saved so far. found is false when nothing was ever saved.
func (s *Store) LoadVaultState(ctx context.Context) (state types.VaultState, found bool, err error) {
	if s.db == nil {
		return types.VaultState{}, false, ErrNotInitialized
	}

	var feesJSON []byte
	row := s.db.QueryRowContext(ctx, `SELECT owner, withdraw_fees FROM vault_global WHERE id = 1;`)
	switch err := row.Scan(&state.Global.Owner, &feesJSON); {
	case errors.Is(err, sql.ErrNoRows):
		return types.VaultState{}, false, nil
	case err != nil:
		return types.VaultState{}, false, fmt.Errorf("failed to load global state: %w", err)
	}
	if err := json.Unmarshal(feesJSON, &state.Global.WithdrawFees); err != nil {
		return types.VaultState{}, false, fmt.Errorf("failed to unmarshal withdraw_fees: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, base_asset, quote_asset, total_shares::TEXT, withdraw_fee_rate,
		       reserve_base::TEXT, reserve_quote::TEXT, shares, placed
		FROM vault_markets
		ORDER BY market_id;
	`)
	if err != nil {
		return types.VaultState{}, false, fmt.Errorf("failed to load market states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r marketRow
		if err := rows.Scan(&r.marketID, &r.baseAsset, &r.quoteAsset, &r.totalShares, &r.withdrawFeeRate,
			&r.reserveBase, &r.reserveQuote, &r.shares, &r.placed); err != nil {
			return types.VaultState{}, false, fmt.Errorf("failed to scan market state: %w", err)
		}
		m, err := decodeMarket(r)
		if err != nil {
			return types.VaultState{}, false, err
		}
		state.Markets = append(state.Markets, m)
	}
	if err := rows.Err(); err != nil {
		return types.VaultState{}, false, fmt.Errorf("failed to iterate market states: %w", err)
	}

	log.Info().Int("markets", len(state.Markets)).Str("owner", state.Global.Owner).Msg("Vault state loaded from database")
	return state, true, nil
}
