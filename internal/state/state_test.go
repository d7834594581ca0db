package state

import (
	"context"
	"os"
	"strconv"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/ammvault/internal/events"
	"github.com/elys-network/ammvault/internal/types"
)

func sampleMarket() types.MarketState {
	return types.MarketState{
		ID:              types.NewMarketID("ubase", "uquote", 30),
		BaseAsset:       "ubase",
		QuoteAsset:      "uquote",
		TotalShares:     sdkmath.NewInt(1414),
		WithdrawFeeRate: 100,
		Reserves:        types.NewAmounts(993, 1986),
		Shares: map[string]sdkmath.Int{
			"cosmos1alice": sdkmath.NewInt(1000),
			"cosmos1bob":   sdkmath.NewInt(414),
		},
		Placed: []types.PlacedPosition{{
			Position:  types.NewPosition(-100, 100, sdkmath.NewInt(1414)),
			Principal: types.NewAmounts(7, 14),
		}},
	}
}

func TestDSNDefaultsSSLMode(t *testing.T) {
	cfg := DBConfig{Host: "localhost", Port: 5432, User: "vault", Password: "secret", DBName: "ammvault"}
	assert.Equal(t, "host=localhost port=5432 user=vault password=secret dbname=ammvault sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestMarketRowRoundTrip(t *testing.T) {
	in := sampleMarket()
	row, err := encodeMarket(in)
	require.NoError(t, err)
	assert.Equal(t, in.ID.String(), row.marketID)
	assert.Equal(t, "1414", row.totalShares)
	assert.Equal(t, "993", row.reserveBase)

	out, err := decodeMarket(row)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.True(t, in.TotalShares.Equal(out.TotalShares))
	assert.True(t, in.Reserves.Equal(out.Reserves))
	require.Len(t, out.Shares, 2)
	assert.True(t, out.Shares["cosmos1bob"].Equal(sdkmath.NewInt(414)))
	require.Len(t, out.Placed, 1)
	assert.True(t, in.Placed[0].Position.Equal(out.Placed[0].Position))
	assert.True(t, in.Placed[0].Principal.Equal(out.Placed[0].Principal))
}

func TestEncodeEmptyMarket(t *testing.T) {
	m := types.MarketState{ID: types.NewMarketID("a", "b", 5), BaseAsset: "a", QuoteAsset: "b"}
	row, err := encodeMarket(m)
	require.NoError(t, err)
	assert.Equal(t, "0", row.totalShares)
	assert.JSONEq(t, `{}`, string(row.shares))
	assert.JSONEq(t, `[]`, string(row.placed))

	_, err = encodeMarket(types.MarketState{})
	assert.Error(t, err)
}

func TestDecodeRejectsCorruptRows(t *testing.T) {
	row, err := encodeMarket(sampleMarket())
	require.NoError(t, err)

	bad := row
	bad.totalShares = "1.5"
	_, err = decodeMarket(bad)
	assert.ErrorContains(t, err, "total_shares")

	bad = row
	bad.marketID = "zz"
	_, err = decodeMarket(bad)
	assert.Error(t, err)

	bad = row
	bad.placed = []byte(`{`)
	_, err = decodeMarket(bad)
	assert.ErrorContains(t, err, "placed")
}

func TestUninitialized(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	assert.ErrorIs(t, store.SaveMarketState(ctx, sampleMarket()), ErrNotInitialized)
	assert.ErrorIs(t, store.SaveGlobalState(ctx, types.GlobalState{}), ErrNotInitialized)
	_, _, err := store.LoadVaultState(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	journal := NewEventJournal(nil)
	assert.ErrorIs(t, journal.Emit(ctx, events.New(events.TypeDeposit, types.MarketID{})), ErrNotInitialized)
	_, err = NewCycleCounter(nil).Next(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// testDB connects to the database named by AMMVAULT_TEST_DB_NAME, skipping when it is unset.
func testDB(t *testing.T) {
	t.Helper()
	name := os.Getenv("AMMVAULT_TEST_DB_NAME")
	if name == "" {
		t.Skip("AMMVAULT_TEST_DB_NAME not set")
	}
	port, _ := strconv.Atoi(os.Getenv("DB_PORT"))
	if port == 0 {
		port = 5432
	}
	require.NoError(t, InitDB(DBConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     port,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   name,
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}))
	require.NoError(t, DropSchema())
	require.NoError(t, EnsureSchema())
	t.Cleanup(CloseDB)
}

func TestStoreAgainstPostgres(t *testing.T) {
	testDB(t)
	ctx := context.Background()
	store := NewStore(DB)

	_, found, err := store.LoadVaultState(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	m := sampleMarket()
	require.NoError(t, store.SaveMarketState(ctx, m))
	m.TotalShares = sdkmath.NewInt(1000)
	delete(m.Shares, "cosmos1bob")
	require.NoError(t, store.SaveMarketState(ctx, m))
	require.NoError(t, store.SaveGlobalState(ctx, types.GlobalState{
		Owner:        "cosmos1owner",
		WithdrawFees: map[string]sdkmath.Int{"ubase": sdkmath.NewInt(3)},
	}))

	state, found, err := store.LoadVaultState(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cosmos1owner", state.Global.Owner)
	assert.True(t, state.Global.WithdrawFees["ubase"].Equal(sdkmath.NewInt(3)))
	require.Len(t, state.Markets, 1)
	assert.True(t, state.Markets[0].TotalShares.Equal(sdkmath.NewInt(1000)))
	assert.Len(t, state.Markets[0].Shares, 1)
}

func TestJournalAndCounterAgainstPostgres(t *testing.T) {
	testDB(t)
	ctx := context.Background()

	journal := NewEventJournal(DB)
	first := events.New(events.TypeMarketAdded, types.NewMarketID("a", "b", 5), "base_asset", "a")
	second := events.New(events.TypeOwnerTransferred, types.MarketID{}, "new_owner", "cosmos1new")
	require.NoError(t, journal.Emit(ctx, first))
	require.NoError(t, journal.Emit(ctx, second))
	require.NoError(t, journal.Emit(ctx, second))

	got, err := journal.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	byID := map[string]events.Event{}
	for _, ev := range got {
		byID[ev.ID.String()] = ev
	}
	assert.Equal(t, "a", byID[first.ID.String()].Attributes["base_asset"])
	assert.Equal(t, first.Market, byID[first.ID.String()].Market)
	assert.Empty(t, byID[second.ID.String()].Market)

	counter := NewCycleCounter(DB)
	n, err := counter.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	current, err := counter.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}
