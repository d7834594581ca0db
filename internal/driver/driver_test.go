package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/ammvault/internal/simulations"
	"github.com/elys-network/ammvault/internal/strategy"
	"github.com/elys-network/ammvault/internal/types"
	"github.com/elys-network/ammvault/internal/vault"
)

var (
	owner     = sdk.AccAddress([]byte("owner_______________"))
	custody   = sdk.AccAddress([]byte("vault_______________"))
	venueAddr = sdk.AccAddress([]byte("venue_______________"))
)

func testParams() types.SimulationParameters {
	return types.SimulationParameters{
		Markets:          []types.SimulatedMarket{{BaseAsset: "ubase", QuoteAsset: "uquote", FeeTierBps: 30, TickSpacing: 10}},
		TraderFunds:      1_000_000_000,
		MaxTradeAmount:   1000,
		TradesPerCycle:   3,
		Depositors:       2,
		DepositorFunds:   1_000_000_000,
		MaxDepositAmount: 1_000_000,
		Seed:             7,
	}
}

type simEnv struct {
	bank    *simulations.Bank
	venue   *simulations.Venue
	vault   *vault.Vault
	markets []types.MarketID
}

func newVault(t *testing.T, venue *simulations.Venue, bank *simulations.Bank) *vault.Vault {
	t.Helper()
	planner, err := strategy.NewCenteredRange(strategy.RangeParams{HalfWidthTicks: 100, RebalanceBufferTicks: 20})
	require.NoError(t, err)
	v, err := vault.New(vault.Config{
		Owner:             owner,
		Account:           custody,
		VenueAddress:      venueAddr,
		MaxWithdrawFeeBps: 1000,
		Venue:             venue.Client(custody),
		Bank:              bank,
		Planner:           planner,
	})
	require.NoError(t, err)
	return v
}

func newSimEnv(t *testing.T, params types.SimulationParameters) *simEnv {
	t.Helper()
	bank := simulations.NewBank()
	venue := simulations.NewVenue(venueAddr, bank)
	v := newVault(t, venue, bank)
	markets, err := Setup(context.Background(), venue, bank, v, params)
	require.NoError(t, err)
	return &simEnv{bank: bank, venue: venue, vault: v, markets: markets}
}

func TestSetupFundsAndRegisters(t *testing.T) {
	env := newSimEnv(t, testParams())
	require.Len(t, env.markets, 1)
	assert.Equal(t, types.NewMarketID("ubase", "uquote", 30), env.markets[0])

	_, err := env.vault.Market(env.markets[0])
	assert.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), env.bank.BalanceOf(TraderAddress, "uquote").Int64())
	for _, d := range Depositors(2) {
		assert.Equal(t, int64(1_000_000_000), env.bank.BalanceOf(d, "ubase").Int64())
	}
}

func TestDepositorsAreDistinct(t *testing.T) {
	ds := Depositors(3)
	require.Len(t, ds, 3)
	assert.NotEqual(t, ds[0], ds[1])
	assert.NotEqual(t, ds[1], ds[2])
	assert.Len(t, ds[0].Bytes(), 20)
}

func TestNewValidatesConfig(t *testing.T) {
	env := newSimEnv(t, testParams())
	cases := map[string]func(*Config){
		"nil venue":       func(c *Config) { c.Venue = nil },
		"nil vault":       func(c *Config) { c.Vault = nil },
		"no markets":      func(c *Config) { c.Markets = nil },
		"no trade amount": func(c *Config) { c.Params.MaxTradeAmount = 0 },
		"tiny deposits":   func(c *Config) { c.Params.MaxDepositAmount = 1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Config{Venue: env.venue, Vault: env.vault, Markets: env.markets, Params: testParams()}
			mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestRunCycleBootstrapsAndTrades(t *testing.T) {
	env := newSimEnv(t, testParams())
	d, err := New(Config{Venue: env.venue, Vault: env.vault, Markets: env.markets, Params: testParams()})
	require.NoError(t, err)
	ctx := context.Background()

	first := d.RunCycle(ctx)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "deposit_initial", first.Liquidity)
	assert.Equal(t, 3, first.Trades)
	assert.Zero(t, first.FailedTrades)

	placed, err := env.vault.PlacedPositions(env.markets[0])
	require.NoError(t, err)
	assert.Len(t, placed, 1)

	for i := 0; i < 20; i++ {
		report := d.RunCycle(ctx)
		assert.Equal(t, i+2, report.Number)
		assert.NotEqual(t, "deposit_initial", report.Liquidity)
	}

	summary, err := env.vault.Market(env.markets[0])
	require.NoError(t, err)
	assert.True(t, summary.TotalShares.IsPositive())
	owed := summary.Reserves.Base.Add(env.vault.WithdrawFees("ubase"))
	assert.True(t, env.bank.BalanceOf(custody, "ubase").GTE(owed))
	assert.True(t, types.EqualPositions(env.venue.Positions(custody, env.markets[0]), mustPlaced(t, env)))
}

func mustPlaced(t *testing.T, env *simEnv) []types.Position {
	t.Helper()
	placed, err := env.vault.PlacedPositions(env.markets[0])
	require.NoError(t, err)
	return placed
}

type failingCounter struct{}

func (failingCounter) Next(context.Context) (int, error) { return 0, errors.New("db down") }

func TestRunCycleSurvivesCounterFailure(t *testing.T) {
	env := newSimEnv(t, testParams())
	d, err := New(Config{Venue: env.venue, Vault: env.vault, Markets: env.markets, Params: testParams(), Counter: failingCounter{}})
	require.NoError(t, err)

	report := d.RunCycle(context.Background())
	assert.Zero(t, report.Number)
	assert.Equal(t, 3, report.Trades)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	env := newSimEnv(t, testParams())
	d, err := New(Config{Venue: env.venue, Vault: env.vault, Markets: env.markets, Params: testParams()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		d.RunLoop(ctx, time.Hour)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunLoop did not return after cancellation")
	}
}

func TestReseedFoldsPlacedPrincipal(t *testing.T) {
	id := types.NewMarketID("ubase", "uquote", 30)
	state := types.VaultState{
		Global: types.GlobalState{
			Owner:        owner.String(),
			WithdrawFees: map[string]sdkmath.Int{"ubase": sdkmath.NewInt(5), "uquote": sdkmath.ZeroInt()},
		},
		Markets: []types.MarketState{{
			ID:          id,
			BaseAsset:   "ubase",
			QuoteAsset:  "uquote",
			TotalShares: sdkmath.NewInt(1414),
			Reserves:    types.NewAmounts(993, 1986),
			Shares:      map[string]sdkmath.Int{owner.String(): sdkmath.NewInt(1414)},
			Placed: []types.PlacedPosition{{
				Position:  types.NewPosition(-100, 100, sdkmath.NewInt(1414)),
				Principal: types.NewAmounts(7, 14),
			}},
		}},
	}

	bank := simulations.NewBank()
	out, err := Reseed(state, bank, custody)
	require.NoError(t, err)
	require.Len(t, out.Markets, 1)
	assert.Empty(t, out.Markets[0].Placed)
	assert.True(t, out.Markets[0].Reserves.Equal(types.NewAmounts(1000, 2000)))
	assert.Equal(t, int64(1005), bank.BalanceOf(custody, "ubase").Int64())
	assert.Equal(t, int64(2000), bank.BalanceOf(custody, "uquote").Int64())
	// the input is left untouched
	assert.Len(t, state.Markets[0].Placed, 1)

	venue := simulations.NewVenue(venueAddr, bank)
	v := newVault(t, venue, bank)
	require.NoError(t, v.Restore(out))
	markets, err := Setup(context.Background(), venue, bank, v, testParams())
	require.NoError(t, err)
	assert.Equal(t, []types.MarketID{id}, markets)
	total, err := v.TotalShares(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1414), total.Int64())
}
