package vault

import (
	"context"
	"errors"
	"sync"
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/ammvault/internal/curve"
	"github.com/elys-network/ammvault/internal/events"
	"github.com/elys-network/ammvault/internal/metrics"
	"github.com/elys-network/ammvault/internal/simulations"
	"github.com/elys-network/ammvault/internal/strategy"
	"github.com/elys-network/ammvault/internal/types"
)

var (
	owner     = sdk.AccAddress([]byte("owner_______________"))
	custody   = sdk.AccAddress([]byte("vault_______________"))
	venueAddr = sdk.AccAddress([]byte("venue_______________"))
	alice     = sdk.AccAddress([]byte("alice_______________"))
	bob       = sdk.AccAddress([]byte("bob_________________"))

	testMarket = types.NewMarketID("ubase", "uquote", 30)
)

// mockVenue expects MarketInfo, PlacePosition and WithdrawPosition calls. PositionValue is not an
// expectation: it answers with what the last successful placement consumed, unless a test overrides it.
type mockVenue struct {
	mock.Mock

	mu       sync.Mutex
	values   map[string]types.Amounts
	valueErr error
}

func (m *mockVenue) setValue(pos types.Position, value types.Amounts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]types.Amounts)
	}
	m.values[pos.String()] = value
}

func (m *mockVenue) PositionValue(_ context.Context, _ types.MarketID, pos types.Position) (types.Amounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valueErr != nil {
		return types.Amounts{}, m.valueErr
	}
	value, ok := m.values[pos.String()]
	if !ok {
		return types.Amounts{}, errors.New("position not found")
	}
	return value, nil
}

func (m *mockVenue) MarketInfo(ctx context.Context, id types.MarketID) (types.MarketInfo, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.MarketInfo), args.Error(1)
}

func (m *mockVenue) PlacePosition(ctx context.Context, id types.MarketID, pos types.Position) (types.Amounts, error) {
	args := m.Called(ctx, id, pos)
	used, err := args.Get(0).(types.Amounts), args.Error(1)
	if err == nil {
		m.setValue(pos, used)
	}
	return used, err
}

func (m *mockVenue) WithdrawPosition(ctx context.Context, id types.MarketID, pos types.Position) (types.Amounts, error) {
	args := m.Called(ctx, id, pos)
	out, err := args.Get(0).(types.Amounts), args.Error(1)
	if err == nil {
		m.mu.Lock()
		delete(m.values, pos.String())
		m.mu.Unlock()
	}
	return out, err
}

func marketInfo(tick int32) types.MarketInfo {
	return types.MarketInfo{ID: testMarket, BaseAsset: "ubase", QuoteAsset: "uquote", Tick: tick, TickSpacing: 10, FeeTierBps: 30}
}

// sized is the position in [lower, upper] the planner funds from assets at tick.
func sized(lower, upper, tick int32, assets types.Amounts) types.Position {
	return types.NewPosition(lower, upper, curve.LiquidityForAmounts(assets, lower, upper, curve.SqrtPriceAtTick(tick)))
}

type memPersister struct {
	mu      sync.Mutex
	markets []types.MarketState
	globals []types.GlobalState
	err     error
}

func (p *memPersister) SaveMarketState(_ context.Context, s types.MarketState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.markets = append(p.markets, s)
	return nil
}

func (p *memPersister) SaveGlobalState(_ context.Context, s types.GlobalState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.globals = append(p.globals, s)
	return nil
}

type fixture struct {
	vault     *Vault
	venue     Venue
	bank      *simulations.Bank
	recorder  *events.Recorder
	persister *memPersister
}

func testPlanner(t *testing.T) strategy.Planner {
	t.Helper()
	planner, err := strategy.NewCenteredRange(strategy.RangeParams{HalfWidthTicks: 100, RebalanceBufferTicks: 20, ResizeToleranceBps: 100})
	require.NoError(t, err)
	return planner
}

func newFixture(t *testing.T, venue Venue) *fixture {
	t.Helper()
	f := &fixture{
		venue:     venue,
		bank:      simulations.NewBank(),
		recorder:  events.NewRecorder(0),
		persister: &memPersister{},
	}
	v, err := New(Config{
		Owner:             owner,
		Account:           custody,
		VenueAddress:      venueAddr,
		MaxWithdrawFeeBps: 1000,
		Venue:             venue,
		Bank:              f.bank,
		Planner:           testPlanner(t),
		Emitter:           f.recorder,
		Persister:         f.persister,
		Metrics:           metrics.New(),
	})
	require.NoError(t, err)
	f.vault = v

	funds := sdk.NewCoins(sdk.NewInt64Coin("ubase", 1_000_000), sdk.NewInt64Coin("uquote", 1_000_000))
	require.NoError(t, f.bank.Mint(alice, funds))
	require.NoError(t, f.bank.Mint(bob, funds))
	return f
}

// newMockFixture registers testMarket against a mock venue reporting tick 0.
func newMockFixture(t *testing.T) (*fixture, *mockVenue) {
	t.Helper()
	venue := &mockVenue{}
	venue.On("MarketInfo", mock.Anything, testMarket).Return(marketInfo(0), nil).Once()
	f := newFixture(t, venue)
	require.NoError(t, f.vault.AddMarket(context.Background(), owner, testMarket))
	return f, venue
}

// bootstrapped adds 1000/2000 from alice, minting 1414 shares.
func bootstrapped(t *testing.T) (*fixture, *mockVenue) {
	t.Helper()
	f, venue := newMockFixture(t)
	_, err := f.vault.DepositInitial(context.Background(), alice, testMarket, types.NewAmounts(1000, 2000))
	require.NoError(t, err)
	return f, venue
}
