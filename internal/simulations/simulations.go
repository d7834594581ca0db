/*

Simulated concentrated-liquidity venue.

The venue owns the market descriptors and the price, holds liquidity positions per owner, and runs
every registered hook synchronously before it executes a swap. A failing hook aborts the swap.

Swaps use the liquidity of the positions containing the current tick and may not move the price out
of their common range; a larger swap is rejected. Swap fees are credited to those positions pro rata
to liquidity and paid out when a position is withdrawn.

*/

package simulations

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/shopspring/decimal"

	"github.com/elys-network/ammvault/internal/curve"
	"github.com/elys-network/ammvault/internal/fee"
	"github.com/elys-network/ammvault/internal/logger"
	"github.com/elys-network/ammvault/internal/types"
)

var venueLogger = logger.GetForComponent("sim_venue")

// Operations accepted by FailNext.
const (
	OpMarketInfo = "market_info"
	OpPlace      = "place"
	OpWithdraw   = "withdraw"
	OpValue      = "position_value"
)

var (
	ErrUnknownMarket         = errors.New("unknown market")
	ErrMarketExists          = errors.New("market already exists")
	ErrPositionNotFound      = errors.New("position not found")
	ErrInvalidPosition       = errors.New("invalid position")
	ErrNoLiquidity           = errors.New("no liquidity at the current tick")
	ErrInsufficientLiquidity = errors.New("swap exceeds the liquidity in range")
	ErrInvalidSwap           = errors.New("invalid swap")
)

// Hook is called by the venue before each swap on a market.
type Hook interface {
	UpdatePositions(ctx context.Context, caller sdk.AccAddress, market types.MarketID, trade types.TradeParams) error
}

type position struct {
	owner     string
	pos       types.Position
	feesBase  sdkmath.Int
	feesQuote sdkmath.Int
}

type market struct {
	info      types.MarketInfo
	sqrtPrice decimal.Decimal
	positions []*position
}

// Venue is the in-process market manager.
type Venue struct {
	mu       sync.Mutex
	address  sdk.AccAddress
	bank     *Bank
	markets  map[types.MarketID]*market
	hooks    map[types.MarketID][]Hook
	failures map[string]error
}

// NewVenue returns a venue whose account is address. Positions and swaps settle through bank.
func NewVenue(address sdk.AccAddress, bank *Bank) *Venue {
	return &Venue{
		address:  address,
		bank:     bank,
		markets:  make(map[types.MarketID]*market),
		hooks:    make(map[types.MarketID][]Hook),
		failures: make(map[string]error),
	}
}

// Address is the account the venue calls hooks from and settles through.
func (v *Venue) Address() sdk.AccAddress {
	return v.address
}

// CreateMarket lists a new pair. The id is derived from the assets and the fee tier.
func (v *Venue) CreateMarket(base, quote string, feeTierBps uint32, tickSpacing, tick int32) (types.MarketID, error) {
	if err := sdk.ValidateDenom(base); err != nil {
		return types.MarketID{}, err
	}
	if err := sdk.ValidateDenom(quote); err != nil {
		return types.MarketID{}, err
	}
	if tickSpacing <= 0 {
		return types.MarketID{}, fmt.Errorf("tick spacing must be positive, got %d", tickSpacing)
	}
	if tick < types.MinTick || tick > types.MaxTick {
		return types.MarketID{}, fmt.Errorf("tick %d out of range", tick)
	}

	id := types.NewMarketID(base, quote, feeTierBps)
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.markets[id]; ok {
		return types.MarketID{}, ErrMarketExists
	}
	v.markets[id] = &market{
		info: types.MarketInfo{
			ID:          id,
			BaseAsset:   base,
			QuoteAsset:  quote,
			Tick:        tick,
			TickSpacing: tickSpacing,
			FeeTierBps:  feeTierBps,
		},
		sqrtPrice: curve.SqrtPriceAtTick(tick),
	}
	venueLogger.Info().Stringer("market", id).Str("base", base).Str("quote", quote).Int32("tick", tick).Msg("Market created")
	return id, nil
}

// RegisterHook adds a hook run before every swap on id.
func (v *Venue) RegisterHook(id types.MarketID, hook Hook) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.markets[id]; !ok {
		return ErrUnknownMarket
	}
	v.hooks[id] = append(v.hooks[id], hook)
	return nil
}

// FailNext makes the next call of op fail with err.
func (v *Venue) FailNext(op string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures[op] = err
}

func (v *Venue) injected(op string) error {
	if err, ok := v.failures[op]; ok {
		delete(v.failures, op)
		return err
	}
	return nil
}

// SetTick moves the price of a market without trading.
func (v *Venue) SetTick(id types.MarketID, tick int32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.markets[id]
	if !ok {
		return ErrUnknownMarket
	}
	m.info.Tick = tick
	m.sqrtPrice = curve.SqrtPriceAtTick(tick)
	return nil
}

// MarketInfo returns the descriptor of id with the current tick and square-root price.
func (v *Venue) MarketInfo(_ context.Context, id types.MarketID) (types.MarketInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.injected(OpMarketInfo); err != nil {
		return types.MarketInfo{}, err
	}
	m, ok := v.markets[id]
	if !ok {
		return types.MarketInfo{}, ErrUnknownMarket
	}
	info := m.info
	info.SqrtPrice = m.sqrtPrice
	return info, nil
}

// Markets lists every market id.
func (v *Venue) Markets() []types.MarketID {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]types.MarketID, 0, len(v.markets))
	for id := range v.markets {
		ids = append(ids, id)
	}
	return ids
}

// Positions returns the positions owner holds in id.
func (v *Venue) Positions(owner sdk.AccAddress, id types.MarketID) []types.Position {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, ok := v.markets[id]
	if !ok {
		return nil
	}
	var out []types.Position
	for _, p := range m.positions {
		if p.owner == owner.String() {
			out = append(out, p.pos)
		}
	}
	return out
}

// Client returns a view of the venue acting for owner, the shape the vault consumes.
func (v *Venue) Client(owner sdk.AccAddress) *Client {
	return &Client{venue: v, owner: owner}
}

func (v *Venue) place(ctx context.Context, owner sdk.AccAddress, id types.MarketID, pos types.Position) (types.Amounts, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.injected(OpPlace); err != nil {
		return types.Amounts{}, err
	}
	m, ok := v.markets[id]
	if !ok {
		return types.Amounts{}, ErrUnknownMarket
	}
	if err := pos.Validate(); err != nil {
		return types.Amounts{}, errors.Join(ErrInvalidPosition, err)
	}
	spacing := m.info.TickSpacing
	if pos.Lower >= pos.Upper || pos.Lower%spacing != 0 || pos.Upper%spacing != 0 || pos.IsZero() {
		return types.Amounts{}, fmt.Errorf("%w: %s with spacing %d", ErrInvalidPosition, pos, spacing)
	}

	used := curve.AmountsForLiquidity(pos.Liquidity, pos.Lower, pos.Upper, m.sqrtPrice, true)
	if err := v.bank.SendCoins(ctx, owner, v.address, used.Coins(m.info.BaseAsset, m.info.QuoteAsset)); err != nil {
		return types.Amounts{}, err
	}
	m.positions = append(m.positions, &position{
		owner:     owner.String(),
		pos:       pos,
		feesBase:  sdkmath.ZeroInt(),
		feesQuote: sdkmath.ZeroInt(),
	})
	return used, nil
}

// find returns the index of owner's pos in m.
func (m *market) find(owner sdk.AccAddress, pos types.Position) (int, error) {
	for i, p := range m.positions {
		if p.owner == owner.String() && p.pos.Equal(pos) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrPositionNotFound, pos)
}

// payout is what withdrawing p pays at the current price, earned fees included.
func (m *market) payout(p *position) types.Amounts {
	return curve.AmountsForLiquidity(p.pos.Liquidity, p.pos.Lower, p.pos.Upper, m.sqrtPrice, false).
		Add(types.Amounts{Base: p.feesBase, Quote: p.feesQuote})
}

func (v *Venue) value(owner sdk.AccAddress, id types.MarketID, pos types.Position) (types.Amounts, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.injected(OpValue); err != nil {
		return types.Amounts{}, err
	}
	m, ok := v.markets[id]
	if !ok {
		return types.Amounts{}, ErrUnknownMarket
	}
	idx, err := m.find(owner, pos)
	if err != nil {
		return types.Amounts{}, err
	}
	return m.payout(m.positions[idx]), nil
}

func (v *Venue) withdraw(ctx context.Context, owner sdk.AccAddress, id types.MarketID, pos types.Position) (types.Amounts, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.injected(OpWithdraw); err != nil {
		return types.Amounts{}, err
	}
	m, ok := v.markets[id]
	if !ok {
		return types.Amounts{}, ErrUnknownMarket
	}
	idx, err := m.find(owner, pos)
	if err != nil {
		return types.Amounts{}, err
	}

	out := m.payout(m.positions[idx])
	if err := v.bank.SendCoins(ctx, v.address, owner, out.Coins(m.info.BaseAsset, m.info.QuoteAsset)); err != nil {
		return types.Amounts{}, err
	}
	m.positions = append(m.positions[:idx:idx], m.positions[idx+1:]...)
	return out, nil
}

// Swap runs the hooks of id and then trades amountIn of the input asset for the output asset.
func (v *Venue) Swap(ctx context.Context, trader sdk.AccAddress, id types.MarketID, baseForQuote bool, amountIn sdkmath.Int) (sdkmath.Int, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount must be positive", ErrInvalidSwap)
	}

	v.mu.Lock()
	_, ok := v.markets[id]
	hooks := append([]Hook(nil), v.hooks[id]...)
	v.mu.Unlock()
	if !ok {
		return sdkmath.ZeroInt(), ErrUnknownMarket
	}

	trade := types.TradeParams{Trader: trader, BaseForQuote: baseForQuote, Amount: amountIn}
	for _, h := range hooks {
		if err := h.UpdatePositions(ctx, v.address, id, trade); err != nil {
			venueLogger.Warn().Err(err).Stringer("market", id).Msg("Hook failed, swap aborted")
			return sdkmath.ZeroInt(), fmt.Errorf("hook: %w", err)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return v.execute(ctx, v.markets[id], trader, baseForQuote, amountIn)
}

func (v *Venue) execute(ctx context.Context, m *market, trader sdk.AccAddress, baseForQuote bool, amountIn sdkmath.Int) (sdkmath.Int, error) {
	tick := m.info.Tick
	active := sdkmath.ZeroInt()
	lowest, highest := types.MinTick, types.MaxTick
	var inRange []*position
	for _, p := range m.positions {
		if p.pos.Lower <= tick && tick < p.pos.Upper {
			inRange = append(inRange, p)
			active = active.Add(p.pos.Liquidity)
			lowest = max(lowest, p.pos.Lower)
			highest = min(highest, p.pos.Upper)
		}
	}
	if active.IsZero() {
		return sdkmath.ZeroInt(), ErrNoLiquidity
	}

	swapFee := fee.Calc(amountIn, m.info.FeeTierBps)
	next, out := curve.SwapStep(m.sqrtPrice, active, amountIn.Sub(swapFee), baseForQuote)
	nextTick := curve.TickAtSqrtPrice(next)
	if nextTick < lowest || nextTick >= highest || !out.IsPositive() {
		return sdkmath.ZeroInt(), ErrInsufficientLiquidity
	}

	inAsset, outAsset := m.info.QuoteAsset, m.info.BaseAsset
	if baseForQuote {
		inAsset, outAsset = m.info.BaseAsset, m.info.QuoteAsset
	}
	if err := v.bank.SendCoins(ctx, trader, v.address, sdk.NewCoins(sdk.NewCoin(inAsset, amountIn))); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.bank.SendCoins(ctx, v.address, trader, sdk.NewCoins(sdk.NewCoin(outAsset, out))); err != nil {
		if refund := v.bank.SendCoins(ctx, v.address, trader, sdk.NewCoins(sdk.NewCoin(inAsset, amountIn))); refund != nil {
			venueLogger.Error().Err(refund).Msg("Failed to refund swap input")
		}
		return sdkmath.ZeroInt(), err
	}

	for _, p := range inRange {
		share := swapFee.Mul(p.pos.Liquidity).Quo(active)
		if baseForQuote {
			p.feesBase = p.feesBase.Add(share)
		} else {
			p.feesQuote = p.feesQuote.Add(share)
		}
	}
	m.sqrtPrice = next
	m.info.Tick = nextTick

	venueLogger.Debug().
		Stringer("market", m.info.ID).
		Bool("base_for_quote", baseForQuote).
		Stringer("in", amountIn).
		Stringer("out", out).
		Int32("tick", nextTick).
		Msg("Swap executed")
	return out, nil
}

// Client acts on the venue for one owner.
type Client struct {
	venue *Venue
	owner sdk.AccAddress
}

func (c *Client) MarketInfo(ctx context.Context, id types.MarketID) (types.MarketInfo, error) {
	return c.venue.MarketInfo(ctx, id)
}

func (c *Client) PlacePosition(ctx context.Context, id types.MarketID, pos types.Position) (types.Amounts, error) {
	return c.venue.place(ctx, c.owner, id, pos)
}

func (c *Client) WithdrawPosition(ctx context.Context, id types.MarketID, pos types.Position) (types.Amounts, error) {
	return c.venue.withdraw(ctx, c.owner, id, pos)
}

func (c *Client) PositionValue(_ context.Context, id types.MarketID, pos types.Position) (types.Amounts, error) {
	return c.venue.value(c.owner, id, pos)
}
