/*

Share ledger.

The ledger owns all share accounting: per market it tracks the total share supply, each depositor's
balance, the withdraw fee rate and the reserves the vault holds idle for that market. Accrued withdraw
fees are tracked per asset across markets.

Markets are isolated: every operation reads and writes a single market record, and no record holds a
reference into another one. The ledger never moves assets; the caller performs the transfer after the
ledger call returns and reverts the ledger through a Checkpoint when the transfer fails.

*/

package ledger

import (
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/logger"
	"github.com/elys-network/ammvault/internal/strategy"
	"github.com/elys-network/ammvault/internal/types"
)

var ledgerLogger = logger.GetForComponent("ledger")

type market struct {
	baseAsset   string
	quoteAsset  string
	totalShares sdkmath.Int
	shares      map[string]sdkmath.Int
	feeRate     uint32
	reserves    types.Amounts
}

func (m *market) clone() *market {
	c := *m
	c.shares = make(map[string]sdkmath.Int, len(m.shares))
	for k, v := range m.shares {
		c.shares[k] = v
	}
	return &c
}

// Ledger is the per-market share accounting store. It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	pricer  strategy.Pricer
	markets map[types.MarketID]*market
	fees    map[string]sdkmath.Int // asset -> accrued withdraw fees
}

// New returns an empty ledger pricing shares with pricer. A nil pricer selects strategy.Proportional.
func New(pricer strategy.Pricer) *Ledger {
	if pricer == nil {
		pricer = strategy.Proportional{}
	}
	return &Ledger{
		pricer:  pricer,
		markets: make(map[types.MarketID]*market),
		fees:    make(map[string]sdkmath.Int),
	}
}

// AddMarket creates a zeroed record for id. Adding a market twice fails with ErrMarketExists.
func (l *Ledger) AddMarket(id types.MarketID, baseAsset, quoteAsset string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.markets[id]; ok {
		return types.ErrMarketExists
	}
	l.markets[id] = &market{
		baseAsset:   baseAsset,
		quoteAsset:  quoteAsset,
		totalShares: sdkmath.ZeroInt(),
		shares:      make(map[string]sdkmath.Int),
		reserves:    types.ZeroAmounts(),
	}
	ledgerLogger.Debug().Stringer("market", id).Str("base", baseAsset).Str("quote", quoteAsset).Msg("Market added to ledger")
	return nil
}

// HasMarket reports whether id has been added.
func (l *Ledger) HasMarket(id types.MarketID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.markets[id]
	return ok
}

// Markets returns every market id in byte order.
func (l *Ledger) Markets() []types.MarketID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]types.MarketID, 0, len(l.markets))
	for id := range l.markets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Assets returns the base and quote asset handles of a market.
func (l *Ledger) Assets(id types.MarketID) (string, string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.get(id)
	if err != nil {
		return "", "", err
	}
	return m.baseAsset, m.quoteAsset, nil
}

// UserShares returns the share balance of account in a market. Unknown accounts hold zero.
func (l *Ledger) UserShares(id types.MarketID, account sdk.AccAddress) (sdkmath.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.get(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return m.balance(account.String()), nil
}

// TotalShares returns the share supply of a market.
func (l *Ledger) TotalShares(id types.MarketID) (sdkmath.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.get(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return m.totalShares, nil
}

// Reserves returns the idle amounts held for a market.
func (l *Ledger) Reserves(id types.MarketID) (types.Amounts, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, err := l.get(id)
	if err != nil {
		return types.ZeroAmounts(), err
	}
	return m.reserves, nil
}

// CreditReserves adds amounts returned by the venue to a market's reserves.
func (l *Ledger) CreditReserves(id types.MarketID, amounts types.Amounts) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.get(id)
	if err != nil {
		return err
	}
	amounts = amounts.Normalize()
	if amounts.IsAnyNegative() {
		return types.ErrInvalidAmount.Wrapf("credit %s", amounts)
	}
	m.reserves = m.reserves.Add(amounts)
	return nil
}

// DebitReserves removes amounts handed to the venue from a market's reserves.
func (l *Ledger) DebitReserves(id types.MarketID, amounts types.Amounts) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.get(id)
	if err != nil {
		return err
	}
	amounts = amounts.Normalize()
	if amounts.IsAnyNegative() {
		return types.ErrInvalidAmount.Wrapf("debit %s", amounts)
	}
	if !m.reserves.GTE(amounts) {
		return types.ErrInsuffReserves.Wrapf("reserves %s, debit %s", m.reserves, amounts)
	}
	m.reserves = m.reserves.Sub(amounts)
	return nil
}

func (l *Ledger) get(id types.MarketID) (*market, error) {
	m, ok := l.markets[id]
	if !ok {
		return nil, types.ErrUnknownMarket.Wrapf("market %s", id)
	}
	return m, nil
}

func (m *market) balance(account string) sdkmath.Int {
	if v, ok := m.shares[account]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

func (m *market) assets(deployed types.Amounts) types.Amounts {
	return m.reserves.Add(deployed)
}
