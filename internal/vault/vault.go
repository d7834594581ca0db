/*

Vault controller.

The vault mediates every user-facing call: it authenticates the caller, applies the ledger and
position store effects, and only then talks to the bank or the venue. Each state-changing call runs
inside a transaction (see txn.go) so a failing transfer or venue call leaves no trace, and inside a
call guard so a collaborator calling back into the vault mid-call is rejected.

*/

package vault

import (
	"context"
	"sync"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/ammvault/internal/events"
	"github.com/elys-network/ammvault/internal/fee"
	"github.com/elys-network/ammvault/internal/ledger"
	"github.com/elys-network/ammvault/internal/logger"
	"github.com/elys-network/ammvault/internal/metrics"
	"github.com/elys-network/ammvault/internal/positions"
	"github.com/elys-network/ammvault/internal/strategy"
	"github.com/elys-network/ammvault/internal/types"
)

var vaultLogger = logger.GetForComponent("vault")

// Config wires a Vault to its collaborators.
type Config struct {
	Owner        sdk.AccAddress // initial owner
	Account      sdk.AccAddress // custody account holding reserves and accrued fees
	VenueAddress sdk.AccAddress // the only caller allowed to run the update hook

	MaxWithdrawFeeBps uint32

	Venue Venue
	Bank  Bank

	Pricer  strategy.Pricer  // defaults to strategy.Proportional
	Planner strategy.Planner // required

	Emitter   events.Emitter   // optional
	Persister Persister        // optional
	Metrics   *metrics.Metrics // optional
}

// Vault is the pooled-liquidity controller.
type Vault struct {
	guard sync.Mutex

	ownerMu sync.RWMutex
	owner   sdk.AccAddress

	account      sdk.AccAddress
	venueAddress sdk.AccAddress
	maxFeeBps    uint32

	ledger  *ledger.Ledger
	store   *positions.Store
	planner strategy.Planner

	venue     Venue
	bank      Bank
	emitter   events.Emitter
	persister Persister
	metrics   *metrics.Metrics
}

// New validates cfg and returns a vault with no markets.
func New(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	vaultLogger.Info().
		Str("owner", cfg.Owner.String()).
		Str("account", cfg.Account.String()).
		Str("venue", cfg.VenueAddress.String()).
		Uint32("max_withdraw_fee_bps", cfg.MaxWithdrawFeeBps).
		Msg("Vault created")

	return &Vault{
		owner:        cfg.Owner,
		account:      cfg.Account,
		venueAddress: cfg.VenueAddress,
		maxFeeBps:    cfg.MaxWithdrawFeeBps,
		ledger:       ledger.New(cfg.Pricer),
		store:        positions.NewStore(),
		planner:      cfg.Planner,
		venue:        cfg.Venue,
		bank:         cfg.Bank,
		emitter:      cfg.Emitter,
		persister:    cfg.Persister,
		metrics:      cfg.Metrics,
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Owner.Empty() {
		return types.ErrInvalidConfig.Wrap("owner is empty")
	}
	if cfg.Account.Empty() {
		return types.ErrInvalidConfig.Wrap("vault account is empty")
	}
	if cfg.VenueAddress.Empty() {
		return types.ErrInvalidConfig.Wrap("venue address is empty")
	}
	if cfg.Account.Equals(cfg.VenueAddress) {
		return types.ErrInvalidConfig.Wrap("vault account and venue address must differ")
	}
	if cfg.MaxWithdrawFeeBps > fee.MaxRateBps {
		return types.ErrInvalidConfig.Wrapf("max withdraw fee %d bps above %d bps", cfg.MaxWithdrawFeeBps, fee.MaxRateBps)
	}
	if cfg.Venue == nil {
		return types.ErrInvalidConfig.Wrap("venue is nil")
	}
	if cfg.Bank == nil {
		return types.ErrInvalidConfig.Wrap("bank is nil")
	}
	if cfg.Planner == nil {
		return types.ErrInvalidConfig.Wrap("planner is nil")
	}
	return nil
}

// Account returns the custody account.
func (v *Vault) Account() sdk.AccAddress {
	return v.account
}

// VenueAddress returns the registered market manager.
func (v *Vault) VenueAddress() sdk.AccAddress {
	return v.venueAddress
}

type callKey struct{}

// enter takes the call guard and returns ctx marked as inside a call of v. Collaborators get the
// marked context, so a call arriving with it is a re-entry. The guard never blocks.
func (v *Vault) enter(ctx context.Context, op string) (context.Context, func(), error) {
	if inside, _ := ctx.Value(callKey{}).(*Vault); inside == v {
		vaultLogger.Warn().Str("op", op).Msg("Rejected re-entrant call")
		return ctx, nil, types.ErrReentrantCall.Wrapf("%s", op)
	}
	if !v.guard.TryLock() {
		vaultLogger.Debug().Str("op", op).Msg("Rejected call while another call is in flight")
		return ctx, nil, types.ErrCallInFlight.Wrapf("%s", op)
	}
	return context.WithValue(ctx, callKey{}, v), v.guard.Unlock, nil
}

func (v *Vault) onlyOwner(caller sdk.AccAddress) error {
	v.ownerMu.RLock()
	defer v.ownerMu.RUnlock()
	if !caller.Equals(v.owner) {
		return types.ErrOnlyOwner
	}
	return nil
}

func (v *Vault) emit(ctx context.Context, ev events.Event) {
	v.metrics.EventEmitted(string(ev.Type))
	if v.emitter == nil {
		return
	}
	if err := v.emitter.Emit(ctx, ev); err != nil {
		vaultLogger.Warn().Err(err).Str("event", string(ev.Type)).Stringer("id", ev.ID).Msg("Failed to deliver event")
	}
}

func (v *Vault) persistMarket(ctx context.Context, id types.MarketID) {
	state, err := v.exportMarket(id)
	if err != nil {
		vaultLogger.Error().Err(err).Stringer("market", id).Msg("Failed to export market state")
		return
	}
	v.metrics.SetMarket(state)
	if v.persister == nil {
		return
	}
	if err := v.persister.SaveMarketState(ctx, state); err != nil {
		v.metrics.PersistFailure()
		vaultLogger.Error().Err(err).Stringer("market", id).Msg("Failed to persist market state")
	}
}

func (v *Vault) persistGlobal(ctx context.Context) {
	if v.persister == nil {
		return
	}
	if err := v.persister.SaveGlobalState(ctx, v.exportGlobal()); err != nil {
		v.metrics.PersistFailure()
		vaultLogger.Error().Err(err).Msg("Failed to persist global state")
	}
}
