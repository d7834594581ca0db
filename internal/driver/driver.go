/*

The trade driver keeps the simulated venue busy. Every cycle it lets one simulated depositor add or
remove liquidity and then submits a handful of pseudo-random trades. Each trade runs the vault's
update hook first, so the vault is continuously repositioned the way it would be on a live venue.

*/

package driver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/ammvault/internal/logger"
	"github.com/elys-network/ammvault/internal/simulations"
	"github.com/elys-network/ammvault/internal/types"
	"github.com/elys-network/ammvault/internal/vault"
)

// Counter hands out cycle numbers.
type Counter interface {
	Next(ctx context.Context) (int, error)
}

type memCounter struct{ n int }

func (c *memCounter) Next(context.Context) (int, error) {
	c.n++
	return c.n, nil
}

// Config holds the dependencies of a Driver.
type Config struct {
	Venue   *simulations.Venue
	Vault   *vault.Vault
	Markets []types.MarketID
	Params  types.SimulationParameters

	// Counter numbers the cycles. Defaults to an in-memory counter.
	Counter Counter
}

// Driver runs simulated depositors and traders against the venue.
type Driver struct {
	logger     zerolog.Logger
	venue      *simulations.Venue
	vault      *vault.Vault
	markets    []types.MarketID
	params     types.SimulationParameters
	counter    Counter
	rng        *rand.Rand
	depositors []sdk.AccAddress
}

// CycleReport summarises one cycle.
type CycleReport struct {
	ID           uuid.UUID
	Number       int
	Trades       int
	FailedTrades int
	Liquidity    string // action taken by the depositor: "deposit_initial", "deposit", "withdraw" or ""
	Duration     time.Duration
}

// New validates cfg and returns a driver.
func New(cfg Config) (*Driver, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("driver configuration validation failed: %w", err)
	}
	counter := cfg.Counter
	if counter == nil {
		counter = &memCounter{}
	}
	d := &Driver{
		logger:     logger.GetForComponent("driver"),
		venue:      cfg.Venue,
		vault:      cfg.Vault,
		markets:    append([]types.MarketID(nil), cfg.Markets...),
		params:     cfg.Params,
		counter:    counter,
		rng:        rand.New(rand.NewSource(cfg.Params.Seed)),
		depositors: Depositors(cfg.Params.Depositors),
	}

	d.logger.Info().
		Int("markets", len(d.markets)).
		Int("depositors", len(d.depositors)).
		Int("trades_per_cycle", d.params.TradesPerCycle).
		Int64("seed", d.params.Seed).
		Msg("Trade driver created")
	return d, nil
}

func validateConfig(cfg Config) error {
	if cfg.Venue == nil {
		return fmt.Errorf("venue cannot be nil")
	}
	if cfg.Vault == nil {
		return fmt.Errorf("vault cannot be nil")
	}
	if len(cfg.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	if cfg.Params.MaxTradeAmount <= 0 {
		return fmt.Errorf("max trade amount must be positive")
	}
	if cfg.Params.TradesPerCycle < 0 {
		return fmt.Errorf("trades per cycle cannot be negative")
	}
	if cfg.Params.Depositors > 0 && cfg.Params.MaxDepositAmount <= 1 {
		return fmt.Errorf("max deposit amount must be greater than 1")
	}
	return nil
}

// RunLoop runs a cycle immediately and then one per interval until ctx is cancelled.
func (d *Driver) RunLoop(ctx context.Context, interval time.Duration) {
	d.logger.Info().
		Dur("interval", interval).
		Msg("Starting trade driver loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Trade driver stopped due to context cancellation")
			return
		case <-ticker.C:
			d.RunCycle(ctx)
		}
	}
}

// RunCycle performs one depositor action and TradesPerCycle trades.
func (d *Driver) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	report := CycleReport{ID: uuid.New()}
	cycleLogger := d.logger.With().Str("cycle_id", report.ID.String()).Logger()

	number, err := d.counter.Next(ctx)
	if err != nil {
		cycleLogger.Warn().Err(err).Msg("Failed to number cycle")
	}
	report.Number = number
	cycleLogger.Info().Int("cycle", number).Msg("--- Starting trade cycle ---")

	if len(d.depositors) > 0 {
		market := d.markets[d.rng.Intn(len(d.markets))]
		action, err := d.moveLiquidity(ctx, market)
		if err != nil {
			cycleLogger.Warn().Err(err).Stringer("market", market).Str("action", action).Msg("Depositor action failed")
		} else {
			report.Liquidity = action
		}
	}

	for i := 0; i < d.params.TradesPerCycle; i++ {
		market := d.markets[d.rng.Intn(len(d.markets))]
		baseForQuote := d.rng.Intn(2) == 0
		amount := sdkmath.NewInt(d.rng.Int63n(d.params.MaxTradeAmount) + 1)

		report.Trades++
		out, err := d.venue.Swap(ctx, TraderAddress, market, baseForQuote, amount)
		if err != nil {
			report.FailedTrades++
			level := cycleLogger.Warn()
			if errors.Is(err, simulations.ErrNoLiquidity) || errors.Is(err, simulations.ErrInsufficientLiquidity) {
				level = cycleLogger.Debug()
			}
			level.Err(err).Stringer("market", market).Bool("base_for_quote", baseForQuote).Stringer("amount", amount).Msg("Trade failed")
			continue
		}
		cycleLogger.Debug().Stringer("market", market).Bool("base_for_quote", baseForQuote).Stringer("in", amount).Stringer("out", out).Msg("Trade executed")
	}

	report.Duration = time.Since(start)
	cycleLogger.Info().
		Int("cycle", number).
		Int("trades", report.Trades).
		Int("failed_trades", report.FailedTrades).
		Str("liquidity", report.Liquidity).
		Dur("duration", report.Duration).
		Msg("--- Trade cycle completed ---")
	return report
}

// moveLiquidity lets one random depositor bootstrap, add to, or withdraw from market.
func (d *Driver) moveLiquidity(ctx context.Context, market types.MarketID) (string, error) {
	depositor := d.depositors[d.rng.Intn(len(d.depositors))]
	amounts := types.Amounts{
		Base:  sdkmath.NewInt(d.rng.Int63n(d.params.MaxDepositAmount/2) + d.params.MaxDepositAmount/2),
		Quote: sdkmath.NewInt(d.rng.Int63n(d.params.MaxDepositAmount/2) + d.params.MaxDepositAmount/2),
	}

	total, err := d.vault.TotalShares(market)
	if err != nil {
		return "", err
	}
	if total.IsZero() {
		_, err := d.vault.DepositInitial(ctx, depositor, market, amounts)
		return "deposit_initial", err
	}

	balance, err := d.vault.UserShares(market, depositor)
	if err != nil {
		return "", err
	}
	// withdraw about a third of the time, never the last share of the market
	if balance.IsPositive() && d.rng.Intn(3) == 0 {
		shares := balance.QuoRaw(int64(d.rng.Intn(4) + 2))
		if shares.IsPositive() && shares.LT(total) {
			_, err := d.vault.Withdraw(ctx, depositor, market, shares)
			return "withdraw", err
		}
	}
	_, err = d.vault.Deposit(ctx, depositor, market, amounts)
	return "deposit", err
}
