package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/elys-network/ammvault/internal/ledger"
	"github.com/elys-network/ammvault/internal/positions"
	"github.com/elys-network/ammvault/internal/types"
)

type snapshot struct {
	ledger ledger.Checkpoint
	store  positions.Checkpoint
}

// savepoint is the state right after a venue step, with the call that reverses that step.
type savepoint struct {
	name  string
	state snapshot
	undo  func(ctx context.Context) error
}

// txn tracks the rollback information of one state-changing call on a market.
type txn struct {
	v      *Vault
	market types.MarketID
	start  snapshot
	steps  []savepoint
}

func (v *Vault) begin(market types.MarketID) *txn {
	return &txn{v: v, market: market, start: v.snapshot(market)}
}

func (v *Vault) snapshot(market types.MarketID) snapshot {
	return snapshot{ledger: v.ledger.Checkpoint(market), store: v.store.Checkpoint(market)}
}

func (v *Vault) restore(s snapshot) {
	v.ledger.Revert(s.ledger)
	v.store.Revert(s.store)
}

// step records a venue call that succeeded, after its bookkeeping has been applied.
func (t *txn) step(name string, undo func(ctx context.Context) error) {
	t.steps = append(t.steps, savepoint{name: name, state: t.v.snapshot(t.market), undo: undo})
}

// rollback reverses the venue steps newest first, then restores the starting state. When a reversal
// fails the state is restored to the savepoint of the step that is still live at the venue, so the
// recorded positions keep matching the venue, and the failure is joined to cause.
func (t *txn) rollback(ctx context.Context, cause error) error {
	for i := len(t.steps) - 1; i >= 0; i-- {
		sp := t.steps[i]
		if err := sp.undo(ctx); err != nil {
			t.v.restore(sp.state)
			t.v.metrics.Rollback(false)
			vaultLogger.Error().
				Err(err).
				AnErr("cause", cause).
				Stringer("market", t.market).
				Str("step", sp.name).
				Msg("Venue compensation failed, state kept at last consistent savepoint")
			return errors.Join(cause, types.ErrVenueFailure.Wrapf("undo %s: %s", sp.name, err))
		}
	}
	t.v.restore(t.start)
	t.v.metrics.Rollback(true)
	if len(t.steps) > 0 {
		vaultLogger.Warn().Err(cause).Stringer("market", t.market).Int("steps", len(t.steps)).Msg("Call rolled back")
	}
	return cause
}

func venueError(op string, err error) error {
	return errors.Join(types.ErrVenueFailure, fmt.Errorf("%s: %w", op, err))
}

func transferError(err error) error {
	return errors.Join(types.ErrTransferFailed, err)
}

// deployed returns what the placed positions of market would pay out if they were withdrawn now.
func (v *Vault) deployed(ctx context.Context, market types.MarketID) (types.Amounts, error) {
	placed, err := v.store.Placed(market)
	if err != nil {
		return types.Amounts{}, err
	}
	total := types.ZeroAmounts()
	for _, pos := range placed {
		v.metrics.VenueCall("value")
		out, err := v.venue.PositionValue(ctx, market, pos)
		if err != nil {
			return types.Amounts{}, venueError("position value "+pos.String(), err)
		}
		out = out.Normalize()
		if out.IsAnyNegative() {
			return types.Amounts{}, types.ErrVenueFailure.Wrapf("position %s valued at %s", pos, out)
		}
		total = total.Add(out)
	}
	return total, nil
}

// withdrawAll removes every placed position from the venue and credits the payout to the reserves.
func (t *txn) withdrawAll(ctx context.Context) error {
	v, id := t.v, t.market
	entries, err := v.store.Entries(id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		pos := e.Position
		if _, err := v.store.Remove(id, pos); err != nil {
			return err
		}
		v.metrics.VenueCall("withdraw")
		out, err := v.venue.WithdrawPosition(ctx, id, pos)
		if err != nil {
			return venueError("withdraw position "+pos.String(), err)
		}
		undo := func(ctx context.Context) error {
			v.metrics.VenueCall("place")
			_, err := v.venue.PlacePosition(ctx, id, pos)
			return err
		}
		if err := v.ledger.CreditReserves(id, out); err != nil {
			t.step("withdraw "+pos.String(), undo)
			return err
		}
		t.step("withdraw "+pos.String(), undo)

		vaultLogger.Debug().Stringer("market", id).Stringer("position", pos).Stringer("out", out).Msg("Position withdrawn")
	}
	return nil
}

// placeAll places every queued position with liquidity and records it with the principal it consumed.
func (t *txn) placeAll(ctx context.Context, queue []types.Position) error {
	v, id := t.v, t.market
	for _, pos := range queue {
		if pos.IsZero() {
			continue
		}
		if err := pos.Validate(); err != nil {
			return types.ErrInvalidState.Wrapf("queued position %s: %s", pos, err)
		}
		v.metrics.VenueCall("place")
		used, err := v.venue.PlacePosition(ctx, id, pos)
		if err != nil {
			return venueError("place position "+pos.String(), err)
		}
		undo := func(ctx context.Context) error {
			v.metrics.VenueCall("withdraw")
			_, err := v.venue.WithdrawPosition(ctx, id, pos)
			return err
		}
		if err := v.store.Record(id, pos, used); err != nil {
			t.step("place "+pos.String(), undo)
			return err
		}
		if err := v.ledger.DebitReserves(id, used); err != nil {
			t.step("place "+pos.String(), undo)
			return err
		}
		t.step("place "+pos.String(), undo)

		vaultLogger.Debug().Stringer("market", id).Stringer("position", pos).Stringer("used", used).Msg("Position placed")
	}
	return nil
}
