/*

Persistent cycle counter of the trade driver. The counter lives in a single-row table so cycle
numbers keep increasing across restarts.

*/

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// CycleCounter hands out driver cycle numbers from the cycle_counter table.
type CycleCounter struct {
	db *sql.DB
}

// NewCycleCounter returns a counter backed by db. EnsureSchema must have run.
func NewCycleCounter(db *sql.DB) *CycleCounter {
	return &CycleCounter{db: db}
}

// Current returns the last cycle number handed out.
func (c *CycleCounter) Current(ctx context.Context) (int, error) {
	if c.db == nil {
		return 0, ErrNotInitialized
	}

	var current int
	err := c.db.QueryRowContext(ctx, `SELECT current_cycle FROM cycle_counter WHERE id = 1;`).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn().Msg("No cycle counter row found, treating as 0")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current cycle number: %w", err)
	}
	return current, nil
}

// Next increments the counter and returns the new value.
func (c *CycleCounter) Next(ctx context.Context) (int, error) {
	if c.db == nil {
		return 0, ErrNotInitialized
	}

	var next int
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO cycle_counter (id, current_cycle, updated_at)
		VALUES (1, 1, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			current_cycle = cycle_counter.current_cycle + 1,
			updated_at = CURRENT_TIMESTAMP
		RETURNING current_cycle;
	`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to increment cycle number: %w", err)
	}
	log.Debug().Int("cycle", next).Msg("Incremented cycle counter")
	return next, nil
}
