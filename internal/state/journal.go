package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/elys-network/ammvault/internal/events"
)

// DefaultJournalLimit caps History when the caller passes a non-positive limit.
const DefaultJournalLimit = 100

// EventJournal appends vault events to the vault_events table.
type EventJournal struct {
	db *sql.DB
}

// NewEventJournal returns a journal backed by db.
func NewEventJournal(db *sql.DB) *EventJournal {
	return &EventJournal{db: db}
}

// Emit stores ev. Replaying an event with a known id is a no-op.
func (j *EventJournal) Emit(ctx context.Context, ev events.Event) error {
	if j.db == nil {
		return ErrNotInitialized
	}
	attrs, err := json.Marshal(ev.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal event attributes: %w", err)
	}
	market := sql.NullString{String: ev.Market, Valid: ev.Market != ""}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO vault_events (event_id, event_type, market_id, attributes, emitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING;
	`, ev.ID.String(), string(ev.Type), market, attrs, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to journal %s event: %w", ev.Type, err)
	}
	return nil
}

// History returns up to limit of the newest events, oldest first.
func (j *EventJournal) History(ctx context.Context, limit int) ([]events.Event, error) {
	if j.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = DefaultJournalLimit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT event_id, event_type, market_id, attributes, emitted_at
		FROM (
			SELECT * FROM vault_events ORDER BY emitted_at DESC LIMIT $1
		) recent
		ORDER BY emitted_at ASC;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			ev     events.Event
			typ    string
			market sql.NullString
			attrs  []byte
		)
		if err := rows.Scan(&ev.ID, &typ, &market, &attrs, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Type = events.Type(typ)
		ev.Market = market.String
		if err := json.Unmarshal(attrs, &ev.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes of %s: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
