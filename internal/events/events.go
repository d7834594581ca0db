/*

Vault notifications.

Every committed state change produces one Event. Events are delivered to an Emitter after the call
has committed; delivery failures are logged by the vault and never undo the call.

*/

package events

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elys-network/ammvault/internal/types"
)

// Type names the state change an event reports.
type Type string

const (
	TypeMarketAdded      Type = "market_added"
	TypeDeposit          Type = "deposit"
	TypeWithdraw         Type = "withdraw"
	TypePositionsUpdated Type = "positions_updated"
	TypeWithdrawFeeSet   Type = "withdraw_fee_set"
	TypeFeesCollected    Type = "withdraw_fees_collected"
	TypeOwnerTransferred Type = "owner_transferred"
)

// Event is a structured notification carrying the identifiers and amounts of one state change.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       Type              `json:"type"`
	Market     string            `json:"market,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  time.Time         `json:"timestamp"`
}

// New builds an event. Pass the zero MarketID for vault-wide events. kv is a flat key/value list; a
// trailing key without a value is dropped.
func New(typ Type, market types.MarketID, kv ...string) Event {
	ev := Event{
		ID:         uuid.New(),
		Type:       typ,
		Attributes: make(map[string]string, len(kv)/2),
		Timestamp:  time.Now().UTC(),
	}
	if !market.IsZero() {
		ev.Market = market.String()
	}
	for i := 0; i+1 < len(kv); i += 2 {
		ev.Attributes[kv[i]] = kv[i+1]
	}
	return ev
}

// Keys returns the attribute keys in sorted order.
func (e Event) Keys() []string {
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Emitter delivers events.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev Event) error

func (f EmitterFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Multi delivers each event to every emitter, in order, and joins their errors.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// History reads back delivered events.
type History interface {
	// History returns up to limit of the newest events, oldest first.
	History(ctx context.Context, limit int) ([]Event, error)
}

// Recorder keeps the most recent events in memory.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	events []Event
}

// DefaultRecorderLimit bounds a Recorder created with a non-positive limit.
const DefaultRecorderLimit = 1000

// NewRecorder returns a recorder keeping at most limit events.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultRecorderLimit
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
	if over := len(r.events) - r.limit; over > 0 {
		r.events = append([]Event(nil), r.events[over:]...)
	}
	return nil
}

// Events returns every recorded event, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.events...)
}

// Recent returns up to n of the newest events, oldest first.
func (r *Recorder) Recent(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.events) {
		n = len(r.events)
	}
	return append([]Event(nil), r.events[len(r.events)-n:]...)
}

func (r *Recorder) History(_ context.Context, limit int) ([]Event, error) {
	return r.Recent(limit), nil
}

// OfType returns the recorded events of one type, oldest first.
func (r *Recorder) OfType(typ Type) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
