/*

Position store.

Per market the store keeps the ordered list of positions the vault holds at the venue, each with the
principal it consumed when placed. An empty list is the Empty state. Only the vault's update path
writes to it; queries get copies.

*/

package positions

import (
	"sync"

	"github.com/elys-network/ammvault/internal/types"
)

// Store records placed positions per market. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	markets map[types.MarketID][]types.PlacedPosition
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{markets: make(map[types.MarketID][]types.PlacedPosition)}
}

// Init creates an Empty entry for id.
func (s *Store) Init(id types.MarketID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[id]; ok {
		return types.ErrMarketExists
	}
	s.markets[id] = []types.PlacedPosition{}
	return nil
}

// Placed returns the positions held for id, in placement order. Empty markets return an empty slice.
func (s *Store) Placed(id types.MarketID) ([]types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	placed, ok := s.markets[id]
	if !ok {
		return nil, types.ErrUnknownMarket.Wrapf("market %s", id)
	}
	out := make([]types.Position, len(placed))
	for i, p := range placed {
		out[i] = p.Position
	}
	return out, nil
}

// Entries returns the placed positions of id together with their principal.
func (s *Store) Entries(id types.MarketID) ([]types.PlacedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	placed, ok := s.markets[id]
	if !ok {
		return nil, types.ErrUnknownMarket.Wrapf("market %s", id)
	}
	return append([]types.PlacedPosition{}, placed...), nil
}

// Committed sums the principal of every position placed for id.
func (s *Store) Committed(id types.MarketID) (types.Amounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	placed, ok := s.markets[id]
	if !ok {
		return types.ZeroAmounts(), types.ErrUnknownMarket.Wrapf("market %s", id)
	}
	total := types.ZeroAmounts()
	for _, p := range placed {
		total = total.Add(p.Principal)
	}
	return total, nil
}

// Record appends a newly placed position.
func (s *Store) Record(id types.MarketID, pos types.Position, principal types.Amounts) error {
	if err := pos.Validate(); err != nil {
		return types.ErrInvalidState.Wrapf("record position: %s", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placed, ok := s.markets[id]
	if !ok {
		return types.ErrUnknownMarket.Wrapf("market %s", id)
	}
	s.markets[id] = append(placed, types.PlacedPosition{Position: pos, Principal: principal.Normalize()})
	return nil
}

// Remove drops the first recorded position equal to pos and returns its principal.
func (s *Store) Remove(id types.MarketID, pos types.Position) (types.Amounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	placed, ok := s.markets[id]
	if !ok {
		return types.ZeroAmounts(), types.ErrUnknownMarket.Wrapf("market %s", id)
	}
	for i, p := range placed {
		if p.Position.Equal(pos) {
			rest := make([]types.PlacedPosition, 0, len(placed)-1)
			rest = append(rest, placed[:i]...)
			rest = append(rest, placed[i+1:]...)
			s.markets[id] = rest
			return p.Principal, nil
		}
	}
	return types.ZeroAmounts(), types.ErrInvalidState.Wrapf("position %s not placed in market %s", pos, id)
}

// Checkpoint is a copy of one market's entry.
type Checkpoint struct {
	id      types.MarketID
	placed  []types.PlacedPosition
	existed bool
}

// Checkpoint copies the entry of id.
func (s *Store) Checkpoint(id types.MarketID) Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	placed, ok := s.markets[id]
	return Checkpoint{id: id, placed: append([]types.PlacedPosition{}, placed...), existed: ok}
}

// Revert restores the entry captured by cp.
func (s *Store) Revert(cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !cp.existed {
		delete(s.markets, cp.id)
		return
	}
	s.markets[cp.id] = append([]types.PlacedPosition{}, cp.placed...)
}

// Import replaces the entry of id, creating it when missing.
func (s *Store) Import(id types.MarketID, placed []types.PlacedPosition) error {
	for _, p := range placed {
		if err := p.Position.Validate(); err != nil {
			return types.ErrInvalidState.Wrapf("import market %s: %s", id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[id] = append([]types.PlacedPosition{}, placed...)
	return nil
}
