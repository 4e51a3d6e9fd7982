package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/gabagool/pair-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	fills       []model.Fill
	positions   map[string]model.PositionSummary
	settlements []model.SettledPosition
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]model.PositionSummary),
	}
}

func (s *MemoryStore) InsertFill(_ context.Context, fill *model.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fills = append(s.fills, *fill)
	return nil
}

func (s *MemoryStore) GetFillsByMarket(_ context.Context, marketID string) ([]model.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Fill
	for _, f := range s.fills {
		if f.MarketID == marketID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, sum *model.PositionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[sum.MarketID] = *sum
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, marketID string) (*model.PositionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.positions[marketID]
	if !ok {
		return nil, fmt.Errorf("position %s not found", marketID)
	}
	return &sum, nil
}

func (s *MemoryStore) ListPositions(_ context.Context) ([]model.PositionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PositionSummary, 0, len(s.positions))
	for _, sum := range s.positions {
		out = append(out, sum)
	}
	return out, nil
}

func (s *MemoryStore) DeletePosition(_ context.Context, marketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, marketID)
	return nil
}

func (s *MemoryStore) InsertSettlement(_ context.Context, settled *model.SettledPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settlements = append(s.settlements, *settled)
	return nil
}

func (s *MemoryStore) ListSettlements(_ context.Context) ([]model.SettledPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.SettledPosition, len(s.settlements))
	copy(out, s.settlements)
	return out, nil
}
