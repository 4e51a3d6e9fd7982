package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gabagool/pair-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for position snapshots. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the
// primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertFill(ctx context.Context, f *model.Fill) error {
	if err := s.primary.InsertFill(ctx, f); err != nil {
		return err
	}
	s.rdb.Del(ctx, fillsKey(f.MarketID))
	return nil
}

func (s *CachedStore) UpsertPosition(ctx context.Context, p *model.PositionSummary) error {
	if err := s.primary.UpsertPosition(ctx, p); err != nil {
		return err
	}
	s.cachePosition(ctx, p)
	s.rdb.Del(ctx, allPositionsKey)
	return nil
}

func (s *CachedStore) DeletePosition(ctx context.Context, marketID string) error {
	if err := s.primary.DeletePosition(ctx, marketID); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(marketID), allPositionsKey)
	return nil
}

func (s *CachedStore) InsertSettlement(ctx context.Context, sp *model.SettledPosition) error {
	return s.primary.InsertSettlement(ctx, sp)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetPosition(ctx context.Context, marketID string) (*model.PositionSummary, error) {
	data, err := s.rdb.Get(ctx, positionKey(marketID)).Bytes()
	if err == nil {
		var p model.PositionSummary
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	// Cache miss: read from primary.
	p, err := s.primary.GetPosition(ctx, marketID)
	if err != nil {
		return nil, err
	}

	s.cachePosition(ctx, p)
	return p, nil
}

func (s *CachedStore) ListPositions(ctx context.Context) ([]model.PositionSummary, error) {
	data, err := s.rdb.Get(ctx, allPositionsKey).Bytes()
	if err == nil {
		var positions []model.PositionSummary
		if json.Unmarshal(data, &positions) == nil {
			return positions, nil
		}
	}

	// Cache miss.
	positions, err := s.primary.ListPositions(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, allPositionsKey, data, s.ttl)
	}
	return positions, nil
}

func (s *CachedStore) GetFillsByMarket(ctx context.Context, marketID string) ([]model.Fill, error) {
	data, err := s.rdb.Get(ctx, fillsKey(marketID)).Bytes()
	if err == nil {
		var fills []model.Fill
		if json.Unmarshal(data, &fills) == nil {
			return fills, nil
		}
	}

	fills, err := s.primary.GetFillsByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(fills); err == nil {
		s.rdb.Set(ctx, fillsKey(marketID), data, s.ttl)
	}
	return fills, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListSettlements(ctx context.Context) ([]model.SettledPosition, error) {
	return s.primary.ListSettlements(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cachePosition(ctx context.Context, p *model.PositionSummary) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, positionKey(p.MarketID), data, s.ttl)
	}
}

const allPositionsKey = "positions:all"

func positionKey(id string) string { return fmt.Sprintf("position:%s", id) }
func fillsKey(id string) string    { return fmt.Sprintf("fills:%s", id) }
