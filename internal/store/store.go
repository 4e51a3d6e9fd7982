// Package store defines the persistence interface for the pair engine's
// fill journal, position snapshots, and settlement archive.
//
// The registry remains the in-memory source of truth for decisions; the
// store is the durable journal dashboards and restarts read from.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/gabagool/pair-engine/internal/model"
)

// Store is the persistence interface.
type Store interface {
	// --- Immutable fill journal ---

	// InsertFill appends an accepted fill. Fills are never updated or
	// deleted.
	InsertFill(ctx context.Context, fill *model.Fill) error

	// GetFillsByMarket returns a market's fills in acceptance order.
	GetFillsByMarket(ctx context.Context, marketID string) ([]model.Fill, error)

	// --- Position snapshots ---

	// UpsertPosition stores the latest derived snapshot for a market.
	UpsertPosition(ctx context.Context, s *model.PositionSummary) error

	// GetPosition retrieves the snapshot for one market.
	GetPosition(ctx context.Context, marketID string) (*model.PositionSummary, error)

	// ListPositions returns all active position snapshots.
	ListPositions(ctx context.Context) ([]model.PositionSummary, error)

	// DeletePosition removes a market's snapshot once it settles.
	DeletePosition(ctx context.Context, marketID string) error

	// --- Settlement archive ---

	// InsertSettlement appends an archived settled position.
	InsertSettlement(ctx context.Context, s *model.SettledPosition) error

	// ListSettlements returns the archive in settlement order.
	ListSettlements(ctx context.Context) ([]model.SettledPosition, error)
}
