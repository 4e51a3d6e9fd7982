// Package registry owns the set of active pair positions keyed by market
// identifier, the archive of settled positions, and the accept/reject
// decision flow.
//
// Mutation is serialized per market identifier: each position carries its
// own mutex so the check-then-mutate sequence in Position.Add can never race
// on one market, while trades on distinct markets proceed in parallel.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabagool/pair-engine/internal/model"
	"github.com/gabagool/pair-engine/internal/pair"
	"github.com/gabagool/pair-engine/internal/policy"
)

var (
	// ErrPositionNotFound is returned when no active position exists for a
	// market identifier.
	ErrPositionNotFound = errors.New("registry: position not found")

	// ErrMarketSettled is returned on any attempt to trade or re-settle a
	// market that has already been settled. Settled positions are
	// immutable and never silently recreated.
	ErrMarketSettled = errors.New("registry: market already settled")
)

// entry pairs a position with its serialization mutex.
type entry struct {
	mu      sync.Mutex
	pos     *pair.Position
	settled bool // set under mu when the position is archived
}

// Registry manages all pair positions. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	active     map[string]*entry
	settledIDs map[string]struct{}
	settled    []model.SettledPosition

	gate *policy.Gate
}

// New creates a registry using the given decision gate. A nil gate gets the
// default thresholds (target pair cost 0.98).
func New(gate *policy.Gate) *Registry {
	if gate == nil {
		gate = policy.NewGate(policy.DefaultTargetPairCost)
	}
	return &Registry{
		active:     make(map[string]*entry),
		settledIDs: make(map[string]struct{}),
		gate:       gate,
	}
}

// GetOrCreate returns the active position for the market, creating an empty
// one on first reference. Idempotent by identifier. Returns
// ErrMarketSettled for markets that have already been settled.
//
// The returned position is for inspection only; all mutation goes through
// RecordTrade so it stays serialized.
func (r *Registry) GetOrCreate(marketID, title, slug string) (*pair.Position, error) {
	e, err := r.getOrCreate(marketID, title, slug)
	if err != nil {
		return nil, err
	}
	return e.pos, nil
}

func (r *Registry) getOrCreate(marketID, title, slug string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, done := r.settledIDs[marketID]; done {
		return nil, ErrMarketSettled
	}
	e, ok := r.active[marketID]
	if !ok {
		e = &entry{pos: pair.New(marketID, title, slug)}
		r.active[marketID] = e
	}
	return e, nil
}

// ShouldBuy evaluates the decision policy for a candidate fill. Advisory
// only: no state changes. The probe simulates at quantity 1, so callers of
// RecordTrade are still re-checked at true trade size.
func (r *Registry) ShouldBuy(marketID string, o model.Outcome, price decimal.Decimal) (bool, string) {
	r.mu.RLock()
	_, done := r.settledIDs[marketID]
	e := r.active[marketID]
	r.mu.RUnlock()

	if done {
		return false, "market already settled"
	}
	if e == nil {
		return r.gate.Evaluate(nil, o, price)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled {
		return false, "market already settled"
	}
	return r.gate.Evaluate(e.pos, o, price)
}

// RecordTrade applies a confirmed fill to the market's position, creating
// the position on first reference. This is the only mutation entry point.
// The boolean reports whether the fill was accepted; a rejection leaves all
// state untouched.
func (r *Registry) RecordTrade(marketID string, o model.Outcome, qty, price, fee decimal.Decimal, title, slug string) (model.Fill, bool, error) {
	e, err := r.getOrCreate(marketID, title, slug)
	if err != nil {
		return model.Fill{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled {
		// Lost a race with settlement after the map lookup.
		return model.Fill{}, false, ErrMarketSettled
	}
	return e.pos.Add(o, qty, price, fee)
}

// SettleMarket finalizes a market: the winning outcome pays 1.00 per share,
// the loser pays nothing. The position moves from the active set to the
// settled archive and becomes immutable. A second call for the same
// identifier returns ErrPositionNotFound.
func (r *Registry) SettleMarket(marketID string, winner model.Outcome) (model.SettledPosition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.active[marketID]
	if !ok {
		return model.SettledPosition{}, ErrPositionNotFound
	}

	e.mu.Lock()
	e.settled = true
	pos := e.pos
	payout := pos.Quantity(winner) // ×1.00 per share
	rec := model.SettledPosition{
		MarketID:         marketID,
		Title:            pos.Title(),
		Slug:             pos.Slug(),
		WinningOutcome:   winner,
		YesQty:           pos.Quantity(model.OutcomeYes),
		NoQty:            pos.Quantity(model.OutcomeNo),
		TotalCost:        pos.TotalCost(),
		Payout:           payout,
		Profit:           payout.Sub(pos.TotalCost()),
		GuaranteedProfit: pos.GuaranteedProfit(),
		SettledAt:        time.Now().UTC(),
	}
	e.mu.Unlock()

	delete(r.active, marketID)
	r.settledIDs[marketID] = struct{}{}
	r.settled = append(r.settled, rec)

	return rec, nil
}

// Summary returns the read-only snapshot for one active position.
func (r *Registry) Summary(marketID string) (model.PositionSummary, error) {
	r.mu.RLock()
	e := r.active[marketID]
	r.mu.RUnlock()

	if e == nil {
		return model.PositionSummary{}, ErrPositionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled {
		return model.PositionSummary{}, ErrPositionNotFound
	}
	return e.pos.Summary(), nil
}

// Summaries returns snapshots for all active positions.
func (r *Registry) Summaries() []model.PositionSummary {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.active))
	for _, e := range r.active {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]model.PositionSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.settled {
			out = append(out, e.pos.Summary())
		}
		e.mu.Unlock()
	}
	return out
}

// Settled returns a copy of the settlement archive in settlement order.
func (r *Registry) Settled() []model.SettledPosition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SettledPosition, len(r.settled))
	copy(out, r.settled)
	return out
}

// Statistics aggregates across active and settled positions. See
// model.Stats for the realized-profit approximation caveat.
func (r *Registry) Statistics() model.Stats {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.active))
	for _, e := range r.active {
		entries = append(entries, e)
	}
	settledCount := len(r.settled)
	realized := decimal.Zero
	for _, s := range r.settled {
		realized = realized.Add(s.GuaranteedProfit)
	}
	r.mu.RUnlock()

	stats := model.Stats{
		SettledPositions:  settledCount,
		RealizedProfit:    realized,
		TotalDeployed:     decimal.Zero,
		TotalLockedProfit: decimal.Zero,
	}
	for _, e := range entries {
		e.mu.Lock()
		if !e.settled {
			stats.ActivePositions++
			stats.TotalDeployed = stats.TotalDeployed.Add(e.pos.TotalCost())
			if e.pos.Locked() {
				stats.LockedPositions++
				stats.TotalLockedProfit = stats.TotalLockedProfit.Add(e.pos.GuaranteedProfit())
			}
		}
		e.mu.Unlock()
	}
	return stats
}
