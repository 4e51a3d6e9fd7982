// Package model defines the core domain types shared across the pair engine.
// All monetary values use shopspring/decimal, never float64 for money.
package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is one of the two complementary sides of a binary market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// ErrInvalidOutcome is returned when an outcome string is neither YES nor NO.
var ErrInvalidOutcome = errors.New("model: outcome must be YES or NO")

// ParseOutcome normalizes and validates an outcome string.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToUpper(strings.TrimSpace(s))) {
	case OutcomeYes:
		return OutcomeYes, nil
	case OutcomeNo:
		return OutcomeNo, nil
	default:
		return "", ErrInvalidOutcome
	}
}

// Opposite returns the complementary outcome.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Fill is an immutable record of one accepted buy on one outcome.
// Once created, fills are never modified or deleted; a position's fill
// history is append-only in acceptance order.
type Fill struct {
	ID        string          `json:"id" db:"id"`
	MarketID  string          `json:"market_id" db:"market_id"`
	Outcome   Outcome         `json:"outcome" db:"outcome"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Fee       decimal.Decimal `json:"fee" db:"fee"`
	Cost      decimal.Decimal `json:"cost" db:"cost"` // quantity*price + fee
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// PositionSummary is the lossy read-only projection of a pair position.
// It carries every derived quantity a dashboard needs but not the per-fill
// history, so it cannot be used to reconstruct internal state.
type PositionSummary struct {
	MarketID string `json:"market_id"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`

	YesQty decimal.Decimal `json:"yes_qty"`
	YesAvg decimal.Decimal `json:"yes_avg"`
	NoQty  decimal.Decimal `json:"no_qty"`
	NoAvg  decimal.Decimal `json:"no_avg"`

	// PairCost is nil while only one side is held (undefined).
	PairCost         *decimal.Decimal `json:"pair_cost"`
	HedgedQty        decimal.Decimal  `json:"hedged_qty"`
	UnhedgedSide     string           `json:"unhedged_side"` // YES | NO | BALANCED
	UnhedgedQty      decimal.Decimal  `json:"unhedged_qty"`
	TotalCost        decimal.Decimal  `json:"total_cost"`
	GuaranteedProfit decimal.Decimal  `json:"guaranteed_profit"`
	ProfitPct        decimal.Decimal  `json:"profit_pct"` // return on hedged capital, percent

	Locked    bool      `json:"locked"`
	Status    string    `json:"status"` // LOCKED | BUILDING
	CreatedAt time.Time `json:"created_at"`
}

// SettledPosition is the archival record of a position after settlement.
// Profit is the true realized P&L (payout minus total cost across both
// sides); GuaranteedProfit is what the lock had secured on the hedged
// portion. The two differ whenever unhedged exposure settled.
type SettledPosition struct {
	MarketID         string          `json:"market_id"`
	Title            string          `json:"title"`
	Slug             string          `json:"slug"`
	WinningOutcome   Outcome         `json:"winning_outcome"`
	YesQty           decimal.Decimal `json:"yes_qty"`
	NoQty            decimal.Decimal `json:"no_qty"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	Payout           decimal.Decimal `json:"payout"`
	Profit           decimal.Decimal `json:"profit"`
	GuaranteedProfit decimal.Decimal `json:"guaranteed_profit"`
	SettledAt        time.Time       `json:"settled_at"`
}

// Stats aggregates the registry's view across all positions.
//
// RealizedProfit sums guaranteed profit across settled positions, not actual
// settlement payouts. It diverges from true realized P&L whenever a settled
// position carried unhedged exposure; per-position SettledPosition records
// hold the exact figures.
type Stats struct {
	ActivePositions   int             `json:"active_positions"`
	LockedPositions   int             `json:"locked_positions"`
	TotalDeployed     decimal.Decimal `json:"total_deployed"`
	TotalLockedProfit decimal.Decimal `json:"total_locked_profit"`
	SettledPositions  int             `json:"settled_positions"`
	RealizedProfit    decimal.Decimal `json:"realized_profit"`
}
