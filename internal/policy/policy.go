// Package policy implements the buy-decision gate consulted before any
// capital is committed to a market.
//
// The gate is advisory and pure: it never mutates a position. Every verdict
// comes with a human-readable reason so rejections, the frequent, expected
// outcome of normal operation, are cheap to log and inspect.
package policy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gabagool/pair-engine/internal/model"
	"github.com/gabagool/pair-engine/internal/pair"
)

var (
	// DefaultTargetPairCost requires a 2% edge below the mathematical
	// break-even of 1.00 before a fill is worth taking.
	DefaultTargetPairCost = decimal.NewFromFloat(0.98)

	// DefaultNewPositionCeiling is the absolute cheapness threshold for
	// opening a position in an unknown market.
	DefaultNewPositionCeiling = decimal.NewFromFloat(0.50)

	// DefaultBalanceMultiple and DefaultBalanceBuffer cap one-sided
	// accumulation: an outcome is over-exposed once its quantity exceeds
	// multiple × opposite quantity + buffer.
	DefaultBalanceMultiple = decimal.NewFromInt(2)
	DefaultBalanceBuffer   = decimal.NewFromInt(10)
)

var one = decimal.NewFromInt(1)

// Gate evaluates the ordered buy rules for a candidate fill.
type Gate struct {
	// TargetPairCost is the maximum simulated pair cost to accept.
	TargetPairCost decimal.Decimal

	// NewPositionCeiling is the maximum price for a first fill in an
	// unknown market.
	NewPositionCeiling decimal.Decimal

	// BalanceMultiple and BalanceBuffer bound one-sided exposure before a
	// hedge exists.
	BalanceMultiple decimal.Decimal
	BalanceBuffer   decimal.Decimal

	// ProbeQty is the fill size used for pair-cost simulation. The probe
	// is price-sensitive but size-insensitive: callers must re-validate at
	// true trade size (Position.Add does) before committing capital.
	ProbeQty decimal.Decimal
}

// NewGate creates a gate with the given target pair-cost ceiling and
// default thresholds for the remaining rules.
func NewGate(targetPairCost decimal.Decimal) *Gate {
	if !targetPairCost.IsPositive() {
		targetPairCost = DefaultTargetPairCost
	}
	return &Gate{
		TargetPairCost:     targetPairCost,
		NewPositionCeiling: DefaultNewPositionCeiling,
		BalanceMultiple:    DefaultBalanceMultiple,
		BalanceBuffer:      DefaultBalanceBuffer,
		ProbeQty:           one,
	}
}

// Evaluate runs the buy rules in order, short-circuiting on the first that
// applies. pos is nil when no position exists for the market yet.
//
// Rule order:
//  1. unknown market: accept only below the new-position ceiling
//  2. profit already locked: no further capital
//  3. simulated fill would break an existing lock
//  4. price does not improve the outcome's average
//  5. outcome over-accumulated relative to its counterpart
//  6. simulated pair cost exceeds the target ceiling
func (g *Gate) Evaluate(pos *pair.Position, o model.Outcome, price decimal.Decimal) (bool, string) {
	if pos == nil {
		if price.LessThan(g.NewPositionCeiling) {
			return true, fmt.Sprintf("new position, good price %s", price.StringFixed(3))
		}
		return false, fmt.Sprintf("price %s not attractive for a new position", price.StringFixed(3))
	}

	if pos.Locked() {
		return false, "profit already locked"
	}

	if pos.HedgedQty().IsPositive() {
		sim, simOK := pos.Simulate(o, g.ProbeQty, price)
		cur, curOK := pos.PairCost()
		if simOK && curOK && cur.LessThan(one) && sim.GreaterThanOrEqual(one) {
			return false, fmt.Sprintf("would break lock: pair cost %s -> %s",
				cur.StringFixed(3), sim.StringFixed(3))
		}
	}

	if !pos.WouldImprove(o, price) {
		return false, fmt.Sprintf("price %s above %s average %s",
			price.StringFixed(3), o, pos.AvgPrice(o).StringFixed(3))
	}

	oppQty := pos.Quantity(o.Opposite())
	cap := oppQty.Mul(g.BalanceMultiple).Add(g.BalanceBuffer)
	if pos.Quantity(o).GreaterThan(cap) {
		return false, fmt.Sprintf("over-exposed to %s (%s vs %s)",
			o, pos.Quantity(o).StringFixed(0), oppQty.StringFixed(0))
	}

	if sim, ok := pos.Simulate(o, g.ProbeQty, price); ok && sim.GreaterThan(g.TargetPairCost) {
		return false, fmt.Sprintf("would exceed target pair cost: %s > %s",
			sim.StringFixed(3), g.TargetPairCost.StringFixed(3))
	}

	return true, fmt.Sprintf("good buy at %s", price.StringFixed(3))
}
