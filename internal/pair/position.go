// Package pair implements the cost-basis and profit-lock arithmetic for a
// YES/NO position pair in one binary settlement market.
//
// The key metric is the pair cost: the sum of the average acquisition prices
// of both outcomes. At settlement exactly one outcome pays 1.00 per share, so
// every hedged share (one YES paired with one NO) returns exactly 1.00
// regardless of which side wins. When pair cost drops below 1.00 while both
// sides are held, profit on the hedged portion is mathematically locked in:
//
//	100 YES @ 0.52 avg + 100 NO @ 0.45 avg → pair cost 0.97
//	hedged payout 100 × 1.00 = 100.00, cost 97.00, locked profit 3.00
//
// Once the lock is achieved it is monotonic: a fill that would push pair
// cost back to 1.00 or above is rejected before any state changes. There is
// no locked → unlocked transition.
//
// All monetary values use shopspring/decimal, never float64 for money.
// Totals are rounded after every accepted mutation so that the lock
// comparison at the 1.00 boundary is deterministic across fill orderings.
package pair

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gabagool/pair-engine/internal/model"
)

var (
	// ErrInvalidQuantity is returned when a fill quantity is zero or negative.
	ErrInvalidQuantity = errors.New("pair: quantity must be positive")

	// ErrInvalidPrice is returned when a fill price is negative.
	ErrInvalidPrice = errors.New("pair: price must be non-negative")

	// ErrInvalidFee is returned when a fill fee is negative.
	ErrInvalidFee = errors.New("pair: fee must be non-negative")
)

var (
	// CostScale is the number of decimal places kept for accumulated costs.
	// USDC settles to 6 decimal places on the venue.
	CostScale int32 = 6

	// PriceScale is the number of decimal places for derived prices
	// (averages and pair cost).
	PriceScale int32 = 6
)

// Human-readable lock status values used in summaries.
const (
	StatusLocked   = "LOCKED"
	StatusBuilding = "BUILDING"
)

// Unhedged-exposure side labels.
const (
	SideBalanced = "BALANCED"
)

var one = decimal.NewFromInt(1)

// Position tracks the YES/NO fill history and cost basis for one market.
// Fill histories are owned exclusively by the position; callers get copies.
//
// Position is not safe for concurrent use. The registry serializes all
// access per market identifier.
type Position struct {
	marketID string
	title    string
	slug     string

	yesQty  decimal.Decimal
	yesCost decimal.Decimal
	noQty   decimal.Decimal
	noCost  decimal.Decimal

	yesFills []model.Fill
	noFills  []model.Fill

	locked       bool
	lockedProfit decimal.Decimal

	createdAt time.Time
}

// New creates an empty position for the given market.
func New(marketID, title, slug string) *Position {
	return &Position{
		marketID:  marketID,
		title:     title,
		slug:      slug,
		createdAt: time.Now().UTC(),
	}
}

// MarketID returns the market identifier this position tracks.
func (p *Position) MarketID() string { return p.marketID }

// Title returns the display title.
func (p *Position) Title() string { return p.title }

// Slug returns the display slug.
func (p *Position) Slug() string { return p.slug }

// CreatedAt returns when the position was first created.
func (p *Position) CreatedAt() time.Time { return p.createdAt }

// Locked reports whether profit is locked on the hedged portion.
func (p *Position) Locked() bool { return p.locked }

// LockedProfit returns the guaranteed-profit snapshot taken when the lock
// was last confirmed. Zero while unlocked.
func (p *Position) LockedProfit() decimal.Decimal { return p.lockedProfit }

// Quantity returns the share count held on one outcome.
func (p *Position) Quantity(o model.Outcome) decimal.Decimal {
	if o == model.OutcomeYes {
		return p.yesQty
	}
	return p.noQty
}

// TotalCost returns the capital deployed across both outcomes.
func (p *Position) TotalCost() decimal.Decimal {
	return p.yesCost.Add(p.noCost)
}

// AvgPrice returns the average acquisition price for one outcome, fees
// included. Zero when nothing is held on that outcome.
func (p *Position) AvgPrice(o model.Outcome) decimal.Decimal {
	qty, cost := p.side(o)
	if qty.IsZero() {
		return decimal.Zero
	}
	return cost.Div(qty).Round(PriceScale)
}

// PairCost returns avg(YES) + avg(NO). The second return is false while
// either side is empty: pair cost is undefined until both outcomes are
// held, and the lock cannot be evaluated.
func (p *Position) PairCost() (decimal.Decimal, bool) {
	if p.yesQty.IsZero() || p.noQty.IsZero() {
		return decimal.Zero, false
	}
	return p.AvgPrice(model.OutcomeYes).Add(p.AvgPrice(model.OutcomeNo)), true
}

// HedgedQty returns min(yesQty, noQty): the share count with
// outcome-independent payout.
func (p *Position) HedgedQty() decimal.Decimal {
	if p.yesQty.LessThan(p.noQty) {
		return p.yesQty
	}
	return p.noQty
}

// UnhedgedExposure identifies the over-exposed outcome and the excess
// quantity. The side is "YES", "NO", or "BALANCED" when quantities match.
func (p *Position) UnhedgedExposure() (string, decimal.Decimal) {
	diff := p.yesQty.Sub(p.noQty)
	switch {
	case diff.IsPositive():
		return string(model.OutcomeYes), diff
	case diff.IsNegative():
		return string(model.OutcomeNo), diff.Neg()
	default:
		return SideBalanced, decimal.Zero
	}
}

// GuaranteedProfit returns hedgedQty × (1 − pair cost): the profit secured
// on the hedged portion regardless of which outcome settles. Zero while
// nothing is hedged.
func (p *Position) GuaranteedProfit() decimal.Decimal {
	hedged := p.HedgedQty()
	if hedged.IsZero() {
		return decimal.Zero
	}
	pc, ok := p.PairCost()
	if !ok {
		return decimal.Zero
	}
	return hedged.Mul(one.Sub(pc)).Round(CostScale)
}

// ProfitPct returns the guaranteed profit as a percentage of the hedged
// capital (hedgedQty × pair cost). Zero while nothing is hedged.
func (p *Position) ProfitPct() decimal.Decimal {
	hedged := p.HedgedQty()
	if hedged.IsZero() {
		return decimal.Zero
	}
	pc, ok := p.PairCost()
	if !ok || !pc.IsPositive() {
		return decimal.Zero
	}
	hedgedCost := hedged.Mul(pc)
	return p.GuaranteedProfit().Div(hedgedCost).Mul(decimal.NewFromInt(100)).Round(4)
}

// Fills returns a copy of the fill history for one outcome, in acceptance
// order.
func (p *Position) Fills(o model.Outcome) []model.Fill {
	src := p.yesFills
	if o == model.OutcomeNo {
		src = p.noFills
	}
	out := make([]model.Fill, len(src))
	copy(out, src)
	return out
}

// Add applies a fill to the position if it does not break an existing
// profit lock.
//
// Validation failures (non-positive quantity, negative price or fee) return
// an error and indicate a caller bug. A policy rejection (the fill would
// push pair cost from below 1.00 to 1.00 or above) returns a zero fill with
// false, nil) and is an expected outcome of normal operation. Either way a
// refused fill leaves the position untouched.
//
// On acceptance the fill is appended to the outcome's history, totals are
// updated and rounded, and the lock flag and locked-profit snapshot are
// recomputed.
func (p *Position) Add(o model.Outcome, qty, price, fee decimal.Decimal) (model.Fill, bool, error) {
	if !qty.IsPositive() {
		return model.Fill{}, false, ErrInvalidQuantity
	}
	if price.IsNegative() {
		return model.Fill{}, false, ErrInvalidPrice
	}
	if fee.IsNegative() {
		return model.Fill{}, false, ErrInvalidFee
	}

	cost := qty.Mul(price).Add(fee).Round(CostScale)

	curQty, curCost := p.side(o)
	newQty := curQty.Add(qty)
	newCost := curCost.Add(cost).Round(CostScale)
	newAvg := newCost.Div(newQty).Round(PriceScale)

	// Reject before mutating if the fill would break an existing lock.
	oppQty, _ := p.side(o.Opposite())
	if oppQty.IsPositive() {
		newPair := newAvg.Add(p.AvgPrice(o.Opposite()))
		if cur, ok := p.PairCost(); ok && cur.LessThan(one) && newPair.GreaterThanOrEqual(one) {
			return model.Fill{}, false, nil
		}
	}

	fill := model.Fill{
		ID:        uuid.New().String(),
		MarketID:  p.marketID,
		Outcome:   o,
		Quantity:  qty,
		Price:     price,
		Fee:       fee,
		Cost:      cost,
		Timestamp: time.Now().UTC(),
	}

	if o == model.OutcomeYes {
		p.yesQty = newQty
		p.yesCost = newCost
		p.yesFills = append(p.yesFills, fill)
	} else {
		p.noQty = newQty
		p.noCost = newCost
		p.noFills = append(p.noFills, fill)
	}

	p.checkLock()
	return fill, true, nil
}

// Simulate projects what pair cost would become if a fill of the given
// shape were applied. Pure: no state changes. The second return is false
// when the opposite outcome is empty (pair cost stays undefined).
func (p *Position) Simulate(o model.Outcome, qty, price decimal.Decimal) (decimal.Decimal, bool) {
	oppQty, _ := p.side(o.Opposite())
	if oppQty.IsZero() {
		return decimal.Zero, false
	}

	curQty, curCost := p.side(o)
	newQty := curQty.Add(qty)
	if !newQty.IsPositive() {
		return decimal.Zero, false
	}
	newCost := curCost.Add(qty.Mul(price)).Round(CostScale)
	newAvg := newCost.Div(newQty).Round(PriceScale)

	return newAvg.Add(p.AvgPrice(o.Opposite())), true
}

// WouldImprove reports whether buying the outcome at the given price lowers
// its average. A first fill on an empty outcome always improves.
func (p *Position) WouldImprove(o model.Outcome, price decimal.Decimal) bool {
	qty, _ := p.side(o)
	if qty.IsZero() {
		return true
	}
	return price.LessThan(p.AvgPrice(o))
}

// Summary returns the read-only projection of all derived quantities.
func (p *Position) Summary() model.PositionSummary {
	s := model.PositionSummary{
		MarketID:         p.marketID,
		Title:            p.title,
		Slug:             p.slug,
		YesQty:           p.yesQty,
		YesAvg:           p.AvgPrice(model.OutcomeYes),
		NoQty:            p.noQty,
		NoAvg:            p.AvgPrice(model.OutcomeNo),
		HedgedQty:        p.HedgedQty(),
		TotalCost:        p.TotalCost(),
		GuaranteedProfit: p.GuaranteedProfit(),
		ProfitPct:        p.ProfitPct(),
		Locked:           p.locked,
		Status:           StatusBuilding,
		CreatedAt:        p.createdAt,
	}
	if pc, ok := p.PairCost(); ok {
		s.PairCost = &pc
	}
	s.UnhedgedSide, s.UnhedgedQty = p.UnhedgedExposure()
	if p.locked {
		s.Status = StatusLocked
	}
	return s
}

// side returns the quantity and total cost for one outcome.
func (p *Position) side(o model.Outcome) (qty, cost decimal.Decimal) {
	if o == model.OutcomeYes {
		return p.yesQty, p.yesCost
	}
	return p.noQty, p.noCost
}

// checkLock recomputes the lock flag after an accepted fill. The flag only
// ever moves unlocked → locked; Add guarantees accepted fills keep pair
// cost below 1.00 once the lock holds.
func (p *Position) checkLock() {
	if p.HedgedQty().IsPositive() {
		if pc, ok := p.PairCost(); ok && pc.LessThan(one) {
			p.locked = true
			p.lockedProfit = p.GuaranteedProfit()
		}
	}
}
