package policy

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gabagool/pair-engine/internal/model"
	"github.com/gabagool/pair-engine/internal/pair"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func add(t *testing.T, p *pair.Position, o model.Outcome, qty, price float64) {
	t.Helper()
	if _, accepted, err := p.Add(o, d(qty), d(price), decimal.Zero); err != nil || !accepted {
		t.Fatalf("seed fill failed: accepted=%v err=%v", accepted, err)
	}
}

func TestEvaluate_NewMarket(t *testing.T) {
	g := NewGate(DefaultTargetPairCost)

	if ok, reason := g.Evaluate(nil, model.OutcomeYes, d(0.49)); !ok {
		t.Errorf("price below ceiling should open a position: %s", reason)
	}
	if ok, _ := g.Evaluate(nil, model.OutcomeYes, d(0.50)); ok {
		t.Error("price at the ceiling is not attractive for a new position")
	}
	if ok, reason := g.Evaluate(nil, model.OutcomeNo, d(0.73)); ok || !strings.Contains(reason, "not attractive") {
		t.Errorf("expensive first fill must be rejected, got ok=%v %q", ok, reason)
	}
}

func TestEvaluate_LockedPositionTakesNoCapital(t *testing.T) {
	g := NewGate(DefaultTargetPairCost)
	p := pair.New("0xabc", "", "")
	add(t, p, model.OutcomeYes, 100, 0.52)
	add(t, p, model.OutcomeNo, 100, 0.45)

	ok, reason := g.Evaluate(p, model.OutcomeNo, d(0.30))
	if ok {
		t.Error("locked position must reject further fills")
	}
	if reason != "profit already locked" {
		t.Errorf("unexpected reason: %q", reason)
	}

	// Including fills that would push the pair cost back over 1.00.
	if ok, _ := g.Evaluate(p, model.OutcomeYes, d(0.99)); ok {
		t.Error("fill that would break the lock must be rejected")
	}
}

func TestEvaluate_MustImproveAverage(t *testing.T) {
	g := NewGate(DefaultTargetPairCost)
	p := pair.New("0xabc", "", "")
	// Small enough to stay inside the one-sided balance buffer.
	add(t, p, model.OutcomeYes, 8, 0.40)

	ok, reason := g.Evaluate(p, model.OutcomeYes, d(0.45))
	if ok {
		t.Error("price above the running average must be rejected")
	}
	if !strings.Contains(reason, "average") {
		t.Errorf("unexpected reason: %q", reason)
	}

	if ok, reason := g.Evaluate(p, model.OutcomeYes, d(0.35)); !ok {
		t.Errorf("averaging down should be accepted: %q", reason)
	}
}

func TestEvaluate_BalanceCap(t *testing.T) {
	g := NewGate(DefaultTargetPairCost)
	p := pair.New("0xabc", "", "")
	add(t, p, model.OutcomeYes, 50, 0.30)

	// 50 YES vs 0 NO exceeds 2×0 + 10: buying more YES is over-exposure
	// even at an improving price.
	ok, reason := g.Evaluate(p, model.OutcomeYes, d(0.25))
	if ok {
		t.Error("one-sided accumulation beyond the cap must be rejected")
	}
	if !strings.Contains(reason, "over-exposed") {
		t.Errorf("unexpected reason: %q", reason)
	}

	// The hedging side stays open.
	if ok, _ := g.Evaluate(p, model.OutcomeNo, d(0.45)); !ok {
		t.Error("buying the under-weighted side must stay allowed")
	}
}

func TestEvaluate_TargetCeiling(t *testing.T) {
	g := NewGate(DefaultTargetPairCost)
	p := pair.New("0xabc", "", "")
	add(t, p, model.OutcomeYes, 100, 0.60)
	add(t, p, model.OutcomeNo, 100, 0.45)

	// Pair cost 1.05: not locked, so the lock rules pass, but a probe at
	// 0.42 still projects ~1.05, far above the 0.98 target.
	ok, reason := g.Evaluate(p, model.OutcomeNo, d(0.42))
	if ok {
		t.Error("simulated pair cost above the target ceiling must be rejected")
	}
	if !strings.Contains(reason, "target") {
		t.Errorf("unexpected reason: %q", reason)
	}
}

func TestEvaluate_GoodBuy(t *testing.T) {
	g := NewGate(DefaultTargetPairCost)
	p := pair.New("0xabc", "", "")
	add(t, p, model.OutcomeYes, 100, 0.52)

	// First NO fill: improves by definition, hedges the position, and the
	// probe projects 0.97, inside the 0.98 target.
	ok, reason := g.Evaluate(p, model.OutcomeNo, d(0.45))
	if !ok {
		t.Errorf("expected acceptance, got %q", reason)
	}
	if !strings.Contains(reason, "good buy") {
		t.Errorf("unexpected reason: %q", reason)
	}
}

func TestNewGate_Defaults(t *testing.T) {
	g := NewGate(decimal.Zero)
	if !g.TargetPairCost.Equal(DefaultTargetPairCost) {
		t.Errorf("non-positive target should fall back to default, got %s", g.TargetPairCost)
	}
	if !g.ProbeQty.Equal(decimal.NewFromInt(1)) {
		t.Errorf("probe quantity should default to 1, got %s", g.ProbeQty)
	}
}
