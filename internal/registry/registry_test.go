package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gabagool/pair-engine/internal/model"
)

const mktID = "0x1111111111111111111111111111111111111111111111111111111111111111"

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func record(t *testing.T, r *Registry, id string, o model.Outcome, qty, price float64) model.Fill {
	t.Helper()
	fill, accepted, err := r.RecordTrade(id, o, d(qty), d(price), decimal.Zero, "", "")
	if err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	if !accepted {
		t.Fatalf("RecordTrade: fill unexpectedly rejected")
	}
	return fill
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	r := New(nil)

	p1, err := r.GetOrCreate(mktID, "Will it rain?", "will-it-rain")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	p2, err := r.GetOrCreate(mktID, "different title", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if p1 != p2 {
		t.Error("same market id must return the same position")
	}
	if p1.Title() != "Will it rain?" {
		t.Errorf("second call must not overwrite metadata, got %q", p1.Title())
	}
}

func TestRecordTrade_AcceptAndReject(t *testing.T) {
	r := New(nil)

	fill := record(t, r, mktID, model.OutcomeYes, 100, 0.52)
	if fill.ID == "" {
		t.Error("accepted fill must carry an id")
	}
	if !fill.Cost.Equal(d(52)) {
		t.Errorf("cost = %s, want 52", fill.Cost)
	}

	record(t, r, mktID, model.OutcomeNo, 100, 0.45)

	sum, err := r.Summary(mktID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.Locked {
		t.Fatal("position should be locked at pair cost 0.97")
	}

	// A fill that would push the pair cost to 1.01 is refused and leaves
	// the position untouched.
	_, accepted, err := r.RecordTrade(mktID, model.OutcomeYes, d(100), d(0.60), decimal.Zero, "", "")
	if err != nil {
		t.Fatalf("RecordTrade: %v", err)
	}
	if accepted {
		t.Fatal("lock-breaking fill must be rejected")
	}

	after, _ := r.Summary(mktID)
	if !after.YesQty.Equal(sum.YesQty) || !after.TotalCost.Equal(sum.TotalCost) {
		t.Error("rejected fill must not change position state")
	}
}

func TestRecordTrade_ValidationError(t *testing.T) {
	r := New(nil)

	if _, _, err := r.RecordTrade(mktID, model.OutcomeYes, decimal.Zero, d(0.50), decimal.Zero, "", ""); err == nil {
		t.Error("zero quantity must be a validation error")
	}
}

func TestShouldBuy(t *testing.T) {
	r := New(nil)

	// Unknown market: ceiling rule.
	if ok, _ := r.ShouldBuy(mktID, model.OutcomeYes, d(0.45)); !ok {
		t.Error("cheap fill in an unknown market should be accepted")
	}
	if ok, _ := r.ShouldBuy(mktID, model.OutcomeYes, d(0.55)); ok {
		t.Error("expensive fill in an unknown market should be rejected")
	}

	// Locked position: no further capital.
	record(t, r, mktID, model.OutcomeYes, 100, 0.52)
	record(t, r, mktID, model.OutcomeNo, 100, 0.45)
	if ok, reason := r.ShouldBuy(mktID, model.OutcomeNo, d(0.30)); ok {
		t.Error("locked position should refuse further buys")
	} else if reason != "profit already locked" {
		t.Errorf("unexpected reason: %q", reason)
	}
}

func TestSettleMarket(t *testing.T) {
	r := New(nil)

	record(t, r, mktID, model.OutcomeYes, 100, 0.52)
	record(t, r, mktID, model.OutcomeNo, 100, 0.45)

	rec, err := r.SettleMarket(mktID, model.OutcomeYes)
	if err != nil {
		t.Fatalf("SettleMarket: %v", err)
	}
	if !rec.Payout.Equal(d(100)) {
		t.Errorf("payout = %s, want 100", rec.Payout)
	}
	if !rec.Profit.Equal(d(3)) {
		t.Errorf("profit = %s, want 3", rec.Profit)
	}
	if !rec.GuaranteedProfit.Equal(d(3)) {
		t.Errorf("guaranteed profit = %s, want 3", rec.GuaranteedProfit)
	}
	if rec.WinningOutcome != model.OutcomeYes {
		t.Errorf("winner = %s, want YES", rec.WinningOutcome)
	}

	// The position leaves the active set and enters the archive once.
	if _, err := r.Summary(mktID); !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("Summary after settle: err = %v, want ErrPositionNotFound", err)
	}
	if got := len(r.Settled()); got != 1 {
		t.Fatalf("settled archive length = %d, want 1", got)
	}

	// Settled markets are final.
	if _, err := r.SettleMarket(mktID, model.OutcomeNo); !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("second settle: err = %v, want ErrPositionNotFound", err)
	}
	if _, _, err := r.RecordTrade(mktID, model.OutcomeYes, d(10), d(0.40), decimal.Zero, "", ""); !errors.Is(err, ErrMarketSettled) {
		t.Errorf("trade after settle: err = %v, want ErrMarketSettled", err)
	}
	if _, err := r.GetOrCreate(mktID, "", ""); !errors.Is(err, ErrMarketSettled) {
		t.Errorf("GetOrCreate after settle: err = %v, want ErrMarketSettled", err)
	}
	if ok, reason := r.ShouldBuy(mktID, model.OutcomeYes, d(0.30)); ok || reason != "market already settled" {
		t.Errorf("ShouldBuy after settle: ok=%v reason=%q", ok, reason)
	}
}

func TestSettleMarket_LoserPaysNothing(t *testing.T) {
	r := New(nil)

	record(t, r, mktID, model.OutcomeYes, 10, 0.40)

	rec, err := r.SettleMarket(mktID, model.OutcomeNo)
	if err != nil {
		t.Fatalf("SettleMarket: %v", err)
	}
	if !rec.Payout.IsZero() {
		t.Errorf("payout = %s, want 0", rec.Payout)
	}
	if !rec.Profit.Equal(d(-4)) {
		t.Errorf("profit = %s, want -4", rec.Profit)
	}
}

func TestStatistics(t *testing.T) {
	r := New(nil)

	other := "0x2222222222222222222222222222222222222222222222222222222222222222"
	record(t, r, mktID, model.OutcomeYes, 100, 0.52)
	record(t, r, mktID, model.OutcomeNo, 100, 0.45)
	record(t, r, other, model.OutcomeYes, 10, 0.40)

	stats := r.Statistics()
	if stats.ActivePositions != 2 {
		t.Errorf("active = %d, want 2", stats.ActivePositions)
	}
	if stats.LockedPositions != 1 {
		t.Errorf("locked = %d, want 1", stats.LockedPositions)
	}
	if !stats.TotalDeployed.Equal(d(101)) {
		t.Errorf("deployed = %s, want 101", stats.TotalDeployed)
	}
	if !stats.TotalLockedProfit.Equal(d(3)) {
		t.Errorf("locked profit = %s, want 3", stats.TotalLockedProfit)
	}

	if _, err := r.SettleMarket(mktID, model.OutcomeYes); err != nil {
		t.Fatalf("SettleMarket: %v", err)
	}

	stats = r.Statistics()
	if stats.ActivePositions != 1 {
		t.Errorf("active after settle = %d, want 1", stats.ActivePositions)
	}
	if stats.SettledPositions != 1 {
		t.Errorf("settled = %d, want 1", stats.SettledPositions)
	}
	if !stats.RealizedProfit.Equal(d(3)) {
		t.Errorf("realized = %s, want 3", stats.RealizedProfit)
	}
	if !stats.TotalDeployed.Equal(d(4)) {
		t.Errorf("deployed after settle = %s, want 4", stats.TotalDeployed)
	}
}

func TestRecordTrade_ConcurrentSameMarket(t *testing.T) {
	r := New(nil)

	// 50 goroutines each add 1 YES and 1 NO at a pair cost of 0.90. Every
	// fill improves or maintains the pair cost, so all must be accepted
	// and the final position must reflect every share.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := r.RecordTrade(mktID, model.OutcomeYes, d(1), d(0.48), decimal.Zero, "", ""); err != nil {
				t.Errorf("yes fill: %v", err)
			}
			if _, _, err := r.RecordTrade(mktID, model.OutcomeNo, d(1), d(0.42), decimal.Zero, "", ""); err != nil {
				t.Errorf("no fill: %v", err)
			}
		}()
	}
	wg.Wait()

	sum, err := r.Summary(mktID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.YesQty.Equal(d(50)) || !sum.NoQty.Equal(d(50)) {
		t.Errorf("quantities = %s/%s, want 50/50", sum.YesQty, sum.NoQty)
	}
	if sum.PairCost == nil || !sum.PairCost.Equal(d(0.90)) {
		t.Errorf("pair cost = %v, want 0.90", sum.PairCost)
	}
	if !sum.Locked {
		t.Error("hedged position at 0.90 must be locked")
	}
}
