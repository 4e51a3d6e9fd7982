// Package trade provides the HTTP handlers wiring the position registry to
// the external feed/execution layer, the settlement resolver, and dashboard
// clients.
//
// All monetary values use shopspring/decimal, never float64 for money.
package trade

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gabagool/pair-engine/internal/market"
	"github.com/gabagool/pair-engine/internal/metrics"
	"github.com/gabagool/pair-engine/internal/model"
	"github.com/gabagool/pair-engine/internal/pair"
	"github.com/gabagool/pair-engine/internal/registry"
	"github.com/gabagool/pair-engine/internal/store"
)

// Service exposes the registry over HTTP. The registry serializes all
// position mutation per market; the service only adds journaling,
// broadcasting, and metrics around it.
type Service struct {
	reg   *registry.Registry
	store store.Store
	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(reg *registry.Registry, st store.Store, hub *WSHub) *Service {
	return &Service{
		reg:   reg,
		store: st,
		wsHub: hub,
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trades: a confirmed fill from the
// execution layer.
type TradeRequest struct {
	MarketID string          `json:"market_id"`
	Outcome  string          `json:"outcome"` // "YES" or "NO"
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	Title    string          `json:"title,omitempty"`
	Slug     string          `json:"slug,omitempty"`
}

// TradeResponse is returned from POST /trades.
type TradeResponse struct {
	Accepted bool                  `json:"accepted"`
	Reason   string                `json:"reason,omitempty"`
	Fill     *model.Fill           `json:"fill,omitempty"`
	Position model.PositionSummary `json:"position"`
}

// DecisionResponse is returned from GET /decision.
type DecisionResponse struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

// SettleRequest is the JSON body for POST /markets/{marketID}/settle,
// reported by the external resolver.
type SettleRequest struct {
	WinningOutcome string `json:"winning_outcome"`
}

// --- HTTP Handlers ---

// Decision handles GET /api/v1/decision?market_id=&outcome=&price=
// Advisory only: evaluates the buy policy without mutating state.
func (s *Service) Decision(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	marketID := q.Get("market_id")
	if err := market.ValidateID(marketID); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	outcome, err := model.ParseOutcome(q.Get("outcome"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	price, err := decimal.NewFromString(q.Get("price"))
	if err != nil {
		writeError(w, "price must be a decimal number", http.StatusBadRequest)
		return
	}
	if price.IsNegative() {
		writeError(w, pair.ErrInvalidPrice.Error(), http.StatusBadRequest)
		return
	}

	accept, reason := s.reg.ShouldBuy(marketID, outcome, price)
	if !accept {
		metrics.RejectionsTotal.WithLabelValues("decision").Inc()
		slog.Debug("buy rejected", "market", marketID, "outcome", outcome, "reason", reason)
	}

	writeJSON(w, http.StatusOK, DecisionResponse{Accept: accept, Reason: reason})
}

// RecordTrade handles POST /api/v1/trades
// Records a confirmed fill against the market's pair position.
func (s *Service) RecordTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := market.ValidateID(req.MarketID); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	outcome, err := model.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	slug := req.Slug
	if slug == "" && req.Title != "" {
		slug = market.Slugify(req.Title)
	}

	fill, accepted, err := s.reg.RecordTrade(req.MarketID, outcome,
		req.Quantity, req.Price, req.Fee, req.Title, slug)
	switch {
	case errors.Is(err, registry.ErrMarketSettled):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		// Validation failure: a caller bug, not a market condition.
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, sumErr := s.reg.Summary(req.MarketID)
	if sumErr != nil {
		writeError(w, "position vanished during trade", http.StatusInternalServerError)
		return
	}

	if !accepted {
		metrics.RejectionsTotal.WithLabelValues("record").Inc()
		slog.Info("fill rejected: would break profit lock",
			"market", req.MarketID,
			"outcome", outcome,
			"qty", req.Quantity.String(),
			"price", req.Price.String(),
		)
		writeJSON(w, http.StatusConflict, TradeResponse{
			Accepted: false,
			Reason:   "fill would break profit lock",
			Position: summary,
		})
		return
	}

	ctx := r.Context()
	if err := s.store.InsertFill(ctx, &fill); err != nil {
		slog.Error("fill journal write failed", "market", req.MarketID, "err", err)
	}
	if err := s.store.UpsertPosition(ctx, &summary); err != nil {
		slog.Error("position snapshot write failed", "market", req.MarketID, "err", err)
	}

	metrics.FillsTotal.WithLabelValues(string(outcome)).Inc()
	s.syncGauges()

	slog.Info("fill recorded",
		"fill_id", fill.ID,
		"market", req.MarketID,
		"outcome", outcome,
		"qty", fill.Quantity.String(),
		"price", fill.Price.String(),
		"cost", fill.Cost.String(),
		"locked", summary.Locked,
	)

	if s.wsHub != nil {
		msg := WSMessage{
			Type:     "fill_recorded",
			MarketID: req.MarketID,
			Outcome:  string(outcome),
			Quantity: fill.Quantity.String(),
			Price:    fill.Price.String(),
		}
		if summary.PairCost != nil {
			msg.PairCost = summary.PairCost.String()
		}
		s.wsHub.Broadcast(msg)

		if summary.Locked {
			s.wsHub.Broadcast(WSMessage{
				Type:         "profit_locked",
				MarketID:     req.MarketID,
				PairCost:     msg.PairCost,
				LockedProfit: summary.GuaranteedProfit.String(),
			})
		}
	}

	writeJSON(w, http.StatusCreated, TradeResponse{
		Accepted: true,
		Fill:     &fill,
		Position: summary,
	})
}

// ListPositions handles GET /api/v1/positions
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	summaries := s.reg.Summaries()
	if summaries == nil {
		summaries = []model.PositionSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// GetPosition handles GET /api/v1/positions/{marketID}
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	summary, err := s.reg.Summary(marketID)
	if err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetFills handles GET /api/v1/positions/{marketID}/fills
// Returns the market's journaled fill history in acceptance order.
func (s *Service) GetFills(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	fills, err := s.store.GetFillsByMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "failed to read fill history", http.StatusInternalServerError)
		return
	}
	if fills == nil {
		fills = []model.Fill{}
	}
	writeJSON(w, http.StatusOK, fills)
}

// SettleMarket handles POST /api/v1/markets/{marketID}/settle
// The external resolver reports which outcome won; the position is
// finalized and archived. A second call returns 404.
func (s *Service) SettleMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	winner, err := model.ParseOutcome(req.WinningOutcome)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := s.reg.SettleMarket(marketID, winner)
	if err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}

	ctx := r.Context()
	if err := s.store.DeletePosition(ctx, marketID); err != nil {
		slog.Error("position snapshot delete failed", "market", marketID, "err", err)
	}
	if err := s.store.InsertSettlement(ctx, &rec); err != nil {
		slog.Error("settlement archive write failed", "market", marketID, "err", err)
	}

	metrics.SettlementsTotal.WithLabelValues(string(winner)).Inc()
	s.syncGauges()

	slog.Info("market settled",
		"market", marketID,
		"winner", winner,
		"payout", rec.Payout.String(),
		"profit", rec.Profit.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "market_settled",
			MarketID: marketID,
			Winner:   string(winner),
			Profit:   rec.Profit.String(),
		})
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListSettled handles GET /api/v1/settled
func (s *Service) ListSettled(w http.ResponseWriter, r *http.Request) {
	settled := s.reg.Settled()
	if settled == nil {
		settled = []model.SettledPosition{}
	}
	writeJSON(w, http.StatusOK, settled)
}

// Stats handles GET /api/v1/stats
func (s *Service) Stats(w http.ResponseWriter, r *http.Request) {
	stats := s.reg.Statistics()
	s.applyGauges(stats)
	writeJSON(w, http.StatusOK, stats)
}

// syncGauges refreshes the position gauges from the registry.
func (s *Service) syncGauges() {
	s.applyGauges(s.reg.Statistics())
}

func (s *Service) applyGauges(stats model.Stats) {
	metrics.ActivePositions.Set(float64(stats.ActivePositions))
	metrics.LockedPositions.Set(float64(stats.LockedPositions))
	metrics.CapitalDeployed.Set(stats.TotalDeployed.InexactFloat64())
	metrics.LockedProfit.Set(stats.TotalLockedProfit.InexactFloat64())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
