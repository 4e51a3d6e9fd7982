package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gabagool/pair-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertFill(ctx context.Context, f *model.Fill) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fills (id, market_id, outcome, quantity, price, fee, cost, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		f.ID, f.MarketID, string(f.Outcome),
		f.Quantity.String(), f.Price.String(), f.Fee.String(), f.Cost.String(),
		f.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetFillsByMarket(ctx context.Context, marketID string) ([]model.Fill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, outcome,
		        quantity::TEXT, price::TEXT, fee::TEXT, cost::TEXT, timestamp
		 FROM fills WHERE market_id = $1 ORDER BY timestamp`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []model.Fill
	for rows.Next() {
		var f model.Fill
		var outcome, qtyS, priceS, feeS, costS string

		if err := rows.Scan(&f.ID, &f.MarketID, &outcome,
			&qtyS, &priceS, &feeS, &costS, &f.Timestamp); err != nil {
			return nil, err
		}

		f.Outcome = model.Outcome(outcome)
		f.Quantity, _ = decimal.NewFromString(qtyS)
		f.Price, _ = decimal.NewFromString(priceS)
		f.Fee, _ = decimal.NewFromString(feeS)
		f.Cost, _ = decimal.NewFromString(costS)

		fills = append(fills, f)
	}
	return fills, rows.Err()
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p *model.PositionSummary) error {
	var pairCost *string
	if p.PairCost != nil {
		v := p.PairCost.String()
		pairCost = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions
			(market_id, title, slug, yes_qty, yes_avg, no_qty, no_avg,
			 pair_cost, hedged_qty, unhedged_side, unhedged_qty, total_cost,
			 guaranteed_profit, profit_pct, locked, status, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC,
		         $8::NUMERIC, $9::NUMERIC, $10, $11::NUMERIC, $12::NUMERIC,
		         $13::NUMERIC, $14::NUMERIC, $15, $16, $17)
		 ON CONFLICT (market_id) DO UPDATE SET
			yes_qty = excluded.yes_qty,
			yes_avg = excluded.yes_avg,
			no_qty = excluded.no_qty,
			no_avg = excluded.no_avg,
			pair_cost = excluded.pair_cost,
			hedged_qty = excluded.hedged_qty,
			unhedged_side = excluded.unhedged_side,
			unhedged_qty = excluded.unhedged_qty,
			total_cost = excluded.total_cost,
			guaranteed_profit = excluded.guaranteed_profit,
			profit_pct = excluded.profit_pct,
			locked = excluded.locked,
			status = excluded.status`,
		p.MarketID, p.Title, p.Slug,
		p.YesQty.String(), p.YesAvg.String(), p.NoQty.String(), p.NoAvg.String(),
		pairCost, p.HedgedQty.String(), p.UnhedgedSide, p.UnhedgedQty.String(),
		p.TotalCost.String(), p.GuaranteedProfit.String(), p.ProfitPct.String(),
		p.Locked, p.Status, p.CreatedAt,
	)
	return err
}

const positionColumns = `market_id, title, slug,
	yes_qty::TEXT, yes_avg::TEXT, no_qty::TEXT, no_avg::TEXT,
	pair_cost::TEXT, hedged_qty::TEXT, unhedged_side, unhedged_qty::TEXT,
	total_cost::TEXT, guaranteed_profit::TEXT, profit_pct::TEXT,
	locked, status, created_at`

func (s *PostgresStore) GetPosition(ctx context.Context, marketID string) (*model.PositionSummary, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market_id = $1`, marketID)

	p, err := scanPosition(row)
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", marketID, err)
	}
	return p, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]model.PositionSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.PositionSummary
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) DeletePosition(ctx context.Context, marketID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE market_id = $1`, marketID)
	return err
}

func (s *PostgresStore) InsertSettlement(ctx context.Context, sp *model.SettledPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settlements
			(market_id, title, slug, winning_outcome, yes_qty, no_qty,
			 total_cost, payout, profit, guaranteed_profit, settled_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC,
		         $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)`,
		sp.MarketID, sp.Title, sp.Slug, string(sp.WinningOutcome),
		sp.YesQty.String(), sp.NoQty.String(),
		sp.TotalCost.String(), sp.Payout.String(), sp.Profit.String(),
		sp.GuaranteedProfit.String(), sp.SettledAt,
	)
	return err
}

func (s *PostgresStore) ListSettlements(ctx context.Context) ([]model.SettledPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, title, slug, winning_outcome,
		        yes_qty::TEXT, no_qty::TEXT, total_cost::TEXT,
		        payout::TEXT, profit::TEXT, guaranteed_profit::TEXT, settled_at
		 FROM settlements ORDER BY settled_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []model.SettledPosition
	for rows.Next() {
		var sp model.SettledPosition
		var winner, yesS, noS, costS, payoutS, profitS, lockedS string

		if err := rows.Scan(&sp.MarketID, &sp.Title, &sp.Slug, &winner,
			&yesS, &noS, &costS, &payoutS, &profitS, &lockedS, &sp.SettledAt); err != nil {
			return nil, err
		}

		sp.WinningOutcome = model.Outcome(winner)
		sp.YesQty, _ = decimal.NewFromString(yesS)
		sp.NoQty, _ = decimal.NewFromString(noS)
		sp.TotalCost, _ = decimal.NewFromString(costS)
		sp.Payout, _ = decimal.NewFromString(payoutS)
		sp.Profit, _ = decimal.NewFromString(profitS)
		sp.GuaranteedProfit, _ = decimal.NewFromString(lockedS)

		settlements = append(settlements, sp)
	}
	return settlements, rows.Err()
}

// pgxRow covers both pgx.Row and pgx.Rows for scanPosition.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row pgxRow) (*model.PositionSummary, error) {
	var p model.PositionSummary
	var yesQ, yesA, noQ, noA, hedged, unhedged, cost, profit, pct string
	var pairCost *string

	if err := row.Scan(&p.MarketID, &p.Title, &p.Slug,
		&yesQ, &yesA, &noQ, &noA,
		&pairCost, &hedged, &p.UnhedgedSide, &unhedged,
		&cost, &profit, &pct,
		&p.Locked, &p.Status, &p.CreatedAt); err != nil {
		return nil, err
	}

	p.YesQty, _ = decimal.NewFromString(yesQ)
	p.YesAvg, _ = decimal.NewFromString(yesA)
	p.NoQty, _ = decimal.NewFromString(noQ)
	p.NoAvg, _ = decimal.NewFromString(noA)
	p.HedgedQty, _ = decimal.NewFromString(hedged)
	p.UnhedgedQty, _ = decimal.NewFromString(unhedged)
	p.TotalCost, _ = decimal.NewFromString(cost)
	p.GuaranteedProfit, _ = decimal.NewFromString(profit)
	p.ProfitPct, _ = decimal.NewFromString(pct)
	if pairCost != nil {
		pc, _ := decimal.NewFromString(*pairCost)
		p.PairCost = &pc
	}
	return &p, nil
}
