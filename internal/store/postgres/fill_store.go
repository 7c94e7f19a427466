package postgres

import (
	"context"
	"fmt"

	"github.com/mintbook/mintbook/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL. Fills are
// insert-only; there is no update path.
type FillStore struct {
	q querier
}

const fillSelectCols = `id, market_id, taker_order_id, maker_order_id,
	taker_user_id, maker_user_id, fill_type, quantity,
	yes_price_cents, no_price_cents, collateral_moved_cents, created_at`

// Create appends one fill.
func (s *FillStore) Create(ctx context.Context, f domain.Fill) error {
	const query = `
		INSERT INTO fills (
			id, market_id, taker_order_id, maker_order_id,
			taker_user_id, maker_user_id, fill_type, quantity,
			yes_price_cents, no_price_cents, collateral_moved_cents, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := s.q.Exec(ctx, query,
		f.ID, f.MarketID, f.TakerOrderID, f.MakerOrderID,
		f.TakerUserID, f.MakerUserID, string(f.Type), f.Quantity,
		f.YesPriceCents, f.NoPriceCents, f.CollateralMovedCents, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create fill: %w", err)
	}
	return nil
}

// ListByMarket returns a market's fills in creation order.
func (s *FillStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + `
		FROM fills
		WHERE market_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.q.Query(ctx, query, marketID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var fillType string
		if err := rows.Scan(
			&f.ID, &f.MarketID, &f.TakerOrderID, &f.MakerOrderID,
			&f.TakerUserID, &f.MakerUserID, &fillType, &f.Quantity,
			&f.YesPriceCents, &f.NoPriceCents, &f.CollateralMovedCents, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Type = domain.FillType(fillType)
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate fills: %w", err)
	}
	return fills, nil
}
