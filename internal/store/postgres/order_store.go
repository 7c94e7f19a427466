package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mintbook/mintbook/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	q querier
}

const orderSelectCols = `id, market_id, user_id, outcome, side, price_cents,
	quantity, filled_quantity, status, collateral_locked_cents,
	created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var outcome, side, status string

	err := row.Scan(
		&o.ID, &o.MarketID, &o.UserID, &outcome, &side, &o.PriceCents,
		&o.Quantity, &o.FilledQuantity, &status, &o.CollateralLockedCents,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Outcome = domain.Outcome(outcome)
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

// Create inserts a new order.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, market_id, user_id, outcome, side, price_cents,
			quantity, filled_quantity, status, collateral_locked_cents,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := s.q.Exec(ctx, query,
		o.ID, o.MarketID, o.UserID, string(o.Outcome), string(o.Side), o.PriceCents,
		o.Quantity, o.FilledQuantity, string(o.Status), o.CollateralLockedCents,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order: %w", err)
	}
	return nil
}

// GetByID fetches one order.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE id = $1`
	o, err := scanOrder(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order: %w", err)
	}
	return o, nil
}

// Update rewrites the order's fill state and status.
func (s *OrderStore) Update(ctx context.Context, o domain.Order) error {
	const query = `
		UPDATE orders SET
			filled_quantity = $2,
			status = $3,
			updated_at = $4
		WHERE id = $1`

	tag, err := s.q.Exec(ctx, query, o.ID, o.FilledQuantity, string(o.Status), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListResting returns the market's open and partial orders in creation
// order; the seq tie-break keeps time priority deterministic for orders
// created within the same timestamp.
func (s *OrderStore) ListResting(ctx context.Context, marketID string) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + `
		FROM orders
		WHERE market_id = $1 AND status IN ('open', 'partial')
		ORDER BY created_at, seq`
	rows, err := s.q.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resting orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListRestingByUser returns one user's open and partial orders in one
// market, oldest first.
func (s *OrderStore) ListRestingByUser(ctx context.Context, marketID, userID string) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + `
		FROM orders
		WHERE market_id = $1 AND user_id = $2 AND status IN ('open', 'partial')
		ORDER BY created_at, seq`
	rows, err := s.q.Query(ctx, query, marketID, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list user resting orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListByUser returns a user's orders, optionally restricted to one market.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, marketID string, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + `
		FROM orders
		WHERE user_id = $1 AND ($2 = '' OR market_id = $2)
		ORDER BY created_at, seq
		LIMIT $3 OFFSET $4`
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx, query, userID, marketID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list user orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate orders: %w", err)
	}
	return orders, nil
}
