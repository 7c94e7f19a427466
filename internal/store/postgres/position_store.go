package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mintbook/mintbook/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	q querier
}

const positionSelectCols = `market_id, user_id, yes_shares, no_shares,
	avg_yes_price_cents, avg_no_price_cents, created_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.MarketID, &p.UserID, &p.YesShares, &p.NoShares,
		&p.AvgYesPriceCents, &p.AvgNoPriceCents, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	return p, nil
}

// Get fetches one position without locking.
func (s *PositionStore) Get(ctx context.Context, marketID, userID string) (domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE market_id = $1 AND user_id = $2`
	p, err := scanPosition(s.q.QueryRow(ctx, query, marketID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position: %w", err)
	}
	return p, nil
}

// GetForUpdate fetches one position and takes its row lock.
func (s *PositionStore) GetForUpdate(ctx context.Context, marketID, userID string) (domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE market_id = $1 AND user_id = $2 FOR UPDATE`
	p, err := scanPosition(s.q.QueryRow(ctx, query, marketID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position for update: %w", err)
	}
	return p, nil
}

// Upsert inserts or replaces the position row.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			market_id, user_id, yes_shares, no_shares,
			avg_yes_price_cents, avg_no_price_cents, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (market_id, user_id) DO UPDATE SET
			yes_shares = EXCLUDED.yes_shares,
			no_shares = EXCLUDED.no_shares,
			avg_yes_price_cents = EXCLUDED.avg_yes_price_cents,
			avg_no_price_cents = EXCLUDED.avg_no_price_cents,
			updated_at = EXCLUDED.updated_at`

	_, err := s.q.Exec(ctx, query,
		p.MarketID, p.UserID, p.YesShares, p.NoShares,
		p.AvgYesPriceCents, p.AvgNoPriceCents, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position: %w", err)
	}
	return nil
}

// ListByUser returns every position held by the user.
func (s *PositionStore) ListByUser(ctx context.Context, userID string) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE user_id = $1 ORDER BY market_id`
	rows, err := s.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list user positions: %w", err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

// ListByMarket returns every position in the market.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE market_id = $1 ORDER BY user_id`
	rows, err := s.q.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list market positions: %w", err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

func collectPositions(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate positions: %w", err)
	}
	return positions, nil
}
