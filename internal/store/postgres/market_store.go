package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mintbook/mintbook/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	q querier
}

const marketSelectCols = `id, season_id, question, outstanding_pairs,
	locked_collateral_cents, surplus_collateral_cents, last_price_cents,
	status, winning_outcome, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	var winner *string

	err := row.Scan(
		&m.ID, &m.SeasonID, &m.Question, &m.OutstandingPairs,
		&m.LockedCollateralCents, &m.SurplusCollateralCents, &m.LastPriceCents,
		&status, &winner, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	if winner != nil {
		o := domain.Outcome(*winner)
		m.WinningOutcome = &o
	}
	return m, nil
}

// Create inserts a new market.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, season_id, question, outstanding_pairs,
			locked_collateral_cents, surplus_collateral_cents, last_price_cents,
			status, winning_outcome, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := s.q.Exec(ctx, query,
		m.ID, m.SeasonID, m.Question, m.OutstandingPairs,
		m.LockedCollateralCents, m.SurplusCollateralCents, m.LastPriceCents,
		string(m.Status), winnerString(m.WinningOutcome), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market: %w", err)
	}
	return nil
}

// GetByID fetches a market without locking.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE id = $1`
	m, err := scanMarket(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market: %w", err)
	}
	return m, nil
}

// GetForUpdate fetches a market and takes its row lock. Inside a transaction
// this serializes every writer of the market's state until commit.
func (s *MarketStore) GetForUpdate(ctx context.Context, id string) (domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE id = $1 FOR UPDATE`
	m, err := scanMarket(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market for update: %w", err)
	}
	return m, nil
}

// Update rewrites all mutable market columns.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			outstanding_pairs = $2,
			locked_collateral_cents = $3,
			surplus_collateral_cents = $4,
			last_price_cents = $5,
			status = $6,
			winning_outcome = $7,
			updated_at = $8
		WHERE id = $1`

	tag, err := s.q.Exec(ctx, query,
		m.ID, m.OutstandingPairs, m.LockedCollateralCents, m.SurplusCollateralCents,
		m.LastPriceCents, string(m.Status), winnerString(m.WinningOutcome), m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListActive returns every market still accepting orders, oldest first.
func (s *MarketStore) ListActive(ctx context.Context) ([]domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE status = 'active' ORDER BY created_at`
	rows, err := s.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()
	return collectMarkets(rows)
}

// ListBySeason returns every market of one season, oldest first.
func (s *MarketStore) ListBySeason(ctx context.Context, seasonID string) ([]domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE season_id = $1 ORDER BY created_at`
	rows, err := s.q.Query(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list season markets: %w", err)
	}
	defer rows.Close()
	return collectMarkets(rows)
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return markets, nil
}

func winnerString(o *domain.Outcome) *string {
	if o == nil {
		return nil
	}
	s := string(*o)
	return &s
}
