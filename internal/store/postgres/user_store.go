package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mintbook/mintbook/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	q querier
}

const userSelectCols = `id, wallet_address, balance_cents, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.WalletAddress, &u.BalanceCents, &u.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (id, wallet_address, balance_cents, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.q.Exec(ctx, query, u.ID, u.WalletAddress, u.BalanceCents, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create user: %w", err)
	}
	return nil
}

// GetByID fetches a user without locking.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userSelectCols + ` FROM users WHERE id = $1`
	u, err := scanUser(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user: %w", err)
	}
	return u, nil
}

// GetForUpdate fetches a user and takes its row lock so balance movements
// within the transaction are serialized.
func (s *UserStore) GetForUpdate(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userSelectCols + ` FROM users WHERE id = $1 FOR UPDATE`
	u, err := scanUser(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user for update: %w", err)
	}
	return u, nil
}

// UpdateBalance sets the cached running balance.
func (s *UserStore) UpdateBalance(ctx context.Context, id string, balanceCents int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET balance_cents = $2 WHERE id = $1`,
		id, balanceCents,
	)
	if err != nil {
		return fmt.Errorf("postgres: update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
