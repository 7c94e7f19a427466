package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintbook/mintbook/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every store
// works identically inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given client's pool.
func NewStore(client *Client) *Store {
	return &Store{pool: client.Pool()}
}

func (s *Store) Markets() domain.MarketStore     { return &MarketStore{q: s.pool} }
func (s *Store) Users() domain.UserStore         { return &UserStore{q: s.pool} }
func (s *Store) Orders() domain.OrderStore       { return &OrderStore{q: s.pool} }
func (s *Store) Fills() domain.FillStore         { return &FillStore{q: s.pool} }
func (s *Store) Positions() domain.PositionStore { return &PositionStore{q: s.pool} }
func (s *Store) Ledger() domain.LedgerStore      { return &LedgerStore{q: s.pool} }

// WithTx runs fn inside one pgx transaction. The transaction commits iff fn
// returns nil; any error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	if err := fn(txView{q: pgxTx}); err != nil {
		_ = pgxTx.Rollback(ctx)
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// txView exposes the per-aggregate stores over one pgx transaction.
type txView struct {
	q querier
}

func (t txView) Markets() domain.MarketStore     { return &MarketStore{q: t.q} }
func (t txView) Users() domain.UserStore         { return &UserStore{q: t.q} }
func (t txView) Orders() domain.OrderStore       { return &OrderStore{q: t.q} }
func (t txView) Fills() domain.FillStore         { return &FillStore{q: t.q} }
func (t txView) Positions() domain.PositionStore { return &PositionStore{q: t.q} }
func (t txView) Ledger() domain.LedgerStore      { return &LedgerStore{q: t.q} }

// Compile-time interface check.
var _ domain.Store = (*Store)(nil)
