package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mintbook/mintbook/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	q querier
}

const ledgerSelectCols = `id, user_id, market_id, order_id, amount_cents,
	reason, balance_before_cents, balance_after_cents, created_at`

func scanLedgerEntry(row pgx.Row) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var reason string
	err := row.Scan(
		&e.ID, &e.UserID, &e.MarketID, &e.OrderID, &e.AmountCents,
		&reason, &e.BalanceBeforeCents, &e.BalanceAfterCents, &e.CreatedAt,
	)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	e.Reason = domain.LedgerReason(reason)
	return e, nil
}

// Append writes one entry. Entries are never updated or deleted.
func (s *LedgerStore) Append(ctx context.Context, entry domain.LedgerEntry) error {
	const query = `
		INSERT INTO ledger_entries (
			id, user_id, market_id, order_id, amount_cents,
			reason, balance_before_cents, balance_after_cents, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := s.q.Exec(ctx, query,
		entry.ID, entry.UserID, entry.MarketID, entry.OrderID, entry.AmountCents,
		string(entry.Reason), entry.BalanceBeforeCents, entry.BalanceAfterCents, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append ledger entry: %w", err)
	}
	return nil
}

// ListByUser returns a user's entries in write order.
func (s *LedgerStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerSelectCols + `
		FROM ledger_entries WHERE user_id = $1
		ORDER BY seq LIMIT $2 OFFSET $3`
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.q.Query(ctx, query, userID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list user ledger: %w", err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

// ListByMarket returns a market's entries in write order.
func (s *LedgerStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerSelectCols + `
		FROM ledger_entries WHERE market_id = $1
		ORDER BY seq LIMIT $2 OFFSET $3`
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.q.Query(ctx, query, marketID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list market ledger: %w", err)
	}
	defer rows.Close()
	return collectLedgerEntries(rows)
}

// SumByUser returns the signed sum of the user's entries.
func (s *LedgerStore) SumByUser(ctx context.Context, userID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE user_id = $1`
	var sum int64
	if err := s.q.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: sum user ledger: %w", err)
	}
	return sum, nil
}

func collectLedgerEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate ledger entries: %w", err)
	}
	return entries, nil
}
