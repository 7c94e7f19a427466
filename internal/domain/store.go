package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists markets.
type MarketStore interface {
	Create(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	// GetForUpdate reads a market and, inside a transaction, takes the
	// row-level lock that serializes writers of this market's state.
	GetForUpdate(ctx context.Context, id string) (Market, error)
	Update(ctx context.Context, market Market) error
	ListActive(ctx context.Context) ([]Market, error)
	ListBySeason(ctx context.Context, seasonID string) ([]Market, error)
}

// UserStore persists exchange accounts.
type UserStore interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetForUpdate(ctx context.Context, id string) (User, error)
	UpdateBalance(ctx context.Context, id string, balanceCents int64) error
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	Update(ctx context.Context, order Order) error
	// ListResting returns the market's open and partial orders ordered by
	// creation time ascending.
	ListResting(ctx context.Context, marketID string) ([]Order, error)
	// ListRestingByUser returns a user's open and partial orders in one
	// market, oldest first.
	ListRestingByUser(ctx context.Context, marketID, userID string) ([]Order, error)
	ListByUser(ctx context.Context, userID string, marketID string, opts ListOpts) ([]Order, error)
}

// FillStore persists fills. Fills are append-only.
type FillStore interface {
	Create(ctx context.Context, fill Fill) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Fill, error)
}

// PositionStore persists positions keyed by (market, user).
type PositionStore interface {
	Get(ctx context.Context, marketID, userID string) (Position, error)
	GetForUpdate(ctx context.Context, marketID, userID string) (Position, error)
	Upsert(ctx context.Context, pos Position) error
	ListByUser(ctx context.Context, userID string) ([]Position, error)
	ListByMarket(ctx context.Context, marketID string) ([]Position, error)
}

// LedgerStore persists the append-only balance-change log.
type LedgerStore interface {
	Append(ctx context.Context, entry LedgerEntry) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]LedgerEntry, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]LedgerEntry, error)
	// SumByUser returns the signed sum of a user's entries, used to audit the
	// cached balance.
	SumByUser(ctx context.Context, userID string) (int64, error)
}

// Tx bundles the per-aggregate stores visible inside one unit of work.
type Tx interface {
	Markets() MarketStore
	Users() UserStore
	Orders() OrderStore
	Fills() FillStore
	Positions() PositionStore
	Ledger() LedgerStore
}

// Store is the transactional persistence boundary. Reads outside WithTx see
// committed state; WithTx runs fn inside a single transaction that commits
// iff fn returns nil, so a failed engine operation leaves zero observable
// state change.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// BookCache caches order-book snapshots for the read path.
type BookCache interface {
	SetSnapshot(ctx context.Context, marketID string, snap OrderBookSnapshot) error
	GetSnapshot(ctx context.Context, marketID string) (OrderBookSnapshot, error)
	Invalidate(ctx context.Context, marketID string) error
}

// SignalBus is a lightweight publish/subscribe fabric for fill, book, and
// settlement events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter applies a sliding-window limit per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides expiring keyed locks. Acquire returns an unlock
// function, or ErrLockHeld if the key is already locked.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
