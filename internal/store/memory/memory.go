// Package memory implements domain.Store entirely in process memory. It
// backs the engine's tests and the paper-trading mode; transactional
// semantics are provided by cloning the state and swapping it in only when
// the unit of work succeeds.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mintbook/mintbook/internal/domain"
)

type posKey struct {
	marketID string
	userID   string
}

// state is the full dataset. All mutation happens on a private clone inside
// WithTx or under the store mutex for direct calls.
type state struct {
	markets   map[string]domain.Market
	users     map[string]domain.User
	orders    map[string]domain.Order
	orderSeq  map[string]int64 // insertion sequence, tie-break for equal timestamps
	seq       int64
	fills     []domain.Fill
	positions map[posKey]domain.Position
	ledger    []domain.LedgerEntry
}

func newState() *state {
	return &state{
		markets:   make(map[string]domain.Market),
		users:     make(map[string]domain.User),
		orders:    make(map[string]domain.Order),
		orderSeq:  make(map[string]int64),
		positions: make(map[posKey]domain.Position),
	}
}

func (st *state) clone() *state {
	c := &state{
		markets:   make(map[string]domain.Market, len(st.markets)),
		users:     make(map[string]domain.User, len(st.users)),
		orders:    make(map[string]domain.Order, len(st.orders)),
		orderSeq:  make(map[string]int64, len(st.orderSeq)),
		seq:       st.seq,
		fills:     append([]domain.Fill(nil), st.fills...),
		positions: make(map[posKey]domain.Position, len(st.positions)),
		ledger:    append([]domain.LedgerEntry(nil), st.ledger...),
	}
	for k, v := range st.markets {
		c.markets[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.orderSeq {
		c.orderSeq[k] = v
	}
	for k, v := range st.positions {
		c.positions[k] = v
	}
	return c
}

// Store implements domain.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// access runs fn against the live state under the store mutex (direct mode)
// or against the transaction's private clone (tx mode).
type access struct {
	s  *Store // non-nil in direct mode
	st *state // non-nil in tx mode
}

func (a access) do(fn func(st *state) error) error {
	if a.s != nil {
		a.s.mu.Lock()
		defer a.s.mu.Unlock()
		return fn(a.s.st)
	}
	return fn(a.st)
}

// WithTx clones the state, runs fn against the clone, and swaps the clone in
// iff fn returns nil. The store mutex is held for the whole unit of work, so
// memory transactions are fully serialized.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := s.st.clone()
	if err := fn(txView{st: clone}); err != nil {
		return err
	}
	s.st = clone
	return nil
}

func (s *Store) Markets() domain.MarketStore     { return marketStore{access{s: s}} }
func (s *Store) Users() domain.UserStore         { return userStore{access{s: s}} }
func (s *Store) Orders() domain.OrderStore       { return orderStore{access{s: s}} }
func (s *Store) Fills() domain.FillStore         { return fillStore{access{s: s}} }
func (s *Store) Positions() domain.PositionStore { return positionStore{access{s: s}} }
func (s *Store) Ledger() domain.LedgerStore      { return ledgerStore{access{s: s}} }

// txView exposes the per-aggregate stores over a transaction clone.
type txView struct {
	st *state
}

func (t txView) Markets() domain.MarketStore     { return marketStore{access{st: t.st}} }
func (t txView) Users() domain.UserStore         { return userStore{access{st: t.st}} }
func (t txView) Orders() domain.OrderStore       { return orderStore{access{st: t.st}} }
func (t txView) Fills() domain.FillStore         { return fillStore{access{st: t.st}} }
func (t txView) Positions() domain.PositionStore { return positionStore{access{st: t.st}} }
func (t txView) Ledger() domain.LedgerStore      { return ledgerStore{access{st: t.st}} }

// ---------------------------------------------------------------------------
// Markets
// ---------------------------------------------------------------------------

type marketStore struct{ a access }

func (m marketStore) Create(ctx context.Context, market domain.Market) error {
	return m.a.do(func(st *state) error {
		if _, ok := st.markets[market.ID]; ok {
			return domain.ErrAlreadyExists
		}
		st.markets[market.ID] = market
		return nil
	})
}

func (m marketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	var out domain.Market
	err := m.a.do(func(st *state) error {
		market, ok := st.markets[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = market
		return nil
	})
	return out, err
}

// GetForUpdate has no extra locking in memory: the store mutex already
// serializes the whole transaction.
func (m marketStore) GetForUpdate(ctx context.Context, id string) (domain.Market, error) {
	return m.GetByID(ctx, id)
}

func (m marketStore) Update(ctx context.Context, market domain.Market) error {
	return m.a.do(func(st *state) error {
		if _, ok := st.markets[market.ID]; !ok {
			return domain.ErrNotFound
		}
		st.markets[market.ID] = market
		return nil
	})
}

func (m marketStore) ListActive(ctx context.Context) ([]domain.Market, error) {
	var out []domain.Market
	err := m.a.do(func(st *state) error {
		for _, market := range st.markets {
			if market.Status == domain.MarketStatusActive {
				out = append(out, market)
			}
		}
		return nil
	})
	sortMarkets(out)
	return out, err
}

func (m marketStore) ListBySeason(ctx context.Context, seasonID string) ([]domain.Market, error) {
	var out []domain.Market
	err := m.a.do(func(st *state) error {
		for _, market := range st.markets {
			if market.SeasonID == seasonID {
				out = append(out, market)
			}
		}
		return nil
	})
	sortMarkets(out)
	return out, err
}

func sortMarkets(markets []domain.Market) {
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].CreatedAt.Equal(markets[j].CreatedAt) {
			return markets[i].ID < markets[j].ID
		}
		return markets[i].CreatedAt.Before(markets[j].CreatedAt)
	})
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type userStore struct{ a access }

func (u userStore) Create(ctx context.Context, user domain.User) error {
	return u.a.do(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return domain.ErrAlreadyExists
		}
		st.users[user.ID] = user
		return nil
	})
}

func (u userStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	var out domain.User
	err := u.a.do(func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = user
		return nil
	})
	return out, err
}

func (u userStore) GetForUpdate(ctx context.Context, id string) (domain.User, error) {
	return u.GetByID(ctx, id)
}

func (u userStore) UpdateBalance(ctx context.Context, id string, balanceCents int64) error {
	return u.a.do(func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return domain.ErrNotFound
		}
		user.BalanceCents = balanceCents
		st.users[id] = user
		return nil
	})
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

type orderStore struct{ a access }

func (o orderStore) Create(ctx context.Context, order domain.Order) error {
	return o.a.do(func(st *state) error {
		if _, ok := st.orders[order.ID]; ok {
			return domain.ErrAlreadyExists
		}
		st.seq++
		st.orders[order.ID] = order
		st.orderSeq[order.ID] = st.seq
		return nil
	})
}

func (o orderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	var out domain.Order
	err := o.a.do(func(st *state) error {
		order, ok := st.orders[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = order
		return nil
	})
	return out, err
}

func (o orderStore) Update(ctx context.Context, order domain.Order) error {
	return o.a.do(func(st *state) error {
		if _, ok := st.orders[order.ID]; !ok {
			return domain.ErrNotFound
		}
		st.orders[order.ID] = order
		return nil
	})
}

func (o orderStore) ListResting(ctx context.Context, marketID string) ([]domain.Order, error) {
	var out []domain.Order
	err := o.a.do(func(st *state) error {
		for _, order := range st.orders {
			if order.MarketID == marketID && order.Resting() {
				out = append(out, order)
			}
		}
		sortOrders(st, out)
		return nil
	})
	return out, err
}

func (o orderStore) ListRestingByUser(ctx context.Context, marketID, userID string) ([]domain.Order, error) {
	var out []domain.Order
	err := o.a.do(func(st *state) error {
		for _, order := range st.orders {
			if order.MarketID == marketID && order.UserID == userID && order.Resting() {
				out = append(out, order)
			}
		}
		sortOrders(st, out)
		return nil
	})
	return out, err
}

func (o orderStore) ListByUser(ctx context.Context, userID string, marketID string, opts domain.ListOpts) ([]domain.Order, error) {
	var out []domain.Order
	err := o.a.do(func(st *state) error {
		for _, order := range st.orders {
			if order.UserID != userID {
				continue
			}
			if marketID != "" && order.MarketID != marketID {
				continue
			}
			out = append(out, order)
		}
		sortOrders(st, out)
		return nil
	})
	return paginate(out, opts), err
}

// sortOrders orders by creation time ascending with the insertion sequence
// as tie-break, matching the price-time priority contract.
func sortOrders(st *state, orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return st.orderSeq[orders[i].ID] < st.orderSeq[orders[j].ID]
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// ---------------------------------------------------------------------------
// Fills
// ---------------------------------------------------------------------------

type fillStore struct{ a access }

func (f fillStore) Create(ctx context.Context, fill domain.Fill) error {
	return f.a.do(func(st *state) error {
		st.fills = append(st.fills, fill)
		return nil
	})
}

func (f fillStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Fill, error) {
	var out []domain.Fill
	err := f.a.do(func(st *state) error {
		for _, fill := range st.fills {
			if fill.MarketID == marketID {
				out = append(out, fill)
			}
		}
		return nil
	})
	return paginate(out, opts), err
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

type positionStore struct{ a access }

func (p positionStore) Get(ctx context.Context, marketID, userID string) (domain.Position, error) {
	var out domain.Position
	err := p.a.do(func(st *state) error {
		pos, ok := st.positions[posKey{marketID, userID}]
		if !ok {
			return domain.ErrNotFound
		}
		out = pos
		return nil
	})
	return out, err
}

func (p positionStore) GetForUpdate(ctx context.Context, marketID, userID string) (domain.Position, error) {
	return p.Get(ctx, marketID, userID)
}

func (p positionStore) Upsert(ctx context.Context, pos domain.Position) error {
	return p.a.do(func(st *state) error {
		st.positions[posKey{pos.MarketID, pos.UserID}] = pos
		return nil
	})
}

func (p positionStore) ListByUser(ctx context.Context, userID string) ([]domain.Position, error) {
	var out []domain.Position
	err := p.a.do(func(st *state) error {
		for _, pos := range st.positions {
			if pos.UserID == userID {
				out = append(out, pos)
			}
		}
		return nil
	})
	sortPositions(out)
	return out, err
}

func (p positionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	var out []domain.Position
	err := p.a.do(func(st *state) error {
		for _, pos := range st.positions {
			if pos.MarketID == marketID {
				out = append(out, pos)
			}
		}
		return nil
	})
	sortPositions(out)
	return out, err
}

func sortPositions(positions []domain.Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].MarketID == positions[j].MarketID {
			return positions[i].UserID < positions[j].UserID
		}
		return positions[i].MarketID < positions[j].MarketID
	})
}

// ---------------------------------------------------------------------------
// Ledger
// ---------------------------------------------------------------------------

type ledgerStore struct{ a access }

func (l ledgerStore) Append(ctx context.Context, entry domain.LedgerEntry) error {
	return l.a.do(func(st *state) error {
		st.ledger = append(st.ledger, entry)
		return nil
	})
}

func (l ledgerStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := l.a.do(func(st *state) error {
		for _, entry := range st.ledger {
			if entry.UserID == userID {
				out = append(out, entry)
			}
		}
		return nil
	})
	return paginate(out, opts), err
}

func (l ledgerStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := l.a.do(func(st *state) error {
		for _, entry := range st.ledger {
			if entry.MarketID == marketID {
				out = append(out, entry)
			}
		}
		return nil
	})
	return paginate(out, opts), err
}

func (l ledgerStore) SumByUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := l.a.do(func(st *state) error {
		for _, entry := range st.ledger {
			if entry.UserID == userID {
				sum += entry.AmountCents
			}
		}
		return nil
	})
	return sum, err
}

// Compile-time interface check.
var _ domain.Store = (*Store)(nil)
