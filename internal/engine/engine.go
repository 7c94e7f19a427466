// Package engine implements the order-matching core: order placement with
// collateral locking, mint/burn matching, cancellation, settlement, and the
// read-time order-book aggregation. Every mutating operation runs inside a
// single store transaction and is serialized per market, so concurrent calls
// against the same market never double-spend collateral or double-sell
// resting liquidity.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mintbook/mintbook/internal/domain"
)

// Engine is the matching engine. It owns no state beyond the per-market
// lock table; all durable state lives behind domain.Store.
type Engine struct {
	store    domain.Store
	treasury string // user ID that receives settlement surplus
	books    domain.BookCache
	bus      domain.SignalBus
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an Engine. treasuryUserID is the account credited with the
// mint/burn surplus swept at settlement.
func New(store domain.Store, treasuryUserID string, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		treasury: treasuryUserID,
		logger:   logger.With(slog.String("component", "engine")),
		locks:    make(map[string]*sync.Mutex),
	}
}

// WithBookCache attaches an order-book snapshot cache. GetOrderBook reads
// through it and every mutating operation invalidates the affected market.
func (e *Engine) WithBookCache(c domain.BookCache) *Engine {
	e.books = c
	return e
}

// WithSignalBus attaches a bus on which fill, book, and settlement events are
// published after commit. Publication is best-effort and never fails the
// operation that triggered it.
func (e *Engine) WithSignalBus(b domain.SignalBus) *Engine {
	e.bus = b
	return e
}

// marketLock returns the mutex serializing all writers of one market,
// creating it on first use.
func (e *Engine) marketLock(marketID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[marketID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[marketID] = l
	}
	return l
}

// ---------------------------------------------------------------------------
// Account and market management
// ---------------------------------------------------------------------------

// CreateUser registers an account under the given wallet address. The address
// is validated and stored in checksummed form.
func (e *Engine) CreateUser(ctx context.Context, walletAddress string) (domain.User, error) {
	addr, err := domain.NormalizeWalletAddress(walletAddress)
	if err != nil {
		return domain.User{}, fmt.Errorf("engine: create user: %w", err)
	}
	user := domain.User{
		ID:            uuid.NewString(),
		WalletAddress: addr,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.store.Users().Create(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("engine: create user: %w", err)
	}
	return user, nil
}

// Deposit credits a user's balance from outside the exchange with a deposit
// ledger entry.
func (e *Engine) Deposit(ctx context.Context, userID string, amountCents int64) (domain.User, error) {
	if amountCents <= 0 {
		return domain.User{}, fmt.Errorf("engine: deposit: %w", domain.ErrInvalidOrderParams)
	}
	var out domain.User
	err := e.store.WithTx(ctx, func(tx domain.Tx) error {
		user, err := tx.Users().GetForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if err := applyBalance(ctx, tx, &user, "", nil, amountCents, domain.LedgerReasonDeposit); err != nil {
			return err
		}
		out = user
		return nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("engine: deposit: %w", err)
	}
	return out, nil
}

// CreateMarket opens a new active market in the given season.
func (e *Engine) CreateMarket(ctx context.Context, seasonID, question string, openingPriceCents int64) (domain.Market, error) {
	if openingPriceCents < domain.MinPriceCents || openingPriceCents > domain.MaxPriceCents {
		return domain.Market{}, fmt.Errorf("engine: create market: %w", domain.ErrInvalidOrderParams)
	}
	now := time.Now().UTC()
	market := domain.Market{
		ID:             uuid.NewString(),
		SeasonID:       seasonID,
		Question:       question,
		LastPriceCents: openingPriceCents,
		Status:         domain.MarketStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.Markets().Create(ctx, market); err != nil {
		return domain.Market{}, fmt.Errorf("engine: create market: %w", err)
	}
	return market, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// GetMarket returns a market by ID.
func (e *Engine) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	market, err := e.store.Markets().GetByID(ctx, marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Market{}, domain.ErrMarketNotFound
		}
		return domain.Market{}, fmt.Errorf("engine: get market: %w", err)
	}
	return market, nil
}

// ListActiveMarkets returns all markets currently accepting orders.
func (e *Engine) ListActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	markets, err := e.store.Markets().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: list active markets: %w", err)
	}
	return markets, nil
}

// GetUserOrders returns a user's orders, optionally restricted to one market.
func (e *Engine) GetUserOrders(ctx context.Context, userID, marketID string, opts domain.ListOpts) ([]domain.Order, error) {
	orders, err := e.store.Orders().ListByUser(ctx, userID, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("engine: get user orders: %w", err)
	}
	return orders, nil
}

// GetUserPositions returns every position held by the user.
func (e *Engine) GetUserPositions(ctx context.Context, userID string) ([]domain.Position, error) {
	positions, err := e.store.Positions().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("engine: get user positions: %w", err)
	}
	return positions, nil
}

// GetPosition returns one user's position in one market. A user with no
// trades in the market gets an empty position, not an error.
func (e *Engine) GetPosition(ctx context.Context, marketID, userID string) (domain.Position, error) {
	pos, err := e.store.Positions().Get(ctx, marketID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Position{MarketID: marketID, UserID: userID}, nil
		}
		return domain.Position{}, fmt.Errorf("engine: get position: %w", err)
	}
	return pos, nil
}

// GetYesShareHolders returns every position with a nonzero YES share count in
// the market, joined with the holder's wallet address.
func (e *Engine) GetYesShareHolders(ctx context.Context, marketID string) ([]domain.ShareHolder, error) {
	positions, err := e.store.Positions().ListByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("engine: yes share holders: %w", err)
	}
	holders := make([]domain.ShareHolder, 0, len(positions))
	for _, pos := range positions {
		if pos.YesShares <= 0 {
			continue
		}
		user, err := e.store.Users().GetByID(ctx, pos.UserID)
		if err != nil {
			return nil, fmt.Errorf("engine: yes share holders: user %s: %w", pos.UserID, err)
		}
		holders = append(holders, domain.ShareHolder{
			UserID:        pos.UserID,
			YesShares:     pos.YesShares,
			WalletAddress: user.WalletAddress,
		})
	}
	return holders, nil
}

// ---------------------------------------------------------------------------
// Balance movements
// ---------------------------------------------------------------------------

// applyBalance moves amountCents (signed) on the user's balance and appends
// the ledger entry explaining it, inside the current transaction. The user's
// cached balance is mutated in place so consecutive movements within one
// transaction chain their before/after snapshots correctly.
func applyBalance(ctx context.Context, tx domain.Tx, user *domain.User, marketID string, orderID *string, amountCents int64, reason domain.LedgerReason) error {
	before := user.BalanceCents
	after := before + amountCents
	if after < 0 {
		return &domain.InsufficientBalanceError{
			RequiredCents:  -amountCents,
			AvailableCents: before,
		}
	}
	entry := domain.LedgerEntry{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		MarketID:           marketID,
		OrderID:            orderID,
		AmountCents:        amountCents,
		Reason:             reason,
		BalanceBeforeCents: before,
		BalanceAfterCents:  after,
		CreatedAt:          time.Now().UTC(),
	}
	if err := tx.Ledger().Append(ctx, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	if err := tx.Users().UpdateBalance(ctx, user.ID, after); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	user.BalanceCents = after
	return nil
}

// userCache caches row-locked users for the duration of one transaction so a
// user touched by several movements is loaded (and locked) exactly once.
type userCache struct {
	users map[string]*domain.User
}

func newUserCache() *userCache {
	return &userCache{users: make(map[string]*domain.User)}
}

func (c *userCache) get(ctx context.Context, tx domain.Tx, userID string) (*domain.User, error) {
	if u, ok := c.users[userID]; ok {
		return u, nil
	}
	user, err := tx.Users().GetForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	c.users[userID] = &user
	return &user, nil
}

// ---------------------------------------------------------------------------
// Post-commit signals
// ---------------------------------------------------------------------------

// afterMutation invalidates the market's cached book snapshot and publishes
// the given events. Both are best-effort: a cache or bus failure is logged
// and swallowed because the transaction has already committed.
func (e *Engine) afterMutation(ctx context.Context, marketID string, fills []domain.Fill) {
	if e.books != nil {
		if err := e.books.Invalidate(ctx, marketID); err != nil {
			e.logger.WarnContext(ctx, "book cache invalidation failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	if e.bus == nil {
		return
	}
	e.publishEvent(ctx, "books", map[string]any{
		"event":     "book_updated",
		"market_id": marketID,
	})
	for _, fill := range fills {
		payload, _ := json.Marshal(map[string]any{
			"event":      "fill",
			"fill_id":    fill.ID,
			"market_id":  fill.MarketID,
			"type":       string(fill.Type),
			"quantity":   fill.Quantity,
			"yes_price":  fill.YesPriceCents,
			"no_price":   fill.NoPriceCents,
			"created_at": fill.CreatedAt,
		})
		if err := e.bus.Publish(ctx, "fills", payload); err != nil {
			e.logger.WarnContext(ctx, "fill event publish failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (e *Engine) publishEvent(ctx context.Context, channel string, payload map[string]any) {
	if e.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	if err := e.bus.Publish(ctx, channel, data); err != nil {
		e.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
