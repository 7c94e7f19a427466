package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mintbook/mintbook/internal/domain"
)

// CancelOrder cancels an order on behalf of its owner, refunding the
// unfilled share of a buy order's locked collateral pro rata. Repeated
// cancel attempts fail with ErrOrderNotCancellable and never refund twice.
func (e *Engine) CancelOrder(ctx context.Context, orderID, userID string) (domain.Order, error) {
	// Committed read to locate the market; ownership and state are
	// re-checked inside the transaction.
	existing, err := e.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("engine: cancel order: %w", domain.ErrOrderNotFound)
		}
		return domain.Order{}, fmt.Errorf("engine: cancel order: %w", err)
	}

	lock := e.marketLock(existing.MarketID)
	lock.Lock()
	defer lock.Unlock()

	var out domain.Order
	err = e.store.WithTx(ctx, func(tx domain.Tx) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}
		if order.UserID != userID {
			return domain.ErrNotAuthorized
		}
		if order.Terminal() {
			return domain.ErrOrderNotCancellable
		}
		users := newUserCache()
		cancelled, err := cancelResting(ctx, tx, order, users)
		if err != nil {
			return err
		}
		out = cancelled
		return nil
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("engine: cancel order: %w", err)
	}

	e.logger.InfoContext(ctx, "order cancelled",
		slog.String("order_id", out.ID),
		slog.String("market_id", out.MarketID),
	)
	e.afterMutation(ctx, out.MarketID, nil)
	return out, nil
}

// cancelResting cancels one open or partial order inside the current
// transaction. For buy orders the refund is
// collateralLocked × unfilled / quantity, written with an order_release
// ledger entry. Market aggregates are untouched: cancellation never mints or
// burns.
func cancelResting(ctx context.Context, tx domain.Tx, order domain.Order, users *userCache) (domain.Order, error) {
	if order.Side == domain.OrderSideBuy && order.CollateralLockedCents > 0 {
		refund := order.CollateralLockedCents * order.Remaining() / order.Quantity
		if refund > 0 {
			owner, err := users.get(ctx, tx, order.UserID)
			if err != nil {
				return domain.Order{}, err
			}
			if err := applyBalance(ctx, tx, owner, order.MarketID, &order.ID, refund, domain.LedgerReasonOrderRelease); err != nil {
				return domain.Order{}, err
			}
		}
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()
	if err := tx.Orders().Update(ctx, order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// cancelAllResting force-cancels every open and partial order in the market
// through the same refund path as CancelOrder, returning the count.
func cancelAllResting(ctx context.Context, tx domain.Tx, marketID string, users *userCache) (int64, error) {
	resting, err := tx.Orders().ListResting(ctx, marketID)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, order := range resting {
		if _, err := cancelResting(ctx, tx, order, users); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// CancelUserOrders cancels all of one user's resting orders in a market and
// returns how many were cancelled. The market-maker bot calls this at the top
// of each quoting cycle before laying fresh quotes.
func (e *Engine) CancelUserOrders(ctx context.Context, marketID, userID string) (int64, error) {
	lock := e.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	var count int64
	err := e.store.WithTx(ctx, func(tx domain.Tx) error {
		resting, err := tx.Orders().ListRestingByUser(ctx, marketID, userID)
		if err != nil {
			return err
		}
		users := newUserCache()
		for _, order := range resting {
			if _, err := cancelResting(ctx, tx, order, users); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("engine: cancel user orders: %w", err)
	}

	if count > 0 {
		e.afterMutation(ctx, marketID, nil)
	}
	return count, nil
}

// CancelAllOrdersForSeason force-cancels every resting order across the
// season's markets and returns how many were cancelled. Each market is
// processed in its own transaction under its own lock.
func (e *Engine) CancelAllOrdersForSeason(ctx context.Context, seasonID string) (int64, error) {
	markets, err := e.store.Markets().ListBySeason(ctx, seasonID)
	if err != nil {
		return 0, fmt.Errorf("engine: cancel season orders: %w", err)
	}

	var total int64
	for _, market := range markets {
		lock := e.marketLock(market.ID)
		lock.Lock()
		err := e.store.WithTx(ctx, func(tx domain.Tx) error {
			n, err := cancelAllResting(ctx, tx, market.ID, newUserCache())
			if err != nil {
				return err
			}
			total += n
			return nil
		})
		lock.Unlock()
		if err != nil {
			return total, fmt.Errorf("engine: cancel season orders: market %s: %w", market.ID, err)
		}
		e.afterMutation(ctx, market.ID, nil)
	}

	e.logger.InfoContext(ctx, "season orders cancelled",
		slog.String("season_id", seasonID),
		slog.Int64("count", total),
	)
	return total, nil
}
