package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mintbook/mintbook/internal/domain"
)

// PlaceOrderParams describes a new limit order.
type PlaceOrderParams struct {
	MarketID   string
	UserID     string
	Outcome    domain.Outcome
	Side       domain.OrderSide
	PriceCents int64
	Quantity   int64
}

func (p PlaceOrderParams) validate() error {
	if p.MarketID == "" || p.UserID == "" {
		return domain.ErrInvalidOrderParams
	}
	if !p.Outcome.Valid() {
		return domain.ErrInvalidOrderParams
	}
	if p.Side != domain.OrderSideBuy && p.Side != domain.OrderSideSell {
		return domain.ErrInvalidOrderParams
	}
	if p.PriceCents < domain.MinPriceCents || p.PriceCents > domain.MaxPriceCents {
		return domain.ErrInvalidOrderParams
	}
	if p.Quantity <= 0 {
		return domain.ErrInvalidOrderParams
	}
	return nil
}

// PlaceOrder validates the order, locks collateral (buy) or checks held
// shares (sell), inserts it, and matches it against the opposite-outcome
// ladder. The whole sequence runs in one transaction under the market's
// lock; on any error nothing is persisted.
func (e *Engine) PlaceOrder(ctx context.Context, p PlaceOrderParams) (domain.Order, []domain.Fill, error) {
	if err := p.validate(); err != nil {
		return domain.Order{}, nil, fmt.Errorf("engine: place order: %w", err)
	}

	lock := e.marketLock(p.MarketID)
	lock.Lock()
	defer lock.Unlock()

	var (
		order domain.Order
		fills []domain.Fill
	)
	err := e.store.WithTx(ctx, func(tx domain.Tx) error {
		market, err := tx.Markets().GetForUpdate(ctx, p.MarketID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrMarketNotFound
			}
			return err
		}
		if market.Status != domain.MarketStatusActive {
			return domain.ErrMarketInactive
		}

		users := newUserCache()
		taker, err := users.get(ctx, tx, p.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order = domain.Order{
			ID:         uuid.NewString(),
			MarketID:   p.MarketID,
			UserID:     p.UserID,
			Outcome:    p.Outcome,
			Side:       p.Side,
			PriceCents: p.PriceCents,
			Quantity:   p.Quantity,
			Status:     domain.OrderStatusOpen,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		switch p.Side {
		case domain.OrderSideBuy:
			cost := p.PriceCents * p.Quantity
			if taker.BalanceCents < cost {
				return &domain.InsufficientBalanceError{
					RequiredCents:  cost,
					AvailableCents: taker.BalanceCents,
				}
			}
			order.CollateralLockedCents = cost
			if err := applyBalance(ctx, tx, taker, p.MarketID, &order.ID, -cost, domain.LedgerReasonOrderLock); err != nil {
				return err
			}
		case domain.OrderSideSell:
			pos, err := positionForUpdate(ctx, tx, p.MarketID, p.UserID)
			if err != nil {
				return err
			}
			if held := pos.Shares(p.Outcome); held < p.Quantity {
				return &domain.InsufficientSharesError{
					Required:  p.Quantity,
					Available: held,
				}
			}
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		switch p.Side {
		case domain.OrderSideBuy:
			fills, err = e.matchMint(ctx, tx, &market, &order, users)
		case domain.OrderSideSell:
			fills, err = e.matchBurn(ctx, tx, &market, &order, users)
		}
		if err != nil {
			return err
		}

		order.Status = takerStatus(order)
		order.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().Update(ctx, order); err != nil {
			return err
		}
		market.UpdatedAt = order.UpdatedAt
		return tx.Markets().Update(ctx, market)
	})
	if err != nil {
		return domain.Order{}, nil, fmt.Errorf("engine: place order: %w", err)
	}

	e.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("market_id", order.MarketID),
		slog.String("outcome", string(order.Outcome)),
		slog.String("side", string(order.Side)),
		slog.Int64("price_cents", order.PriceCents),
		slog.Int64("quantity", order.Quantity),
		slog.Int("fills", len(fills)),
	)
	e.afterMutation(ctx, p.MarketID, fills)
	return order, fills, nil
}

// takerStatus derives the taker's post-matching status: filled when fully
// consumed, partial when some quantity matched, otherwise it stays open.
func takerStatus(o domain.Order) domain.OrderStatus {
	switch {
	case o.FilledQuantity >= o.Quantity:
		return domain.OrderStatusFilled
	case o.FilledQuantity > 0:
		return domain.OrderStatusPartial
	default:
		return domain.OrderStatusOpen
	}
}

// positionForUpdate loads a row-locked position, materializing an empty one
// for users with no prior trades in the market.
func positionForUpdate(ctx context.Context, tx domain.Tx, marketID, userID string) (domain.Position, error) {
	pos, err := tx.Positions().GetForUpdate(ctx, marketID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			now := time.Now().UTC()
			return domain.Position{MarketID: marketID, UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		return domain.Position{}, err
	}
	return pos, nil
}

// matchMint matches an incoming buy order against the opposite outcome's buy
// ladder, best price first, earliest order first within a level. A resting
// order is a valid counterparty iff it belongs to a different user and the
// two limit prices sum to at least the pair payout. Every match mints
// complementary pairs: each buyer receives shares of its own outcome at its
// own limit price, and the market reserve grows by exactly PairPayoutCents
// per pair regardless of what the two buyers actually paid; the excess
// accrues on the market's surplus.
func (e *Engine) matchMint(ctx context.Context, tx domain.Tx, market *domain.Market, taker *domain.Order, users *userCache) ([]domain.Fill, error) {
	makers, err := restingLadder(ctx, tx, market.ID, taker.Outcome.Opposite(), domain.OrderSideBuy, true)
	if err != nil {
		return nil, err
	}

	var fills []domain.Fill
	for i := range makers {
		if taker.Remaining() == 0 {
			break
		}
		maker := &makers[i]
		if taker.PriceCents+maker.PriceCents < domain.PairPayoutCents {
			// Ladder is sorted best price first; no later maker can cross.
			break
		}
		if maker.UserID == taker.UserID {
			continue
		}

		qty := min64(taker.Remaining(), maker.Remaining())

		yesOrder, noOrder := taker, maker
		if taker.Outcome == domain.OutcomeNo {
			yesOrder, noOrder = maker, taker
		}

		if err := creditShares(ctx, tx, market.ID, yesOrder.UserID, domain.OutcomeYes, qty, yesOrder.PriceCents); err != nil {
			return nil, err
		}
		if err := creditShares(ctx, tx, market.ID, noOrder.UserID, domain.OutcomeNo, qty, noOrder.PriceCents); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		taker.FilledQuantity += qty
		maker.FilledQuantity += qty
		maker.Status = takerStatus(*maker)
		maker.UpdatedAt = now
		if err := tx.Orders().Update(ctx, *maker); err != nil {
			return nil, err
		}

		market.OutstandingPairs += qty
		market.LockedCollateralCents += qty * domain.PairPayoutCents
		market.SurplusCollateralCents += qty * (yesOrder.PriceCents + noOrder.PriceCents - domain.PairPayoutCents)
		market.LastPriceCents = yesOrder.PriceCents

		fill := domain.Fill{
			ID:                   uuid.NewString(),
			MarketID:             market.ID,
			TakerOrderID:         taker.ID,
			MakerOrderID:         maker.ID,
			TakerUserID:          taker.UserID,
			MakerUserID:          maker.UserID,
			Type:                 domain.FillTypeMint,
			Quantity:             qty,
			YesPriceCents:        yesOrder.PriceCents,
			NoPriceCents:         noOrder.PriceCents,
			CollateralMovedCents: qty * domain.PairPayoutCents,
			CreatedAt:            now,
		}
		if err := tx.Fills().Create(ctx, fill); err != nil {
			return nil, err
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

// matchBurn matches an incoming sell order against the opposite outcome's
// sell ladder, lowest ask first. A valid counterparty's limit price plus the
// taker's must not exceed the pair payout. Every match burns pairs: both
// sellers are paid their own limit price per share, both share counts
// decrease, and the market reserve shrinks by PairPayoutCents per pair
// (floored at zero); what the sellers collectively left on the table accrues
// on the surplus. Fill quantity is additionally clamped to each seller's
// currently held shares so a stale resting sell can never push a position
// negative.
func (e *Engine) matchBurn(ctx context.Context, tx domain.Tx, market *domain.Market, taker *domain.Order, users *userCache) ([]domain.Fill, error) {
	makers, err := restingLadder(ctx, tx, market.ID, taker.Outcome.Opposite(), domain.OrderSideSell, false)
	if err != nil {
		return nil, err
	}

	var fills []domain.Fill
	for i := range makers {
		if taker.Remaining() == 0 {
			break
		}
		maker := &makers[i]
		if taker.PriceCents+maker.PriceCents > domain.PairPayoutCents {
			break
		}
		if maker.UserID == taker.UserID {
			continue
		}

		takerPos, err := positionForUpdate(ctx, tx, market.ID, taker.UserID)
		if err != nil {
			return nil, err
		}
		makerPos, err := positionForUpdate(ctx, tx, market.ID, maker.UserID)
		if err != nil {
			return nil, err
		}

		qty := min64(taker.Remaining(), maker.Remaining())
		qty = min64(qty, takerPos.Shares(taker.Outcome))
		qty = min64(qty, makerPos.Shares(maker.Outcome))
		if qty <= 0 {
			continue
		}

		yesOrder, noOrder := taker, maker
		if taker.Outcome == domain.OutcomeNo {
			yesOrder, noOrder = maker, taker
		}

		takerUser, err := users.get(ctx, tx, taker.UserID)
		if err != nil {
			return nil, err
		}
		makerUser, err := users.get(ctx, tx, maker.UserID)
		if err != nil {
			return nil, err
		}
		yesUser, noUser := takerUser, makerUser
		if yesOrder == maker {
			yesUser, noUser = makerUser, takerUser
		}

		if err := applyBalance(ctx, tx, yesUser, market.ID, &yesOrder.ID, qty*yesOrder.PriceCents, domain.LedgerReasonBurnRelease); err != nil {
			return nil, err
		}
		if err := applyBalance(ctx, tx, noUser, market.ID, &noOrder.ID, qty*noOrder.PriceCents, domain.LedgerReasonBurnRelease); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		takerPos.RemoveShares(taker.Outcome, qty)
		takerPos.UpdatedAt = now
		if err := tx.Positions().Upsert(ctx, takerPos); err != nil {
			return nil, err
		}
		makerPos.RemoveShares(maker.Outcome, qty)
		makerPos.UpdatedAt = now
		if err := tx.Positions().Upsert(ctx, makerPos); err != nil {
			return nil, err
		}

		taker.FilledQuantity += qty
		maker.FilledQuantity += qty
		maker.Status = takerStatus(*maker)
		maker.UpdatedAt = now
		if err := tx.Orders().Update(ctx, *maker); err != nil {
			return nil, err
		}

		released := qty * domain.PairPayoutCents
		market.OutstandingPairs = max64(0, market.OutstandingPairs-qty)
		market.LockedCollateralCents = max64(0, market.LockedCollateralCents-released)
		market.SurplusCollateralCents += qty * (domain.PairPayoutCents - yesOrder.PriceCents - noOrder.PriceCents)
		market.LastPriceCents = yesOrder.PriceCents

		fill := domain.Fill{
			ID:                   uuid.NewString(),
			MarketID:             market.ID,
			TakerOrderID:         taker.ID,
			MakerOrderID:         maker.ID,
			TakerUserID:          taker.UserID,
			MakerUserID:          maker.UserID,
			Type:                 domain.FillTypeBurn,
			Quantity:             qty,
			YesPriceCents:        yesOrder.PriceCents,
			NoPriceCents:         noOrder.PriceCents,
			CollateralMovedCents: qty * (yesOrder.PriceCents + noOrder.PriceCents),
			CreatedAt:            now,
		}
		if err := tx.Fills().Create(ctx, fill); err != nil {
			return nil, err
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

// creditShares adds qty shares of outcome at priceCents to the user's
// position, folding the acquisition into its weighted average cost.
func creditShares(ctx context.Context, tx domain.Tx, marketID, userID string, outcome domain.Outcome, qty, priceCents int64) error {
	pos, err := positionForUpdate(ctx, tx, marketID, userID)
	if err != nil {
		return err
	}
	pos.AddShares(outcome, qty, priceCents)
	pos.UpdatedAt = time.Now().UTC()
	return tx.Positions().Upsert(ctx, pos)
}

// restingLadder returns the market's open and partial orders for one
// (outcome, side) ladder, best price first. The store returns orders in
// creation order, and the price sort is stable, so ties within a price level
// keep time priority.
func restingLadder(ctx context.Context, tx domain.Tx, marketID string, outcome domain.Outcome, side domain.OrderSide, highestFirst bool) ([]domain.Order, error) {
	all, err := tx.Orders().ListResting(ctx, marketID)
	if err != nil {
		return nil, err
	}
	ladder := all[:0:0]
	for _, o := range all {
		if o.Outcome == outcome && o.Side == side && o.Remaining() > 0 {
			ladder = append(ladder, o)
		}
	}
	sort.SliceStable(ladder, func(i, j int) bool {
		if highestFirst {
			return ladder[i].PriceCents > ladder[j].PriceCents
		}
		return ladder[i].PriceCents < ladder[j].PriceCents
	})
	return ladder, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
