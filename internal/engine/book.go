package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mintbook/mintbook/internal/domain"
)

// GetOrderBook returns the market's four price ladders. When a book cache is
// attached the snapshot is served from it; on a miss it is rebuilt from the
// order store and written back.
func (e *Engine) GetOrderBook(ctx context.Context, marketID string) (domain.OrderBookSnapshot, error) {
	if e.books != nil {
		snap, err := e.books.GetSnapshot(ctx, marketID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			// Cache trouble degrades to a store read.
			e.logger.Warn("book cache read failed", "market_id", marketID, "error", err)
		}
	}

	market, err := e.GetMarket(ctx, marketID)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	orders, err := e.store.Orders().ListResting(ctx, marketID)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("engine: get order book: %w", err)
	}

	snap := BuildSnapshot(marketID, market.LastPriceCents, orders)
	if e.books != nil {
		if err := e.books.SetSnapshot(ctx, marketID, snap); err != nil {
			e.logger.Warn("book cache write failed", "market_id", marketID, "error", err)
		}
	}
	return snap, nil
}

// BuildSnapshot aggregates open and partial orders into the four ladders:
// YES bids (price desc), YES asks (price asc), NO bids, NO asks. Orders with
// nothing remaining are excluded; within a level quantities and order counts
// are summed. The aggregation is a pure function of its inputs.
func BuildSnapshot(marketID string, lastPriceCents int64, orders []domain.Order) domain.OrderBookSnapshot {
	type key struct {
		outcome domain.Outcome
		side    domain.OrderSide
	}
	levels := make(map[key]map[int64]*domain.BookLevel)

	for _, o := range orders {
		if !o.Resting() || o.Remaining() <= 0 {
			continue
		}
		k := key{o.Outcome, o.Side}
		if levels[k] == nil {
			levels[k] = make(map[int64]*domain.BookLevel)
		}
		lvl, ok := levels[k][o.PriceCents]
		if !ok {
			lvl = &domain.BookLevel{PriceCents: o.PriceCents}
			levels[k][o.PriceCents] = lvl
		}
		lvl.Quantity += o.Remaining()
		lvl.Orders++
	}

	ladder := func(outcome domain.Outcome, side domain.OrderSide, desc bool) []domain.BookLevel {
		byPrice := levels[key{outcome, side}]
		out := make([]domain.BookLevel, 0, len(byPrice))
		for _, lvl := range byPrice {
			out = append(out, *lvl)
		}
		sort.Slice(out, func(i, j int) bool {
			if desc {
				return out[i].PriceCents > out[j].PriceCents
			}
			return out[i].PriceCents < out[j].PriceCents
		})
		return out
	}

	return domain.OrderBookSnapshot{
		MarketID:       marketID,
		YesBids:        ladder(domain.OutcomeYes, domain.OrderSideBuy, true),
		YesAsks:        ladder(domain.OutcomeYes, domain.OrderSideSell, false),
		NoBids:         ladder(domain.OutcomeNo, domain.OrderSideBuy, true),
		NoAsks:         ladder(domain.OutcomeNo, domain.OrderSideSell, false),
		LastPriceCents: lastPriceCents,
		Timestamp:      time.Now().UTC(),
	}
}
