package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mintbook/mintbook/internal/domain"
)

var bookOrderSeq int

func mkOrder(outcome domain.Outcome, side domain.OrderSide, price, qty, filled int64, status domain.OrderStatus) domain.Order {
	bookOrderSeq++
	now := time.Now().UTC()
	return domain.Order{
		ID:             fmt.Sprintf("o%d-%s-%s", bookOrderSeq, outcome, side),
		MarketID:       "m1",
		UserID:         "u1",
		Outcome:        outcome,
		Side:           side,
		PriceCents:     price,
		Quantity:       qty,
		FilledQuantity: filled,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestBuildSnapshotLadders(t *testing.T) {
	orders := []domain.Order{
		mkOrder(domain.OutcomeYes, domain.OrderSideBuy, 55, 10, 0, domain.OrderStatusOpen),
		mkOrder(domain.OutcomeYes, domain.OrderSideBuy, 60, 5, 0, domain.OrderStatusOpen),
		mkOrder(domain.OutcomeYes, domain.OrderSideBuy, 60, 8, 3, domain.OrderStatusPartial),
		mkOrder(domain.OutcomeYes, domain.OrderSideSell, 65, 4, 0, domain.OrderStatusOpen),
		mkOrder(domain.OutcomeNo, domain.OrderSideBuy, 40, 7, 0, domain.OrderStatusOpen),
		mkOrder(domain.OutcomeNo, domain.OrderSideSell, 45, 6, 0, domain.OrderStatusOpen),
		mkOrder(domain.OutcomeNo, domain.OrderSideSell, 42, 2, 0, domain.OrderStatusOpen),
		// Excluded: terminal or fully consumed.
		mkOrder(domain.OutcomeYes, domain.OrderSideBuy, 70, 5, 5, domain.OrderStatusFilled),
		mkOrder(domain.OutcomeYes, domain.OrderSideBuy, 70, 5, 0, domain.OrderStatusCancelled),
	}

	snap := BuildSnapshot("m1", 58, orders)

	if snap.MarketID != "m1" || snap.LastPriceCents != 58 {
		t.Errorf("snapshot header = %s/%d, want m1/58", snap.MarketID, snap.LastPriceCents)
	}

	// YES bids: 60 (5+5 across two orders) above 55.
	if len(snap.YesBids) != 2 {
		t.Fatalf("yes bids = %d levels, want 2", len(snap.YesBids))
	}
	if snap.YesBids[0].PriceCents != 60 || snap.YesBids[0].Quantity != 10 || snap.YesBids[0].Orders != 2 {
		t.Errorf("best yes bid = %+v, want 60c qty 10 across 2 orders", snap.YesBids[0])
	}
	if snap.YesBids[1].PriceCents != 55 {
		t.Errorf("second yes bid = %d, want 55", snap.YesBids[1].PriceCents)
	}

	// Asks sort ascending.
	if len(snap.NoAsks) != 2 || snap.NoAsks[0].PriceCents != 42 || snap.NoAsks[1].PriceCents != 45 {
		t.Errorf("no asks = %+v, want [42 45]", snap.NoAsks)
	}
	if len(snap.YesAsks) != 1 || snap.YesAsks[0].PriceCents != 65 {
		t.Errorf("yes asks = %+v, want single 65", snap.YesAsks)
	}
	if len(snap.NoBids) != 1 || snap.NoBids[0].Quantity != 7 {
		t.Errorf("no bids = %+v, want single level qty 7", snap.NoBids)
	}
}

func TestBuildSnapshotEmpty(t *testing.T) {
	snap := BuildSnapshot("m1", 50, nil)
	if len(snap.YesBids)+len(snap.YesAsks)+len(snap.NoBids)+len(snap.NoAsks) != 0 {
		t.Errorf("empty book should have no levels, got %+v", snap)
	}
}

func TestGetOrderBookReflectsResting(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)

	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 55, 10)

	snap, err := e.GetOrderBook(context.Background(), market.ID)
	if err != nil {
		t.Fatalf("get order book: %v", err)
	}
	if len(snap.YesBids) != 1 || snap.YesBids[0].PriceCents != 55 || snap.YesBids[0].Quantity != 10 {
		t.Errorf("yes bids = %+v, want single 55c x10", snap.YesBids)
	}
	if snap.LastPriceCents != 50 {
		t.Errorf("last price = %d, want opening 50", snap.LastPriceCents)
	}
}

func TestGetOrderBookUnknownMarket(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.GetOrderBook(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown market")
	}
}
