package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/mintbook/mintbook/internal/domain"
	"github.com/mintbook/mintbook/internal/store/memory"
)

var walletSeq int

// newTestEngine creates an engine over a fresh in-memory store with a funded
// treasury account, returning the engine, the store, and the treasury user.
func newTestEngine(t *testing.T) (*Engine, *memory.Store, domain.User) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.NewStore()

	boot := New(st, "", logger)
	treasury, err := boot.CreateUser(context.Background(), nextWallet())
	if err != nil {
		t.Fatalf("create treasury user: %v", err)
	}
	return New(st, treasury.ID, logger), st, treasury
}

func nextWallet() string {
	walletSeq++
	return fmt.Sprintf("0x%040x", walletSeq)
}

func newFundedUser(t *testing.T, e *Engine, cents int64) domain.User {
	t.Helper()
	ctx := context.Background()
	user, err := e.CreateUser(ctx, nextWallet())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if cents > 0 {
		user, err = e.Deposit(ctx, user.ID, cents)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return user
}

func newActiveMarket(t *testing.T, e *Engine, openingPriceCents int64) domain.Market {
	t.Helper()
	market, err := e.CreateMarket(context.Background(), "season-1", "Will it happen?", openingPriceCents)
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	return market
}

func place(t *testing.T, e *Engine, marketID string, user domain.User, outcome domain.Outcome, side domain.OrderSide, price, qty int64) (domain.Order, []domain.Fill) {
	t.Helper()
	order, fills, err := e.PlaceOrder(context.Background(), PlaceOrderParams{
		MarketID:   marketID,
		UserID:     user.ID,
		Outcome:    outcome,
		Side:       side,
		PriceCents: price,
		Quantity:   qty,
	})
	if err != nil {
		t.Fatalf("place %s %s %d@%d: %v", side, outcome, qty, price, err)
	}
	return order, fills
}

func balance(t *testing.T, st *memory.Store, userID string) int64 {
	t.Helper()
	user, err := st.Users().GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user %s: %v", userID, err)
	}
	return user.BalanceCents
}

func position(t *testing.T, st *memory.Store, marketID, userID string) domain.Position {
	t.Helper()
	pos, err := st.Positions().Get(context.Background(), marketID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Position{MarketID: marketID, UserID: userID}
		}
		t.Fatalf("get position: %v", err)
	}
	return pos
}

func reloadMarket(t *testing.T, st *memory.Store, marketID string) domain.Market {
	t.Helper()
	market, err := st.Markets().GetByID(context.Background(), marketID)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	return market
}

// checkReserveInvariant asserts lockedCollateral == outstandingPairs × 100.
func checkReserveInvariant(t *testing.T, st *memory.Store, marketID string) {
	t.Helper()
	market := reloadMarket(t, st, marketID)
	if market.LockedCollateralCents != market.OutstandingPairs*domain.PairPayoutCents {
		t.Errorf("reserve invariant broken: locked=%d pairs=%d",
			market.LockedCollateralCents, market.OutstandingPairs)
	}
}

// checkLedgerAudit asserts each user's cached balance equals the sum of their
// ledger entries.
func checkLedgerAudit(t *testing.T, st *memory.Store, userIDs ...string) {
	t.Helper()
	for _, id := range userIDs {
		sum, err := st.Ledger().SumByUser(context.Background(), id)
		if err != nil {
			t.Fatalf("sum ledger for %s: %v", id, err)
		}
		if got := balance(t, st, id); got != sum {
			t.Errorf("user %s: balance %d != ledger sum %d", id, got, sum)
		}
	}
}

func TestDepositRejectsNonPositive(t *testing.T) {
	e, _, _ := newTestEngine(t)
	user := newFundedUser(t, e, 0)

	if _, err := e.Deposit(context.Background(), user.ID, 0); !errors.Is(err, domain.ErrInvalidOrderParams) {
		t.Errorf("deposit 0: got %v, want ErrInvalidOrderParams", err)
	}
	if _, err := e.Deposit(context.Background(), user.ID, -100); !errors.Is(err, domain.ErrInvalidOrderParams) {
		t.Errorf("deposit -100: got %v, want ErrInvalidOrderParams", err)
	}
}

func TestCreateUserRejectsBadWallet(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.CreateUser(context.Background(), "not-an-address"); !errors.Is(err, domain.ErrInvalidWalletAddress) {
		t.Errorf("got %v, want ErrInvalidWalletAddress", err)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	user := newFundedUser(t, e, 10_000)

	cases := []struct {
		name string
		p    PlaceOrderParams
	}{
		{"price below tick", PlaceOrderParams{MarketID: market.ID, UserID: user.ID, Outcome: domain.OutcomeYes, Side: domain.OrderSideBuy, PriceCents: 0, Quantity: 1}},
		{"price above tick", PlaceOrderParams{MarketID: market.ID, UserID: user.ID, Outcome: domain.OutcomeYes, Side: domain.OrderSideBuy, PriceCents: 100, Quantity: 1}},
		{"zero quantity", PlaceOrderParams{MarketID: market.ID, UserID: user.ID, Outcome: domain.OutcomeYes, Side: domain.OrderSideBuy, PriceCents: 50, Quantity: 0}},
		{"bad outcome", PlaceOrderParams{MarketID: market.ID, UserID: user.ID, Outcome: "maybe", Side: domain.OrderSideBuy, PriceCents: 50, Quantity: 1}},
		{"bad side", PlaceOrderParams{MarketID: market.ID, UserID: user.ID, Outcome: domain.OutcomeYes, Side: "hold", PriceCents: 50, Quantity: 1}},
		{"missing market", PlaceOrderParams{UserID: user.ID, Outcome: domain.OutcomeYes, Side: domain.OrderSideBuy, PriceCents: 50, Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := e.PlaceOrder(context.Background(), tc.p); !errors.Is(err, domain.ErrInvalidOrderParams) {
				t.Errorf("got %v, want ErrInvalidOrderParams", err)
			}
		})
	}
}

func TestBuyRequiresBalance(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	user := newFundedUser(t, e, 500)

	_, _, err := e.PlaceOrder(context.Background(), PlaceOrderParams{
		MarketID: market.ID, UserID: user.ID,
		Outcome: domain.OutcomeYes, Side: domain.OrderSideBuy,
		PriceCents: 60, Quantity: 10, // costs 600
	})
	var insufficient *domain.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientBalanceError", err)
	}
	if insufficient.RequiredCents != 600 || insufficient.AvailableCents != 500 {
		t.Errorf("error fields = %+v, want required 600 available 500", insufficient)
	}
	// Nothing persisted.
	if got := balance(t, st, user.ID); got != 500 {
		t.Errorf("balance = %d, want 500 (rejected order must not move money)", got)
	}
}

func TestSellRequiresShares(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	user := newFundedUser(t, e, 1_000)

	_, _, err := e.PlaceOrder(context.Background(), PlaceOrderParams{
		MarketID: market.ID, UserID: user.ID,
		Outcome: domain.OutcomeYes, Side: domain.OrderSideSell,
		PriceCents: 50, Quantity: 5,
	})
	var insufficient *domain.InsufficientSharesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientSharesError", err)
	}
}

// Scenario: complementary buys whose prices sum to exactly the pair payout
// mint pairs with zero surplus.
func TestMintAtExactSum(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	yesOrder, fills := place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 60, 10)
	if len(fills) != 0 {
		t.Fatalf("first order should rest, got %d fills", len(fills))
	}
	if yesOrder.Status != domain.OrderStatusOpen {
		t.Errorf("resting order status = %s, want open", yesOrder.Status)
	}
	if got := balance(t, st, alice.ID); got != 400 {
		t.Errorf("alice balance after lock = %d, want 400", got)
	}

	noOrder, fills := place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)
	if len(fills) != 1 {
		t.Fatalf("expected 1 mint fill, got %d", len(fills))
	}
	fill := fills[0]
	if fill.Type != domain.FillTypeMint {
		t.Errorf("fill type = %s, want mint", fill.Type)
	}
	if fill.Quantity != 10 || fill.YesPriceCents != 60 || fill.NoPriceCents != 40 {
		t.Errorf("fill = qty %d yes %d no %d, want 10/60/40",
			fill.Quantity, fill.YesPriceCents, fill.NoPriceCents)
	}
	if noOrder.Status != domain.OrderStatusFilled {
		t.Errorf("taker status = %s, want filled", noOrder.Status)
	}

	if got := position(t, st, market.ID, alice.ID); got.YesShares != 10 || got.AvgYesPriceCents != 60 {
		t.Errorf("alice position = %d@%d, want 10@60", got.YesShares, got.AvgYesPriceCents)
	}
	if got := position(t, st, market.ID, bob.ID); got.NoShares != 10 || got.AvgNoPriceCents != 40 {
		t.Errorf("bob position = %d@%d, want 10@40", got.NoShares, got.AvgNoPriceCents)
	}

	m := reloadMarket(t, st, market.ID)
	if m.OutstandingPairs != 10 || m.LockedCollateralCents != 1_000 || m.SurplusCollateralCents != 0 {
		t.Errorf("market = pairs %d locked %d surplus %d, want 10/1000/0",
			m.OutstandingPairs, m.LockedCollateralCents, m.SurplusCollateralCents)
	}
	if m.LastPriceCents != 60 {
		t.Errorf("last price = %d, want 60 (YES leg price)", m.LastPriceCents)
	}
	checkReserveInvariant(t, st, market.ID)
	checkLedgerAudit(t, st, alice.ID, bob.ID)
}

// Scenario: prices summing above the payout still fill each buyer at their
// own limit; the excess accrues on the market surplus.
func TestMintSurplusAccrues(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 70, 10)
	_, fills := place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}

	// Both buyers paid their own limit: 700 and 400.
	if got := balance(t, st, alice.ID); got != 300 {
		t.Errorf("alice balance = %d, want 300", got)
	}
	if got := balance(t, st, bob.ID); got != 600 {
		t.Errorf("bob balance = %d, want 600", got)
	}

	m := reloadMarket(t, st, market.ID)
	if m.LockedCollateralCents != 1_000 {
		t.Errorf("locked = %d, want exactly 100 per pair", m.LockedCollateralCents)
	}
	if m.SurplusCollateralCents != 100 {
		t.Errorf("surplus = %d, want 10 pairs x 10c", m.SurplusCollateralCents)
	}
	checkReserveInvariant(t, st, market.ID)
}

// Scenario: prices summing below the payout never cross.
func TestNoMatchBelowPayout(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 50, 10)
	order, fills := place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)
	if len(fills) != 0 {
		t.Fatalf("50+40 < 100 must not match, got %d fills", len(fills))
	}
	if order.Status != domain.OrderStatusOpen {
		t.Errorf("status = %s, want open", order.Status)
	}

	m := reloadMarket(t, st, market.ID)
	if m.OutstandingPairs != 0 {
		t.Errorf("pairs = %d, want 0", m.OutstandingPairs)
	}
}

func TestSelfTradePrevention(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 2_000)

	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 60, 10)
	_, fills := place(t, e, market.ID, alice, domain.OutcomeNo, domain.OrderSideBuy, 60, 10)
	if len(fills) != 0 {
		t.Fatalf("own orders must never cross, got %d fills", len(fills))
	}
	if got := position(t, st, market.ID, alice.ID); got.YesShares != 0 || got.NoShares != 0 {
		t.Errorf("position = %d yes / %d no, want zero", got.YesShares, got.NoShares)
	}
}

// Matching walks the opposite ladder best price first, earliest first within
// a level.
func TestPriceTimePriority(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	carol := newFundedUser(t, e, 1_000)
	dave := newFundedUser(t, e, 1_000)
	erin := newFundedUser(t, e, 1_000)
	taker := newFundedUser(t, e, 3_000)

	carolOrder, _ := place(t, e, market.ID, carol, domain.OutcomeNo, domain.OrderSideBuy, 40, 5)
	daveOrder, _ := place(t, e, market.ID, dave, domain.OutcomeNo, domain.OrderSideBuy, 40, 5)
	erinOrder, _ := place(t, e, market.ID, erin, domain.OutcomeNo, domain.OrderSideBuy, 45, 5)

	_, fills := place(t, e, market.ID, taker, domain.OutcomeYes, domain.OrderSideBuy, 60, 12)
	if len(fills) != 3 {
		t.Fatalf("expected 3 fills, got %d", len(fills))
	}
	// Best price (45) first, then the two 40s in placement order.
	wantMakers := []string{erinOrder.ID, carolOrder.ID, daveOrder.ID}
	for i, fill := range fills {
		if fill.MakerOrderID != wantMakers[i] {
			t.Errorf("fill %d maker = %s, want %s", i, fill.MakerOrderID, wantMakers[i])
		}
	}
	if got := fills[0].Quantity + fills[1].Quantity + fills[2].Quantity; got != 12 {
		t.Errorf("total filled = %d, want 12", got)
	}
	// Last fill is partial against dave (2 of 5).
	if fills[2].Quantity != 2 {
		t.Errorf("last fill qty = %d, want 2", fills[2].Quantity)
	}
}

// Scenario: complementary sells whose prices sum to at most the pair payout
// burn pairs; each seller is paid their own limit.
func TestBurnReleasesCollateral(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	// Mint 10 pairs at 60/40.
	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 60, 10)
	place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)

	// Burn them at 55/30: sums to 85, leaving 15 per pair on the surplus.
	sellOrder, fills := place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideSell, 55, 10)
	if len(fills) != 0 {
		t.Fatalf("lone sell should rest, got %d fills", len(fills))
	}
	_ = sellOrder
	_, fills = place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideSell, 30, 10)
	if len(fills) != 1 {
		t.Fatalf("expected 1 burn fill, got %d", len(fills))
	}
	if fills[0].Type != domain.FillTypeBurn {
		t.Errorf("fill type = %s, want burn", fills[0].Type)
	}

	// alice: 1000 - 600 + 10x55 = 950; bob: 1000 - 400 + 10x30 = 900.
	if got := balance(t, st, alice.ID); got != 950 {
		t.Errorf("alice balance = %d, want 950", got)
	}
	if got := balance(t, st, bob.ID); got != 900 {
		t.Errorf("bob balance = %d, want 900", got)
	}
	if got := position(t, st, market.ID, alice.ID); got.YesShares != 0 {
		t.Errorf("alice yes shares = %d, want 0", got.YesShares)
	}
	if got := position(t, st, market.ID, bob.ID); got.NoShares != 0 {
		t.Errorf("bob no shares = %d, want 0", got.NoShares)
	}

	m := reloadMarket(t, st, market.ID)
	if m.OutstandingPairs != 0 || m.LockedCollateralCents != 0 {
		t.Errorf("market = pairs %d locked %d, want 0/0", m.OutstandingPairs, m.LockedCollateralCents)
	}
	if m.SurplusCollateralCents != 150 {
		t.Errorf("surplus = %d, want 150 (15c x 10 pairs)", m.SurplusCollateralCents)
	}
	checkReserveInvariant(t, st, market.ID)
	checkLedgerAudit(t, st, alice.ID, bob.ID)
}

// A resting sell whose owner no longer holds the shares is skipped rather
// than pushing the position negative.
func TestBurnClampsToHeldShares(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	// Mint 10 pairs.
	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 60, 10)
	place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)

	// Alice rests two sells for her 10 shares; both pass the placement
	// check, but only 10 shares exist.
	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideSell, 50, 10)
	staleOrder, _ := place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideSell, 55, 10)

	// Burn through the better ask; this consumes all of alice's shares
	// and leaves the 55 ask resting with nothing behind it.
	_, fills := place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideSell, 30, 10)
	if len(fills) != 1 || fills[0].Quantity != 10 {
		t.Fatalf("first burn: got %d fills, want one for 10", len(fills))
	}

	// Mint 5 fresh pairs so both sides hold shares again.
	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 60, 5)
	place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 5)

	// The stale ask still shows 10 remaining, but alice holds only 5.
	takerOrder, fills := place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideSell, 30, 5)
	if len(fills) != 1 {
		t.Fatalf("second burn: got %d fills, want 1", len(fills))
	}
	if fills[0].MakerOrderID != staleOrder.ID {
		t.Errorf("maker = %s, want the stale ask %s", fills[0].MakerOrderID, staleOrder.ID)
	}
	if fills[0].Quantity != 5 {
		t.Errorf("fill qty = %d, want clamped to 5 held shares", fills[0].Quantity)
	}
	if takerOrder.Status != domain.OrderStatusFilled {
		t.Errorf("taker status = %s, want filled", takerOrder.Status)
	}
	if got := position(t, st, market.ID, alice.ID); got.YesShares != 0 {
		t.Errorf("alice yes shares = %d, want 0 (never negative)", got.YesShares)
	}
	checkReserveInvariant(t, st, market.ID)
}

// Scenario: cancelling a partially filled buy refunds exactly the unfilled
// share of the locked collateral, once.
func TestCancelRefundsProRata(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	buyOrder, _ := place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 60, 10)
	place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 4)

	// 4 of 10 filled; refund = 600 x 6/10 = 360.
	cancelled, err := e.CancelOrder(context.Background(), buyOrder.ID, alice.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if got := balance(t, st, alice.ID); got != 760 {
		t.Errorf("alice balance = %d, want 760 (1000 - 600 + 360)", got)
	}

	// Second cancel must not refund again.
	if _, err := e.CancelOrder(context.Background(), buyOrder.ID, alice.ID); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Errorf("re-cancel: got %v, want ErrOrderNotCancellable", err)
	}
	if got := balance(t, st, alice.ID); got != 760 {
		t.Errorf("alice balance after re-cancel = %d, want unchanged 760", got)
	}
	checkReserveInvariant(t, st, market.ID)
	checkLedgerAudit(t, st, alice.ID, bob.ID)
}

func TestCancelRequiresOwner(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	mallory := newFundedUser(t, e, 1_000)

	order, _ := place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 60, 10)
	if _, err := e.CancelOrder(context.Background(), order.ID, mallory.ID); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("got %v, want ErrNotAuthorized", err)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.CancelOrder(context.Background(), "missing", "whoever"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("got %v, want ErrOrderNotFound", err)
	}
}

func TestCancelUserOrders(t *testing.T) {
	e, st, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 30, 5)
	place(t, e, market.ID, alice, domain.OutcomeNo, domain.OrderSideBuy, 30, 5)
	bobOrder, _ := place(t, e, market.ID, bob, domain.OutcomeYes, domain.OrderSideBuy, 30, 5)

	count, err := e.CancelUserOrders(context.Background(), market.ID, alice.ID)
	if err != nil {
		t.Fatalf("cancel user orders: %v", err)
	}
	if count != 2 {
		t.Errorf("cancelled = %d, want 2", count)
	}
	if got := balance(t, st, alice.ID); got != 1_000 {
		t.Errorf("alice balance = %d, want full refund to 1000", got)
	}
	// Bob's order untouched.
	got, err := st.Orders().GetByID(context.Background(), bobOrder.ID)
	if err != nil {
		t.Fatalf("get bob order: %v", err)
	}
	if got.Status != domain.OrderStatusOpen {
		t.Errorf("bob order status = %s, want open", got.Status)
	}
}

func TestPlaceOnInactiveMarket(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)

	if err := e.FreezeAllMarkets(context.Background(), market.SeasonID); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	_, _, err := e.PlaceOrder(context.Background(), PlaceOrderParams{
		MarketID: market.ID, UserID: alice.ID,
		Outcome: domain.OutcomeYes, Side: domain.OrderSideBuy,
		PriceCents: 50, Quantity: 1,
	})
	if !errors.Is(err, domain.ErrMarketInactive) {
		t.Errorf("got %v, want ErrMarketInactive", err)
	}
}

func TestSettleRequiresFrozenMarket(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)

	if err := e.SettleMarket(context.Background(), market.ID, domain.OutcomeYes); !errors.Is(err, domain.ErrMarketNotFrozen) {
		t.Errorf("got %v, want ErrMarketNotFrozen", err)
	}
}

// Scenario: freeze cancels resting orders with refunds, settlement pays every
// winning share at the pair payout and sweeps the surplus to the treasury.
func TestFreezeAndSettleLifecycle(t *testing.T) {
	e, st, treasury := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	// Mint 10 pairs at 70/40: 100 cents of surplus.
	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 70, 10)
	place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)

	// A resting order that freeze must refund in full.
	place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 20, 5)

	if err := e.FreezeAllMarkets(context.Background(), market.SeasonID); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	m := reloadMarket(t, st, market.ID)
	if m.Status != domain.MarketStatusFrozen {
		t.Fatalf("status = %s, want frozen", m.Status)
	}
	if got := balance(t, st, bob.ID); got != 600 {
		t.Errorf("bob balance after freeze = %d, want 600 (resting order refunded)", got)
	}

	if err := e.SettleMarket(context.Background(), market.ID, domain.OutcomeYes); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Alice holds 10 YES: paid 10 x 100 = 1000. Final: 1000 - 700 + 1000.
	if got := balance(t, st, alice.ID); got != 1_300 {
		t.Errorf("alice balance = %d, want 1300", got)
	}
	// Bob's NO shares are worthless.
	if got := balance(t, st, bob.ID); got != 600 {
		t.Errorf("bob balance = %d, want 600", got)
	}
	// Surplus swept to treasury.
	if got := balance(t, st, treasury.ID); got != 100 {
		t.Errorf("treasury balance = %d, want 100", got)
	}

	m = reloadMarket(t, st, market.ID)
	if m.Status != domain.MarketStatusSettled {
		t.Errorf("status = %s, want settled", m.Status)
	}
	if m.WinningOutcome == nil || *m.WinningOutcome != domain.OutcomeYes {
		t.Errorf("winner = %v, want yes", m.WinningOutcome)
	}
	if m.OutstandingPairs != 0 || m.LockedCollateralCents != 0 || m.SurplusCollateralCents != 0 {
		t.Errorf("market aggregates = %d/%d/%d, want all zero",
			m.OutstandingPairs, m.LockedCollateralCents, m.SurplusCollateralCents)
	}

	// Money is conserved: deposits in == balances out.
	total := balance(t, st, alice.ID) + balance(t, st, bob.ID) + balance(t, st, treasury.ID)
	if total != 2_000 {
		t.Errorf("total balances = %d, want 2000", total)
	}
	checkLedgerAudit(t, st, alice.ID, bob.ID, treasury.ID)

	// Settlement is terminal.
	if err := e.SettleMarket(context.Background(), market.ID, domain.OutcomeNo); !errors.Is(err, domain.ErrMarketNotFrozen) {
		t.Errorf("re-settle: got %v, want ErrMarketNotFrozen", err)
	}
}

func TestGetPositionMissingIsEmpty(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	user := newFundedUser(t, e, 0)

	pos, err := e.GetPosition(context.Background(), market.ID, user.ID)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos.YesShares != 0 || pos.NoShares != 0 {
		t.Errorf("expected empty position, got %+v", pos)
	}
	if pos.MarketID != market.ID || pos.UserID != user.ID {
		t.Errorf("empty position should carry the key, got %+v", pos)
	}
}

func TestGetYesShareHolders(t *testing.T) {
	e, _, _ := newTestEngine(t)
	market := newActiveMarket(t, e, 50)
	alice := newFundedUser(t, e, 1_000)
	bob := newFundedUser(t, e, 1_000)

	place(t, e, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 60, 10)
	place(t, e, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)

	holders, err := e.GetYesShareHolders(context.Background(), market.ID)
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 1 {
		t.Fatalf("holders = %d, want 1 (NO-side bob excluded)", len(holders))
	}
	if holders[0].UserID != alice.ID || holders[0].YesShares != 10 {
		t.Errorf("holder = %+v, want alice with 10 shares", holders[0])
	}
	if holders[0].WalletAddress == "" {
		t.Error("holder wallet address missing")
	}
}

func TestSettleCreatesTreasuryOnFirstSweep(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.NewStore()
	// The treasury account does not exist yet; the first sweep creates it.
	eng := New(st, "treasury-vault", logger)

	alice := newFundedUser(t, eng, 1000)
	bob := newFundedUser(t, eng, 1000)
	market := newActiveMarket(t, eng, 50)

	// 70 + 40 over ten pairs leaves 100¢ of surplus on the market.
	place(t, eng, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 70, 10)
	place(t, eng, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)

	if err := eng.FreezeAllMarkets(ctx, "season-1"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := eng.SettleMarket(ctx, market.ID, domain.OutcomeYes); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if got := balance(t, st, "treasury-vault"); got != 100 {
		t.Errorf("treasury balance = %d, want swept surplus 100", got)
	}
	entries, err := st.Ledger().ListByUser(ctx, "treasury-vault", domain.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("list treasury ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != domain.LedgerReasonSurplusSweep {
		t.Fatalf("treasury ledger = %+v, want one surplus_sweep entry", entries)
	}
}

func TestSettleWithoutTreasuryFailsCleanly(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.NewStore()
	eng := New(st, "", logger)

	alice := newFundedUser(t, eng, 1000)
	bob := newFundedUser(t, eng, 1000)
	market := newActiveMarket(t, eng, 50)
	place(t, eng, market.ID, alice, domain.OutcomeYes, domain.OrderSideBuy, 70, 10)
	place(t, eng, market.ID, bob, domain.OutcomeNo, domain.OrderSideBuy, 40, 10)

	if err := eng.FreezeAllMarkets(ctx, "season-1"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	err := eng.SettleMarket(ctx, market.ID, domain.OutcomeYes)
	if !errors.Is(err, domain.ErrNoTreasury) {
		t.Fatalf("settle without treasury: got %v, want ErrNoTreasury", err)
	}
	// The failed settlement rolled back: surplus stays on the market and the
	// winners were not paid.
	m := reloadMarket(t, st, market.ID)
	if m.Status != domain.MarketStatusFrozen || m.SurplusCollateralCents != 100 {
		t.Errorf("market = %s surplus %d, want frozen with surplus intact", m.Status, m.SurplusCollateralCents)
	}
	if got := balance(t, st, alice.ID); got != 300 {
		t.Errorf("alice balance = %d, want unchanged 300", got)
	}
}
