package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mintbook/mintbook/internal/domain"
	"github.com/mintbook/mintbook/internal/engine"
)

type fakeOrderService struct {
	placeOrder  domain.Order
	placeFills  []domain.Fill
	placeErr    error
	cancelOrder domain.Order
	cancelErr   error
	lastParams  engine.PlaceOrderParams
}

func (f *fakeOrderService) PlaceOrder(ctx context.Context, p engine.PlaceOrderParams) (domain.Order, []domain.Fill, error) {
	f.lastParams = p
	return f.placeOrder, f.placeFills, f.placeErr
}

func (f *fakeOrderService) CancelOrder(ctx context.Context, orderID, userID string) (domain.Order, error) {
	return f.cancelOrder, f.cancelErr
}

func (f *fakeOrderService) GetUserOrders(ctx context.Context, userID, marketID string, opts domain.ListOpts) ([]domain.Order, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlaceOrderSuccess(t *testing.T) {
	svc := &fakeOrderService{
		placeOrder: domain.Order{ID: "o1", MarketID: "m1", Status: domain.OrderStatusOpen},
	}
	h := NewOrderHandler(svc, testLogger())

	body := `{"market_id":"m1","user_id":"u1","outcome":"yes","side":"buy","price_cents":60,"quantity":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}
	if svc.lastParams.MarketID != "m1" || svc.lastParams.PriceCents != 60 || svc.lastParams.Quantity != 10 {
		t.Errorf("params = %+v, want m1/60/10", svc.lastParams)
	}
	var resp struct {
		Order domain.Order  `json:"order"`
		Fills []domain.Fill `json:"fills"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.ID != "o1" {
		t.Errorf("order id = %s, want o1", resp.Order.ID)
	}
	if resp.Fills == nil {
		t.Error("fills must marshal as [] not null")
	}
}

func TestPlaceOrderMissingFields(t *testing.T) {
	h := NewOrderHandler(&fakeOrderService{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"user_id":"u1"}`))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPlaceOrderDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid params", domain.ErrInvalidOrderParams, http.StatusBadRequest},
		{"market missing", domain.ErrMarketNotFound, http.StatusNotFound},
		{"market inactive", domain.ErrMarketInactive, http.StatusConflict},
		{"broke", &domain.InsufficientBalanceError{RequiredCents: 600, AvailableCents: 100}, http.StatusUnprocessableEntity},
		{"no shares", &domain.InsufficientSharesError{Required: 5, Available: 0}, http.StatusUnprocessableEntity},
	}
	body := `{"market_id":"m1","user_id":"u1","outcome":"yes","side":"buy","price_cents":60,"quantity":10}`
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewOrderHandler(&fakeOrderService{placeErr: tc.err}, testLogger())
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.PlaceOrder(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestCancelOrderRequiresUserID(t *testing.T) {
	h := NewOrderHandler(&fakeOrderService{}, testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/orders/o1", nil)
	req.SetPathValue("id", "o1")
	rec := httptest.NewRecorder()
	h.CancelOrder(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCancelOrderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not owner", domain.ErrNotAuthorized, http.StatusForbidden},
		{"already terminal", domain.ErrOrderNotCancellable, http.StatusConflict},
		{"missing", domain.ErrOrderNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewOrderHandler(&fakeOrderService{cancelErr: tc.err}, testLogger())
			req := httptest.NewRequest(http.MethodDelete, "/api/orders/o1?user_id=u1", nil)
			req.SetPathValue("id", "o1")
			rec := httptest.NewRecorder()
			h.CancelOrder(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestListOrdersRequiresUserID(t *testing.T) {
	h := NewOrderHandler(&fakeOrderService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()
	h.ListOrders(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
