package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mintbook/mintbook/internal/domain"
	"github.com/mintbook/mintbook/internal/engine"
)

// OrderService defines the engine methods the order handler requires.
type OrderService interface {
	PlaceOrder(ctx context.Context, p engine.PlaceOrderParams) (domain.Order, []domain.Fill, error)
	CancelOrder(ctx context.Context, orderID, userID string) (domain.Order, error)
	GetUserOrders(ctx context.Context, userID, marketID string, opts domain.ListOpts) ([]domain.Order, error)
}

// OrderHandler serves order placement, cancellation, and listing.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

type placeOrderRequest struct {
	MarketID   string `json:"market_id"`
	UserID     string `json:"user_id"`
	Outcome    string `json:"outcome"`
	Side       string `json:"side"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int64  `json:"quantity"`
}

type placeOrderResponse struct {
	Order domain.Order  `json:"order"`
	Fills []domain.Fill `json:"fills"`
}

// PlaceOrder creates a new limit order.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.MarketID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "market_id and user_id are required")
		return
	}

	order, fills, err := h.orders.PlaceOrder(r.Context(), engine.PlaceOrderParams{
		MarketID:   req.MarketID,
		UserID:     req.UserID,
		Outcome:    domain.Outcome(req.Outcome),
		Side:       domain.OrderSide(req.Side),
		PriceCents: req.PriceCents,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if fills == nil {
		fills = []domain.Fill{}
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{Order: order, Fills: fills})
}

// CancelOrder cancels an order on behalf of its owner.
// DELETE /api/orders/{id}?user_id=...
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if id == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "order id and user_id are required")
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), id, userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type listOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// ListOrders returns a user's orders, optionally scoped to one market.
// GET /api/orders?user_id=...&market_id=...&limit=50&offset=0
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	orders, err := h.orders.GetUserOrders(r.Context(), userID, q.Get("market_id"), parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}
