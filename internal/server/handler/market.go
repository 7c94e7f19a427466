package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mintbook/mintbook/internal/domain"
)

// MarketService defines the engine methods the market handler requires.
type MarketService interface {
	CreateMarket(ctx context.Context, seasonID, question string, openingPriceCents int64) (domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	ListActiveMarkets(ctx context.Context) ([]domain.Market, error)
	GetOrderBook(ctx context.Context, marketID string) (domain.OrderBookSnapshot, error)
	GetYesShareHolders(ctx context.Context, marketID string) ([]domain.ShareHolder, error)
}

// MarketHandler serves market and order-book endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type createMarketRequest struct {
	SeasonID          string `json:"season_id"`
	Question          string `json:"question"`
	OpeningPriceCents int64  `json:"opening_price_cents"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SeasonID == "" {
		writeError(w, http.StatusBadRequest, "season_id is required")
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), req.SeasonID, req.Question, req.OpeningPriceCents)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
}

// ListMarkets returns all active markets.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.ListActiveMarkets(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if markets == nil {
		markets = []domain.Market{}
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: markets})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// GetOrderBook returns the aggregated price-level book for a market.
// GET /api/orderbook/{marketID}
func (h *MarketHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "marketID")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	snap, err := h.markets.GetOrderBook(r.Context(), marketID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

type holdersResponse struct {
	Holders []domain.ShareHolder `json:"holders"`
}

// GetHolders returns the market's YES-share holders with wallet addresses,
// the payout export used after settlement.
// GET /api/markets/{id}/holders
func (h *MarketHandler) GetHolders(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	holders, err := h.markets.GetYesShareHolders(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if holders == nil {
		holders = []domain.ShareHolder{}
	}

	writeJSON(w, http.StatusOK, holdersResponse{Holders: holders})
}
