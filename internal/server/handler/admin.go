package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mintbook/mintbook/internal/domain"
)

// AdminService defines the engine methods the admin handler requires.
type AdminService interface {
	FreezeAllMarkets(ctx context.Context, seasonID string) error
	SettleMarket(ctx context.Context, marketID string, winner domain.Outcome) error
}

// AdminHandler serves the operator-only freeze and settlement endpoints.
// After a successful settlement the market's fills and ledger are exported to
// cold storage when an archiver is configured.
type AdminHandler struct {
	admin    AdminService
	archiver domain.Archiver
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. archiver may be nil.
func NewAdminHandler(admin AdminService, archiver domain.Archiver, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, archiver: archiver, logger: logger}
}

type freezeRequest struct {
	SeasonID string `json:"season_id"`
}

// Freeze freezes every active market in a season, force-cancelling resting
// orders with refunds.
// POST /api/admin/freeze
func (h *AdminHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	var req freezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SeasonID == "" {
		writeError(w, http.StatusBadRequest, "season_id is required")
		return
	}

	if err := h.admin.FreezeAllMarkets(r.Context(), req.SeasonID); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "frozen",
		"season_id": req.SeasonID,
	})
}

type settleRequest struct {
	MarketID string `json:"market_id"`
	Winner   string `json:"winner"`
}

// Settle declares the winning outcome of a frozen market, paying out holders.
// POST /api/admin/settle
func (h *AdminHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	winner := domain.Outcome(req.Winner)
	if req.MarketID == "" || !winner.Valid() {
		writeError(w, http.StatusBadRequest, "market_id and winner (yes|no) are required")
		return
	}

	if err := h.admin.SettleMarket(r.Context(), req.MarketID, winner); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	var archived int64
	if h.archiver != nil {
		// Archival is best-effort: settlement has already committed.
		n, err := h.archiver.ArchiveMarket(r.Context(), req.MarketID)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: market archive failed",
				slog.String("market_id", req.MarketID),
				slog.String("error", err.Error()),
			)
		} else {
			archived = n
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "settled",
		"market_id":        req.MarketID,
		"winner":           req.Winner,
		"archived_records": archived,
	})
}
