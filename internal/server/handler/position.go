package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mintbook/mintbook/internal/domain"
)

// PositionService defines the engine methods the position handler requires.
type PositionService interface {
	GetUserPositions(ctx context.Context, userID string) ([]domain.Position, error)
	GetPosition(ctx context.Context, marketID, userID string) (domain.Position, error)
}

// PositionHandler serves position endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logger}
}

type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns a user's positions, or one position when market_id is
// given.
// GET /api/positions?user_id=...&market_id=...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	if marketID := q.Get("market_id"); marketID != "" {
		pos, err := h.positions.GetPosition(r.Context(), marketID, userID)
		if err != nil {
			writeDomainError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listPositionsResponse{Positions: []domain.Position{pos}})
		return
	}

	positions, err := h.positions.GetUserPositions(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}
