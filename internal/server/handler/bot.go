package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mintbook/mintbook/internal/bot"
)

// BotService defines the market-maker controls the bot handler requires.
type BotService interface {
	Start(ctx context.Context) error
	Stop() error
	Status(ctx context.Context) bot.Status
}

// BotHandler serves market-maker lifecycle endpoints.
type BotHandler struct {
	bot    BotService
	logger *slog.Logger
}

// NewBotHandler creates a BotHandler.
func NewBotHandler(b BotService, logger *slog.Logger) *BotHandler {
	return &BotHandler{bot: b, logger: logger}
}

// Status reports whether the bot is running and its current positions.
// GET /api/bot/status
func (h *BotHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bot.Status(r.Context()))
}

// Start launches the quoting loop.
// POST /api/bot/start
func (h *BotHandler) Start(w http.ResponseWriter, r *http.Request) {
	// The loop must outlive this request, so it runs on the background
	// context rather than the request's.
	if err := h.bot.Start(context.Background()); err != nil {
		if errors.Is(err, bot.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// Stop halts the quoting loop.
// POST /api/bot/stop
func (h *BotHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.bot.Stop(); err != nil {
		if errors.Is(err, bot.ErrNotRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}
