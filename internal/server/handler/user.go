package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mintbook/mintbook/internal/domain"
)

// UserService defines the engine methods the user handler requires.
type UserService interface {
	CreateUser(ctx context.Context, walletAddress string) (domain.User, error)
	Deposit(ctx context.Context, userID string, amountCents int64) (domain.User, error)
}

// UserHandler serves account creation and funding.
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type createUserRequest struct {
	WalletAddress string `json:"wallet_address"`
}

// CreateUser registers a new exchange account keyed by wallet address.
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet_address is required")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.WalletAddress)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type depositRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// Deposit credits an account's balance.
// POST /api/users/{id}/deposit
func (h *UserHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "amount_cents must be positive")
		return
	}

	user, err := h.users.Deposit(r.Context(), id, req.AmountCents)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
