package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type AccountService interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error)
	Register(ctx context.Context, reg domain.Registration) error
	Logout(ctx context.Context)
	CurrentUser(ctx context.Context) (*domain.User, error)
}

type SessionHandler struct {
	account AccountService
	timeout time.Duration
}

func NewSessionHandler(account AccountService, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		account: account,
		timeout: timeout,
	}
}

type LoginResponseDTO struct {
	UserID int64        `json:"user_id"`
	User   *domain.User `json:"user,omitempty"`
}

// POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Credentials
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	res, err := h.account.Login(ctx, req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := LoginResponseDTO{User: res.User}
	if res.User != nil {
		resp.UserID = res.User.ID
	}
	respondJSON(w, http.StatusOK, resp)
}

// POST /api/v1/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Registration
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.account.Register(ctx, req); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// GET /api/v1/session
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.account.CurrentUser(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// DELETE /api/v1/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.account.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
