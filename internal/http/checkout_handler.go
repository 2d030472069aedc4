package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

type CheckoutFlow interface {
	State() checkout.State
	Select(method string) error
	PlaceOrder(ctx context.Context, method domain.PaymentMethod) (*domain.Order, error)
	Dismiss()
}

type CheckoutHandler struct {
	flow    CheckoutFlow
	surface Navigator
	timeout time.Duration
}

func NewCheckoutHandler(flow CheckoutFlow, surface Navigator, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		flow:    flow,
		surface: surface,
		timeout: timeout,
	}
}

type PlaceOrderRequestDTO struct {
	PaymentMethod string `json:"payment_method"`
}

type SelectMethodRequestDTO struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// GET /api/v1/checkout
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	if h.surface.View().Kind != storefront.KindSuccess {
		if err := h.surface.OpenCheckout(); err != nil {
			handleError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, h.flow.State())
}

// PUT /api/v1/checkout/method
func (h *CheckoutHandler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	var req SelectMethodRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.flow.Select(req.PaymentMethod); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.flow.State())
}

// POST /api/v1/checkout
//
// An empty payment_method uses the selected one.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	method := domain.PaymentMethod("")
	if req.PaymentMethod != "" {
		m, err := domain.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			handleError(w, r, err)
			return
		}
		method = m
	}

	order, err := h.flow.PlaceOrder(ctx, method)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if order == nil {
		// the request went away before the order was placed
		respondJSON(w, http.StatusAccepted, h.flow.State())
		return
	}
	respondJSON(w, http.StatusCreated, h.flow.State())
}

// DELETE /api/v1/checkout
//
// Dismisses the success acknowledgment or the failure alert.
func (h *CheckoutHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.flow.Dismiss()
	respondJSON(w, http.StatusOK, h.flow.State())
}
