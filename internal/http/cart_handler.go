package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

type CartStore interface {
	View() cart.View
	Line(lineID int64) (cart.LineView, bool)
	Loaded() bool
	Refresh(ctx context.Context) error
	AddItem(ctx context.Context, productID int64, qty int) error
	SetQuantity(ctx context.Context, lineID int64, qty int) error
	Increment(ctx context.Context, lineID int64) error
	Decrement(ctx context.Context, lineID int64) error
	RemoveItem(ctx context.Context, lineID int64) error
}

// Navigator switches the open presentation surface.
type Navigator interface {
	View() storefront.View
	OpenList()
	OpenDetail(lineID int64) error
	OpenCheckout() error
}

type CartHandler struct {
	cart    CartStore
	surface Navigator
	timeout time.Duration
}

func NewCartHandler(store CartStore, surface Navigator, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    store,
		surface: surface,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gte=1"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"required"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// first visit loads the cart; a failure shows up in the view's error
	if !h.cart.Loaded() {
		_ = h.cart.Refresh(ctx)
	}
	respondJSON(w, http.StatusOK, h.cart.View())
}

// POST /api/v1/cart/refresh
func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Refresh(ctx); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cart.View())
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.cart.AddItem(ctx, req.ProductID, req.Quantity); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.cart.View())
}

// GET /api/v1/cart/items/{line_id}
//
// Opens the detail view of the line. A line that is no longer in the cart
// sends the client back to the list.
func (h *CartHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "line_id")
	if !ok {
		return
	}

	if err := h.surface.OpenDetail(lineID); err != nil {
		if errors.Is(err, storefront.ErrLineNotFound) {
			h.surface.OpenList()
			w.Header().Set("Location", "/api/v1/cart")
		}
		handleError(w, r, err)
		return
	}

	line, found := h.cart.Line(lineID)
	if !found {
		h.surface.OpenList()
		w.Header().Set("Location", "/api/v1/cart")
		handleError(w, r, cart.ErrLineNotFound)
		return
	}
	respondJSON(w, http.StatusOK, line)
}

// PUT /api/v1/cart/items/{line_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineID, ok := pathID(w, r, "line_id")
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	h.mutateLine(w, r, lineID, h.cart.SetQuantity(ctx, lineID, req.Quantity))
}

// POST /api/v1/cart/items/{line_id}/increment
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineID, ok := pathID(w, r, "line_id")
	if !ok {
		return
	}
	h.mutateLine(w, r, lineID, h.cart.Increment(ctx, lineID))
}

// POST /api/v1/cart/items/{line_id}/decrement
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineID, ok := pathID(w, r, "line_id")
	if !ok {
		return
	}
	h.mutateLine(w, r, lineID, h.cart.Decrement(ctx, lineID))
}

// DELETE /api/v1/cart/items/{line_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineID, ok := pathID(w, r, "line_id")
	if !ok {
		return
	}

	if err := h.cart.RemoveItem(ctx, lineID); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cart.View())
}

// mutateLine answers a quantity edit with the line as now displayed.
func (h *CartHandler) mutateLine(w http.ResponseWriter, r *http.Request, lineID int64, err error) {
	if err != nil {
		handleError(w, r, err)
		return
	}
	line, ok := h.cart.Line(lineID)
	if !ok {
		handleError(w, r, cart.ErrLineNotFound)
		return
	}
	respondJSON(w, http.StatusOK, line)
}
