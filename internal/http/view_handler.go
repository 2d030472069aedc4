package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/storefront"
)

type ViewHandler struct {
	surface Navigator
}

func NewViewHandler(surface Navigator) *ViewHandler {
	return &ViewHandler{surface: surface}
}

// GET /api/v1/view
func (h *ViewHandler) Current(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.surface.View())
}

// DELETE /api/v1/view closes the open overlay.
func (h *ViewHandler) Close(w http.ResponseWriter, r *http.Request) {
	if h.surface.View().Kind != storefront.KindSuccess {
		h.surface.OpenList()
	}
	respondJSON(w, http.StatusOK, h.surface.View())
}
