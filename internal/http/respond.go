package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/account"
	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/fjod/go_cart/storefront/internal/validation"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

type ErrorResponse struct {
	Error  string                  `json:"error"`
	Code   string                  `json:"code,omitempty"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

var errInvalidBody = errors.New("invalid JSON body")

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Z().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeJSON reads the body into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return maxErr
		}
		return errInvalidBody
	}
	return validation.Struct(dst)
}

// handleError converts a service error into an HTTP error response.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Code:   "validation_failed",
			Fields: verr.Fields,
		})
		return
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, errInvalidBody):
		httpStatus, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, cart.ErrLineNotFound), errors.Is(err, storefront.ErrLineNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, cart.ErrInvalidQuantity):
		httpStatus, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, cart.ErrInvalidProduct):
		httpStatus, code = http.StatusBadRequest, "invalid_product_id"
	case errors.Is(err, domain.ErrInvalidPaymentMethod):
		httpStatus, code = http.StatusBadRequest, "invalid_payment_method"
	case errors.Is(err, checkout.ErrNoPaymentMethod):
		httpStatus, code = http.StatusBadRequest, "missing_payment_method"
	case errors.Is(err, cart.ErrLineBusy), errors.Is(err, cart.ErrRemovalPending), errors.Is(err, checkout.ErrOrderInFlight):
		httpStatus, code = http.StatusConflict, "already_pending"
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, storefront.ErrEmptyCart):
		httpStatus, code = http.StatusConflict, "cart_empty"
	case errors.Is(err, checkout.ErrNoShippingAddress):
		httpStatus, code = http.StatusUnprocessableEntity, "no_shipping_address"
	case errors.Is(err, checkout.ErrNotAuthenticated), errors.Is(err, account.ErrNotAuthenticated):
		httpStatus, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, cart.ErrClosed), errors.Is(err, checkout.ErrClosed), errors.Is(err, storefront.ErrClosed):
		httpStatus, code = http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, catalog.ErrCategoryTree):
		httpStatus, code = http.StatusBadGateway, "upstream_error"
	case circuitbreaker.IsOpen(err):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		httpStatus, code = upstreamStatus(err)
	}

	if httpStatus >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondError(w, httpStatus, code, api.Message(err))
}

func upstreamStatus(err error) (int, string) {
	switch api.KindOf(err) {
	case api.KindUnauthorized:
		return http.StatusUnauthorized, "unauthenticated"
	case api.KindTimeout:
		return http.StatusGatewayTimeout, "timeout"
	case api.KindNetwork:
		return http.StatusBadGateway, "upstream_unreachable"
	case api.KindValidation:
		return http.StatusBadGateway, "invalid_upstream_response"
	case api.KindServer:
		if api.IsClientError(err) {
			return api.StatusOf(err), "rejected"
		}
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
