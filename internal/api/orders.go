package api

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CreateOrder places an order. The idempotency key lets the server drop a
// resubmitted request; an empty key is omitted.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (*domain.Order, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}

	var order domain.Order
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/orders",
		Endpoint: "/orders",
		Body:     req,
		Header:   header,
		Op:       "Failed to create order",
	}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}
