package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type addItemBody struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateQuantityBody struct {
	Quantity int `json:"quantity"`
}

// GetCart fetches and validates the caller's cart. A malformed payload is a
// validation error wrapping domain.ErrMalformedSnapshot.
func (c *Client) GetCart(ctx context.Context) (*domain.Snapshot, error) {
	const op = "Failed to fetch cart"

	var raw json.RawMessage
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/cart", Endpoint: "/cart", Op: op}, &raw)
	if err != nil {
		return nil, err
	}

	snap, err := domain.ParseSnapshot(raw)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Status: http.StatusOK, Message: "Invalid cart data", Err: err}
	}
	return snap, nil
}

func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int) error {
	return c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/cart/add",
		Endpoint: "/cart/add",
		Body:     addItemBody{ProductID: productID, Quantity: quantity},
		Op:       "Failed to add to cart",
	}, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, lineID int64, quantity int) error {
	return c.Do(ctx, Request{
		Method:   http.MethodPut,
		Path:     "/cart/item/" + strconv.FormatInt(lineID, 10),
		Endpoint: "/cart/item/{id}",
		Body:     updateQuantityBody{Quantity: quantity},
		Op:       "Failed to update cart item",
	}, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, lineID int64) error {
	return c.Do(ctx, Request{
		Method:   http.MethodDelete,
		Path:     "/cart/item/" + strconv.FormatInt(lineID, 10),
		Endpoint: "/cart/item/{id}",
		Op:       "Failed to remove cart item",
	}, nil)
}
