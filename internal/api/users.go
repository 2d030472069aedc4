package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	var res domain.LoginResult
	err := c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/users/login",
		Endpoint: "/users/login",
		Body:     creds,
		Op:       "Login failed",
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &Error{Kind: KindValidation, Op: "Login failed", Status: http.StatusOK, Message: "Login failed: no token in response"}
	}
	return &res, nil
}

func (c *Client) Register(ctx context.Context, reg domain.Registration) error {
	return c.Do(ctx, Request{
		Method:   http.MethodPost,
		Path:     "/users/register",
		Endpoint: "/users/register",
		Body:     reg,
		Op:       "Registration failed",
	}, nil)
}

func (c *Client) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/users/" + strconv.FormatInt(id, 10),
		Endpoint: "/users/{id}",
		Op:       "Failed to get user data",
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
