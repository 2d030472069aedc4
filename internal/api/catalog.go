package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/products/" + strconv.FormatInt(id, 10),
		Endpoint: "/products/{id}",
		Op:       "Failed to fetch product",
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SearchProducts(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	var products []domain.Product
	err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/products/search",
		Endpoint: "/products/search",
		Query:    url.Values{"category_id": []string{strconv.FormatInt(categoryID, 10)}},
		Op:       "Failed to fetch products",
	}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/categories",
		Endpoint: "/categories",
		Op:       "Failed to fetch category tree",
	}, &categories)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) ListSubcategories(ctx context.Context, parentID int64) ([]domain.Category, error) {
	var categories []domain.Category
	err := c.Do(ctx, Request{
		Method:   http.MethodGet,
		Path:     "/categories/" + strconv.FormatInt(parentID, 10) + "/subcategories",
		Endpoint: "/categories/{id}/subcategories",
		Op:       "Failed to fetch category tree",
	}, &categories)
	if err != nil {
		return nil, err
	}
	return categories, nil
}
