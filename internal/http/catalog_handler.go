package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type ProductCatalog interface {
	Detail(ctx context.Context, id int64) (*domain.Product, error)
	Search(ctx context.Context, categoryID int64) ([]domain.Product, error)
}

type CategoryLoader interface {
	Load(ctx context.Context) ([]domain.CategoryNode, error)
}

type CatalogHandler struct {
	products   ProductCatalog
	categories CategoryLoader
	timeout    time.Duration
}

func NewCatalogHandler(products ProductCatalog, categories CategoryLoader, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		products:   products,
		categories: categories,
		timeout:    timeout,
	}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type CategoriesResponse struct {
	Categories []domain.CategoryNode `json:"categories"`
}

// GET /api/v1/categories
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tree, err := h.categories.Load(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if tree == nil {
		tree = []domain.CategoryNode{}
	}
	respondJSON(w, http.StatusOK, CategoriesResponse{Categories: tree})
}

// GET /api/v1/products?category_id=
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categoryID, err := strconv.ParseInt(r.URL.Query().Get("category_id"), 10, 64)
	if err != nil || categoryID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_category_id", "category_id must be a positive integer")
		return
	}

	products, err := h.products.Search(ctx, categoryID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{product_id}
func (h *CatalogHandler) Product(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}

	p, err := h.products.Detail(ctx, productID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// pathID parses a positive id URL parameter, answering 400 when it is not.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
