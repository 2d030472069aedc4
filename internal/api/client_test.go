package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

// mockAuth records invalidations
type mockAuth struct {
	mu          sync.Mutex
	token       string
	gen         uint64
	invalidated []uint64
}

func (m *mockAuth) Current() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.gen
}

func (m *mockAuth) Invalidate(_ context.Context, gen uint64, _ session.Reason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, gen)
	if gen != m.gen || m.token == "" {
		return false
	}
	m.token = ""
	m.gen++
	return true
}

func newTestClient(t *testing.T, handler http.HandlerFunc, auth Authenticator, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(config.APIConfig{BaseURL: srv.URL + "/", Timeout: timeout, AuthScheme: "Bearer"}, auth)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := New(config.APIConfig{BaseURL: "/api"}, nil)
	assert.Error(t, err)
}

func TestRequestHeaders(t *testing.T) {
	auth := &mockAuth{token: "tok", gen: 1}
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		assert.Equal(t, "/cart/item/5", r.URL.Path)
		var body updateQuantityBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3, body.Quantity)
		w.WriteHeader(http.StatusNoContent)
	}, auth, time.Second)

	ctx := logger.WithRequestID(context.Background(), "req-1")
	require.NoError(t, c.UpdateCartItem(ctx, 5, 3))

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "req-1", got.Get("X-Request-ID"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
}

func TestRawTokenScheme(t *testing.T) {
	var authz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(config.APIConfig{BaseURL: srv.URL}, &mockAuth{token: "raw", gen: 1})
	require.NoError(t, err)
	require.NoError(t, c.RemoveCartItem(context.Background(), 1))
	assert.Equal(t, "raw", authz)
}

func TestNoAuthorizationWhenSignedOut(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []domain.Category{})
	}, &mockAuth{}, time.Second)

	_, err := c.ListCategories(context.Background())
	require.NoError(t, err)
}

func TestServerErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"structured message", http.StatusConflict, `{"message":"Out of stock"}`, "Out of stock"},
		{"empty body falls back", http.StatusInternalServerError, ``, "Failed to add to cart"},
		{"html body falls back", http.StatusBadGateway, `<html>bad gateway</html>`, "Failed to add to cart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil, time.Second)

			err := c.AddCartItem(context.Background(), 1, 1)
			require.Error(t, err)
			assert.Equal(t, KindServer, KindOf(err))
			assert.Equal(t, tt.status, StatusOf(err))
			assert.Equal(t, tt.message, Message(err))
		})
	}
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	auth := &mockAuth{token: "tok", gen: 4}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	}, auth, time.Second)

	_, err := c.GetCart(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.Equal(t, "token expired", Message(err))
	assert.Equal(t, []uint64{4}, auth.invalidated)
	assert.Empty(t, auth.token)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, nil, 50*time.Millisecond)
	defer close(release)

	_, err := c.GetCart(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.False(t, IsCanceled(err))
}

func TestCallerCancellationIsSilent(t *testing.T) {
	started := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}, nil, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.GetCart(ctx)
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Equal(t, Kind(0), KindOf(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(config.APIConfig{BaseURL: base, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.GetProduct(context.Background(), 1)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestGetCartRejectsMalformedPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":{},"total":"12"}`))
	}, nil, time.Second)

	_, err := c.GetCart(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, errors.Is(err, domain.ErrMalformedSnapshot))
}

func TestGetCart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"id":1,"product":{"id":3,"name":"Mug","price":10},"quantity":2,"subtotal":20}],"total":20}`))
	}, nil, time.Second)

	snap, err := c.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.True(t, decimal.NewFromInt(20).Equal(snap.Total))
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var body domain.OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, domain.PaymentBlik, body.PaymentMethod)
		assert.Equal(t, int64(8), body.ShippingAddressID)
		w.WriteHeader(http.StatusCreated)
	}, nil, time.Second)

	order, err := c.CreateOrder(context.Background(), domain.OrderRequest{PaymentMethod: domain.PaymentBlik, ShippingAddressID: 8}, "key-1")
	require.NoError(t, err)
	assert.NotNil(t, order)
}

func TestSearchProductsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/search", r.URL.Path)
		assert.Equal(t, "12", r.URL.Query().Get("category_id"))
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Mug", "price": 9.5}})
	}, nil, time.Second)

	products, err := c.SearchProducts(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Mug", products[0].Name)
}

func TestLoginRequiresToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 1}})
	}, nil, time.Second)

	_, err := c.Login(context.Background(), domain.Credentials{Email: "a@b.c", Password: "x"})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestResolveAsset(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://api/", "/img/a.png", "http://api/img/a.png"},
		{"http://api", "img/a.png", "http://api/img/a.png"},
		{"http://api//", "//img/a.png", "http://api/img/a.png"},
		{"http://api", "", ""},
		{"http://api", "https://cdn/x.png", "https://cdn/x.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveAsset(tt.base, tt.path))
	}
}
