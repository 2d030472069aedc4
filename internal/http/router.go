// Package http serves the storefront surfaces (cart list, line detail,
// checkout) as JSON over one shared cart store.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

type Deps struct {
	Server  config.ServerConfig
	Metrics config.MetricsConfig

	Auth       Authenticated
	Account    AccountService
	Products   ProductCatalog
	Categories CategoryLoader
	Cart       CartStore
	Checkout   CheckoutFlow
	Surface    Navigator
	Collectors *metrics.Metrics
}

func NewRouter(d Deps) http.Handler {
	timeout := d.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	sessionHandler := NewSessionHandler(d.Account, timeout)
	catalogHandler := NewCatalogHandler(d.Products, d.Categories, timeout)
	cartHandler := NewCartHandler(d.Cart, d.Surface, timeout)
	checkoutHandler := NewCheckoutHandler(d.Checkout, d.Surface, timeout)
	viewHandler := NewViewHandler(d.Surface)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(MaxBodySize(d.Server.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics.Enabled {
		path := d.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Collectors.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Post("/login", sessionHandler.Login)
			r.Post("/register", sessionHandler.Register)
			r.Get("/", sessionHandler.Current)
			r.Delete("/", sessionHandler.Logout)
		})

		r.Get("/categories", catalogHandler.Categories)
		r.Get("/products", catalogHandler.Products)
		r.Get("/products/{product_id}", catalogHandler.Product)

		r.Group(func(r chi.Router) {
			r.Use(AuthGuard(d.Auth))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/refresh", cartHandler.Refresh)
				r.Post("/items", cartHandler.AddItem)
				r.Get("/items/{line_id}", cartHandler.GetItem)
				r.Put("/items/{line_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{line_id}", cartHandler.RemoveItem)
				r.Post("/items/{line_id}/increment", cartHandler.Increment)
				r.Post("/items/{line_id}/decrement", cartHandler.Decrement)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.GetCheckout)
				r.Post("/", checkoutHandler.PlaceOrder)
				r.Delete("/", checkoutHandler.Dismiss)
				r.Put("/method", checkoutHandler.SelectMethod)
			})

			r.Get("/view", viewHandler.Current)
			r.Delete("/view", viewHandler.Close)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.FromContext(r.Context()).Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
