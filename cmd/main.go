package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/account"
	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Z().Fatal("failed to load config", zap.Error(err))
	}

	log := logger.Init(cfg.ToLoggerOptions())
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	var collectors *metrics.Metrics
	if cfg.Metrics.Enabled {
		collectors = metrics.New()
	}

	// Session
	var storage session.Storage = session.NewMemoryStorage()
	if strings.EqualFold(cfg.Session.Backend, "redis") {
		storage = session.NewRedisStorage(redisClient, cfg.Redis.Prefix, cfg.Session.Key, cfg.Session.TTL)
	}
	auth := session.NewAuth(storage)
	if err := auth.Restore(ctx); err != nil && !errors.Is(err, session.ErrNoSession) {
		log.Warn("failed to restore session", zap.Error(err))
	}

	client, err := api.New(cfg.API, auth, api.WithMetrics(collectors))
	if err != nil {
		log.Fatal("failed to create api client", zap.Error(err))
	}

	// Catalog
	var productCache catalog.Cache
	switch strings.ToLower(cfg.Catalog.Cache) {
	case "memory":
		memCache := catalog.NewMemoryCache(cfg.Catalog.ProductCacheTTL)
		defer memCache.Close()
		productCache = memCache
	case "redis":
		productCache = catalog.NewRedisCache(redisClient, cfg.Redis.Prefix, cfg.Catalog.ProductCacheTTL)
	}

	breaker := circuitbreaker.DefaultConfig("product-details")
	breaker.ConsecutiveFailures = cfg.Catalog.Breaker.ConsecutiveFailures
	breaker.Timeout = cfg.Catalog.Breaker.OpenTimeout
	breaker.Interval = cfg.Catalog.Breaker.Interval

	products := catalog.NewService(client, catalog.Options{
		Cache:       productCache,
		Concurrency: cfg.Cart.JoinConcurrency,
		Breaker:     breaker,
		Metrics:     collectors,
	})
	defer products.Close()

	categories := catalog.NewCategoryTree(client)
	defer categories.Close()

	// Cart, checkout and the surface over them
	store := cart.NewStore(client, products, cart.Options{
		MinQty:  cfg.Cart.MinQty,
		MaxQty:  cfg.Cart.MaxQty,
		Metrics: collectors,
	})
	defer store.Close()

	flow := checkout.NewFlow(client, auth, store, checkout.Options{
		SuccessDelay: cfg.Checkout.SuccessDelay,
		Metrics:      collectors,
	})
	defer flow.Close()

	surface := storefront.New(store, flow, auth)
	defer surface.Close()

	if auth.Authenticated() {
		if err := store.Refresh(ctx); err != nil {
			log.Warn("initial cart load failed", zap.Error(err))
		}
	}

	router := h.NewRouter(h.Deps{
		Server:     cfg.Server,
		Metrics:    cfg.Metrics,
		Auth:       auth,
		Account:    account.NewService(client, auth),
		Products:   products,
		Categories: categories,
		Cart:       store,
		Checkout:   flow,
		Surface:    surface,
		Collectors: collectors,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", zap.String("port", cfg.Server.Port), zap.String("api", client.BaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
