// Package catalog fetches product details and the category tree, and joins
// cart lines with product display data.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

const (
	defaultConcurrency = 8
	cacheWriteTimeout  = time.Second
)

// ProductAPI is the part of the API client the catalog needs.
type ProductAPI interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	SearchProducts(ctx context.Context, categoryID int64) ([]domain.Product, error)
	AssetURL(path string) string
}

type Options struct {
	Cache       Cache // nil disables caching
	Concurrency int
	Breaker     circuitbreaker.Config
	Metrics     *metrics.Metrics
}

type Service struct {
	api         ProductAPI
	cache       Cache
	sfg         singleflight.Group
	breaker     *gobreaker.CircuitBreaker[*domain.Product]
	metrics     *metrics.Metrics
	concurrency int

	// shared product fetches run on the service lifetime, not on the
	// context of whichever caller started them
	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(productAPI ProductAPI, opts Options) *Service {
	breakerCfg := opts.Breaker
	if breakerCfg.Name == "" {
		breakerCfg = circuitbreaker.DefaultConfig("product-details")
	}
	breakerCfg.IsSuccessful = func(err error) bool {
		return err == nil || api.IsCanceled(err) || api.IsClientError(err)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		api:         productAPI,
		cache:       opts.Cache,
		breaker:     circuitbreaker.New[*domain.Product](breakerCfg),
		metrics:     opts.Metrics,
		concurrency: concurrency,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Product returns the details of one product, from cache when possible.
// Concurrent lookups of the same id share one request. Failures are not cached.
func (s *Service) Product(ctx context.Context, id int64) (*domain.Product, error) {
	if p, ok := s.cached(ctx, id); ok {
		return p, nil
	}

	ch := s.sfg.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		return s.fetch(id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		p := *res.Val.(*domain.Product)
		return &p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) cached(ctx context.Context, id int64) (*domain.Product, bool) {
	if s.cache == nil {
		return nil, false
	}
	p, err := s.cache.Get(ctx, id)
	switch {
	case err == nil:
		s.metrics.ProductCache("hit")
		return p, true
	case errors.Is(err, ErrCacheMiss):
		s.metrics.ProductCache("miss")
	default:
		s.metrics.ProductCache("error")
		logger.FromContext(ctx).Warn("product cache get", zap.Int64("product_id", id), zap.Error(err))
	}
	return nil, false
}

func (s *Service) fetch(id int64) (*domain.Product, error) {
	p, err := s.breaker.Execute(func() (*domain.Product, error) {
		return s.api.GetProduct(s.ctx, id)
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			return nil, fmt.Errorf("fetch product %d: %w", id, err)
		}
		return nil, err
	}

	if s.cache != nil {
		ctx, cancel := context.WithTimeout(s.ctx, cacheWriteTimeout)
		if err := s.cache.Set(ctx, p); err != nil {
			logger.Z().Warn("product cache set", zap.Int64("product_id", id), zap.Error(err))
		}
		cancel()
	}
	return p, nil
}

// Invalidate drops a product from the cache.
func (s *Service) Invalidate(ctx context.Context, id int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, id)
}

// Join builds one card per cart line, in line order. Lines whose product
// cannot be fetched get a placeholder card; only cancellation fails the join.
func (s *Service) Join(ctx context.Context, items []domain.CartItem) ([]domain.Card, error) {
	cards := make([]domain.Card, len(items))
	if len(items) == 0 {
		return cards, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, item := range items {
		g.Go(func() error {
			p, err := s.Product(gctx, item.Product.ID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logger.FromContext(ctx).Warn("product details unavailable",
					zap.Int64("line_id", item.ID),
					zap.Int64("product_id", item.Product.ID),
					zap.Error(err),
				)
				cards[i] = domain.PlaceholderCard(item, err)
				return nil
			}
			cards[i] = s.Card(item, p)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cards, nil
}

// Card joins one line with its product.
func (s *Service) Card(item domain.CartItem, p *domain.Product) domain.Card {
	return domain.Card{
		LineID:    item.ID,
		ProductID: item.Product.ID,
		Quantity:  item.Quantity,
		Subtotal:  item.Subtotal,
		Price:     item.Price(),
		Name:      p.Name,
		Category:  p.CategoryLabel(),
		ImageURL:  s.api.AssetURL(p.FirstImage()),
	}
}

// Search lists the products of a category with absolute image URLs and the
// category name flattened into CategoryName.
func (s *Service) Search(ctx context.Context, categoryID int64) ([]domain.Product, error) {
	products, err := s.api.SearchProducts(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	for i := range products {
		s.display(&products[i])
	}
	return products, nil
}

// Detail is Product prepared for display like Search results.
func (s *Service) Detail(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	s.display(p)
	return p, nil
}

func (s *Service) display(p *domain.Product) {
	images := make([]domain.ProductImage, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, domain.ProductImage{URL: s.api.AssetURL(img.URL)})
	}
	p.Images = images
	p.CategoryName = p.CategoryLabel()
}

// Close cancels shared fetches still in flight.
func (s *Service) Close() {
	s.cancel()
}
