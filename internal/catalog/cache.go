package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache holds product details keyed by product id.
type Cache interface {
	Get(ctx context.Context, productID int64) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, productID int64) error
}

const sweepInterval = 30 * time.Second

type memoryEntry struct {
	product   domain.Product
	expiresAt time.Time
}

// MemoryCache is a process-local Cache with per-entry TTL. Expired entries are
// dropped on read and by a background sweep.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	stopSweep chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &MemoryCache{
		entries:   make(map[int64]memoryEntry),
		ttl:       ttl,
		now:       time.Now,
		stopSweep: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.sweepLoop()

	return c
}

func (c *MemoryCache) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}

func (c *MemoryCache) Get(_ context.Context, productID int64) (*domain.Product, error) {
	c.mu.RLock()
	e, ok := c.entries[productID]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, ErrCacheMiss
	}
	p := e.product
	return &p, nil
}

func (c *MemoryCache) Set(_ context.Context, product *domain.Product) error {
	if product == nil {
		return nil
	}
	c.mu.Lock()
	c.entries[product.ID] = memoryEntry{product: *product, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, productID int64) error {
	c.mu.Lock()
	delete(c.entries, productID)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweep and waits for it to exit.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopSweep)
	})
	c.wg.Wait()
	return nil
}
