package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const productsKey = "products"

// Source is the upstream product list, usually the shop API client.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// CachedSource puts a cache in front of a Source. Cache failures are logged
// and fall through to the upstream.
type CachedSource struct {
	source Source
	cache  ProductCache
	logger *zap.Logger
	sfg    singleflight.Group // one upstream call per burst of misses

	// gen moves on every Invalidate; a fetch started under an older gen
	// must not be written back.
	mu  sync.Mutex
	gen uint64
}

func NewCachedSource(source Source, cache ProductCache, logger *zap.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

func (s *CachedSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := s.sfg.Do(productsKey, func() (interface{}, error) {
		s.mu.Lock()
		gen := s.gen
		s.mu.Unlock()

		products, err := s.cache.Get(ctx, productsKey)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("cache get error", zap.Error(err))
		}

		products, err = s.source.ListProducts(ctx)
		if err != nil {
			return nil, err
		}

		go s.fill(gen, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing a flight must not share the slice
	products := v.([]domain.Product)
	return append([]domain.Product(nil), products...), nil
}

func (s *CachedSource) fill(gen uint64, products []domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("catalog changed during fetch, not caching")
		return
	}
	if err := s.cache.Set(context.Background(), productsKey, products); err != nil {
		s.logger.Warn("cache set error", zap.Error(err))
	}
}

// Invalidate drops the cached list so the next call reaches the upstream.
// Fetches already in flight are neither cached nor joined by later callers.
func (s *CachedSource) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.sfg.Forget(productsKey)
	if err := s.cache.Delete(ctx, productsKey); err != nil {
		s.logger.Warn("cache invalidate error", zap.Error(err))
	}
}
