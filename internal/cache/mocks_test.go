package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/storefront/domain"
)

// MockSource implements Source for testing
type MockSource struct {
	Products []domain.Product
	Err      error
	Release  chan struct{} // when set, ListProducts blocks until it is closed

	calls atomic.Int32
}

func (m *MockSource) ListProducts(_ context.Context) ([]domain.Product, error) {
	m.calls.Add(1)
	if m.Release != nil {
		<-m.Release
	}
	return m.Products, m.Err
}

func (m *MockSource) Calls() int {
	return int(m.calls.Load())
}

// MockCache implements ProductCache for testing
type MockCache struct {
	mu      sync.Mutex
	stored  map[string][]domain.Product
	GetErr  error
	deleted []string
}

func NewMockCache() *MockCache {
	return &MockCache{stored: map[string][]domain.Product{}}
}

func (m *MockCache) Get(_ context.Context, key string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.stored[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return p, nil
}

func (m *MockCache) Set(_ context.Context, key string, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[key] = products
	return nil
}

func (m *MockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stored, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stored[key]
	return ok
}
