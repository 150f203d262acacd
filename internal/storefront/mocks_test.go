package storefront

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
)

// MockSource implements catalog.ProductSource for testing
type MockSource struct {
	Products []domain.Product
	Err      error
	Release  chan struct{} // when set, ListProducts blocks until it is closed
}

func (m *MockSource) ListProducts(_ context.Context) ([]domain.Product, error) {
	if m.Release != nil {
		<-m.Release
	}
	return m.Products, m.Err
}

// MockSink implements checkout.OrderSink for testing
type MockSink struct {
	Result domain.OrderResult
	Err    error
	Orders []domain.Order
}

func (m *MockSink) SubmitOrder(_ context.Context, o domain.Order) (domain.OrderResult, error) {
	m.Orders = append(m.Orders, o)
	return m.Result, m.Err
}

// recordingHook implements Subscriber and captures every event per session
type recordingHook struct {
	mu   sync.Mutex
	seen map[string][]events.Kind
}

func newRecordingHook() *recordingHook {
	return &recordingHook{seen: map[string][]events.Kind{}}
}

func (h *recordingHook) Attach(bus *events.Bus, sessionID string) *events.Subscription {
	return bus.Subscribe(func(e events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.seen[sessionID] = append(h.seen[sessionID], e.Kind())
		return nil
	})
}

func (h *recordingHook) kinds(sessionID string) []events.Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Kind(nil), h.seen[sessionID]...)
}

func testCatalog() []domain.Product {
	return []domain.Product{
		{ID: "p1", Title: "+1 час в сутках", Category: domain.CategorySoftSkill, Price: domain.NewPrice(750)},
		{ID: "p2", Title: "Бэкенд-антистресс", Category: domain.CategoryOther, Price: domain.NewPrice(1000)},
		{ID: "p3", Title: "Мамка-таймер", Category: domain.CategoryOther, Price: domain.Priceless()},
	}
}
