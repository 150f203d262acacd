package basket

import (
	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/shopspring/decimal"
)

// Model is the shopping basket. It holds at most one line item per product.
type Model struct {
	bus   *events.Bus
	items []domain.LineItem
}

func NewModel(bus *events.Bus) *Model {
	return &Model{bus: bus}
}

// AddItem appends the item unless a line with the same id is already present.
func (m *Model) AddItem(item domain.LineItem) bool {
	if m.Contains(item.ID) {
		return false
	}
	m.items = append(m.items, item)
	m.emitUpdated()
	return true
}

// AddProduct adds a purchasable product. Priceless products are ignored.
func (m *Model) AddProduct(p domain.Product) bool {
	item, ok := domain.NewLineItem(p)
	if !ok {
		return false
	}
	return m.AddItem(item)
}

// Toggle removes the product if it is in the basket and adds it otherwise.
// It reports whether the product is in the basket afterwards.
func (m *Model) Toggle(p domain.Product) bool {
	if m.RemoveItem(p.ID) {
		return false
	}
	return m.AddProduct(p)
}

// RemoveItem drops the line with the given id. Removing an absent id changes
// nothing and emits nothing.
func (m *Model) RemoveItem(id string) bool {
	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i:i], m.items[i+1:]...)
			m.emitUpdated()
			return true
		}
	}
	return false
}

func (m *Model) Contains(id string) bool {
	for _, it := range m.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

// Items returns a copy of the basket lines in insertion order
func (m *Model) Items() []domain.LineItem {
	out := make([]domain.LineItem, len(m.items))
	copy(out, m.items)
	return out
}

// IDs returns the product ids in insertion order.
func (m *Model) IDs() []string {
	out := make([]string, len(m.items))
	for i, it := range m.items {
		out[i] = it.ID
	}
	return out
}

func (m *Model) Count() int {
	return len(m.items)
}

func (m *Model) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range m.items {
		total = total.Add(it.Price)
	}
	return total
}

// Clear empties the basket. On a non-empty basket it emits ItemsCleared and
// then ItemsUpdated with no items.
func (m *Model) Clear() {
	if len(m.items) == 0 {
		return
	}
	m.items = nil
	m.bus.Emit(events.ItemsCleared{})
	m.emitUpdated()
}

func (m *Model) emitUpdated() {
	m.bus.Emit(events.ItemsUpdated{Items: m.Items()})
}
