package catalog

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
)

// ProductSource lists the products offered by the shop
type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Model holds the product list and the product currently opened in the preview.
type Model struct {
	bus      *events.Bus
	products []domain.Product
	selected *string
}

func NewModel(bus *events.Bus) *Model {
	return &Model{bus: bus}
}

// Load fetches the product list and replaces the catalog with it. On error the
// catalog is left as it was.
func (m *Model) Load(ctx context.Context, src ProductSource) error {
	products, err := src.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	m.SetProducts(products)
	return nil
}

// SetProducts replaces the whole catalog, nothing from the previous load is kept.
func (m *Model) SetProducts(products []domain.Product) {
	m.products = make([]domain.Product, len(products))
	copy(m.products, products)
	m.bus.Emit(events.CatalogUpdated{Products: m.Products()})
}

// Products returns previews of all products in catalog order
func (m *Model) Products() []domain.ProductPreview {
	out := make([]domain.ProductPreview, len(m.products))
	for i, p := range m.products {
		out[i] = p.Preview()
	}
	return out
}

// Product looks up a product by id.
func (m *Model) Product(id string) (domain.Product, bool) {
	for _, p := range m.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// SetSelected records which product is open. Unknown ids are accepted and
// resolve to no product.
func (m *Model) SetSelected(id *string) {
	if id == nil {
		m.selected = nil
	} else {
		v := *id
		m.selected = &v
	}

	ev := events.SelectionChanged{Product: m.Selected()}
	if m.selected != nil {
		v := *m.selected
		ev.ID = &v
	}
	m.bus.Emit(ev)
}

// Selected resolves the selection against the current product list.
func (m *Model) Selected() *domain.Product {
	if m.selected == nil {
		return nil
	}
	p, ok := m.Product(*m.selected)
	if !ok {
		return nil
	}
	return &p
}

// SelectedID returns the raw selection, which may not resolve to a product
func (m *Model) SelectedID() (string, bool) {
	if m.selected == nil {
		return "", false
	}
	return *m.selected, true
}
