package domain

import "github.com/shopspring/decimal"

// LineItem is the basket's projection of a product
type LineItem struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// NewLineItem projects a product into a line item. Priceless products have no
// line item representation.
func NewLineItem(p Product) (LineItem, bool) {
	if !p.Purchasable() {
		return LineItem{}, false
	}
	return LineItem{
		ID:    p.ID,
		Title: p.Title,
		Price: p.Price.Decimal,
	}, true
}
