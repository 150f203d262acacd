package domain

import "github.com/shopspring/decimal"

// Order is the payload posted to the order service. It is assembled right
// before submission from the customer form and the current basket.
type Order struct {
	Payment PaymentMethod   `json:"payment"`
	Address string          `json:"address"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Items   []string        `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

func NewOrder(c Customer, items []string, total decimal.Decimal) Order {
	ids := make([]string, len(items))
	copy(ids, items)
	return Order{
		Payment: c.Payment,
		Address: c.Address,
		Email:   c.Email,
		Phone:   c.Phone,
		Items:   ids,
		Total:   total,
	}
}

// Clone returns a copy whose Items can be changed independently.
func (o Order) Clone() Order {
	if o.Items != nil {
		items := make([]string, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

// OrderResult is the order service response for an accepted order
type OrderResult struct {
	ID    string          `json:"id"`
	Total decimal.Decimal `json:"total"`
}
