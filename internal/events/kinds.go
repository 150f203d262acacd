package events

import (
	"github.com/fjod/go_cart/storefront/domain"
	"github.com/shopspring/decimal"
)

// Kind names an event. Every kind belongs to exactly one Family.
type Kind string

const (
	KindCatalogUpdated    Kind = "catalog:updated"
	KindSelectionChanged  Kind = "catalog:selected"
	KindItemsUpdated      Kind = "basket:items:updated"
	KindItemsCleared      Kind = "basket:items:cleared"
	KindCustomerUpdated   Kind = "order:customer:updated"
	KindCustomerCleared   Kind = "order:customer:cleared"
	KindFormErrorsChanged Kind = "formErrors:change"
	KindOrderDataReady    Kind = "order:data:ready"
	KindCheckoutStep      Kind = "checkout:step"
	KindOrderSubmitted    Kind = "checkout:submitted"
	KindOrderFailed       Kind = "checkout:failed"
)

// Family groups related kinds so a subscriber can follow a whole model.
type Family string

const (
	FamilyCatalog  Family = "catalog"
	FamilyBasket   Family = "basket"
	FamilyOrder    Family = "order"
	FamilyCheckout Family = "checkout"
)

var kindFamilies = map[Kind]Family{
	KindCatalogUpdated:    FamilyCatalog,
	KindSelectionChanged:  FamilyCatalog,
	KindItemsUpdated:      FamilyBasket,
	KindItemsCleared:      FamilyBasket,
	KindCustomerUpdated:   FamilyOrder,
	KindCustomerCleared:   FamilyOrder,
	KindFormErrorsChanged: FamilyOrder,
	KindOrderDataReady:    FamilyOrder,
	KindCheckoutStep:      FamilyCheckout,
	KindOrderSubmitted:    FamilyCheckout,
	KindOrderFailed:       FamilyCheckout,
}

func (k Kind) Family() Family {
	return kindFamilies[k]
}

func (k Kind) String() string {
	return string(k)
}

// Event is implemented by every payload type below.
type Event interface {
	Kind() Kind
}

// CatalogUpdated carries the display-safe projection of a freshly loaded catalog.
type CatalogUpdated struct {
	Products []domain.ProductPreview `json:"products"`
}

func (CatalogUpdated) Kind() Kind { return KindCatalogUpdated }

// SelectionChanged is emitted when a product card is opened or closed.
// Product is nil when the id is nil or unknown.
type SelectionChanged struct {
	ID      *string         `json:"id"`
	Product *domain.Product `json:"product"`
}

func (SelectionChanged) Kind() Kind { return KindSelectionChanged }

type ItemsUpdated struct {
	Items []domain.LineItem `json:"items"`
}

func (ItemsUpdated) Kind() Kind { return KindItemsUpdated }

type ItemsCleared struct{}

func (ItemsCleared) Kind() Kind { return KindItemsCleared }

type CustomerUpdated struct {
	Customer domain.Customer `json:"customer"`
}

func (CustomerUpdated) Kind() Kind { return KindCustomerUpdated }

type CustomerCleared struct{}

func (CustomerCleared) Kind() Kind { return KindCustomerCleared }

// FormErrorsChanged carries the complete error map after a validation run.
type FormErrorsChanged struct {
	Errors domain.FormErrors `json:"errors"`
}

func (FormErrorsChanged) Kind() Kind { return KindFormErrorsChanged }

type OrderDataReady struct {
	Order domain.Order `json:"order"`
}

func (OrderDataReady) Kind() Kind { return KindOrderDataReady }

type CheckoutStepChanged struct {
	From domain.CheckoutState `json:"from"`
	To   domain.CheckoutState `json:"to"`
}

func (CheckoutStepChanged) Kind() Kind { return KindCheckoutStep }

// OrderSubmitted is emitted after the order service accepted an order and the
// basket and form were cleared.
type OrderSubmitted struct {
	Order  domain.Order       `json:"order"`
	Result domain.OrderResult `json:"result"`
}

func (OrderSubmitted) Kind() Kind { return KindOrderSubmitted }

type OrderFailed struct {
	Reason string          `json:"reason"`
	Total  decimal.Decimal `json:"total"`
}

func (OrderFailed) Kind() Kind { return KindOrderFailed }

// Envelope is the wire form of an event sent to renderers.
type Envelope struct {
	Type    Kind  `json:"type"`
	Payload Event `json:"payload"`
}

func Wrap(e Event) Envelope {
	return Envelope{Type: e.Kind(), Payload: e}
}
