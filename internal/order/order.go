package order

import (
	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/shopspring/decimal"
)

// Model holds the customer form, its validation errors and the basket preview
// shown while the checkout is open.
type Model struct {
	bus      *events.Bus
	customer domain.Customer
	errors   domain.FormErrors

	previewItems []string
	previewTotal decimal.Decimal
}

func NewModel(bus *events.Bus) *Model {
	return &Model{
		bus:    bus,
		errors: domain.FormErrors{},
	}
}

func (m *Model) Customer() domain.Customer {
	return m.customer
}

// Errors returns a copy of the current error map
func (m *Model) Errors() domain.FormErrors {
	return m.errors.Clone()
}

// SetCustomerData merges the patch into the customer, announces the result and
// revalidates the given step.
func (m *Model) SetCustomerData(patch domain.CustomerPatch, step domain.Step) bool {
	m.customer = m.customer.Merge(patch)
	m.bus.Emit(events.CustomerUpdated{Customer: m.customer})
	return m.Validate(step)
}

// Validate checks the fields of one step. Errors of the other step's fields
// are kept as they are. The whole error map is emitted every time.
func (m *Model) Validate(step domain.Step) bool {
	fields := step.Fields()
	for _, f := range fields {
		delete(m.errors, f)
	}
	for f, msg := range checkStep(step, m.customer) {
		m.errors[f] = msg
	}

	m.bus.Emit(events.FormErrorsChanged{Errors: m.errors.Clone()})
	return len(fields) > 0 && !m.errors.Has(fields...)
}

// ClearCustomerData resets every field and drops all errors. The basket is not
// touched here.
func (m *Model) ClearCustomerData() {
	m.customer = domain.Customer{}
	m.errors = domain.FormErrors{}
	m.previewItems = nil
	m.previewTotal = decimal.Zero
	m.bus.Emit(events.CustomerCleared{})
}

// SetPreview stores the basket ids and total shown on the checkout forms.
func (m *Model) SetPreview(items []string, total decimal.Decimal) {
	m.previewItems = append([]string(nil), items...)
	m.previewTotal = total
}

func (m *Model) Preview() ([]string, decimal.Decimal) {
	return append([]string{}, m.previewItems...), m.previewTotal
}

// OrderData assembles the order snapshot from the customer and the given
// basket content and announces it.
func (m *Model) OrderData(items []string, total decimal.Decimal) domain.Order {
	o := domain.NewOrder(m.customer, items, total)
	// subscribers get their own Items so they cannot touch the returned order
	m.bus.Emit(events.OrderDataReady{Order: o.Clone()})
	return o
}
