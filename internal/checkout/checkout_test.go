package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/basket"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	bus    *events.Bus
	basket *basket.Model
	order  *order.Model
	sink   *MockOrderSink
	co     *Coordinator
	seen   []events.Event
}

func setupCoordinator(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{bus: events.NewBus(zap.NewNop()), sink: &MockOrderSink{}}
	f.basket = basket.NewModel(f.bus)
	f.order = order.NewModel(f.bus)
	f.co = NewCoordinator(f.bus, f.basket, f.order, f.sink, 0, zap.NewNop())
	f.bus.Subscribe(func(e events.Event) error {
		f.seen = append(f.seen, e)
		return nil
	})
	return f
}

func product(id string, price int64) domain.Product {
	return domain.Product{ID: id, Title: "Product " + id, Category: domain.CategoryOther, Price: domain.NewPrice(price)}
}

func str(s string) *string { return &s }

func payment(p domain.PaymentMethod) *domain.PaymentMethod { return &p }

// toContacts fills the basket and moves the checkout to the contacts step
// with a complete customer.
func (f *fixture) toContacts(t *testing.T) {
	t.Helper()
	f.basket.AddProduct(product("a", 100))
	f.basket.AddProduct(product("b", 150))
	require.NoError(t, f.co.Begin())
	_, err := f.co.Update(domain.CustomerPatch{Payment: payment(domain.PaymentCard), Address: str("Main St")}, domain.StepShipping)
	require.NoError(t, err)
	require.NoError(t, f.co.SubmitShipping())
	_, err = f.co.Update(domain.CustomerPatch{Email: str("a@b.c"), Phone: str("+70000000000")}, domain.StepContacts)
	require.NoError(t, err)
	require.Equal(t, domain.CheckoutContacts, f.co.State())
}

func (f *fixture) steps() []domain.CheckoutState {
	var out []domain.CheckoutState
	for _, e := range f.seen {
		if ev, ok := e.(events.CheckoutStepChanged); ok {
			out = append(out, ev.To)
		}
	}
	return out
}

func TestBegin_EmptyBasket(t *testing.T) {
	f := setupCoordinator(t)

	err := f.co.Begin()

	assert.ErrorIs(t, err, ErrEmptyBasket)
	assert.Equal(t, domain.CheckoutIdle, f.co.State())
	assert.Empty(t, f.seen)
}

func TestBegin_TakesPreview(t *testing.T) {
	f := setupCoordinator(t)
	f.basket.AddProduct(product("a", 100))
	f.basket.AddProduct(product("b", 150))

	require.NoError(t, f.co.Begin())

	assert.Equal(t, domain.CheckoutShipping, f.co.State())
	items, total := f.order.Preview()
	assert.Equal(t, []string{"a", "b"}, items)
	assert.True(t, total.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, []domain.CheckoutState{domain.CheckoutShipping}, f.steps())
}

func TestBegin_FromContactsGoesBack(t *testing.T) {
	f := setupCoordinator(t)
	f.toContacts(t)

	require.NoError(t, f.co.Begin())

	assert.Equal(t, domain.CheckoutShipping, f.co.State())
	assert.Equal(t, "Main St", f.order.Customer().Address)
}

func TestSubmitShipping_BlockedByValidation(t *testing.T) {
	f := setupCoordinator(t)
	f.basket.AddProduct(product("a", 100))
	require.NoError(t, f.co.Begin())
	_, err := f.co.Update(domain.CustomerPatch{Address: str("Main St")}, domain.StepShipping)
	require.NoError(t, err)

	err = f.co.SubmitShipping()

	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, domain.CheckoutShipping, f.co.State())
	assert.True(t, f.order.Errors().Has(domain.FieldPayment))
	assert.Equal(t, []domain.CheckoutState{domain.CheckoutShipping}, f.steps())
}

func TestUpdate_WrongStep(t *testing.T) {
	f := setupCoordinator(t)

	_, err := f.co.Update(domain.CustomerPatch{Email: str("a@b.c")}, domain.StepContacts)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	f.basket.AddProduct(product("a", 100))
	require.NoError(t, f.co.Begin())
	_, err = f.co.Update(domain.CustomerPatch{Email: str("a@b.c")}, domain.StepContacts)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Empty(t, f.order.Customer().Email)
}

func TestIllegalTransitions(t *testing.T) {
	f := setupCoordinator(t)

	assert.ErrorIs(t, f.co.SubmitShipping(), ErrIllegalTransition)
	assert.ErrorIs(t, f.co.Back(), ErrIllegalTransition)
	_, err := f.co.SubmitContacts(context.Background())
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, 0, f.sink.Calls)
}

func TestSubmitContacts_Success(t *testing.T) {
	f := setupCoordinator(t)
	f.toContacts(t)
	f.sink.Result = domain.OrderResult{ID: "order-1", Total: decimal.NewFromInt(250)}
	f.seen = nil

	result, err := f.co.SubmitContacts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "order-1", result.ID)
	assert.Equal(t, 0, f.basket.Count())
	assert.Equal(t, domain.Customer{}, f.order.Customer())
	assert.Equal(t, domain.CheckoutIdle, f.co.State())

	require.NotNil(t, f.sink.Submitted)
	assert.Equal(t, []string{"a", "b"}, f.sink.Submitted.Items)
	assert.True(t, f.sink.Submitted.Total.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, domain.PaymentCard, f.sink.Submitted.Payment)
	assert.True(t, f.sink.HadDeadline)

	assert.Equal(t, []domain.CheckoutState{
		domain.CheckoutSubmitting, domain.CheckoutSubmitted, domain.CheckoutIdle,
	}, f.steps())

	var submitted *events.OrderSubmitted
	for _, e := range f.seen {
		if ev, ok := e.(events.OrderSubmitted); ok {
			submitted = &ev
		}
	}
	require.NotNil(t, submitted)
	assert.Equal(t, "order-1", submitted.Result.ID)
	assert.Equal(t, "Main St", submitted.Order.Address)
}

func TestSubmitContacts_UsesCurrentBasket(t *testing.T) {
	f := setupCoordinator(t)
	f.toContacts(t)
	f.basket.RemoveItem("a")

	_, err := f.co.SubmitContacts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, f.sink.Submitted.Items)
	assert.True(t, f.sink.Submitted.Total.Equal(decimal.NewFromInt(150)))
}

func TestSubmitContacts_EmptiedBasket(t *testing.T) {
	f := setupCoordinator(t)
	f.toContacts(t)
	f.basket.Clear()

	_, err := f.co.SubmitContacts(context.Background())

	assert.ErrorIs(t, err, ErrEmptyBasket)
	assert.Equal(t, domain.CheckoutContacts, f.co.State())
	assert.Equal(t, 0, f.sink.Calls)
}

func TestSubmitContacts_Failure(t *testing.T) {
	f := setupCoordinator(t)
	f.toContacts(t)
	sinkErr := errors.New("Неверная сумма заказа")
	f.sink.Err = sinkErr
	before := f.order.Customer()
	f.seen = nil

	_, err := f.co.SubmitContacts(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, domain.CheckoutContacts, f.co.State())
	assert.Equal(t, before, f.order.Customer())
	assert.Equal(t, 2, f.basket.Count())
	assert.Equal(t, []domain.CheckoutState{
		domain.CheckoutSubmitting, domain.CheckoutFailed, domain.CheckoutContacts,
	}, f.steps())

	for _, e := range f.seen {
		assert.NotEqual(t, events.KindItemsCleared, e.Kind())
		assert.NotEqual(t, events.KindCustomerCleared, e.Kind())
		if ev, ok := e.(events.OrderFailed); ok {
			assert.Equal(t, sinkErr.Error(), ev.Reason)
			assert.True(t, ev.Total.Equal(decimal.NewFromInt(250)))
		}
	}

	// retry succeeds without re-entering data
	f.sink.Err = nil
	f.sink.Result = domain.OrderResult{ID: "order-2"}
	_, err = f.co.SubmitContacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.sink.Calls)
}

func TestSubmitContacts_InvalidContacts(t *testing.T) {
	f := setupCoordinator(t)
	f.toContacts(t)
	_, err := f.co.Update(domain.CustomerPatch{Phone: str("")}, domain.StepContacts)
	require.NoError(t, err)

	_, err = f.co.SubmitContacts(context.Background())

	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, domain.CheckoutContacts, f.co.State())
	assert.Equal(t, 0, f.sink.Calls)
}

func TestBack(t *testing.T) {
	f := setupCoordinator(t)
	f.toContacts(t)

	require.NoError(t, f.co.Back())

	assert.Equal(t, domain.CheckoutShipping, f.co.State())
}

func TestCancel(t *testing.T) {
	f := setupCoordinator(t)
	require.NoError(t, f.co.Cancel())
	assert.Empty(t, f.seen)

	f.toContacts(t)
	require.NoError(t, f.co.Cancel())

	assert.Equal(t, domain.CheckoutIdle, f.co.State())
	assert.Equal(t, domain.Customer{}, f.order.Customer())
	assert.Empty(t, f.order.Errors())
	assert.Equal(t, 2, f.basket.Count())
}
