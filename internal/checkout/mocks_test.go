package checkout

import (
	"context"

	"github.com/fjod/go_cart/storefront/domain"
)

// MockOrderSink implements OrderSink for testing
type MockOrderSink struct {
	Result domain.OrderResult
	Err    error

	Calls       int
	Submitted   *domain.Order // captures the last order passed to SubmitOrder
	HadDeadline bool
}

func (m *MockOrderSink) SubmitOrder(ctx context.Context, o domain.Order) (domain.OrderResult, error) {
	m.Calls++
	m.Submitted = &o
	_, m.HadDeadline = ctx.Deadline()
	return m.Result, m.Err
}
