package http

import (
	"context"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// MockSource implements catalog.ProductSource for testing
type MockSource struct {
	Products []domain.Product
	Err      error
}

func (m *MockSource) ListProducts(_ context.Context) ([]domain.Product, error) {
	return m.Products, m.Err
}

// MockSink implements checkout.OrderSink for testing
type MockSink struct {
	Result domain.OrderResult
	Err    error
}

func (m *MockSink) SubmitOrder(_ context.Context, _ domain.Order) (domain.OrderResult, error) {
	return m.Result, m.Err
}

// MockReceipts implements receiptReader for testing
type MockReceipts struct {
	Receipts []repository.Receipt
	Err      error
	Limit    int // captures the limit passed to ListReceipts
}

func (m *MockReceipts) GetReceipt(_ context.Context, id string) (repository.Receipt, error) {
	for _, rc := range m.Receipts {
		if rc.ID == id {
			return rc, nil
		}
	}
	return repository.Receipt{}, repository.ErrReceiptNotFound
}

func (m *MockReceipts) ListReceipts(_ context.Context, limit int) ([]repository.Receipt, error) {
	m.Limit = limit
	return m.Receipts, m.Err
}
