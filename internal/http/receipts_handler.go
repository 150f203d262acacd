package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/go-chi/chi/v5"
)

type receiptReader interface {
	GetReceipt(ctx context.Context, id string) (repository.Receipt, error)
	ListReceipts(ctx context.Context, limit int) ([]repository.Receipt, error)
}

type ReceiptHandler struct {
	repo    receiptReader
	timeout time.Duration
}

func NewReceiptHandler(repo receiptReader, timeout time.Duration) *ReceiptHandler {
	return &ReceiptHandler{
		repo:    repo,
		timeout: timeout,
	}
}

type ReceiptsResponse struct {
	Receipts []repository.Receipt `json:"receipts"`
}

// GET /api/v1/receipts?limit=N
func (h *ReceiptHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	receipts, err := h.repo.ListReceipts(ctx, limit)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ReceiptsResponse{Receipts: receipts})
}

// GET /api/v1/receipts/{receiptID}
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rc, err := h.repo.GetReceipt(ctx, chi.URLParam(r, "receiptID"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rc)
}
