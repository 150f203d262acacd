package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps storefront errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var (
		status int
		code   string
	)

	switch {
	case errors.Is(err, storefront.ErrSessionNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, repository.ErrReceiptNotFound):
		status, code = http.StatusNotFound, "receipt_not_found"
	case errors.Is(err, storefront.ErrTooManySessions):
		status, code = http.StatusServiceUnavailable, "too_many_sessions"
	case errors.Is(err, storefront.ErrCatalogUnavailable):
		status, code = http.StatusBadGateway, "catalog_unavailable"
	case errors.Is(err, checkout.ErrEmptyBasket):
		status, code = http.StatusConflict, "empty_basket"
	case errors.Is(err, checkout.ErrIllegalTransition):
		status, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrValidationFailed):
		status, code = http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, checkout.ErrSubmitFailed):
		status, code = http.StatusBadGateway, "submit_failed"
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, status, code, err.Error())
}
