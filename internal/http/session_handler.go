package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/go-chi/chi/v5"
)

// sessionStore is what the handlers need from the session manager.
type sessionStore interface {
	Create(ctx context.Context) (*storefront.Session, error)
	Get(id string) (*storefront.Session, error)
	Close(id string) error
}

type SessionHandler struct {
	sessions sessionStore
	timeout  time.Duration
}

func NewSessionHandler(sessions sessionStore, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		timeout:  timeout,
	}
}

type SelectRequestDTO struct {
	ID *string `json:"id"`
}

type CustomerRequestDTO struct {
	Payment *domain.PaymentMethod `json:"payment"`
	Address *string               `json:"address"`
	Email   *string               `json:"email"`
	Phone   *string               `json:"phone"`
}

type BasketResponseDTO struct {
	InBasket bool            `json:"in_basket"`
	View     storefront.View `json:"view"`
}

type CustomerResponseDTO struct {
	Valid bool            `json:"valid"`
	View  storefront.View `json:"view"`
}

type OrderResponseDTO struct {
	Result domain.OrderResult `json:"result"`
	View   storefront.View    `json:"view"`
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*storefront.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return s, true
}

// POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.sessions.Create(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.Snapshot())
}

// GET /api/v1/sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// DELETE /api/v1/sessions/{sessionID}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/sessions/{sessionID}/selection
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s.SelectProduct(req.ID)
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// POST /api/v1/sessions/{sessionID}/basket/{productID}/toggle
func (h *SessionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	in := s.ToggleProduct(chi.URLParam(r, "productID"))
	respondJSON(w, http.StatusOK, BasketResponseDTO{InBasket: in, View: s.Snapshot()})
}

// POST /api/v1/sessions/{sessionID}/basket/{productID}
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "productID")
	s.AddProduct(id)
	v := s.Snapshot()
	respondJSON(w, http.StatusOK, BasketResponseDTO{InBasket: inBasket(v, id), View: v})
}

// DELETE /api/v1/sessions/{sessionID}/basket/{productID}
func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.RemoveItem(chi.URLParam(r, "productID"))
	respondJSON(w, http.StatusOK, BasketResponseDTO{InBasket: false, View: s.Snapshot()})
}

// POST /api/v1/sessions/{sessionID}/checkout
func (h *SessionHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.BeginCheckout(); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// PATCH /api/v1/sessions/{sessionID}/checkout/{step}
func (h *SessionHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	step := domain.Step(chi.URLParam(r, "step"))
	if !step.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_step", "step must be shipping or contacts")
		return
	}

	var req CustomerRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	valid, err := s.UpdateCustomer(domain.CustomerPatch{
		Payment: req.Payment,
		Address: req.Address,
		Email:   req.Email,
		Phone:   req.Phone,
	}, step)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CustomerResponseDTO{Valid: valid, View: s.Snapshot()})
}

// POST /api/v1/sessions/{sessionID}/checkout/shipping/submit
func (h *SessionHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.SubmitShipping(); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// POST /api/v1/sessions/{sessionID}/checkout/back
func (h *SessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.BackToShipping(); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

// POST /api/v1/sessions/{sessionID}/checkout/contacts/submit
func (h *SessionHandler) SubmitContacts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.SubmitContacts(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderResponseDTO{Result: res, View: s.Snapshot()})
}

// DELETE /api/v1/sessions/{sessionID}/checkout
func (h *SessionHandler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.CancelCheckout(); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Snapshot())
}

func inBasket(v storefront.View, id string) bool {
	for _, it := range v.Basket {
		if it.ID == id {
			return true
		}
	}
	return false
}
