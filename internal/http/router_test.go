package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	*httptest.Server
	sink     *MockSink
	receipts *MockReceipts
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	src := &MockSource{Products: []domain.Product{
		{ID: "p1", Title: "+1 час в сутках", Category: domain.CategorySoftSkill, Price: domain.NewPrice(750)},
		{ID: "p2", Title: "Мамка-таймер", Category: domain.CategoryOther, Price: domain.Priceless()},
	}}
	sink := &MockSink{Result: domain.OrderResult{ID: "order-1", Total: decimal.NewFromInt(750)}}
	receipts := &MockReceipts{}
	manager := storefront.NewManager(src, sink, storefront.Options{}, zap.NewNop())

	srv := httptest.NewServer(NewRouter(RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}, manager, receipts, zap.NewNop()))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, sink: sink, receipts: receipts}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[storefront.View](t, resp).ID
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)

	resp := srv.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCreateSession(t *testing.T) {
	srv := setupServer(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/sessions", nil)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	v := decode[storefront.View](t, resp)
	assert.NotEmpty(t, v.ID)
	require.Len(t, v.Products, 2)
	assert.False(t, v.Products[1].Price.Valid)
	assert.Equal(t, domain.CheckoutIdle, v.Checkout.State)
}

func TestUnknownSession(t *testing.T) {
	srv := setupServer(t)

	resp := srv.do(t, http.MethodGet, "/api/v1/sessions/nope", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "session_not_found", decode[ErrorResponse](t, resp).Code)
}

func TestSelectAndToggle(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)

	resp := srv.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/selection", map[string]string{"id": "p1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[storefront.View](t, resp)
	require.NotNil(t, v.Selected)
	assert.Equal(t, "p1", v.Selected.ID)

	resp = srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/basket/p1/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := decode[BasketResponseDTO](t, resp)
	assert.True(t, b.InBasket)
	assert.True(t, b.View.SelectedInBasket)
	assert.Equal(t, 1, b.View.Count)

	resp = srv.do(t, http.MethodDelete, "/api/v1/sessions/"+id+"/basket/p1", nil)
	b = decode[BasketResponseDTO](t, resp)
	assert.Equal(t, 0, b.View.Count)
}

func TestAddPricelessProduct(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/basket/p2", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := decode[BasketResponseDTO](t, resp)
	assert.False(t, b.InBasket)
	assert.Equal(t, 0, b.View.Count)
}

func TestBeginCheckout_EmptyBasket(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/checkout", nil)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "empty_basket", decode[ErrorResponse](t, resp).Code)
}

func (s *testServer) toContacts(t *testing.T, id string) {
	t.Helper()
	base := "/api/v1/sessions/" + id
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/basket/p1", nil).StatusCode)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/checkout", nil).StatusCode)

	resp := s.do(t, http.MethodPatch, base+"/checkout/shipping", map[string]string{"payment": "card", "address": "Main St"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decode[CustomerResponseDTO](t, resp).Valid)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/checkout/shipping/submit", nil).StatusCode)

	resp = s.do(t, http.MethodPatch, base+"/checkout/contacts", map[string]string{"email": "a@b.c", "phone": "+7"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decode[CustomerResponseDTO](t, resp).Valid)
}

func TestCheckoutFlow(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)
	srv.toContacts(t, id)

	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/checkout/contacts/submit", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	o := decode[OrderResponseDTO](t, resp)
	assert.Equal(t, "order-1", o.Result.ID)
	assert.Equal(t, 0, o.View.Count)
	assert.Equal(t, domain.CheckoutIdle, o.View.Checkout.State)
}

func TestCheckoutFlow_SubmitFails(t *testing.T) {
	srv := setupServer(t)
	srv.sink.Err = errors.New("Неверная сумма заказа")
	id := srv.createSession(t)
	srv.toContacts(t, id)

	resp := srv.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/checkout/contacts/submit", nil)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	e := decode[ErrorResponse](t, resp)
	assert.Equal(t, "submit_failed", e.Code)
	assert.Contains(t, e.Error, "Неверная сумма заказа")

	v := decode[storefront.View](t, srv.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil))
	assert.Equal(t, 1, v.Count)
	assert.Equal(t, domain.CheckoutContacts, v.Checkout.State)
}

func TestSubmitShipping_Invalid(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)
	base := "/api/v1/sessions/" + id
	srv.do(t, http.MethodPost, base+"/basket/p1", nil)
	srv.do(t, http.MethodPost, base+"/checkout", nil)

	resp := srv.do(t, http.MethodPost, base+"/checkout/shipping/submit", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, resp).Code)
}

func TestUpdateCustomer_BadInput(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)
	base := "/api/v1/sessions/" + id

	resp := srv.do(t, http.MethodPatch, base+"/checkout/billing", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_step", decode[ErrorResponse](t, resp).Code)

	resp = srv.do(t, http.MethodPatch, base+"/checkout/shipping", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// valid request, but no checkout is open
	resp = srv.do(t, http.MethodPatch, base+"/checkout/shipping", map[string]string{"address": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)

	resp := srv.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReceipts(t *testing.T) {
	srv := setupServer(t)
	srv.receipts.Receipts = []repository.Receipt{{ID: "order-1", SessionID: "s1", Total: decimal.NewFromInt(750)}}

	resp := srv.do(t, http.MethodGet, "/api/v1/receipts?limit=10", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[ReceiptsResponse](t, resp)
	assert.Len(t, list.Receipts, 1)
	assert.Equal(t, 10, srv.receipts.Limit)

	resp = srv.do(t, http.MethodGet, "/api/v1/receipts/order-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/v1/receipts/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/v1/receipts?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// the subscription is registered right after the upgrade, so keep
	// poking the basket until the first event comes through
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if r, err := http.Post(srv.URL+"/api/v1/sessions/"+id+"/basket/p1/toggle", "application/json", nil); err == nil {
				_ = r.Body.Close()
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()

	var env struct {
		Type    events.Kind     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	err = conn.ReadJSON(&env)
	close(stop)
	require.NoError(t, err)

	assert.Equal(t, events.KindItemsUpdated, env.Type)
	assert.Contains(t, string(env.Payload), `"items"`)
}

func TestEventStream_ClosedWithSession(t *testing.T) {
	srv := setupServer(t)
	id := srv.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp := srv.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestEventStream_UnknownSession(t *testing.T) {
	srv := setupServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/nope/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_MetricsAndSessionLimit(t *testing.T) {
	src := &MockSource{Products: []domain.Product{{ID: "p1", Price: domain.NewPrice(10)}}}
	manager := storefront.NewManager(src, &MockSink{}, storefront.Options{}, zap.NewNop())
	m := metrics.New()
	m.RegisterSessions(manager.Len)

	srv := httptest.NewServer(NewRouter(RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		Metrics:            m,
		SessionLimiter:     NewRateLimiter(0.001, 1),
	}, manager, nil, zap.NewNop()))
	t.Cleanup(srv.Close)
	s := &testServer{Server: srv}

	resp := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// receipts are not mounted without a journal
	resp = s.do(t, http.MethodGet, "/api/v1/receipts", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "storefront_sessions_open 1")
	assert.Contains(t, text, `route="/api/v1/sessions",status="201"`)
	assert.Contains(t, text, `route="/api/v1/sessions",status="429"`)
}

func TestRouter_SessionLimitIgnoresForwardedHeaders(t *testing.T) {
	src := &MockSource{Products: []domain.Product{{ID: "p1", Price: domain.NewPrice(10)}}}
	manager := storefront.NewManager(src, &MockSink{}, storefront.Options{}, zap.NewNop())
	srv := httptest.NewServer(NewRouter(RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		SessionLimiter:     NewRateLimiter(0.001, 1),
	}, manager, nil, zap.NewNop()))
	t.Cleanup(srv.Close)

	create := func(forwardedFor string) int {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/sessions", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", forwardedFor)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusCreated, create("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, create("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, create("203.0.113.3"))
}
