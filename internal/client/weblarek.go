package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("weblarek api is unavailable")

// APIError is a non-2xx answer of the API. Message is the body's error field
// or the status text when the body has none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

type Config struct {
	BaseURL string
	CDNURL  string
	Timeout time.Duration

	// breaker
	MaxFailures  uint32
	OpenInterval time.Duration
}

// WebLarek talks to the product and order endpoints of the shop API.
type WebLarek struct {
	baseURL string
	cdnURL  string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *WebLarek {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenInterval <= 0 {
		cfg.OpenInterval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &WebLarek{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cdnURL:  cfg.CDNURL,
		timeout: cfg.Timeout,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "weblarek",
		Timeout: cfg.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// a rejected order is an answer, not an outage
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

type productList struct {
	Total int              `json:"total"`
	Items []domain.Product `json:"items"`
}

var imageExt = regexp.MustCompile(`\.\w+$`)

// ListProducts fetches the catalog. Image paths are turned into absolute CDN
// links to the PNG rendition.
func (c *WebLarek) ListProducts(ctx context.Context) ([]domain.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/product", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	var list productList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode product list: %w", err)
	}
	for i := range list.Items {
		list.Items[i].Image = c.imageURL(list.Items[i].Image)
	}
	return list.Items, nil
}

func (c *WebLarek) imageURL(path string) string {
	return c.cdnURL + imageExt.ReplaceAllString(path, ".png")
}

// orderRequest sends the total as a plain JSON number.
type orderRequest struct {
	Payment domain.PaymentMethod `json:"payment"`
	Email   string               `json:"email"`
	Phone   string               `json:"phone"`
	Address string               `json:"address"`
	Total   json.Number          `json:"total"`
	Items   []string             `json:"items"`
}

func (c *WebLarek) SubmitOrder(ctx context.Context, o domain.Order) (domain.OrderResult, error) {
	req := orderRequest{
		Payment: o.Payment,
		Email:   o.Email,
		Phone:   o.Phone,
		Address: o.Address,
		Total:   json.Number(o.Total.String()),
		Items:   o.Items,
	}
	if req.Items == nil {
		req.Items = []string{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("failed to marshal order: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("failed to create order: %w", err)
	}

	var res domain.OrderResult
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.OrderResult{}, fmt.Errorf("failed to decode order response: %w", err)
	}
	return res, nil
}

func (c *WebLarek) do(ctx context.Context, method, uri string, payload []byte) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, uri, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, err
}

func (c *WebLarek) roundTrip(ctx context.Context, method, uri string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+uri, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp, body)
	}
	return body, nil
}

func apiError(resp *http.Response, body []byte) *APIError {
	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(resp.StatusCode)
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
