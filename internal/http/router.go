package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/internal/metrics"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64

	// optional
	Metrics        *metrics.Metrics
	SessionLimiter *RateLimiter

	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only set it behind a proxy that overwrites those headers; the session
	// limiter keys on that address.
	TrustProxy bool
}

// NewRouter wires every endpoint. receipts may be nil when the journal is
// disabled.
func NewRouter(cfg RouterConfig, sessions sessionStore, receipts receiptReader, logger *zap.Logger) http.Handler {
	sessionHandler := NewSessionHandler(sessions, cfg.RequestTimeout)
	streamHandler := NewStreamHandler(sessions, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.Compress(5))
		r.Use(MaxBodyMiddleware(cfg.MaxRequestBodySize))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// long-lived, so outside the timeout and compression group
		r.Get("/sessions/{sessionID}/events", streamHandler.Events)

		r.Group(func(r chi.Router) {
			api(r)

			if cfg.SessionLimiter != nil {
				r.With(cfg.SessionLimiter.Handler).Post("/sessions", sessionHandler.Create)
			} else {
				r.Post("/sessions", sessionHandler.Create)
			}
			r.Get("/sessions/{sessionID}", sessionHandler.Get)
			r.Delete("/sessions/{sessionID}", sessionHandler.Delete)
			r.Put("/sessions/{sessionID}/selection", sessionHandler.Select)

			r.Post("/sessions/{sessionID}/basket/{productID}", sessionHandler.AddItem)
			r.Delete("/sessions/{sessionID}/basket/{productID}", sessionHandler.RemoveItem)
			r.Post("/sessions/{sessionID}/basket/{productID}/toggle", sessionHandler.Toggle)

			r.Post("/sessions/{sessionID}/checkout", sessionHandler.BeginCheckout)
			r.Delete("/sessions/{sessionID}/checkout", sessionHandler.CancelCheckout)
			r.Post("/sessions/{sessionID}/checkout/back", sessionHandler.Back)
			r.Post("/sessions/{sessionID}/checkout/shipping/submit", sessionHandler.SubmitShipping)
			r.Post("/sessions/{sessionID}/checkout/contacts/submit", sessionHandler.SubmitContacts)
			r.Patch("/sessions/{sessionID}/checkout/{step}", sessionHandler.UpdateCustomer)

			if receipts != nil {
				receiptHandler := NewReceiptHandler(receipts, cfg.RequestTimeout)
				r.Get("/receipts", receiptHandler.List)
				r.Get("/receipts/{receiptID}", receiptHandler.Get)
			}
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
