package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	clientBuf  = 64
)

// StreamHandler pushes a session's events to a websocket. A slow client
// loses events instead of blocking the session; it can resync with GET.
type StreamHandler struct {
	sessions sessionStore
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewStreamHandler(sessions sessionStore, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// GET /api/v1/sessions/{sessionID}/events
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	sh := SessionHandler{sessions: h.sessions}
	s, ok := sh.session(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	out := make(chan events.Envelope, clientBuf)
	sub := s.Subscribe(func(e events.Event) error {
		select {
		case out <- events.Wrap(e):
		default:
			h.logger.Warn("event stream client too slow, dropping event",
				zap.String("session_id", s.ID),
				zap.String("kind", e.Kind().String()))
		}
		return nil
	})
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go h.readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case env := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				h.logger.Debug("event stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readPump drains client frames so control messages are handled, and
// signals when the client goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
