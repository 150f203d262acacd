package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrTooManySessions    = errors.New("too many open sessions")
	ErrCatalogUnavailable = errors.New("catalog could not be loaded")
)

// Subscriber is attached to the bus of every new session, e.g. the receipt
// journal or the order publisher.
type Subscriber interface {
	Attach(bus *events.Bus, sessionID string) *events.Subscription
}

type Options struct {
	SubmitTimeout time.Duration
	IdleTTL       time.Duration
	MaxSessions   int
}

// Manager owns all open sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	pending  int // sessions still loading their catalog

	source catalog.ProductSource
	sink   checkout.OrderSink
	hooks  []Subscriber
	opts   Options
	logger *zap.Logger
}

func NewManager(source catalog.ProductSource, sink checkout.OrderSink, opts Options, logger *zap.Logger, hooks ...Subscriber) *Manager {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	return &Manager{
		sessions: make(map[string]*Session),
		source:   source,
		sink:     sink,
		hooks:    hooks,
		opts:     opts,
		logger:   logger,
	}
}

// Create opens a session and loads its catalog. A session whose catalog
// cannot be loaded is not kept.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if !m.reserve() {
		return nil, ErrTooManySessions
	}

	s := newSession(uuid.NewString(), m.sink, m.opts.SubmitTimeout, m.logger)
	for _, h := range m.hooks {
		s.attach(h.Attach(s.bus, s.ID))
	}

	if err := s.Load(ctx, m.source); err != nil {
		m.mu.Lock()
		m.pending--
		m.mu.Unlock()
		s.close()
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	m.mu.Lock()
	m.pending--
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session opened", zap.String("session_id", s.ID))
	return s, nil
}

// reserve takes a slot for a session about to load. Loading sessions count
// against MaxSessions.
func (m *Manager) reserve() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts.MaxSessions > 0 && len(m.sessions)+m.pending >= m.opts.MaxSessions {
		return false
	}
	m.pending++
	return true
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(time.Now())
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.close()
	m.logger.Info("session closed", zap.String("session_id", id))
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the configured TTL.
func (m *Manager) Sweep(now time.Time) int {
	var stale []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.opts.IdleTTL {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if m.Close(id) == nil {
			closed++
		}
	}
	return closed
}

// RunJanitor sweeps idle sessions every tick until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.logger.Info("idle sessions closed", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

// CloseAll is used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
