package events

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler reacts to an event. A returned error is logged by the bus and does
// not stop delivery to the remaining handlers.
type Handler func(Event) error

// Subscription is the handle returned by Subscribe and used to unsubscribe
type Subscription struct {
	bus     *Bus
	handler Handler
	match   func(Kind) bool
	label   string
}

// Unsubscribe removes the subscription from its bus. Calling it twice is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.Unsubscribe(s)
}

// Bus is a synchronous publish-subscribe hub. Emit calls every matching
// handler in subscription order before it returns.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a handler for the given kinds. Without kinds the handler
// receives every event.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) *Subscription {
	if len(kinds) == 0 {
		return b.add(h, func(Kind) bool { return true }, "*")
	}
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return b.add(h, func(k Kind) bool {
		_, ok := set[k]
		return ok
	}, fmt.Sprint(kinds))
}

// SubscribeFamily registers a handler for every kind of the given families.
func (b *Bus) SubscribeFamily(h Handler, families ...Family) *Subscription {
	set := make(map[Family]struct{}, len(families))
	for _, f := range families {
		set[f] = struct{}{}
	}
	return b.add(h, func(k Kind) bool {
		_, ok := set[k.Family()]
		return ok
	}, fmt.Sprint(families))
}

func (b *Bus) add(h Handler, match func(Kind) bool, label string) *Subscription {
	sub := &Subscription{bus: b, handler: h, match: match, label: label}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug("handler subscribed", zap.String("kinds", label))
	return sub
}

// Unsubscribe removes a subscription; unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			b.logger.Debug("handler unsubscribed", zap.String("kinds", s.label))
			return
		}
	}
}

// Len returns the number of live subscriptions
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Emit delivers e to every matching handler. Handlers subscribed while the
// event is being delivered do not see it.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	kind := e.Kind()
	for _, sub := range subs {
		if !sub.match(kind) {
			continue
		}
		if err := b.dispatch(sub, e); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", kind.String()),
				zap.String("subscription", sub.label),
				zap.Error(err),
			)
		}
	}
}

// dispatch runs one handler and turns a panic into an error
func (b *Bus) dispatch(sub *Subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return sub.handler(e)
}
