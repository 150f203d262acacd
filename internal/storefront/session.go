package storefront

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/basket"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/order"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Session is the state of one shopper. Every action takes the session lock,
// so models and handlers only ever see one action at a time.
type Session struct {
	ID string

	mu       sync.Mutex
	bus      *events.Bus
	catalog  *catalog.Model
	basket   *basket.Model
	order    *order.Model
	checkout *checkout.Coordinator

	subs       []*events.Subscription
	done       chan struct{}
	closeOnce  sync.Once
	lastResult *domain.OrderResult
	lastError  string

	createdAt time.Time
	lastSeen  atomic.Int64 // unix nanos, readable while an action holds mu
}

func newSession(id string, sink checkout.OrderSink, submitTimeout time.Duration, logger *zap.Logger) *Session {
	logger = logger.With(zap.String("session_id", id))
	bus := events.NewBus(logger)
	b := basket.NewModel(bus)
	o := order.NewModel(bus)

	now := time.Now()
	s := &Session{
		ID:        id,
		bus:       bus,
		catalog:   catalog.NewModel(bus),
		basket:    b,
		order:     o,
		checkout:  checkout.NewCoordinator(bus, b, o, sink, submitTimeout, logger),
		done:      make(chan struct{}),
		createdAt: now,
	}
	s.lastSeen.Store(now.UnixNano())
	s.subs = append(s.subs, bus.Subscribe(s.trackOutcome, events.KindOrderSubmitted, events.KindOrderFailed))
	return s
}

// trackOutcome keeps the last submission result for the success screen.
func (s *Session) trackOutcome(e events.Event) error {
	switch ev := e.(type) {
	case events.OrderSubmitted:
		res := ev.Result
		s.lastResult = &res
		s.lastError = ""
	case events.OrderFailed:
		s.lastResult = nil
		s.lastError = ev.Reason
	}
	return nil
}

// Subscribe streams this session's events to h. The returned subscription
// must be cancelled by the caller.
func (s *Session) Subscribe(h events.Handler) *events.Subscription {
	return s.bus.Subscribe(h)
}

// Done is closed once the session is closed. Streams holding their own
// subscription use it to hang up.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) attach(sub *events.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

func (s *Session) Load(ctx context.Context, src catalog.ProductSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Load(ctx, src)
}

// SelectProduct opens a product card; nil closes it.
func (s *Session) SelectProduct(id *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog.SetSelected(id)
}

// ToggleProduct puts the product into the basket or takes it out. Unknown
// and priceless products are left alone.
func (s *Session) ToggleProduct(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.catalog.Product(id)
	if !ok {
		return false
	}
	return s.basket.Toggle(p)
}

func (s *Session) AddProduct(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.catalog.Product(id)
	if !ok {
		return false
	}
	return s.basket.AddProduct(p)
}

func (s *Session) RemoveItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basket.RemoveItem(id)
}

func (s *Session) BeginCheckout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = nil
	s.lastError = ""
	return s.checkout.Begin()
}

func (s *Session) UpdateCustomer(patch domain.CustomerPatch, step domain.Step) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout.Update(patch, step)
}

func (s *Session) SubmitShipping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout.SubmitShipping()
}

func (s *Session) BackToShipping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout.Back()
}

// SubmitContacts holds the session lock for the whole network call; other
// actions on the same session wait for the outcome.
func (s *Session) SubmitContacts(ctx context.Context) (domain.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout.SubmitContacts(ctx)
}

func (s *Session) CancelCheckout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout.Cancel()
}

// View is a read-only picture of the session for renderers.
type View struct {
	ID               string                  `json:"id"`
	Products         []domain.ProductPreview `json:"products"`
	Selected         *domain.Product         `json:"selected"`
	SelectedInBasket bool                    `json:"selected_in_basket"`
	Basket           []domain.LineItem       `json:"basket"`
	Count            int                     `json:"count"`
	Total            decimal.Decimal         `json:"total"`
	Checkout         CheckoutView            `json:"checkout"`
}

type CheckoutView struct {
	State         domain.CheckoutState `json:"state"`
	Customer      domain.Customer      `json:"customer"`
	Errors        domain.FormErrors    `json:"errors"`
	ShippingValid bool                 `json:"shipping_valid"`
	ContactsValid bool                 `json:"contacts_valid"`
	Items         []string             `json:"items"`
	Total         decimal.Decimal      `json:"total"`
	Result        *domain.OrderResult  `json:"result,omitempty"`
	Error         string               `json:"error,omitempty"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:       s.ID,
		Products: s.catalog.Products(),
		Selected: s.catalog.Selected(),
		Basket:   s.basket.Items(),
		Count:    s.basket.Count(),
		Total:    s.basket.Total(),
	}
	if v.Selected != nil {
		v.SelectedInBasket = s.basket.Contains(v.Selected.ID)
	}

	customer := s.order.Customer()
	errs := s.order.Errors()
	items, total := s.order.Preview()
	v.Checkout = CheckoutView{
		State:         s.checkout.State(),
		Customer:      customer,
		Errors:        errs,
		ShippingValid: customer.Payment != "" && customer.Address != "" && !errs.Has(domain.StepShipping.Fields()...),
		ContactsValid: customer.Email != "" && customer.Phone != "" && !errs.Has(domain.StepContacts.Fields()...),
		Items:         items,
		Total:         total,
		Result:        s.lastResult,
		Error:         s.lastError,
	}
	return v
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// close drops every subscription the session owns and signals Done.
func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}
