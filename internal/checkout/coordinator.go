package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/basket"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/order"
	"go.uber.org/zap"
)

const defaultSubmitTimeout = 10 * time.Second

// OrderSink finalizes a purchase on the remote order service.
type OrderSink interface {
	SubmitOrder(ctx context.Context, o domain.Order) (domain.OrderResult, error)
}

// Coordinator drives the two-step checkout across the basket and order models.
type Coordinator struct {
	bus    *events.Bus
	basket *basket.Model
	order  *order.Model

	sink    OrderSink
	timeout time.Duration
	logger  *zap.Logger

	state domain.CheckoutState
}

func NewCoordinator(bus *events.Bus, b *basket.Model, o *order.Model, sink OrderSink, timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &Coordinator{
		bus:     bus,
		basket:  b,
		order:   o,
		sink:    sink,
		timeout: timeout,
		logger:  logger,
		state:   domain.CheckoutIdle,
	}
}

func (c *Coordinator) State() domain.CheckoutState {
	return c.state
}

// Begin opens the shipping form and takes the basket preview shown on both
// steps. Calling it while a form is open goes back to the shipping step.
func (c *Coordinator) Begin() error {
	if c.basket.Count() == 0 {
		return ErrEmptyBasket
	}
	if c.state != domain.CheckoutShipping {
		if err := c.transition(domain.CheckoutShipping); err != nil {
			return err
		}
	}
	c.order.SetPreview(c.basket.IDs(), c.basket.Total())
	return nil
}

// Back returns from the contacts step to the shipping step.
func (c *Coordinator) Back() error {
	if c.state != domain.CheckoutContacts {
		return ErrIllegalTransition
	}
	return c.transition(domain.CheckoutShipping)
}

// Update merges field edits for the form that is currently open and reports
// whether that step is now valid.
func (c *Coordinator) Update(patch domain.CustomerPatch, step domain.Step) (bool, error) {
	current, ok := c.state.Step()
	if !ok || current != step {
		return false, ErrIllegalTransition
	}
	return c.order.SetCustomerData(patch, step), nil
}

func (c *Coordinator) SubmitShipping() error {
	if c.state != domain.CheckoutShipping {
		return ErrIllegalTransition
	}
	if !c.order.Validate(domain.StepShipping) {
		return ErrValidationFailed
	}
	return c.transition(domain.CheckoutContacts)
}

// SubmitContacts validates the contacts step and posts the order. The snapshot
// is built from the basket as it is now, not from the preview. On failure the
// basket and the customer are left as they were and the contacts form is
// reopened.
func (c *Coordinator) SubmitContacts(ctx context.Context) (domain.OrderResult, error) {
	if c.state != domain.CheckoutContacts {
		return domain.OrderResult{}, ErrIllegalTransition
	}
	if !c.order.Validate(domain.StepContacts) {
		return domain.OrderResult{}, ErrValidationFailed
	}
	if c.basket.Count() == 0 {
		return domain.OrderResult{}, ErrEmptyBasket
	}
	if err := c.transition(domain.CheckoutSubmitting); err != nil {
		return domain.OrderResult{}, err
	}

	snapshot := c.order.OrderData(c.basket.IDs(), c.basket.Total())

	submitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	result, err := c.sink.SubmitOrder(submitCtx, snapshot)
	if err != nil {
		c.logger.Warn("order submission failed",
			zap.String("total", snapshot.Total.String()),
			zap.Int("items", len(snapshot.Items)),
			zap.Error(err))
		c.fail(snapshot, err)
		return domain.OrderResult{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	c.moveTo(domain.CheckoutSubmitted)
	c.basket.Clear()
	c.order.ClearCustomerData()
	c.bus.Emit(events.OrderSubmitted{Order: snapshot, Result: result})
	c.moveTo(domain.CheckoutIdle)

	c.logger.Info("order submitted",
		zap.String("order_id", result.ID),
		zap.String("total", result.Total.String()))
	return result, nil
}

// Cancel closes the checkout and resets the customer form. The basket is kept.
func (c *Coordinator) Cancel() error {
	if c.state == domain.CheckoutIdle {
		return nil
	}
	if err := c.transition(domain.CheckoutIdle); err != nil {
		return err
	}
	c.order.ClearCustomerData()
	return nil
}

func (c *Coordinator) fail(snapshot domain.Order, cause error) {
	c.moveTo(domain.CheckoutFailed)
	c.bus.Emit(events.OrderFailed{Reason: cause.Error(), Total: snapshot.Total})
	c.moveTo(domain.CheckoutContacts)
}

func (c *Coordinator) transition(to domain.CheckoutState) error {
	if !domain.CanTransitionTo(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, c.state, to)
	}
	c.moveTo(to)
	return nil
}

// moveTo skips the table check; callers only use it for the fixed
// submitting/failed/submitted paths.
func (c *Coordinator) moveTo(to domain.CheckoutState) {
	from := c.state
	c.state = to
	c.bus.Emit(events.CheckoutStepChanged{From: from, To: to})
}
