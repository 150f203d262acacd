package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/events"
	"go.uber.org/zap"
)

type receiptSaver interface {
	SaveReceipt(ctx context.Context, r Receipt) error
}

// Journal records every submitted order of the sessions it is attached to.
type Journal struct {
	repo    receiptSaver
	timeout time.Duration
	logger  *zap.Logger
}

func NewJournal(repo receiptSaver, timeout time.Duration, logger *zap.Logger) *Journal {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Journal{
		repo:    repo,
		timeout: timeout,
		logger:  logger,
	}
}

// Attach subscribes the journal to one session's bus.
func (j *Journal) Attach(bus *events.Bus, sessionID string) *events.Subscription {
	return bus.Subscribe(func(e events.Event) error {
		ev, ok := e.(events.OrderSubmitted)
		if !ok {
			return nil
		}
		return j.Record(sessionID, ev)
	}, events.KindOrderSubmitted)
}

func (j *Journal) Record(sessionID string, ev events.OrderSubmitted) error {

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	err := j.repo.SaveReceipt(ctx, Receipt{
		ID:        ev.Result.ID,
		SessionID: sessionID,
		Order:     ev.Order,
		Total:     ev.Result.Total,
	})
	if errors.Is(err, ErrDuplicateID) {
		j.logger.Info("receipt already journaled", zap.String("order_id", ev.Result.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to journal order %s: %w", ev.Result.ID, err)
	}
	return nil
}
