package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const Topic = "storefront-orders"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderPublished is the message value written for every accepted order.
type OrderPublished struct {
	OrderID     string    `json:"order_id"`
	SessionID   string    `json:"session_id"`
	Payment     string    `json:"payment"`
	Items       []string  `json:"items"`
	Total       string    `json:"total"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Publisher forwards accepted orders to Kafka. Bus handlers only enqueue;
// Run does the network writes so event dispatch never waits on the broker.
type Publisher struct {
	writer  messageWriter
	queue   chan kafka.Message
	timeout time.Duration
	logger  *zap.Logger
	running sync.WaitGroup
}

func NewPublisher(logger *zap.Logger, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, 256, 5*time.Second, logger)
}

func newPublisher(w messageWriter, buffer int, timeout time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		queue:   make(chan kafka.Message, buffer),
		timeout: timeout,
		logger:  logger,
	}
}

// Attach subscribes the publisher to one session's bus.
func (p *Publisher) Attach(bus *events.Bus, sessionID string) *events.Subscription {
	return bus.Subscribe(func(e events.Event) error {
		ev, ok := e.(events.OrderSubmitted)
		if !ok {
			return nil
		}
		return p.enqueue(sessionID, ev)
	}, events.KindOrderSubmitted)
}

func (p *Publisher) enqueue(sessionID string, ev events.OrderSubmitted) error {
	value, err := json.Marshal(OrderPublished{
		OrderID:     ev.Result.ID,
		SessionID:   sessionID,
		Payment:     string(ev.Order.Payment),
		Items:       ev.Order.Items,
		Total:       ev.Result.Total.String(),
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.Result.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Kind())},
			{Key: "session_id", Value: []byte(sessionID)},
		},
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return fmt.Errorf("publish queue full, dropped order %s", ev.Result.ID)
	}
}

// Start runs Run in the background. Close waits for it to finish.
func (p *Publisher) Start(ctx context.Context) {
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		p.Run(ctx)
	}()
}

// Run writes queued messages until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case msg := <-p.queue:
			p.publishToKafka(ctx, msg)
		case <-ctx.Done():
			p.flush()
			return
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.publishToKafka(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) publishToKafka(ctx context.Context, msg kafka.Message) {
	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Error("failed to publish order",
			zap.String("order_id", string(msg.Key)),
			zap.Error(err))
		return
	}
	p.logger.Debug("order published", zap.String("order_id", string(msg.Key)))
}

// Close waits for a started Run to flush, then closes the writer. Cancel the
// context given to Start first.
func (p *Publisher) Close() error {
	p.running.Wait()
	return p.writer.Close()
}
