package poller

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const Topic = "catalog-updates"

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type invalidator interface {
	Invalidate(ctx context.Context)
}

// Poller drops the cached product list whenever the catalog owner announces
// a change.
type Poller struct {
	reader  messageReader
	cache   invalidator
	backoff time.Duration
	logger  *zap.Logger
}

func NewPoller(cache invalidator, logger *zap.Logger, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{reader: reader, cache: cache, backoff: time.Second, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.readAndInvalidate(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) readAndInvalidate(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Warn("error reading message", zap.Error(err))
		select {
		case <-time.After(p.backoff):
		case <-ctx.Done():
		}
		return
	}

	p.logger.Info("catalog changed, dropping cached products",
		zap.String("key", string(m.Key)),
		zap.Int64("offset", m.Offset))
	p.cache.Invalidate(ctx)
}
