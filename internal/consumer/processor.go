// Package consumer listens for ingestion events on Kafka and drops cached dashboard views when
// the underlying snapshots change.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/steelburgerz/veloiq/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// ErrPoison marks a message the handler can never process. The processor commits it rather than
// retrying forever.
var ErrPoison = errors.New("consumer: unprocessable message")

// Message is the decoded representation of an ingestion event.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	EventType string
	SchemaID  int
	Payload   json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetryBackoff sets the pause after a fetch or handler error.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Processor) {
		p.backoff = d
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *zap.Logger
	backoff time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  zap.NewNop(),
		backoff: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch failed", zap.Error(err))
			if !sleep(ctx, p.backoff) {
				return ctx.Err()
			}
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("decode failed",
				zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(decodeErr))
			recordDecodeError(msg.Topic)
			p.commit(ctx, msg)
			continue
		}

		if err := p.dispatch(ctx, msg, event); err != nil {
			return err
		}
	}
}

// dispatch hands event to the handler until it succeeds or reports ErrPoison. Commits are
// cumulative per partition, so a failed message is retried in place rather than skipped.
func (p *Processor) dispatch(ctx context.Context, msg kafka.Message, event Message) error {
	for attempt := 1; ; attempt++ {
		err := p.handler.Handle(ctx, event)
		if err == nil {
			if p.commit(ctx, msg) {
				recordProcessed(event)
			}
			return nil
		}
		if errors.Is(err, ErrPoison) {
			p.logger.Warn("dropping unprocessable message", zap.String("event_type", event.EventType), zap.Int64("offset", event.Offset), zap.Error(err))
			recordDecodeError(msg.Topic)
			p.commit(ctx, msg)
			return nil
		}

		p.logger.Error("handler failed",
			zap.String("event_type", event.EventType), zap.Int64("offset", event.Offset), zap.Int("attempt", attempt), zap.Error(err))
		recordHandlerError(event)
		if !sleep(ctx, p.backoff) {
			return ctx.Err()
		}
	}
}

func (p *Processor) commit(ctx context.Context, msg kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		p.logger.Warn("commit failed", zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}

	schemaID, payload, err := events.Decode(msg.Value)
	if err != nil {
		return Message{}, fmt.Errorf("decode %s: %w", eventType, err)
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		EventType: string(eventType),
		SchemaID:  int(schemaID),
		Payload:   payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
