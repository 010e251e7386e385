package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/agendafacil/agendafacil/libs/kafkax"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/inbox"
	"github.com/agendafacil/agendafacil/services/booking-service/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

const (
	handleAttempts = 3
	retryBackoff   = 200 * time.Millisecond
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader  MessageReader
	logger  *slog.Logger
	inbox   *inbox.Repository
	metrics *metrics.Metrics
	handler Handler

	// base delay between handler attempts, multiplied by the attempt number
	retryDelay time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, m *metrics.Metrics, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newConsumer(reader, logger, inboxRepo, m, handler)
}

func newConsumer(reader MessageReader, logger *slog.Logger, inboxRepo *inbox.Repository, m *metrics.Metrics, handler Handler) *Consumer {
	return &Consumer{
		reader:     reader,
		logger:     logger,
		inbox:      inboxRepo,
		metrics:    m,
		handler:    handler,
		retryDelay: retryBackoff,
	}
}

// Run reads until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)

	for attempt := 1; ; attempt++ {
		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			c.metrics.ObserveEvent(meta.EventType, "inbox_error")
			return
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			c.metrics.ObserveEvent(meta.EventType, "duplicate")
			return
		}

		err = c.handler(ctxSpan, msg)
		if err == nil {
			c.metrics.ObserveEvent(meta.EventType, "processed")
			return
		}
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "attempt", attempt)
		span.RecordError(err)

		// The event only stays recorded once a handler run succeeds.
		if ferr := c.inbox.Forget(ctxSpan, meta.EventID); ferr != nil {
			c.logger.Error("inbox forget failed", "err", ferr, "event_id", meta.EventID)
			c.metrics.ObserveEvent(meta.EventType, "inbox_error")
			return
		}
		if attempt == handleAttempts {
			c.metrics.ObserveEvent(meta.EventType, "failed")
			return
		}
		select {
		case <-ctx.Done():
			c.metrics.ObserveEvent(meta.EventType, "failed")
			return
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}
}
