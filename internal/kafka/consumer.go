package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Domenick1991/tablebooking/internal/notify"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume reads events until ctx is cancelled or the reader fails.
// Undecodable messages and handler failures are logged and skipped; the
// group offset still advances past them.
func (c *Consumer) Consume(ctx context.Context, handler notify.Handler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		event, err := notify.Decode(msg.Value)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping malformed event", "offset", msg.Offset, "error", err)
			continue
		}
		if err := handler(ctx, event); err != nil {
			c.logger.ErrorContext(ctx, "event handler failed", "type", event.Type, "key", string(msg.Key), "error", err)
		}
	}
}
