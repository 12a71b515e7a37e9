package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// Start consumes notification events until the context is cancelled. A
// malformed or undeliverable event is logged and skipped; mail problems
// never block the stream.
func (c *Consumer) Start(ctx context.Context, handler func(models.NotificationEvent)) {
	c.logger.LogKafka("CONSUME", c.reader.Config().Topic, "notification consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("error reading message: %v", err))
			continue
		}

		var ev models.NotificationEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("failed to unmarshal notification: %v", err))
			continue
		}

		c.logger.LogKafka("RECEIVED", c.reader.Config().Topic, fmt.Sprintf("%s for %s", ev.Kind, ev.Code))
		handler(ev)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
