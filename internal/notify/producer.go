package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Producer queues notification events on the booking events topic. The
// mailer worker consumes them, which keeps SMTP latency out of the request
// path and makes delivery observable through consumer lag instead of lost
// threads.
type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Logger: log}
}

func (p *Producer) PublishNotification(ev models.NotificationEvent) error {
	msgBytes, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.Logger.LogKafka("PUBLISH", p.Writer.Topic, fmt.Sprintf("%s for %s", ev.Kind, ev.Code))

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(ev.Code),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// EnsureTopicExists creates the notification topic if the broker doesn't
// have it yet.
func EnsureTopicExists(brokers []string, topic string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	return controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
