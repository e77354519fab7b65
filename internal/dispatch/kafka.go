package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"vigil/internal/model"
)

// KafkaChannel publishes each message to a topic, keyed by recipient so a
// downstream consumer can partition per user.
type KafkaChannel struct {
	writer *kafka.Writer
}

func NewKafkaChannel(brokers []string, topic string) *KafkaChannel {
	return &KafkaChannel{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (c *KafkaChannel) Name() string { return "kafka" }

func (c *KafkaChannel) SendOne(ctx context.Context, to model.Contact, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"recipient": to.UserID,
		"address":   to.Address,
		"subject":   subject,
		"body":      body,
	})
	if err != nil {
		return err
	}
	return c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(to.UserID),
		Value: payload,
	})
}

func (c *KafkaChannel) Close() error {
	return c.writer.Close()
}
