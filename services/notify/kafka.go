package notifysvc

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes notification events to a Kafka topic so other systems
// (analytics, push gateways) can react to them.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(broker, topic string) *Producer {
	if broker == "" {
		return nil
	}
	return &Producer{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:      []string{broker},
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: -1, // all
			WriteTimeout: 10 * time.Second,
		}),
	}
}

// PublishMessage is a no-op on a nil Producer so a missing broker never
// breaks the flow that triggered the notification.
func (p *Producer) PublishMessage(key, value []byte) error {
	if p == nil || p.writer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
