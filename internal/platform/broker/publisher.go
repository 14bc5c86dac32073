package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"careLinkWs/internal/modules/realtime/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher hands outbound events to the event source. Messages are keyed by the
// target identity so one recipient's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publish topic not configured")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.InboundEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Event, err)
	}
	msg := kafka.Message{
		Key:     []byte(event.UserID),
		Value:   value,
		Headers: []kafka.Header{{Key: "event", Value: []byte(event.Event)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
