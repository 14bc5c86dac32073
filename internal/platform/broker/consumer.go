package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const readRetryDelay = time.Second

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConsumer struct {
	reader messageReader
	topic  string
}

func NewKafkaConsumer(brokers []string, groupID string, topic string) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}),
		topic: topic,
	}
}

// Consume reads until ctx is done. Read errors are logged and retried; handler errors
// (malformed events included) are logged and the message is dropped.
func (c *KafkaConsumer) Consume(ctx context.Context, handle func(context.Context, []byte) error) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("kafka read error", slog.String("topic", c.topic), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readRetryDelay):
			}
			continue
		}
		slog.Debug("kafka message consumed",
			slog.String("topic", m.Topic),
			slog.Int("partition", m.Partition),
			slog.Int64("offset", m.Offset),
			slog.String("key", string(m.Key)),
		)
		if err := handle(ctx, withEventName(m)); err != nil {
			slog.Warn("kafka handler error", slog.String("topic", m.Topic), slog.Int64("offset", m.Offset), slog.Any("error", err))
		}
	}
}

// withEventName fills a missing "event" field from the message's event header, or from
// the last segment of its topic (carelink.appointmentUpdate -> appointmentUpdate).
func withEventName(m kafka.Message) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(m.Value, &fields); err != nil || fields == nil {
		return m.Value
	}
	if raw, ok := fields["event"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte(`""`)) {
		return m.Value
	}
	name := headerValue(m.Headers, "event")
	if name == "" {
		name = eventFromTopic(m.Topic)
	}
	if name == "" {
		return m.Value
	}
	encoded, _ := json.Marshal(name)
	fields["event"] = encoded
	out, err := json.Marshal(fields)
	if err != nil {
		return m.Value
	}
	return out
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Key, key) {
			return strings.TrimSpace(string(h.Value))
		}
	}
	return ""
}

func eventFromTopic(topic string) string {
	if idx := strings.LastIndex(topic, "."); idx >= 0 {
		topic = topic[idx+1:]
	}
	return strings.TrimSpace(topic)
}
