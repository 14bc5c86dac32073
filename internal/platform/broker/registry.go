package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var errNoBrokers = errors.New("kafka brokers not configured")

// Dispatcher is satisfied by infrastructure.HandlerRegistry.
type Dispatcher interface {
	DispatchRaw(ctx context.Context, raw []byte) error
}

// StartKafkaConsumers starts one consumer per topic and returns a wait function that
// blocks until every consumer stopped after ctx is cancelled.
func StartKafkaConsumers(
	ctx context.Context,
	dispatcher Dispatcher,
	brokers []string,
	groupID string,
	topics []string,
) (wait func(), err error) {
	if len(brokers) == 0 {
		return func() {}, errNoBrokers
	}
	var wg sync.WaitGroup
	for _, topic := range topics {
		consumer := NewKafkaConsumer(brokers, groupID, topic)
		wg.Add(1)
		go func(tp string) {
			defer wg.Done()
			err := consumer.Consume(ctx, dispatcher.DispatchRaw)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("kafka consumer stopped", slog.String("topic", tp), slog.Any("error", err))
			}
		}(topic)
	}
	slog.Info("kafka consumers started", slog.Any("topics", topics), slog.String("group", groupID))
	return wg.Wait, nil
}
