package infrastructure

import (
	"context"
	"fmt"
	"log/slog"

	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/domain"
)

type HandlerRegistry struct {
	handlers map[string]port.EventHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]port.EventHandler)}
}

func (r *HandlerRegistry) Register(h port.EventHandler) {
	r.handlers[h.Event()] = h
}

func (r *HandlerRegistry) Dispatch(ctx context.Context, event *domain.InboundEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", domain.ErrMalformedEvent)
	}
	if handler, ok := r.handlers[event.Event]; ok {
		return handler.Handle(ctx, event)
	}
	slog.Debug("inbound event without handler", slog.String("event", event.Event))
	return nil
}

// DispatchRaw decodes a wire event and dispatches it. Malformed input yields ErrMalformedEvent.
func (r *HandlerRegistry) DispatchRaw(ctx context.Context, raw []byte) error {
	event, err := domain.DecodeInbound(raw)
	if err != nil {
		return err
	}
	return r.Dispatch(ctx, event)
}

// LocalPublisher delivers published events in-process when no broker is configured.
type LocalPublisher struct {
	registry *HandlerRegistry
}

func NewLocalPublisher(registry *HandlerRegistry) *LocalPublisher {
	return &LocalPublisher{registry: registry}
}

func (p *LocalPublisher) Publish(ctx context.Context, event *domain.InboundEvent) error {
	return p.registry.Dispatch(ctx, event)
}

var _ port.EventPublisher = (*LocalPublisher)(nil)
