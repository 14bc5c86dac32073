package port

import (
	"context"

	"careLinkWs/internal/modules/realtime/domain"
)

// Broadcaster define el contrato para enviar mensajes a los clientes WebSocket.
type Broadcaster interface {
	Broadcast(ctx context.Context, env *domain.Envelope)
}

// EventHandler applies one inbound event name; handlers are registered per event.
type EventHandler interface {
	Event() string
	Handle(ctx context.Context, event *domain.InboundEvent) error
}

// EventPublisher emits events to the event source for delivery to other sessions.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.InboundEvent) error
}
