package handler

import (
	"context"

	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/modules/realtime/domain"
)

// NewMessageHandler entrega mensajes directos a la sesión del destinatario.
type NewMessageHandler struct {
	UseCase *usecase.InboundUseCase
}

func (h *NewMessageHandler) Event() string { return domain.EventNewMessage }

func (h *NewMessageHandler) Handle(ctx context.Context, event *domain.InboundEvent) error {
	payload, err := domain.DecodePayload[domain.NewMessagePayload](event)
	if err != nil {
		return err
	}
	return h.UseCase.DeliverMessage(ctx, payload)
}

var _ port.EventHandler = (*NewMessageHandler)(nil)
