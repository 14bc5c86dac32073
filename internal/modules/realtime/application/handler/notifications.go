package handler

import (
	"context"

	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/modules/realtime/domain"
)

// AppointmentUpdateHandler convierte actualizaciones de citas en notificaciones informativas.
type AppointmentUpdateHandler struct {
	UseCase *usecase.InboundUseCase
}

func (h *AppointmentUpdateHandler) Event() string { return domain.EventAppointmentUpdate }

func (h *AppointmentUpdateHandler) Handle(ctx context.Context, event *domain.InboundEvent) error {
	payload, err := domain.DecodePayload[domain.AppointmentUpdatePayload](event)
	if err != nil {
		return err
	}
	h.UseCase.AppointmentUpdate(ctx, event.UserID, payload)
	return nil
}

type AppointmentReminderHandler struct {
	UseCase *usecase.InboundUseCase
}

func (h *AppointmentReminderHandler) Event() string { return domain.EventAppointmentReminder }

func (h *AppointmentReminderHandler) Handle(ctx context.Context, event *domain.InboundEvent) error {
	payload, err := domain.DecodePayload[domain.AppointmentReminderPayload](event)
	if err != nil {
		return err
	}
	h.UseCase.AppointmentReminder(ctx, event.UserID, payload)
	return nil
}

// NewNotificationHandler guarda la notificación tal como llega.
type NewNotificationHandler struct {
	UseCase *usecase.InboundUseCase
}

func (h *NewNotificationHandler) Event() string { return domain.EventNewNotification }

func (h *NewNotificationHandler) Handle(ctx context.Context, event *domain.InboundEvent) error {
	payload, err := domain.DecodePayload[domain.NewNotificationPayload](event)
	if err != nil {
		return err
	}
	h.UseCase.NewNotification(ctx, event.UserID, payload)
	return nil
}

// All returns one handler per inbound event.
func All(uc *usecase.InboundUseCase) []port.EventHandler {
	return []port.EventHandler{
		&NewMessageHandler{UseCase: uc},
		&AppointmentUpdateHandler{UseCase: uc},
		&AppointmentReminderHandler{UseCase: uc},
		&NewNotificationHandler{UseCase: uc},
	}
}

var (
	_ port.EventHandler = (*AppointmentUpdateHandler)(nil)
	_ port.EventHandler = (*AppointmentReminderHandler)(nil)
	_ port.EventHandler = (*NewNotificationHandler)(nil)
)
