package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	messaging "careLinkWs/internal/modules/messaging/domain"
	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/realtime/domain"
)

// InboundUseCase applies events from the event source to the sessions they target.
type InboundUseCase struct {
	sessions  *SessionRegistry
	broadcast *BroadcastUseCase
	now       func() time.Time
}

func NewInboundUseCase(sessions *SessionRegistry, broadcast *BroadcastUseCase) *InboundUseCase {
	return &InboundUseCase{sessions: sessions, broadcast: broadcast, now: time.Now}
}

// DeliverMessage appends msg to the recipient's channel. A new unread message also raises
// a "New message from" notification and refreshes the recipient's messaging panels.
func (uc *InboundUseCase) DeliverMessage(ctx context.Context, payload domain.NewMessagePayload) error {
	recipient := strings.TrimSpace(payload.Recipient)
	if recipient == "" {
		return fmt.Errorf("%w: newMessage without recipient", domain.ErrMalformedEvent)
	}
	msg := messaging.Message{
		ID:        payload.ID,
		Sender:    strings.TrimSpace(payload.Sender),
		Recipient: recipient,
		Content:   payload.Content,
		Timestamp: payload.Timestamp,
		Read:      payload.Read,
	}
	if msg.Timestamp == "" {
		msg.Timestamp = uc.now().UTC().Format(time.RFC3339Nano)
	}

	session := uc.sessions.Ensure(recipient, "")
	channel := session.Channel()
	msg, fresh := channel.Receive(msg)
	if !fresh {
		slog.Debug("inbound message stored without notification", slog.String("userId", recipient), slog.Int64("messageId", msg.ID))
	} else {
		session.Store().Add(notifications.Input{
			Message: "New message from " + msg.Sender,
			Type:    notifications.TypeInfo,
		})
	}

	env := domain.NewEnvelope(domain.TopicMessages, domain.EventNewMessage, domain.ConversationSnapshot{
		With:     msg.Sender,
		Messages: []messaging.Message{msg},
		Unread:   channel.UnreadCount(),
	})
	uc.broadcast.ToIdentity(ctx, recipient, env)
	return nil
}

// AppointmentUpdate notifies target, or every session when target is empty.
func (uc *InboundUseCase) AppointmentUpdate(_ context.Context, target string, payload domain.AppointmentUpdatePayload) {
	uc.notify(target, notifications.Input{
		Message: "Appointment update: " + strings.TrimSpace(payload.Message),
		Type:    notifications.TypeInfo,
	})
}

func (uc *InboundUseCase) AppointmentReminder(_ context.Context, target string, payload domain.AppointmentReminderPayload) {
	uc.notify(target, notifications.Input{
		Message: fmt.Sprintf("Reminder: You have an appointment with %s on %s at %s",
			strings.TrimSpace(payload.DoctorName), strings.TrimSpace(payload.Date), strings.TrimSpace(payload.Time)),
		Type: notifications.TypeWarning,
	})
}

func (uc *InboundUseCase) NewNotification(_ context.Context, target string, payload domain.NewNotificationPayload) {
	kind, ok := notifications.ParseType(payload.Type)
	if !ok {
		kind = notifications.TypeInfo
	}
	uc.notify(target, notifications.Input{
		Message:   payload.Message,
		Type:      kind,
		Timestamp: strings.TrimSpace(payload.Timestamp),
	})
}

func (uc *InboundUseCase) notify(target string, in notifications.Input) {
	target = strings.TrimSpace(target)
	if target != "" {
		uc.sessions.Ensure(target, "").Store().Add(in)
		return
	}
	uc.sessions.Each(func(s *Session) {
		s.Store().Add(in)
	})
}
