package transport

import (
	"context"
	"encoding/json"
	"log/slog"

	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/modules/realtime/domain"
	"careLinkWs/internal/modules/realtime/infrastructure"
)

// commandSet binds the websocket actions of one connection to its caller.
type commandSet struct {
	caller        usecase.Caller
	messaging     *usecase.MessagingUseCase
	notifications *usecase.NotificationsUseCase
}

func (s commandSet) register(p *infrastructure.CommandProcessor) {
	p.Register("sendMessage", s.sendMessage)
	p.Register("selectRecipient", s.selectRecipient)
	p.Register("markAllRead", s.markAllRead)
	p.Register("markRead", s.markRead)
	p.Register("removeNotification", s.removeNotification)
	p.Register("recipients", s.recipients)
	p.Register("join", s.join)
}

func (s commandSet) sendMessage(ctx context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	payload, err := decodeCommand[domain.SendMessageCommand](cmd.Payload)
	if err != nil {
		sendCommandError(client, cmd.Action, "invalid payload")
		return
	}
	msg, err := s.messaging.Send(ctx, s.caller, payload.Recipient, payload.Content)
	if err != nil {
		slog.Warn("ws sendMessage rejected", slog.String("userId", s.caller.UserID), slog.String("recipient", payload.Recipient), slog.Any("error", err))
		sendCommandError(client, cmd.Action, errorMapper.Map(err).Message)
		return
	}
	slog.Debug("ws sendMessage accepted", slog.String("userId", s.caller.UserID), slog.String("recipient", msg.Recipient), slog.Int64("messageId", msg.ID))
}

func (s commandSet) selectRecipient(ctx context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	payload, err := decodeCommand[domain.SelectRecipientCommand](cmd.Payload)
	if err != nil {
		sendCommandError(client, cmd.Action, "invalid payload")
		return
	}
	s.messaging.SelectRecipient(ctx, s.caller, payload.Recipient)
}

func (s commandSet) markAllRead(ctx context.Context, _ *infrastructure.Client, _ infrastructure.Command) {
	s.notifications.MarkAllRead(ctx, s.caller)
}

func (s commandSet) markRead(ctx context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	payload, ok := decodeNotificationID(client, cmd)
	if !ok {
		return
	}
	if _, err := s.notifications.MarkRead(ctx, s.caller, payload.ID); err != nil {
		sendCommandError(client, cmd.Action, errorMapper.Map(err).Message)
	}
}

func (s commandSet) removeNotification(ctx context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	payload, ok := decodeNotificationID(client, cmd)
	if !ok {
		return
	}
	s.notifications.Remove(ctx, s.caller, payload.ID)
}

func (s commandSet) recipients(_ context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	payload, err := decodeCommand[domain.RecipientsCommand](cmd.Payload)
	if err != nil {
		sendCommandError(client, cmd.Action, "invalid payload")
		return
	}
	snapshot := s.messaging.Recipients(s.caller, payload.Search)
	client.SendEnvelope(domain.NewEnvelope(domain.TopicMessages, domain.EventRecipients, snapshot).For(s.caller.UserID))
}

// join is acknowledged with the identity of the token; a different userId in the
// payload is ignored.
func (s commandSet) join(_ context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	payload, err := decodeCommand[domain.JoinCommand](cmd.Payload)
	if err != nil {
		sendCommandError(client, cmd.Action, "invalid payload")
		return
	}
	if payload.UserID != "" && payload.UserID != s.caller.UserID {
		slog.Debug("ws join identity mismatch", slog.String("userId", s.caller.UserID), slog.String("requested", payload.UserID))
	}
	client.SendEnvelope(domain.NewEnvelope(domain.TopicSystem, domain.EventJoined, domain.JoinCommand{
		UserID: s.caller.UserID,
		Role:   string(s.caller.Role),
	}).For(s.caller.UserID))
}

func (s commandSet) unsupported(_ context.Context, client *infrastructure.Client, cmd infrastructure.Command) {
	slog.Debug("ws handler unknown action", slog.String("userId", s.caller.UserID), slog.String("action", cmd.Action))
	sendCommandError(client, cmd.Action, "unsupported action")
}

func decodeNotificationID(client *infrastructure.Client, cmd infrastructure.Command) (domain.NotificationIDCommand, bool) {
	payload, err := decodeCommand[domain.NotificationIDCommand](cmd.Payload)
	if err == nil {
		err = domain.ValidateStruct(payload)
	}
	if err != nil {
		sendCommandError(client, cmd.Action, "invalid payload")
		return payload, false
	}
	return payload, true
}

func sendCommandError(client *infrastructure.Client, action, reason string) {
	client.SendEnvelope(domain.ErrorEnvelope(action, reason).For(client.UserID()))
}

func decodeCommand[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, nil
	}
	return payload, json.Unmarshal(raw, &payload)
}
