package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	messaging "careLinkWs/internal/modules/messaging/domain"
	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/domain"
)

var ErrDeliveryFailed = errors.New("message delivery failed")

const (
	AuditSendMessage        = "sendMessage"
	AuditSelectRecipient    = "selectRecipient"
	AuditMarkAllRead        = "markAllRead"
	AuditMarkRead           = "markRead"
	AuditRemoveNotification = "removeNotification"
)

// Caller is the authenticated identity issuing a command.
type Caller struct {
	UserID string
	Role   messaging.Role
}

type MessagingUseCase struct {
	sessions  *SessionRegistry
	publisher port.EventPublisher
	audit     port.AuditRecorder
	broadcast *BroadcastUseCase
}

func NewMessagingUseCase(sessions *SessionRegistry, publisher port.EventPublisher, audit port.AuditRecorder, broadcast *BroadcastUseCase) *MessagingUseCase {
	return &MessagingUseCase{sessions: sessions, publisher: publisher, audit: audit, broadcast: broadcast}
}

// Send composes a message from caller and hands it to the event source for delivery.
// Rejected input leaves every state untouched. When publishing fails the local echo is
// kept and ErrDeliveryFailed is returned.
func (uc *MessagingUseCase) Send(ctx context.Context, caller Caller, recipient, content string) (messaging.Message, error) {
	session := uc.sessions.Ensure(caller.UserID, caller.Role)
	msg, err := session.Channel().Compose(recipient, content)
	if err != nil {
		return messaging.Message{}, err
	}
	uc.record(ctx, caller.UserID, AuditSendMessage, strconv.FormatInt(msg.ID, 10), msg.Recipient)
	uc.pushConversation(ctx, session)

	event, err := domain.NewInboundEvent(domain.EventNewMessage, msg.Recipient, domain.NewMessagePayload{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		Read:      msg.Read,
	})
	if err != nil {
		return msg, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if uc.publisher == nil {
		return msg, nil
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		slog.Warn("message publish failed", slog.String("userId", caller.UserID), slog.String("recipient", msg.Recipient), slog.Any("error", err))
		return msg, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return msg, nil
}

// SelectRecipient opens the conversation with recipient and returns its snapshot.
func (uc *MessagingUseCase) SelectRecipient(ctx context.Context, caller Caller, recipient string) domain.ConversationSnapshot {
	session := uc.sessions.Ensure(caller.UserID, caller.Role)
	session.Channel().SelectRecipient(recipient)
	uc.record(ctx, caller.UserID, AuditSelectRecipient, session.Channel().Selected(), "")
	snapshot := conversationSnapshot(session.Channel(), session.Channel().Selected())
	uc.broadcast.ToIdentity(ctx, caller.UserID, domain.NewEnvelope(domain.TopicMessages, domain.EventConversation, snapshot))
	return snapshot
}

// Conversation reads the thread with other without changing read state or selection.
func (uc *MessagingUseCase) Conversation(caller Caller, other string) domain.ConversationSnapshot {
	session := uc.sessions.Ensure(caller.UserID, caller.Role)
	return conversationSnapshot(session.Channel(), other)
}

func (uc *MessagingUseCase) Recipients(caller Caller, search string) domain.RecipientsSnapshot {
	session := uc.sessions.Ensure(caller.UserID, caller.Role)
	return domain.RecipientsSnapshot{Search: search, Recipients: session.Channel().Recipients(search)}
}

func (uc *MessagingUseCase) pushConversation(ctx context.Context, session *Session) {
	channel := session.Channel()
	if channel.Selected() == "" {
		return
	}
	env := domain.NewEnvelope(domain.TopicMessages, domain.EventConversation, conversationSnapshot(channel, channel.Selected()))
	uc.broadcast.ToIdentity(ctx, session.Identity(), env)
}

func (uc *MessagingUseCase) record(ctx context.Context, userID, action, resourceID, details string) {
	recordAudit(ctx, uc.audit, userID, action, resourceID, details)
}

func conversationSnapshot(channel *messaging.Channel, with string) domain.ConversationSnapshot {
	return domain.ConversationSnapshot{
		With:       with,
		Messages:   channel.Conversation(with),
		Unread:     channel.UnreadCount(),
		Recipients: channel.Recipients(""),
	}
}

func recordAudit(ctx context.Context, recorder port.AuditRecorder, userID, action, resourceID, details string) {
	if recorder == nil {
		return
	}
	entry := port.AuditEntry{
		UserID:     userID,
		Action:     action,
		ResourceID: resourceID,
		Details:    details,
		At:         time.Now().UTC(),
	}
	if err := recorder.Record(ctx, entry); err != nil {
		slog.Warn("audit record failed", slog.String("userId", userID), slog.String("action", action), slog.Any("error", err))
	}
}
