package usecase

import (
	"context"
	"strconv"

	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/realtime/application/port"
	"careLinkWs/internal/modules/realtime/domain"
)

// NotificationsUseCase exposes the notification store of the caller's session.
// Store listeners push the refreshed snapshot to every consumer of the identity.
type NotificationsUseCase struct {
	sessions *SessionRegistry
	audit    port.AuditRecorder
}

func NewNotificationsUseCase(sessions *SessionRegistry, audit port.AuditRecorder) *NotificationsUseCase {
	return &NotificationsUseCase{sessions: sessions, audit: audit}
}

func (uc *NotificationsUseCase) List(caller Caller) domain.NotificationsSnapshot {
	store := uc.sessions.Ensure(caller.UserID, caller.Role).Store()
	items := store.List()
	return domain.NotificationsSnapshot{Items: items, Unread: notifications.CountUnread(items)}
}

func (uc *NotificationsUseCase) MarkAllRead(ctx context.Context, caller Caller) domain.NotificationsSnapshot {
	uc.sessions.Ensure(caller.UserID, caller.Role).Store().MarkAllRead()
	recordAudit(ctx, uc.audit, caller.UserID, AuditMarkAllRead, "", "")
	return uc.List(caller)
}

// MarkRead returns ErrNotificationNotFound for an unknown id.
func (uc *NotificationsUseCase) MarkRead(ctx context.Context, caller Caller, id int64) (domain.NotificationsSnapshot, error) {
	store := uc.sessions.Ensure(caller.UserID, caller.Role).Store()
	if !store.MarkRead(id) {
		return domain.NotificationsSnapshot{}, notifications.ErrNotificationNotFound
	}
	recordAudit(ctx, uc.audit, caller.UserID, AuditMarkRead, strconv.FormatInt(id, 10), "")
	return uc.List(caller), nil
}

// Remove dismisses a notification; an unknown id is a no-op.
func (uc *NotificationsUseCase) Remove(ctx context.Context, caller Caller, id int64) domain.NotificationsSnapshot {
	if uc.sessions.Ensure(caller.UserID, caller.Role).Store().Remove(id) {
		recordAudit(ctx, uc.audit, caller.UserID, AuditRemoveNotification, strconv.FormatInt(id, 10), "")
	}
	return uc.List(caller)
}
