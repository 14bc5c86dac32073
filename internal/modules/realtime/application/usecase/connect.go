package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	messaging "careLinkWs/internal/modules/messaging/domain"
	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/realtime/domain"
	"careLinkWs/internal/shared/auth"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrUnknownRole  = errors.New("token carries no known role")
)

type ConnectOutput struct {
	Caller        Caller
	SessionID     string
	Roles         []string
	Notifications domain.NotificationsSnapshot
	Conversation  domain.ConversationSnapshot
}

// ConnectUseCase authenticates a consumer and attaches it to the identity's session.
type ConnectUseCase struct {
	Validator auth.TokenValidator
	sessions  *SessionRegistry
}

func NewConnectUseCase(validator auth.TokenValidator, sessions *SessionRegistry) *ConnectUseCase {
	return &ConnectUseCase{Validator: validator, sessions: sessions}
}

// Authenticate validates token and resolves the caller without touching sessions.
func (uc *ConnectUseCase) Authenticate(token string) (Caller, *auth.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Caller{}, nil, ErrMissingToken
	}
	claims, err := uc.Validator.Validate(token)
	if err != nil {
		return Caller{}, nil, err
	}
	role, ok := messaging.FirstRole(claims.Roles)
	if !ok {
		return Caller{}, nil, ErrUnknownRole
	}
	return Caller{UserID: claims.Identity(), Role: role}, claims, nil
}

// Execute authenticates token and acquires the session. Callers must Release the
// identity when the consumer goes away.
func (uc *ConnectUseCase) Execute(_ context.Context, token string) (*ConnectOutput, error) {
	caller, claims, err := uc.Authenticate(token)
	if err != nil {
		slog.Warn("connect token rejected", slog.Any("error", err))
		return nil, err
	}
	session := uc.sessions.Acquire(caller.UserID, caller.Role)
	items := session.Store().List()
	channel := session.Channel()

	slog.Info("connect session attached", slog.String("userId", caller.UserID), slog.String("role", string(caller.Role)), slog.String("sessionId", claims.SessionID))
	return &ConnectOutput{
		Caller:    caller,
		SessionID: claims.SessionID,
		Roles:     claims.Roles,
		Notifications: domain.NotificationsSnapshot{
			Items:  items,
			Unread: notifications.CountUnread(items),
		},
		Conversation: conversationSnapshot(channel, channel.Selected()),
	}, nil
}

func (uc *ConnectUseCase) Release(identity string) {
	uc.sessions.Release(identity)
}
