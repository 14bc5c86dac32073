package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/modules/realtime/domain"
	"careLinkWs/internal/modules/realtime/infrastructure"
	"careLinkWs/internal/shared/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebsocketDeps agrupa los casos de uso que atiende cada conexión.
type WebsocketDeps struct {
	Hub           *infrastructure.Hub
	Connect       *usecase.ConnectUseCase
	Messaging     *usecase.MessagingUseCase
	Notifications *usecase.NotificationsUseCase
	SendBuffer    int
}

// NewWebsocketHandler expone /ws y /ws/:token. El token también se acepta en la query
// o en el header Authorization.
func NewWebsocketHandler(deps WebsocketDeps) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := strings.TrimSpace(c.Param("token"))
		if token == "" {
			token = auth.ExtractToken(c.Request(), "token")
		}
		logger := c.Logger()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		peerIP := c.RealIP()

		ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
		defer cancel()

		output, err := deps.Connect.Execute(ctx, token)
		if err != nil {
			httpErr := errorMapper.HTTPError(err)
			slog.Warn("ws handler connect failed", slog.Int("status", httpErr.Code), slog.Int("tokenLen", len(token)), slog.Any("error", err))
			logger.Warnf("ws connect rejected ip=%s reqID=%s: %v", peerIP, requestID, err)
			return httpErr
		}
		caller := output.Caller

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			deps.Connect.Release(caller.UserID)
			slog.Error("ws handler upgrade failed", slog.String("userId", caller.UserID), slog.Any("error", err))
			logger.Errorf("ws upgrade failed user=%s ip=%s reqID=%s: %v", caller.UserID, peerIP, requestID, err)
			return err
		}

		connectionID := uuid.NewString()
		commands := commandSet{caller: caller, messaging: deps.Messaging, notifications: deps.Notifications}
		client := infrastructure.NewClient(deps.Hub, conn, caller.UserID, string(caller.Role), connectionID, deps.SendBuffer, commands.unsupported)
		client.AddCloseHook(func(*infrastructure.Client) {
			deps.Connect.Release(caller.UserID)
		})
		commands.register(client.Commands())
		deps.Hub.AttachClient(client, domain.DefaultTopics())

		connected := domain.NewEnvelope(domain.TopicSystem, domain.EventConnected, map[string]any{
			"userId":       caller.UserID,
			"role":         caller.Role,
			"roles":        output.Roles,
			"connectionId": connectionID,
			"topics":       domain.DefaultTopics(),
		}).For(caller.UserID)
		connected.Metadata["sessionId"] = output.SessionID
		client.SendEnvelope(connected)
		client.SendEnvelope(domain.NewEnvelope(domain.TopicNotifications, domain.EventSnapshot, output.Notifications).For(caller.UserID))
		client.SendEnvelope(domain.NewEnvelope(domain.TopicMessages, domain.EventConversation, output.Conversation).For(caller.UserID))

		// el contexto de la petición se cancela al terminar el handler
		pumpCtx := context.WithoutCancel(c.Request().Context())
		go client.WritePump()
		go client.ReadPump(pumpCtx)

		slog.Info("ws handler upgrade success", slog.String("userId", caller.UserID), slog.String("role", string(caller.Role)), slog.String("connectionId", connectionID), slog.String("sessionId", output.SessionID))
		logger.Infof("ws connected user=%s role=%s connection=%s ip=%s reqID=%s", caller.UserID, caller.Role, connectionID, peerIP, requestID)
		return nil
	}
}
