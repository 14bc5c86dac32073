package transport

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	messaging "careLinkWs/internal/modules/messaging/domain"
	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/shared/auth"
)

const callerContextKey = "caller"

// NewAuthMiddleware resolves the bearer (or ?token=) JWT into a usecase.Caller.
func NewAuthMiddleware(connectUC *usecase.ConnectUseCase) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, _, err := connectUC.Authenticate(auth.ExtractToken(c.Request(), "token"))
			if err != nil {
				slog.Debug("rest auth rejected", slog.String("path", c.Path()), slog.Any("error", err))
				return errorMapper.HTTPError(err)
			}
			c.Set(callerContextKey, caller)
			return next(c)
		}
	}
}

// NewServiceAuthMiddleware admits the configured service token, or an admin JWT when no
// service token matches.
func NewServiceAuthMiddleware(serviceToken string, connectUC *usecase.ConnectUseCase) echo.MiddlewareFunc {
	serviceToken = strings.TrimSpace(serviceToken)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := auth.ExtractBearerToken(c.Request())
			if serviceToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(serviceToken)) == 1 {
				return next(c)
			}
			caller, _, err := connectUC.Authenticate(token)
			if err != nil {
				return errorMapper.HTTPError(err)
			}
			if !messaging.HasAccess(caller.Role, messaging.RoleAdmin) {
				return errorMapper.HTTPError(usecase.ErrForbidden)
			}
			c.Set(callerContextKey, caller)
			return next(c)
		}
	}
}

func callerFrom(c echo.Context) usecase.Caller {
	caller, _ := c.Get(callerContextKey).(usecase.Caller)
	return caller
}

type messageRequest struct {
	Recipient string `json:"recipient" validate:"max=128"`
	Content   string `json:"content" validate:"max=4000"`
}

// RESTHandler sirve las mismas operaciones que el websocket para clientes sin conexión persistente.
type RESTHandler struct {
	messaging     *usecase.MessagingUseCase
	notifications *usecase.NotificationsUseCase
	audit         *usecase.AuditUseCase
}

func NewRESTHandler(messagingUC *usecase.MessagingUseCase, notificationsUC *usecase.NotificationsUseCase, auditUC *usecase.AuditUseCase) *RESTHandler {
	return &RESTHandler{messaging: messagingUC, notifications: notificationsUC, audit: auditUC}
}

// Register mounts the handlers on g. mw must include NewAuthMiddleware.
func (h *RESTHandler) Register(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.GET("/notifications", h.ListNotifications, mw...)
	g.POST("/notifications/read-all", h.MarkAllRead, mw...)
	g.POST("/notifications/:id/read", h.MarkRead, mw...)
	g.DELETE("/notifications/:id", h.RemoveNotification, mw...)
	g.GET("/messages", h.Conversation, mw...)
	g.POST("/messages", h.SendMessage, mw...)
	g.GET("/recipients", h.Recipients, mw...)
	g.GET("/audit", h.Audit, mw...)
}

func (h *RESTHandler) ListNotifications(c echo.Context) error {
	return c.JSON(http.StatusOK, h.notifications.List(callerFrom(c)))
}

func (h *RESTHandler) MarkAllRead(c echo.Context) error {
	return c.JSON(http.StatusOK, h.notifications.MarkAllRead(c.Request().Context(), callerFrom(c)))
}

func (h *RESTHandler) MarkRead(c echo.Context) error {
	id, err := notificationID(c)
	if err != nil {
		return err
	}
	snapshot, err := h.notifications.MarkRead(c.Request().Context(), callerFrom(c), id)
	if err != nil {
		return errorMapper.HTTPError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (h *RESTHandler) RemoveNotification(c echo.Context) error {
	id, err := notificationID(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.notifications.Remove(c.Request().Context(), callerFrom(c), id))
}

func (h *RESTHandler) Conversation(c echo.Context) error {
	return c.JSON(http.StatusOK, h.messaging.Conversation(callerFrom(c), strings.TrimSpace(c.QueryParam("with"))))
}

// SendMessage answers 201 with the local echo. A failed hand-off to the event source
// still keeps the echo and answers 502.
func (h *RESTHandler) SendMessage(c echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return errorMapper.HTTPError(err)
	}
	caller := callerFrom(c)
	msg, err := h.messaging.Send(c.Request().Context(), caller, req.Recipient, req.Content)
	if err != nil {
		slog.Warn("rest send message failed", slog.String("userId", caller.UserID), slog.String("recipient", req.Recipient), slog.Any("error", err))
		return errorMapper.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *RESTHandler) Recipients(c echo.Context) error {
	return c.JSON(http.StatusOK, h.messaging.Recipients(callerFrom(c), c.QueryParam("search")))
}

func (h *RESTHandler) Audit(c echo.Context) error {
	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	entries, err := h.audit.Recent(c.Request().Context(), callerFrom(c), c.QueryParam("user"), limit)
	if err != nil {
		return errorMapper.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": entries})
}

func notificationID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid notification id")
	}
	return id, nil
}

// connectionCounter and sessionCounter are satisfied by the hub and session registry.
type connectionCounter interface {
	Connections(identity string) int
}

type sessionCounter interface {
	Len() int
}

func NewHealthHandler(connections connectionCounter, sessions sessionCounter) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":      "ok",
			"connections": connections.Connections(""),
			"sessions":    sessions.Len(),
		})
	}
}
