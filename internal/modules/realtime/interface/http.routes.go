package transport

import (
	"github.com/labstack/echo/v4"

	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/modules/realtime/infrastructure"
	"careLinkWs/internal/shared/httputil"
)

type RouteDeps struct {
	Hub           *infrastructure.Hub
	Sessions      *usecase.SessionRegistry
	Connect       *usecase.ConnectUseCase
	Messaging     *usecase.MessagingUseCase
	Notifications *usecase.NotificationsUseCase
	Audit         *usecase.AuditUseCase
	Events        EventDispatcher
	ServiceToken  string
	SendBuffer    int
}

// RegisterRoutes monta websocket, REST, ingesta de eventos y healthz sobre e.
func RegisterRoutes(e *echo.Echo, deps RouteDeps) {
	if e.Validator == nil {
		e.Validator = httputil.NewRequestValidator()
	}

	wsHandler := NewWebsocketHandler(WebsocketDeps{
		Hub:           deps.Hub,
		Connect:       deps.Connect,
		Messaging:     deps.Messaging,
		Notifications: deps.Notifications,
		SendBuffer:    deps.SendBuffer,
	})
	e.GET("/ws", wsHandler)
	e.GET("/ws/:token", wsHandler)

	api := e.Group("/api")
	NewRESTHandler(deps.Messaging, deps.Notifications, deps.Audit).Register(api, NewAuthMiddleware(deps.Connect))
	api.POST("/events", NewEventsHTTPHandler(deps.Events), NewServiceAuthMiddleware(deps.ServiceToken, deps.Connect))

	e.GET("/healthz", NewHealthHandler(deps.Hub, deps.Sessions))
}
