package transport

import (
	"net/http"

	messaging "careLinkWs/internal/modules/messaging/domain"
	notifications "careLinkWs/internal/modules/notifications/domain"
	"careLinkWs/internal/modules/realtime/application/usecase"
	"careLinkWs/internal/modules/realtime/domain"
	"careLinkWs/internal/shared/auth"
	"careLinkWs/internal/shared/httputil"
)

var errorMapper = httputil.NewErrorMapper().
	WithMapping(usecase.ErrMissingToken, http.StatusUnauthorized, "missing token").
	WithMapping(auth.ErrMissingToken, http.StatusUnauthorized, "missing token").
	WithMapping(auth.ErrInvalidToken, http.StatusUnauthorized, "invalid token").
	WithMapping(usecase.ErrUnknownRole, http.StatusForbidden, "unknown role").
	WithMapping(usecase.ErrForbidden, http.StatusForbidden, "forbidden").
	WithMapping(messaging.ErrEmptyContent, http.StatusBadRequest, "message content is empty").
	WithMapping(messaging.ErrMissingRecipient, http.StatusBadRequest, "message recipient is missing").
	WithMapping(messaging.ErrRecipientNotAllowed, http.StatusForbidden, "recipient not allowed").
	WithMapping(notifications.ErrNotificationNotFound, http.StatusNotFound, "notification not found").
	WithMapping(domain.ErrMalformedEvent, http.StatusBadRequest, "malformed event").
	WithMapping(usecase.ErrDeliveryFailed, http.StatusBadGateway, "message delivery failed")
