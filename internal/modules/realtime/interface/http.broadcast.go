package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"careLinkWs/internal/modules/realtime/domain"
)

const maxEventBody = 1 << 20

// EventDispatcher is satisfied by infrastructure.HandlerRegistry.
type EventDispatcher interface {
	DispatchRaw(ctx context.Context, raw []byte) error
}

type IngestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewEventsHTTPHandler acepta eventos del event source por REST (integraciones sin Kafka).
// Un payload malformado se descarta con 400.
func NewEventsHTTPHandler(dispatcher EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxEventBody))
		if err != nil {
			slog.Warn("events http: invalid request body", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		if err := dispatcher.DispatchRaw(c.Request().Context(), raw); err != nil {
			if errors.Is(err, domain.ErrMalformedEvent) {
				slog.Warn("events http: malformed event dropped", slog.Any("error", err))
			} else {
				slog.Error("events http: dispatch failed", slog.Any("error", err))
			}
			return errorMapper.HTTPError(err)
		}

		slog.Info("events http: event accepted", slog.Int("bytes", len(raw)))
		return c.JSON(http.StatusAccepted, IngestResponse{Success: true, Message: "event accepted"})
	}
}
