package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// HTTPErrorInfo contains the HTTP status code and message for an error.
type HTTPErrorInfo struct {
	Status  int
	Message string
}

type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// ErrorMapper maps domain sentinel errors to HTTP statuses. Mappings are checked in
// registration order with errors.Is.
type ErrorMapper struct {
	mappings       []ErrorMapping
	defaultStatus  int
	defaultMessage string
}

func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{
		mappings:       make([]ErrorMapping, 0),
		defaultStatus:  http.StatusInternalServerError,
		defaultMessage: "internal server error",
	}
}

func (m *ErrorMapper) WithMapping(err error, status int, message string) *ErrorMapper {
	m.mappings = append(m.mappings, ErrorMapping{Error: err, Status: status, Message: message})
	return m
}

func (m *ErrorMapper) WithDefault(status int, message string) *ErrorMapper {
	m.defaultStatus = status
	m.defaultMessage = message
	return m
}

// Map converts err to a status and message. Context errors and validator failures are
// classified before the registered mappings.
func (m *ErrorMapper) Map(err error) HTTPErrorInfo {
	if err == nil {
		return HTTPErrorInfo{Status: http.StatusOK}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return HTTPErrorInfo{Status: http.StatusGatewayTimeout, Message: "request timeout"}
	}
	if errors.Is(err, context.Canceled) {
		return HTTPErrorInfo{Status: http.StatusServiceUnavailable, Message: "request cancelled"}
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		return HTTPErrorInfo{Status: http.StatusBadRequest, Message: invalid.Error()}
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, _ := httpErr.Message.(string)
		return HTTPErrorInfo{Status: httpErr.Code, Message: msg}
	}

	for _, mapping := range m.mappings {
		if errors.Is(err, mapping.Error) {
			return HTTPErrorInfo{Status: mapping.Status, Message: mapping.Message}
		}
	}
	return HTTPErrorInfo{Status: m.defaultStatus, Message: m.defaultMessage}
}

// HTTPError maps err into an echo error ready to be returned from a handler.
func (m *ErrorMapper) HTTPError(err error) *echo.HTTPError {
	info := m.Map(err)
	if info.Message == "" {
		info.Message = http.StatusText(info.Status)
	}
	return echo.NewHTTPError(info.Status, info.Message)
}

// QuickMap maps err without building a long-lived mapper.
func QuickMap(err error, mappings ...ErrorMapping) HTTPErrorInfo {
	mapper := NewErrorMapper()
	mapper.mappings = append(mapper.mappings, mappings...)
	return mapper.Map(err)
}
