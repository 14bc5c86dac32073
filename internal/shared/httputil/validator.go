package httputil

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs validator/v10 into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

var _ echo.Validator = (*RequestValidator)(nil)
