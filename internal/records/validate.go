package records

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
	return cv.v.Struct(i)
}

// FieldError is one entry of a 422 response.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// unprocessable builds the 422 response for a bind or validation failure.
func unprocessable(err error) *echo.HTTPError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		msg := err.Error()
		// Bind failures are already *echo.HTTPError; keep only their text so
		// the error handler does not fall back to their 400.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil {
				msg = he.Internal.Error()
			}
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{
			"detail": []FieldError{{Loc: []string{"body"}, Msg: msg, Type: "value_error.jsondecode"}},
		})
	}

	detail := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		fieldErr := FieldError{Loc: []string{"body", fe.Field()}, Msg: fe.Error(), Type: "value_error"}
		if fe.Tag() == "required" {
			fieldErr.Msg = "field required"
			fieldErr.Type = "value_error.missing"
		}
		detail = append(detail, fieldErr)
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]any{"detail": detail}).SetInternal(err)
}
