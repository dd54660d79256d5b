package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/resonatehq/resmon/internal/kernel/dispatch"
)

type Error struct {
	// Code is the internal code that indicates the type of error
	Code StatusCode `json:"code,omitempty"`

	// Message is the error message
	Message string `json:"message,omitempty"`

	// Details is a list of details about the error
	Details []*ErrorDetails `json:"details,omitempty"`
}

type ErrorDetails struct {
	// Type is the specific error type
	Type string `json:"@type,omitempty"`

	// Message is a human readable description of the error
	Message string `json:"message,omitempty"`

	// Domain is the domain of the error
	Domain string `json:"domain,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, e.Details[0].Message)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Code == e.Code
}

// ValidationError is returned when a request is malformed, it never
// reaches the monitor.
type ValidationError = Error

func ServerError(err error) *Error {
	code := StatusInternalServerError

	switch {
	case errors.Is(err, dispatch.ErrQueueFull):
		code = StatusDispatchQueueFull
	case errors.Is(err, dispatch.ErrStopped):
		code = StatusShuttingDown
	}

	return &Error{
		Code:    code,
		Message: "The server was unable to process the request.",
		Details: []*ErrorDetails{{
			Type:    "ServerError",
			Message: err.Error(),
			Domain:  "server",
		}},
	}
}

func RequestError(status StatusCode, message string) *Error {
	return &Error{
		Code:    status,
		Message: message,
		Details: []*ErrorDetails{{
			Type:    "RequestError",
			Message: "Request errors are not retryable since they are caused by invalid client requests",
			Domain:  "request",
		}},
	}
}

func RequestValidationError(err error) *ValidationError {
	details := []*ErrorDetails{}

	for _, err := range parseBindingError(err) {
		details = append(details, &ErrorDetails{
			Type:    "FieldValidationError",
			Message: err,
			Domain:  "request",
		})
	}

	return &ValidationError{
		Code:    StatusFieldValidationError,
		Message: "The request is invalid.",
		Details: details,
	}
}

// Helper functions

func parseBindingError(errs ...error) []string {
	var out []string
	for _, err := range errs {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, e := range validationErrs {
				out = append(out, parseFieldError(e))
			}
		} else {
			out = append(out, err.Error())
		}
	}
	return out
}

func parseFieldError(e validator.FieldError) string {
	field := lowerFirst(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("The field %s is required.", field)
	case "startswith":
		return fmt.Sprintf("The field %s must start with %s.", field, e.Param())
	case "gte":
		return fmt.Sprintf("The field %s must be greater than or equal to %s.", field, e.Param())
	case "lte":
		return fmt.Sprintf("The field %s must be less than or equal to %s.", field, e.Param())
	case "interval":
		return fmt.Sprintf("The field %s must be a duration of at least 1ms such as 30s, 00:00:30, or @every 1h.", field)
	default:
		return e.Error()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
