package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeNotFound:     fiber.StatusNotFound,
	CodeValidation:   fiber.StatusBadRequest,
	CodeUnauthorized: fiber.StatusUnauthorized,
	CodeForbidden:    fiber.StatusForbidden,
	CodeConflict:     fiber.StatusConflict,
	CodeInternal:     fiber.StatusInternalServerError,
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError is a failure the API can show to the caller. Message is safe to
// return; Err is the underlying cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NewNotFoundError reports a missing resource by ID.
func NewNotFoundError(resource string, id any) *AppError {
	return newAppError(CodeNotFound, fmt.Sprintf("%s with ID %v not found", resource, id))
}

// NewNotFoundMessage reports a missing resource with a custom message.
func NewNotFoundMessage(message string) *AppError { return newAppError(CodeNotFound, message) }

func NewValidationError(message string) *AppError { return newAppError(CodeValidation, message) }

func NewUnauthorizedError(message string) *AppError { return newAppError(CodeUnauthorized, message) }

func NewForbiddenError(message string) *AppError { return newAppError(CodeForbidden, message) }

// NewConflictError reports a uniqueness or state conflict.
func NewConflictError(message string) *AppError { return newAppError(CodeConflict, message) }

func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: err}
}

// IsCode reports whether err wraps an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// MapServiceError returns the HTTP status for an error produced by the
// service layer. Anything that is not an AppError is an internal failure.
func MapServiceError(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if status, ok := statusByCode[appErr.Code]; ok {
			return status
		}
	}
	return fiber.StatusInternalServerError
}

// RespondWithError writes err as an ErrorResponse with the given status.
// Causes of internal errors stay in the logs.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	body := ErrorResponse{Error: err.Error()}
	var appErr *AppError
	if errors.As(err, &appErr) {
		body = ErrorResponse{Error: appErr.Message, Code: appErr.Code}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			body.Details = appErr.Err.Error()
		}
	}
	return c.Status(status).JSON(body)
}
