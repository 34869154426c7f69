package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeValidation    = "VALIDATION_ERROR"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeConflict      = "CONFLICT"
	CodeRemoteFailure = "REMOTE_FAILURE"
	CodeInternal      = "INTERNAL_ERROR"
)

// statusByCode is the HTTP status each code is reported with.
var statusByCode = map[string]int{
	CodeNotFound:      fiber.StatusNotFound,
	CodeValidation:    fiber.StatusBadRequest,
	CodeUnauthorized:  fiber.StatusUnauthorized,
	CodeForbidden:     fiber.StatusForbidden,
	CodeConflict:      fiber.StatusConflict,
	CodeRemoteFailure: fiber.StatusBadGateway,
	CodeInternal:      fiber.StatusInternalServerError,
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError is an error with a stable code clients can switch on.
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

func coded(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NewNotFoundError(resource string, id any) *AppError {
	return coded(CodeNotFound, fmt.Sprintf("%s %v not found", resource, id))
}

func NewValidationError(message string) *AppError   { return coded(CodeValidation, message) }
func NewUnauthorizedError(message string) *AppError { return coded(CodeUnauthorized, message) }
func NewForbiddenError(message string) *AppError    { return coded(CodeForbidden, message) }
func NewConflictError(message string) *AppError     { return coded(CodeConflict, message) }

// NewRemoteFailure wraps an error returned by the backing datastore.
func NewRemoteFailure(op string, err error) *AppError {
	return &AppError{Code: CodeRemoteFailure, Message: "remote " + op + " failed", Err: err}
}

func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: err}
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	appErr, ok := asAppError(err)
	return ok && appErr.Code == code
}

// StatusFor maps an error to the HTTP status it should be reported with.
// Anything that is not an AppError is a 500.
func StatusFor(err error) int {
	if appErr, ok := asAppError(err); ok {
		if status, known := statusByCode[appErr.Code]; known {
			return status
		}
	}
	return fiber.StatusInternalServerError
}

// RespondWithError writes err as an ErrorResponse. The cause of an internal
// error is logged by the caller, never returned to the client.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	appErr, ok := asAppError(err)
	if !ok {
		return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
	}
	body := ErrorResponse{Error: appErr.Message, Code: appErr.Code}
	if appErr.Err != nil && appErr.Code != CodeInternal {
		body.Details = appErr.Err.Error()
	}
	return c.Status(status).JSON(body)
}
