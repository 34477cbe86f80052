package util

import (
	"errors"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Err        error       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	ErrCodeTokenInvalid  = "TOKEN_INVALID"
	ErrCodeAPIKeyInvalid = "API_KEY_INVALID"
	ErrCodeBotNotFound   = "BOT_NOT_FOUND"

	// Run engine kinds
	ErrCodeConfiguration   = "CONFIGURATION_ERROR"
	ErrCodeExclusivity     = "EXCLUSIVITY_VIOLATION"
	ErrCodeExternalService = "EXTERNAL_SERVICE_ERROR"
	ErrCodeStaleSignal     = "STALE_SIGNAL"
	ErrCodeInvalidState    = "INVALID_STATE"
)

// NewAppError creates a new application error
func NewAppError(statusCode int, code, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(statusCode int, code, message string, details interface{}) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

// WrapError wraps an existing error
func WrapError(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Err:        err,
	}
}

// Common error constructors

func ErrBadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func ErrUnauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func ErrForbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, ErrCodeForbidden, message)
}

func ErrNotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, ErrCodeNotFound, message)
}

func ErrConflict(message string) *AppError {
	return NewAppError(http.StatusConflict, ErrCodeConflict, message)
}

func ErrValidation(message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeValidation, message)
}

func ErrInternalServer(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, ErrCodeInternal, message)
}

func ErrRateLimit(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, ErrCodeRateLimit, message)
}

// ErrConfiguration rejects a bot whose configuration cannot run. Nothing was changed.
func ErrConfiguration(message string, details interface{}) *AppError {
	return NewAppErrorWithDetails(http.StatusUnprocessableEntity, ErrCodeConfiguration, message, details)
}

// ErrExclusivity rejects an operation because the bot already has an active run
func ErrExclusivity(message string) *AppError {
	return NewAppError(http.StatusConflict, ErrCodeExclusivity, message)
}

// ErrExternalService reports an exchange or persistence failure. Details carry
// the identifiers an operator needs to reconcile.
func ErrExternalService(message string, err error, details map[string]string) *AppError {
	return &AppError{
		StatusCode: http.StatusBadGateway,
		Code:       ErrCodeExternalService,
		Message:    message,
		Details:    details,
		Err:        err,
	}
}

// ErrStaleSignal rejects a webhook that no longer maps to actionable state
func ErrStaleSignal(message string) *AppError {
	return NewAppError(http.StatusConflict, ErrCodeStaleSignal, message)
}

// ErrInvalidState rejects an operation the bot status does not allow
func ErrInvalidState(message string) *AppError {
	return NewAppError(http.StatusConflict, ErrCodeInvalidState, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}
