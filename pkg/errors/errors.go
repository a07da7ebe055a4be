package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ridelink/ride-coordinator/internal/domain/ride"
	"github.com/ridelink/ride-coordinator/internal/domain/user"
	"github.com/ridelink/ride-coordinator/internal/service/session"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors

// BadRequest creates a 400 error
func BadRequest(message string, err error) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: message, Status: http.StatusBadRequest, Err: err}
}

// Unauthorized creates a 401 error
func Unauthorized(message string, err error) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized, Err: err}
}

// Forbidden creates a 403 error
func Forbidden(message string, err error) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: message, Status: http.StatusForbidden, Err: err}
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Status: http.StatusNotFound, Err: err}
}

// Conflict creates a 409 error
func Conflict(message string, err error) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, Status: http.StatusConflict, Err: err}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError, Err: err}
}

// FromDomain maps domain-level errors onto transport errors. Anything
// unrecognized becomes a 500 without leaking the underlying message.
func FromDomain(err error) *AppError {
	switch {
	case errors.Is(err, ride.ErrRideNotFound):
		return NotFound("Ride not found", err)
	case errors.Is(err, user.ErrUserNotFound):
		return NotFound("User not found", err)
	case errors.Is(err, ride.ErrStaleState):
		return Conflict("Ride is no longer available", err)
	case errors.Is(err, ride.ErrNotEligible):
		return Forbidden("Driver is not eligible for this ride", err)
	case errors.Is(err, ride.ErrNoDriverFound):
		return NotFound("No driver found within the match window", err)
	case errors.Is(err, user.ErrInsufficientFunds):
		return BadRequest("Insufficient wallet balance", err)
	case errors.Is(err, user.ErrInvalidAmount):
		return BadRequest("Amount must be positive", err)
	case errors.Is(err, session.ErrPinMismatch):
		return Unauthorized("PIN verification failed", err)
	case errors.Is(err, session.ErrPinNotVerified):
		return Forbidden("Ride PIN has not been verified", err)
	case errors.Is(err, session.ErrCancelNotAllowed):
		return Forbidden("Cancellation not allowed for this actor", err)
	default:
		return Internal("An unexpected error occurred", err)
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return FromDomain(err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
