package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotReady      = errors.New("analysis not ready")
	ErrRebuildFailed = errors.New("failed to rebuild")
	ErrCacheNotFound = errors.New("analysis cache not found")
	ErrFetchFailed   = errors.New("fetching articles failed")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrCacheNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message for err: the sentinel text
// for known conditions and a generic message otherwise.
func PublicMessage(err error) string {
	for _, sentinel := range []error{
		ErrNotReady, ErrRebuildFailed, ErrInvalidInput, ErrRateLimited, ErrTimeout,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	if errors.Is(err, ErrCacheNotFound) {
		return ErrNotReady.Error()
	}
	return ErrInternal.Error()
}
