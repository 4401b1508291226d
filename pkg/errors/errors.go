// Package errors holds the sentinel errors shared by the services and maps
// them to HTTP responses. Handlers import it as apperrors.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

var (
	ErrArtifactNotFound  = errors.New("index artifact not found")
	ErrArtifactCorrupt   = errors.New("index artifact corrupt")
	ErrPublicationExists = errors.New("publication already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPayloadTooLarge   = errors.New("request body too large")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrUnavailable       = errors.New("service unavailable")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// AppError pairs a sentinel with the status and message a client sees.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// Is and As re-export the standard helpers so callers importing this package
// under its usual name do not also need the standard errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// HTTPStatusCode returns the status of the first AppError in err's chain,
// otherwise the status mapped from its sentinel. Missing or corrupt
// artifacts are 503 because the searcher recovers once a build lands.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPublicationExists):
		return http.StatusConflict
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrArtifactNotFound), errors.Is(err, ErrArtifactCorrupt),
		errors.Is(err, ErrUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text sent to clients for err. Server errors never
// leak their cause.
func PublicMessage(err error) string {
	status := HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		return ErrInternal.Error()
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// Write sends err as {"error": message} with its mapped status.
func Write(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatusCode(err))
	if encErr := json.NewEncoder(w).Encode(map[string]string{"error": PublicMessage(err)}); encErr != nil {
		slog.Error("failed to write error response", "error", encErr)
	}
}
