package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown job id or a missing result artifact.
	ErrNotFound = errors.New("job not found")
	// ErrNotReady indicates a result was requested before the job completed.
	ErrNotReady = errors.New("job not ready")
	// ErrInvalidInput indicates a rejected request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderFailure indicates the fetch provider reported a failure.
	ErrProviderFailure = errors.New("download failed")
	// ErrCancelled indicates the job was cancelled.
	ErrCancelled = errors.New("download cancelled")
	// ErrJobActive indicates an operation that requires a terminal job.
	ErrJobActive = errors.New("job still active")
	// ErrClosed indicates the controller is shutting down.
	ErrClosed = errors.New("controller closed")
)

// Stable error codes exposed across the API boundary.
const (
	CodeNotFound        = "not_found"
	CodeNotReady        = "not_ready"
	CodeInvalidInput    = "invalid_input"
	CodeProviderFailure = "provider_failure"
	CodeCancelled       = "cancelled"
	CodeJobActive       = "job_active"
	CodeUnavailable     = "unavailable"
	CodeTimeout         = "timeout"
	CodeInternal        = "internal"
)

// Code maps an error to its stable code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNotReady):
		return CodeNotReady
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrProviderFailure):
		return CodeProviderFailure
	case errors.Is(err, ErrCancelled):
		return CodeCancelled
	case errors.Is(err, ErrJobActive):
		return CodeJobActive
	case errors.Is(err, ErrClosed):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// ErrorFromCode converts a stable code and message received over the wire
// back into an error that matches the package sentinels with errors.Is.
func ErrorFromCode(code, message string) error {
	var sentinel error
	switch code {
	case CodeNotFound:
		sentinel = ErrNotFound
	case CodeNotReady:
		sentinel = ErrNotReady
	case CodeInvalidInput:
		sentinel = ErrInvalidInput
	case CodeProviderFailure, CodeTimeout:
		sentinel = ErrProviderFailure
	case CodeCancelled:
		sentinel = ErrCancelled
	case CodeJobActive:
		sentinel = ErrJobActive
	case CodeUnavailable:
		sentinel = ErrClosed
	default:
		if message == "" {
			message = "request failed"
		}
		return errors.New(message)
	}
	if message == "" || message == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}
