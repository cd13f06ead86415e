package api

import (
	"net/http"

	"yayd/internal/jobs"
)

// HTTPStatus maps a stable error code to an HTTP status.
func HTTPStatus(code string) int {
	switch code {
	case jobs.CodeNotFound:
		return http.StatusNotFound
	case jobs.CodeInvalidInput:
		return http.StatusBadRequest
	case jobs.CodeNotReady, jobs.CodeJobActive, jobs.CodeProviderFailure, jobs.CodeTimeout:
		return http.StatusConflict
	case jobs.CodeCancelled:
		return http.StatusGone
	case jobs.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the error body for err.
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{Error: err.Error(), Code: jobs.Code(err)}
}

// ErrorFromResponse converts a decoded error body back into an error that
// matches the jobs sentinels. Responses without a code fall back on the HTTP
// status.
func ErrorFromResponse(status int, body ErrorResponse) error {
	code := body.Code
	if code == "" {
		code = codeForStatus(status)
	}
	return jobs.ErrorFromCode(code, body.Error)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return jobs.CodeNotFound
	case http.StatusBadRequest:
		return jobs.CodeInvalidInput
	case http.StatusGone:
		return jobs.CodeCancelled
	case http.StatusServiceUnavailable:
		return jobs.CodeUnavailable
	default:
		return jobs.CodeInternal
	}
}
