package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

var (
	ErrEmptyQuery   = errors.New("empty query")
	ErrQueryTooLong = errors.New("query too long")
	ErrInvalidABN   = errors.New("invalid abn")
	ErrABNNotFound  = errors.New("abn not found")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

var (
	ErrInvalidRecord = errors.New("invalid registry record")
)

// коды ошибок в конверте {error, message, statusCode}
const (
	CodeBadRequest      = "bad_request"
	CodeNotFound        = "not_found"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal_error"
	CodeUnavailable     = "unavailable"
	CodeNetwork         = "network_error"
	CodeInvalidResponse = "invalid_response"
)

// APIError - типизированная ошибка API. Клиент всегда отдает её вместо "сырых" ошибок.
// StatusCode == 0 значит, что ответа от сервера не было.
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`

	cause error
}

func NewAPIError(code, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: status}
}

func NetworkError(err error) *APIError {
	return &APIError{
		Code:    CodeNetwork,
		Message: "Unable to reach the search service.",
		cause:   err,
	}
}

func DecodeError(status int, err error) *APIError {
	return &APIError{
		Code:       CodeInvalidResponse,
		Message:    "The search service returned an unreadable response.",
		StatusCode: status,
		cause:      err,
	}
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// Retryable: сеть и 5xx. 4xx и битый ответ повторять бессмысленно.
func (e *APIError) Retryable() bool {
	if e.Code == CodeInvalidResponse || e.IsClientError() {
		return false
	}
	return e.Code == CodeNetwork || e.IsServerError()
}

// AsAPIError приводит любую ошибку к *APIError.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrorFor(err)
}

// ErrorFor маппит доменные ошибки в конверт для HTTP ответа.
func ErrorFor(err error) *APIError {
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return &APIError{Code: CodeBadRequest, Message: "Search query must not be empty.", StatusCode: http.StatusBadRequest, cause: err}
	case errors.Is(err, ErrQueryTooLong):
		return &APIError{Code: CodeBadRequest, Message: fmt.Sprintf("Search query must be at most %d characters.", MaxQueryLength), StatusCode: http.StatusBadRequest, cause: err}
	case errors.Is(err, ErrInvalidABN):
		return &APIError{Code: CodeBadRequest, Message: "ABN must be 11 digits.", StatusCode: http.StatusBadRequest, cause: err}
	case errors.Is(err, ErrABNNotFound), errors.Is(err, ErrNotFound):
		return &APIError{Code: CodeNotFound, Message: "No match", StatusCode: http.StatusNotFound, cause: err}
	case errors.Is(err, ErrRateLimited):
		return &APIError{Code: CodeRateLimited, Message: "Too many requests. Please wait a minute.", StatusCode: http.StatusTooManyRequests, cause: err}
	default:
		return &APIError{Code: CodeInternal, Message: "An unexpected error occurred while searching.", StatusCode: http.StatusInternalServerError, cause: err}
	}
}
