package relay

import (
	"fmt"
	"net/http"
	"time"

	"github.com/famomatic/tubemux/internal/types"
)

// Error codes carried by *Error and the {error, code} bodies of /relay.
const (
	CodeInvalidURL      = "invalid_url"
	CodeNotFound        = "not_found"
	CodeRateLimited     = "rate_limited"
	CodeNonMediaContent = "non_media_content"
	CodeUpstreamStatus  = "upstream_status"
	CodeTransport       = "transport"
)

// Error is a relay failure with a stable code.
type Error struct {
	Code       string
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (upstream status=%d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "relay: " + msg
}

// Unwrap exposes both the cause and the matching types sentinel.
func (e *Error) Unwrap() []error {
	out := []error{e.sentinel()}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func (e *Error) sentinel() error {
	switch e.Code {
	case CodeInvalidURL:
		return types.ErrInvalidInput
	case CodeNotFound:
		return types.ErrNotFound
	case CodeRateLimited:
		return types.ErrBlocked
	}
	return types.ErrUpstreamTransfer
}

// HTTPStatus is the status /relay answers with for this error.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidURL:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeNonMediaContent, CodeUpstreamStatus, CodeTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func statusError(code int, retryAfter time.Duration) *Error {
	switch code {
	case http.StatusNotFound, http.StatusGone:
		return &Error{Code: CodeNotFound, StatusCode: code, Message: "media not found upstream"}
	case http.StatusTooManyRequests:
		return &Error{Code: CodeRateLimited, StatusCode: code, RetryAfter: retryAfter, Message: "upstream rate limited the request"}
	}
	return &Error{Code: CodeUpstreamStatus, StatusCode: code, Message: "unexpected upstream status"}
}
