package gemini

import (
	"context"
	"errors"
	"net"
	"net/http"

	"google.golang.org/genai"
)

// Kind classifies a generation failure.
type Kind string

const (
	KindMissingAPIKey     Kind = "missing_api_key"
	KindInvalidAPIKey     Kind = "invalid_api_key"
	KindRateLimitExceeded Kind = "rate_limit_exceeded"
	KindServiceError      Kind = "service_error"
	KindGenerationFailed  Kind = "generation_failed"
)

// Caller-visible messages. Handlers forward them unchanged.
const (
	MsgMissingAPIKey     = "LearnLM API key is not configured. Please set GEMINI_API_KEY environment variable."
	MsgInvalidAPIKey     = "Invalid API key. Please check your GEMINI_API_KEY."
	MsgRateLimitExceeded = "Rate limit exceeded. Please try again later."
	MsgServiceError      = "LearnLM service error. Please try again later."
	MsgGenerationFailed  = "Failed to generate AI response. Please try again."
)

// Error is returned by Client for every failed generation call.
type Error struct {
	Kind Kind
	// Status is the backend HTTP status, 0 when no response was received.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus is the status a JSON endpoint answers with for this error.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindMissingAPIKey, KindServiceError:
		return http.StatusServiceUnavailable
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

var (
	ErrNotConfigured     = &Error{Kind: KindMissingAPIKey, Message: MsgMissingAPIKey}
	ErrInvalidAPIKey     = &Error{Kind: KindInvalidAPIKey, Message: MsgInvalidAPIKey}
	ErrRateLimitExceeded = &Error{Kind: KindRateLimitExceeded, Message: MsgRateLimitExceeded}
	ErrServiceError      = &Error{Kind: KindServiceError, Message: MsgServiceError}
	ErrGenerationFailed  = &Error{Kind: KindGenerationFailed, Message: MsgGenerationFailed}
)

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// classify maps a backend failure onto the error taxonomy.
func classify(err error) *Error {
	if ge, ok := AsError(err); ok {
		return ge
	}

	if code, msg, ok := apiError(err); ok {
		return fromStatus(code, msg, err)
	}

	// Deadlines and transport failures never produced a status.
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return &Error{Kind: KindServiceError, Message: MsgServiceError, Err: err}
	}

	return &Error{Kind: KindGenerationFailed, Message: MsgGenerationFailed, Err: err}
}

func fromStatus(status int, backendMsg string, err error) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{Kind: KindInvalidAPIKey, Status: status, Message: MsgInvalidAPIKey, Err: err}
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimitExceeded, Status: status, Message: MsgRateLimitExceeded, Err: err}
	case http.StatusInternalServerError:
		return &Error{Kind: KindServiceError, Status: status, Message: MsgServiceError, Err: err}
	}
	msg := backendMsg
	if msg == "" {
		msg = MsgGenerationFailed
	}
	return &Error{Kind: KindGenerationFailed, Status: status, Message: msg, Err: err}
}

// apiError unwraps genai.APIError, which the SDK returns by value or pointer.
func apiError(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}
