package core

import (
	"errors"
)

// Error codes reported to clients.
const (
	ErrCodeParse           = "parse_error"
	ErrCodeValidation      = "validation_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeForbidden       = "forbidden"
	ErrCodeUnsupportedType = "unsupported_type"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeInternal        = "internal_error"
)

var (
	// ErrParse marks a malformed inbound frame.
	ErrParse = errors.New("malformed frame")
	// ErrValidation marks invalid input such as empty content.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing conversation or message.
	ErrNotFound = errors.New("not found")
	// ErrNotParticipant marks an action by someone outside the conversation.
	ErrNotParticipant = errors.New("not a participant")
	// ErrUnsupportedType marks a frame type the server does not handle.
	ErrUnsupportedType = errors.New("unsupported frame type")
	// ErrRateLimited marks a connection exceeding its frame budget.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTransport marks a failed write to a connection. Never reported to users.
	ErrTransport = errors.New("transport write failed")
	// ErrConnClosed is returned by Conn implementations after Close.
	ErrConnClosed = errors.New("connection closed")
	// ErrMembershipResolution marks an unavailable membership provider.
	ErrMembershipResolution = errors.New("membership resolution failed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorFor maps err to the error reported to the user whose action failed.
func ErrorFor(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrParse):
		return coreError(ErrCodeParse, err.Error())
	case errors.Is(err, ErrValidation):
		return coreError(ErrCodeValidation, err.Error())
	case errors.Is(err, ErrNotFound):
		return coreError(ErrCodeNotFound, err.Error())
	case errors.Is(err, ErrNotParticipant):
		return coreError(ErrCodeForbidden, err.Error())
	case errors.Is(err, ErrUnsupportedType):
		return coreError(ErrCodeUnsupportedType, err.Error())
	case errors.Is(err, ErrRateLimited):
		return coreError(ErrCodeRateLimited, err.Error())
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}
