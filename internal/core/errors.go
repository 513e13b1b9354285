package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeMalformed     = "malformed_frame"
	ErrCodeUnknownType   = "unknown_type"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeNotInSpace    = "not_in_space"
	ErrCodeJoinFailed    = "join_failed"
	ErrCodeInvalidBounds = "invalid_bounds"
	ErrCodeRateLimited   = "rate_limited"
)

var (
	ErrSpaceNotFound = errors.New("space not found")
	ErrConnClosed    = errors.New("connection closed")
	ErrBackpressure  = errors.New("send buffer full")

	// Relay drop reasons.
	ErrIncompleteRoute  = errors.New("signal missing from, to or spaceId")
	ErrUnknownRecipient = errors.New("signal recipient not registered")
	ErrStaleEndpoint    = errors.New("signal recipient connection is closed")
	ErrRoomMismatch     = errors.New("signal recipient is in another space")
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
