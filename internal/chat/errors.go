package chat

import "errors"

// Code classifies a chat failure.
type Code string

const (
	CodeUnauthorized     Code = "unauthorized"
	CodeForbidden        Code = "forbidden"
	CodeNotFound         Code = "not_found"
	CodeUnknownChannel   Code = "unknown_channel"
	CodeInvalidInput     Code = "invalid_input"
	CodeInvalidPoll      Code = "invalid_poll"
	CodeInvalidOption    Code = "invalid_option"
	CodePollClosed       Code = "poll_closed"
	CodeBanned           Code = "banned"
	CodeMuted            Code = "muted"
	CodeRateLimited      Code = "rate_limited"
	CodeContentRejected  Code = "content_rejected"
	CodeChannelExists    Code = "channel_exists"
	CodeNotAuthenticated Code = "not_authenticated"
)

// Error is a coded chat error. Two errors match under errors.Is when their
// codes are equal, so wrapped detail never hides the classification.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Reject builds an error with code and a caller-facing message.
func Reject(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrUnauthorized     = Reject(CodeUnauthorized, "moderator role required")
	ErrForbidden        = Reject(CodeForbidden, "not allowed")
	ErrNotFound         = Reject(CodeNotFound, "not found")
	ErrUnknownChannel   = Reject(CodeUnknownChannel, "unknown channel")
	ErrInvalidInput     = Reject(CodeInvalidInput, "invalid input")
	ErrInvalidPoll      = Reject(CodeInvalidPoll, "invalid poll")
	ErrInvalidOption    = Reject(CodeInvalidOption, "invalid poll option")
	ErrPollClosed       = Reject(CodePollClosed, "poll is closed")
	ErrBanned           = Reject(CodeBanned, "user is banned")
	ErrMuted            = Reject(CodeMuted, "You are muted")
	ErrRateLimited      = Reject(CodeRateLimited, "You are sending messages too fast")
	ErrContentRejected  = Reject(CodeContentRejected, "message rejected")
	ErrChannelExists    = Reject(CodeChannelExists, "channel already exists")
	ErrNotAuthenticated = Reject(CodeNotAuthenticated, "login required")
)

// CodeOf extracts the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
