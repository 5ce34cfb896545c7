package resolver

import "fmt"

type ErrorCode string

const (
	ErrorOffTopic ErrorCode = "OFF_TOPIC"
	ErrorUpstream ErrorCode = "UPSTREAM_ERROR"
)

// Error carries a stable code for caller routing plus a short reason for
// operator logs.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("resolver: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("resolver: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
