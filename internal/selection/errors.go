package selection

import (
	"errors"
	"fmt"
)

// Code classifies a selection failure for the caller.
type Code string

const (
	// CodePermissionDenied means the platform picker refused access.
	CodePermissionDenied Code = "permission-denied"
	// CodeInvalidMedia means the asset failed a size, dimension or decode check.
	CodeInvalidMedia Code = "invalid-media"
	// CodeSelection means the user picked zero or more than one asset.
	CodeSelection Code = "selection-error"
)

// ErrPermissionDenied is returned by pickers when access to the media
// library or camera was refused.
var ErrPermissionDenied = errors.New("media permission denied")

// Error is a user-facing selection failure. The flow stays on the
// selection step and the user may retry; no session exists yet.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the selection code carried by err, or "" if err is not a
// selection error.
func CodeOf(err error) Code {
	var selErr *Error
	if errors.As(err, &selErr) {
		return selErr.Code
	}
	return ""
}
