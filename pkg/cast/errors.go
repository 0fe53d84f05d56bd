// ABOUTME: Structured errors resolved by cast operations
// ABOUTME: Each error carries a stable code the host can switch on
package cast

import (
	"errors"
	"fmt"
)

// Error codes surfaced to the host.
const (
	CodeSessionError      = "session_error"
	CodeCancel            = "cancel"
	CodeTimeout           = "timeout"
	CodeInvalidParameter  = "invalid_parameter"
	CodeAPINotInitialized = "api_not_initialized"
	CodeChannelError      = "channel_error"
)

// Error is the structured error every operation resolves with on failure.
type Error struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches any *Error with the same code, so errors.Is(err, ErrTimeout)
// works regardless of description.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrSessionError      = &Error{Code: CodeSessionError}
	ErrCancel            = &Error{Code: CodeCancel}
	ErrTimeout           = &Error{Code: CodeTimeout}
	ErrInvalidParameter  = &Error{Code: CodeInvalidParameter}
	ErrAPINotInitialized = &Error{Code: CodeAPINotInitialized}
	ErrChannelError      = &Error{Code: CodeChannelError}
)

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// AsError converts any error into an *Error. Errors that are not already
// structured become session errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Code: CodeSessionError, Description: err.Error()}
}
