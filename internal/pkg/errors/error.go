package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal server error")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrUnavailable    = errors.New("collaborator unavailable")
	ErrUnknownMethod  = errors.New("unknown method")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Coded is an error that carries a protocol error code for socket clients.
type Coded struct {
	Code int
	Msg  string
	Err  error
}

func (e *Coded) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code %d: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("code %d: %s", e.Code, e.Msg)
}

func (e *Coded) Unwrap() error { return e.Err }

// WithCode attaches a protocol code to err. An empty msg lets the response
// builder look the message up by code.
func WithCode(code int, msg string, err error) error {
	return &Coded{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the protocol code from err, or fallback if none is attached.
func CodeOf(err error, fallback int) (int, string) {
	var coded *Coded
	if errors.As(err, &coded) {
		return coded.Code, coded.Msg
	}
	return fallback, ""
}
