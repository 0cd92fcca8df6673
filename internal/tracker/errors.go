package tracker

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrSerialization = errors.New("invalid snapshot")
	ErrCapability    = errors.New("capability unavailable")
)

// Error carries one of the error kinds above together with the failing operation.
type Error struct {
	Kind error
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := e.Kind.Error()
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Msg == "" {
		return prefix
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Validationf reports an empty or malformed input
func Validationf(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf reports a reference to a project or task that does not exist
func NotFoundf(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Serializationf reports corrupt persisted or imported data
func Serializationf(op, format string, args ...any) error {
	return &Error{Kind: ErrSerialization, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Capabilityf reports a missing or unauthorized external capability
func Capabilityf(op, format string, args ...any) error {
	return &Error{Kind: ErrCapability, Op: op, Msg: fmt.Sprintf(format, args...)}
}
