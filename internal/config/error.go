package config

import (
	"errors"
	"fmt"
)

// ErrKind classifies configuration errors. Every violated invariant in the
// resolution engine surfaces as exactly one of these kinds, and the same
// malformed spec always fails with the same kind regardless of sample index
// or seed.
type ErrKind string

const (
	ErrCyclicDependency     ErrKind = "cyclic dependency"
	ErrUnknownVariable      ErrKind = "unknown variable"
	ErrInvalidShape         ErrKind = "invalid shape"
	ErrShapeMismatch        ErrKind = "shape mismatch"
	ErrUnsafeExpression     ErrKind = "unsafe expression"
	ErrSkylineShapeMismatch ErrKind = "skyline shape mismatch"
	ErrInvalidDistribution  ErrKind = "invalid distribution"
	ErrInvalidConfig        ErrKind = "invalid config"
)

// Error is the single error category exposed by the resolution engine.
// Subject names the offending variable, parameter or file.
type Error struct {
	Kind    ErrKind
	Subject string
	Msg     string
	wrapped error
}

// NewError builds an Error with a formatted message.
func NewError(kind ErrKind, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and subject to an underlying error.
func WrapError(kind ErrKind, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Msg: err.Error(), wrapped: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s in %q: %s", e.Kind, e.Subject, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped error, if any, for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.wrapped }

// IsKind reports whether err is (or wraps) a config Error of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
