// Package apperr defines the classified failures returned by the auth core.
// Services return *Error values with a safe, user-facing message; the underlying
// cause is kept for logging and is never serialized.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the transport layer can map it to a status code.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindAuthentication Kind = "authentication"
	KindForbidden      Kind = "forbidden"
	KindConflict       Kind = "conflict"
	KindDependency     Kind = "dependency"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	// Data is an optional structured payload returned to the caller (e.g. {"phoneConflict": true}).
	Data map[string]any
	// Err is the internal cause. Not exposed to callers.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithData returns a copy of e carrying the given payload entry.
func (e *Error) WithData(key string, value any) *Error {
	cp := *e
	cp.Data = make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		cp.Data[k] = v
	}
	cp.Data[key] = value
	return &cp
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Authentication(msg string) *Error { return &Error{Kind: KindAuthentication, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Dependency wraps a store or cache failure. msg must be safe to show to clients.
func Dependency(msg string, cause error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: cause}
}

// As returns the *Error in err's chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf returns the Kind of err. Unclassified non-nil errors are reported as KindDependency.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e := As(err); e != nil {
		return e.Kind
	}
	return KindDependency
}

// Is reports whether err is classified with kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
