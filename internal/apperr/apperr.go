// Package apperr defines the error taxonomy shared by services and handlers.
// Services return *Error values; handlers translate them into HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindConflict     Kind = "conflict_error"
	KindAuth         Kind = "auth_error"
	KindForbidden    Kind = "forbidden_error"
	KindNotFound     Kind = "not_found_error"
	KindTerminal     Kind = "terminal_state_error"
	KindInvalidToken Kind = "expired_or_invalid_token"
	KindDependency   Kind = "dependency_error"
	KindInternal     Kind = "internal_error"
)

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.Validation("")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error   { return New(KindValidation, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func Auth(message string) *Error         { return New(KindAuth, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Terminal(message string) *Error     { return New(KindTerminal, message) }
func InvalidToken(message string) *Error { return New(KindInvalidToken, message) }

func Dependency(message string, err error) *Error { return Wrap(KindDependency, message, err) }
func Internal(message string, err error) *Error   { return Wrap(KindInternal, message, err) }

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to its response status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict, KindTerminal, KindInvalidToken:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a caller. Internal and
// dependency failures never leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Internal server error"
	}
	switch e.Kind {
	case KindInternal:
		return "Internal server error"
	case KindDependency:
		if e.Message != "" {
			return e.Message
		}
		return "A downstream service failed"
	}
	return e.Message
}
