package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Kind classifies an error for the HTTP boundary.
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindAuthentication Kind = "AuthenticationError"
	KindAuthorization  Kind = "AuthorizationError"
	KindNotFound       Kind = "NotFoundError"
	KindConflict       Kind = "ConflictError"
	KindExpired        Kind = "ExpiredError"
	KindInvalidStatus  Kind = "InvalidStatusError"
	KindCredential     Kind = "CredentialError"
	KindUpstream       Kind = "UpstreamError"
	KindInternal       Kind = "InternalError"
)

// Sentinels usable with errors.Is.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrExpired        = &Error{Kind: KindExpired}
	ErrInvalidStatus  = &Error{Kind: KindInvalidStatus}
	ErrCredential     = &Error{Kind: KindCredential}
	ErrUpstream       = &Error{Kind: KindUpstream}
)

// Error is the typed error carried from the services to the HTTP layer.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil && e.Message != e.Err.Error():
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can test against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	return StatusFor(e.Kind)
}

// StatusFor maps a Kind to its HTTP status code.
func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation, KindExpired, KindInvalidStatus:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// ValidationDetails builds a validation error carrying per-field messages.
func ValidationDetails(message string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

func Authentication(format string, args ...interface{}) *Error {
	return newf(KindAuthentication, format, args...)
}

func Authorization(format string, args ...interface{}) *Error {
	return newf(KindAuthorization, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

func Expired(format string, args ...interface{}) *Error {
	return newf(KindExpired, format, args...)
}

func InvalidStatus(format string, args ...interface{}) *Error {
	return newf(KindInvalidStatus, format, args...)
}

// Credential wraps a secret-store or key-derivation failure.
func Credential(err error, format string, args ...interface{}) *Error {
	e := newf(KindCredential, format, args...)
	e.Err = err
	return e
}

// Upstream wraps a graph store failure.
func Upstream(err error, format string, args ...interface{}) *Error {
	e := newf(KindUpstream, format, args...)
	e.Err = err
	return e
}

// UpstreamMessages aggregates every message the graph store reported into a
// single UpstreamError. Returns nil when msgs is empty.
func UpstreamMessages(msgs []string) *Error {
	var merr *multierror.Error
	for _, m := range msgs {
		merr = multierror.Append(merr, errors.New(m))
	}
	if merr == nil {
		return nil
	}
	merr.ErrorFormat = joinFormat
	return &Error{Kind: KindUpstream, Message: merr.Error(), Err: merr}
}

func joinFormat(es []error) string {
	parts := make([]string, 0, len(es))
	for _, e := range es {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// KindOf returns the Kind of err, or KindInternal when err is not typed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the typed error, wrapping untyped errors as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
