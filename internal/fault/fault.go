// Package fault carries the error taxonomy shared by the controllers:
// caller mistakes, PIN mismatches, device trouble, and remote AI failures.
// Everything else is an internal error.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to react differently
// (the HTTP layer, mostly).
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindDevice
	KindAI
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindDevice:
		return "device"
	case KindAI:
		return "ai"
	default:
		return "internal"
	}
}

// Error is a kind-tagged error. The wrapped cause, if any, is reachable
// through errors.Unwrap.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Validation reports malformed caller input. The operation was never attempted.
func Validation(format string, args ...any) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// Auth reports a failed PIN challenge.
func Auth(format string, args ...any) error {
	return &Error{kind: KindAuth, msg: fmt.Sprintf(format, args...)}
}

// Device reports denied permission or unavailable audio hardware.
func Device(err error, format string, args ...any) error {
	return &Error{kind: KindDevice, msg: fmt.Sprintf(format, args...), err: err}
}

// AI normalizes any remote-service failure (transport, auth, empty response)
// into one uniform kind with a human-readable message.
func AI(err error, format string, args ...any) error {
	return &Error{kind: KindAI, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf walks the wrap chain and returns the first tagged kind,
// or KindInternal if the chain carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusForbidden
	case KindDevice:
		return http.StatusServiceUnavailable
	case KindAI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
