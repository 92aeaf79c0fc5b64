// Package coreerr defines the error taxonomy every component in this
// module returns across its boundary: Validation, Conflict, Capacity,
// Unavailable, Expired, Invariant, Fatal. No code path in the core aborts
// the process on unexpected input; anything that would is an Invariant
// error instead, bounded to the affected resource.
package coreerr

import (
	"errors"
	"fmt"
)

// Code identifies the category of a core error.
type Code string

const (
	// Validation: external input failed a rule. 400-class, not retried.
	Validation Code = "validation"
	// Conflict: lease already held, or a version CAS failed. 409-class,
	// retryable after delay.
	Conflict Code = "conflict"
	// Capacity: a bounded collection is full. 429/503-class, retryable.
	Capacity Code = "capacity"
	// Unavailable: transient dependency failure. 503-class, retryable.
	Unavailable Code = "unavailable"
	// Expired: renew attempted on a dead lease. Terminal for the lease.
	Expired Code = "expired"
	// Invariant: an assumption the core relies on was violated. Logged
	// with context; the affected resource moves to Error; the process
	// keeps running.
	Invariant Code = "invariant"
	// Fatal: the process cannot make progress. Causes orderly shutdown.
	Fatal Code = "fatal"
	// NotFound: the referenced entity does not exist. Not retried.
	NotFound Code = "not_found"
)

// Error is the typed error every core operation returns on failure.
type Error struct {
	Code Code
	// Msg is safe to surface to a client: no secrets, paths, or internal
	// identifiers.
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a generic client can safely retry without
// protocol-specific knowledge.
func (e *Error) Retryable() bool {
	switch e.Code {
	case Conflict, Capacity, Unavailable:
		return true
	default:
		return false
	}
}

func newErr(code Code, msg string, wrapped error) *Error {
	return &Error{Code: code, Msg: msg, Err: wrapped}
}

func Validationf(format string, args ...any) *Error {
	return newErr(Validation, fmt.Sprintf(format, args...), nil)
}

func Conflictf(format string, args ...any) *Error {
	return newErr(Conflict, fmt.Sprintf(format, args...), nil)
}

func Capacityf(format string, args ...any) *Error {
	return newErr(Capacity, fmt.Sprintf(format, args...), nil)
}

func Unavailablef(err error, format string, args ...any) *Error {
	return newErr(Unavailable, fmt.Sprintf(format, args...), err)
}

func Expiredf(format string, args ...any) *Error {
	return newErr(Expired, fmt.Sprintf(format, args...), nil)
}

func Invariantf(err error, format string, args ...any) *Error {
	return newErr(Invariant, fmt.Sprintf(format, args...), err)
}

func Fatalf(err error, format string, args ...any) *Error {
	return newErr(Fatal, fmt.Sprintf(format, args...), err)
}

func NotFoundf(format string, args ...any) *Error {
	return newErr(NotFound, fmt.Sprintf(format, args...), nil)
}

// FromWire reconstructs a typed Error after it has crossed an RPC
// boundary as a bare (code, message) pair — used by the coordinator's
// HTTP forwarding path and by pkg/worker and pkg/gateway's coordinator
// clients, none of which can rely on Go's error interface to marshal
// itself. An empty code yields Invariant, matching CodeOf's default for
// anything unclassified.
func FromWire(code Code, msg string) error {
	if code == "" {
		code = Invariant
	}
	return newErr(code, msg, nil)
}

// CodeOf extracts the Code of err, defaulting to Invariant for anything
// that isn't one of our typed errors — an unclassified error is itself a
// bug in the caller, never a reason to crash.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Invariant
}

// MessageOf extracts the client-safe Msg of err, falling back to
// err.Error() for anything that isn't one of our typed errors. Pairs
// with CodeOf when sending an error across an RPC boundary, so the
// message doesn't pick up a redundant "code: " prefix on the far side
// once FromWire re-wraps it.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

// HTTPStatus maps a Code to the status class described in the design.
func HTTPStatus(c Code) int {
	switch c {
	case Validation:
		return 400
	case NotFound:
		return 404
	case Conflict:
		return 409
	case Capacity:
		return 429
	case Unavailable:
		return 503
	case Expired:
		return 410
	case Invariant:
		return 500
	case Fatal:
		return 500
	default:
		return 500
	}
}
