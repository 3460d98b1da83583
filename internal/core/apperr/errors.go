// Package apperr classifies failures so transports can map them to client-visible responses
// and the ingestion path can decide which failures propagate.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error.
type Kind string

const (
	// KindValidation marks out-of-range coordinates or malformed payloads. Nothing was mutated.
	KindValidation Kind = "VALIDATION"

	// KindNotFound marks an unknown user, geofence or position.
	KindNotFound Kind = "NOT_FOUND"

	// KindStorage marks a failure of the durable store or the cache.
	KindStorage Kind = "STORAGE"

	// KindCompute marks a failure inside a derived check.
	KindCompute Kind = "COMPUTE"

	// KindFanout marks a realtime or notification delivery failure.
	KindFanout Kind = "FANOUT"

	// KindUnauthorized marks a caller acting outside its family.
	KindUnauthorized Kind = "UNAUTHORIZED"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(op, format string, args ...interface{}) error {
	return &Error{Kind: KindUnauthorized, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Storage(op string, err error) error {
	return wrap(KindStorage, op, err)
}

func Compute(op string, err error) error {
	return wrap(KindCompute, op, err)
}

func Fanout(op string, err error) error {
	return wrap(KindFanout, op, err)
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
