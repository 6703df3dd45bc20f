package db

import (
	"errors"
	"fmt"
)

// ErrNotFound is the expected outcome when no row matches an id.
var ErrNotFound = errors.New("event not found")

// ConstraintViolation reports a column constraint the write would break.
type ConstraintViolation struct {
	Field  string
	Detail string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation on %s: %s", e.Field, e.Detail)
}

// TransportFailure wraps errors from the driver or connection.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}

func violation(field, detail string) error {
	return &ConstraintViolation{Field: field, Detail: detail}
}

func transport(op string, err error) error {
	return &TransportFailure{Op: op, Err: err}
}
