// Package common provides shared helpers and error types for the
// report handlers.
package common

import (
	"errors"
	"fmt"
)

// ErrNotApplicable signals that a handler's patterns did not match the
// email. It is not a fault; the router skips the handler silently.
var ErrNotApplicable = errors.New("report patterns did not match")

// PersistError wraps a storage write failure. The router logs it and
// continues with the remaining handlers.
type PersistError struct {
	Table string
	Key   string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist into %s (%s): %v", e.Table, e.Key, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// NewPersistError creates a PersistError for the given table and
// identity key.
func NewPersistError(table, key string, err error) *PersistError {
	return &PersistError{Table: table, Key: key, Err: err}
}
