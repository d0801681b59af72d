package store

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned when a write is attempted through a snapshot handle.
var ErrReadOnly = errors.New("store is read-only")

// StorageError reports a schema, insert or read failure on the sample table.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// QueryError reports a malformed aggregation request.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return "invalid query: " + e.Reason
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
