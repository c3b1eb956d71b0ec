package mutate

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	Kind string
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}

// ConflictError means the write would violate a uniqueness rule.
type ConflictError struct {
	Kind string
	Key  string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key)
}

// ValidationError is raised before storage is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a failed unit of work. Nothing it touched was committed.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// Code returns a short machine-readable code for err.
func Code(err error) string {
	var (
		nf NotFoundError
		cf ConflictError
		ve ValidationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &cf):
		return "conflict"
	case errors.As(err, &ve):
		return "validation"
	default:
		return "storage"
	}
}

// classify keeps domain errors as they are and wraps everything else as storage.
func classify(op string, err error) error {
	switch Code(err) {
	case "not_found", "conflict", "validation":
		return err
	}
	var se StorageError
	if errors.As(err, &se) {
		return err
	}
	return StorageError{Op: op, Err: err}
}
