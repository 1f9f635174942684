package movie

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Update and Delete when there's no movie with a given id
	ErrNotFound = errors.New("movie not found")

	// ErrMalformedField is returned when a numeric field in storage is not a number
	ErrMalformedField = errors.New("malformed field")

	// ErrInvalidMovie is wrapped by *ValidationError
	ErrInvalidMovie = errors.New("invalid movie")

	// ErrLockTimeout is returned when the storage lock can't be acquired in time
	ErrLockTimeout = errors.New("timed out waiting for storage lock")

	// ErrLockUpgrade is returned by a change made while a read holds
	// the storage lock, e.g. Update called from a GetAll loop
	ErrLockUpgrade = errors.New("can't change storage while reading it")
)

// FieldError is returned when a line has the right number of fields
// but one of the numeric fields can't be parsed
type FieldError struct {
	// 1-based line number in the storage file, 0 if not known
	Line  int
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: field %s: invalid value '%s': %s", e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("field %s: invalid value '%s': %s", e.Field, e.Value, e.Err)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrMalformedField
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
