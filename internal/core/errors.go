package core

import (
	"errors"
	"fmt"
)

// Input fields named by validation errors.
const (
	FieldCategory    = "category"
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldPosition    = "position"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrOutOfRange = errors.New("position out of range")
	ErrNotFound   = errors.New("expense not found")
	ErrStorage    = errors.New("storage failure")
)

// ValidationError reports which input constraint failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RangeError is returned when a position does not address a stored record.
type RangeError struct {
	Position int
	Count    int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("position %d out of range [0, %d)", e.Position, e.Count)
}

func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no expense with reference %q", e.Ref)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// UserMessage renders err as a message fit for a dialog or the menu.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		ve *ValidationError
		re *RangeError
		ne *NotFoundError
		se *StorageError
	)
	switch {
	case errors.As(err, &ve):
		return "Invalid input: " + ve.Error()
	case errors.As(err, &re):
		return "Invalid selection: " + re.Error()
	case errors.As(err, &ne):
		return ne.Error()
	case errors.As(err, &se):
		return "Could not access the expense file (" + se.Error() + ")"
	default:
		return err.Error()
	}
}
