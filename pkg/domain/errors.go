package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable reports that the durable medium could not be opened.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrWriteFailed reports that a write did not commit.
	ErrWriteFailed = errors.New("write failed")
	// ErrUnknownCollection reports a collection outside the provisioned set.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrMigrationParse is matched by every MigrationParseError.
	ErrMigrationParse = errors.New("legacy data malformed")
	// ErrReferenceNotFound is matched by every ReferenceNotFoundError.
	ErrReferenceNotFound = errors.New("referenced medicine not found")
)

// StorageError annotates a record store failure with its operation and
// collection. It matches both Kind and the underlying cause with errors.Is.
type StorageError struct {
	Op         string
	Collection Collection
	Kind       error
	Err        error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Collection, e.Kind, e.Err)
}

// Unwrap exposes both the error kind and the cause.
func (e *StorageError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Unavailable wraps err as a StorageUnavailable failure.
func Unavailable(op string, err error) error {
	return &StorageError{Op: op, Kind: ErrStorageUnavailable, Err: err}
}

// WriteFailed wraps err as a WriteFailed failure on collection c.
func WriteFailed(op string, c Collection, err error) error {
	return &StorageError{Op: op, Collection: c, Kind: ErrWriteFailed, Err: err}
}

// MigrationParseError reports a malformed legacy blob. It is never fatal.
type MigrationParseError struct {
	Collection Collection
	Key        string
	Err        error
}

func (e *MigrationParseError) Error() string {
	return fmt.Sprintf("migrate %s from %s: %v", e.Collection, e.Key, e.Err)
}

// Unwrap exposes ErrMigrationParse and the parse failure.
func (e *MigrationParseError) Unwrap() []error { return []error{ErrMigrationParse, e.Err} }

// ReferenceNotFoundError reports a transaction line whose medicine is no
// longer in inventory. The inventory delta skips such lines.
type ReferenceNotFoundError struct {
	MedicineID string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("medicine %s not found in inventory", e.MedicineID)
}

// Is matches ErrReferenceNotFound.
func (e *ReferenceNotFoundError) Is(target error) bool { return target == ErrReferenceNotFound }
