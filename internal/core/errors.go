package core

import (
	"errors"
	"fmt"
)

// EntityType names the kind of record an error refers to.
type EntityType string

// Entities addressed by service operations.
const (
	EntityMedicine EntityType = "medicine"
	EntitySale     EntityType = "sale"
	EntityPurchase EntityType = "purchase"
)

var (
	// ErrNotReady is returned by mutations issued before hydration completed.
	ErrNotReady = errors.New("service not ready")
	// ErrInvalidInput marks requests rejected before any write was attempted.
	ErrInvalidInput = errors.New("invalid input")
)

// ErrNotFound is returned when an operation references an id that is not present.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
