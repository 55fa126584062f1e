package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks client input that failed validation
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned for unknown ids
	ErrNotFound = errors.New("paste not found")
	// ErrUnavailable is returned for pastes that exist but expired or ran
	// out of views. It matches ErrNotFound so callers that do not care about
	// the difference can treat both alike.
	ErrUnavailable = fmt.Errorf("%w or has expired", ErrNotFound)
	// ErrResourceExhausted is returned when no free id could be allocated
	ErrResourceExhausted = errors.New("failed to generate unique paste ID")
	// ErrStoreUnavailable wraps any backend failure
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError names the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
