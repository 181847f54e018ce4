package model

import (
	"errors"
	"fmt"
)

// ImportFormatHint is the line format accepted by bulk import
const ImportFormatHint = "Name, +1234567890"

var (
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateContact = errors.New("this contact is already added")
	ErrPermissionDenied = errors.New("permission denied")
	ErrQuotaExceeded    = errors.New("submission limit reached for this device")
	ErrEmptySet         = errors.New("no contacts to compile")
	ErrFetchFailure     = errors.New("failed to fetch from backend")
	ErrImportFailed     = errors.New("no valid contacts found")
	ErrNotFound         = errors.New("not found")
)

// ValidationError describes a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// FetchFailure wraps a backend read error so callers can retry
func FetchFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFetchFailure, op, err)
}

// ImportFailed returns ErrImportFailed with the expected row format restated
func ImportFailed() error {
	return fmt.Errorf("%w (expected one contact per line: %s)", ErrImportFailed, ImportFormatHint)
}
