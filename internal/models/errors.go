package models

import (
	"errors"
	"fmt"
)

// Error classes. Specific errors below wrap one of these so callers can
// branch with errors.Is without knowing every case.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

var (
	ErrPatientNotFound   = fmt.Errorf("patient %w", ErrNotFound)
	ErrCaretakerNotFound = fmt.Errorf("caretaker %w", ErrNotFound)
	ErrAlertNotFound     = fmt.Errorf("alert %w", ErrNotFound)

	ErrEmptyAction       = fmt.Errorf("%w: action taken cannot be empty", ErrInvalidInput)
	ErrEmptyRemark       = fmt.Errorf("%w: remark content cannot be empty", ErrInvalidInput)
	ErrInvalidRemarkKind = fmt.Errorf("%w: invalid remark kind", ErrInvalidInput)
	ErrSeedOutOfRange    = fmt.Errorf("%w: vital outside physiological range", ErrInvalidInput)
	ErrDuplicatePatient  = fmt.Errorf("%w: duplicate patient id", ErrInvalidInput)
	ErrEmptyPatientID    = fmt.Errorf("%w: patient id cannot be empty", ErrInvalidInput)
)

// ErrAlreadyResolved is returned when resolving an alert that already carries
// a resolution. The stored resolution is left untouched.
var ErrAlreadyResolved = errors.New("alert already resolved")
