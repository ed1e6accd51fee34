package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the record store and service layers. Callers
// match them with errors.Is.
var (
	// ErrCorruptRecord reports a stored document that cannot be decoded.
	ErrCorruptRecord = errors.New("sign-out record is corrupt")
	// ErrUnknownCollection reports a collection name outside the enumerated set.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrUnknownStaffRole reports a staff role other than consultant, sho or registrar.
	ErrUnknownStaffRole = errors.New("unknown staff role")
	// ErrNotFound reports a patient id with no entry in the requested collection.
	ErrNotFound = errors.New("record not found")
	// ErrValidation reports a form submission missing required fields.
	ErrValidation = errors.New("validation failed")
)

func unknownCollection(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

func unknownStaffRole(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownStaffRole, name)
}

// NotFoundError identifies the collection and patient id of a failed lookup.
type NotFoundError struct {
	Collection string
	PatientID  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s entry for patient %s not found", e.Collection, e.PatientID)
}

// Unwrap allows errors.Is(err, ErrNotFound).
func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError lists the required fields missing from a submission.
type ValidationError struct {
	Missing []string
}

func (e ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e ValidationError) Unwrap() error { return ErrValidation }

// RequirePatientDetails checks the fields every form must supply.
func RequirePatientDetails(p PatientDetails) error {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.ID) == "" {
		missing = append(missing, "id")
	}
	if len(missing) > 0 {
		return ValidationError{Missing: missing}
	}
	return nil
}
