package models

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for batches, items or employees that do not
// exist. Distinct from GuardViolation so callers can tell "gone" apart from
// "exists but in the wrong state".
var ErrNotFound = errors.New("not found")

// ValidationError is malformed caller input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GuardViolation is a rejected transition. Current carries the item's real
// status at the time of rejection so the caller can re-render actual state.
type GuardViolation struct {
	Op      string
	ItemID  string
	Current ItemStatus
}

func (e *GuardViolation) Error() string {
	return fmt.Sprintf("%s rejected: item %s is %s", e.Op, e.ItemID, e.Current)
}

// CollaboratorError wraps a failure in an external system (OCR, storage,
// registry, notifications). The pipeline degrades rather than corrupts:
// ingestion failures route items to ERROR, notification failures are logged
// and swallowed.
type CollaboratorError struct {
	System string
	Err    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.System, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
