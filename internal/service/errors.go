package service

import (
	"fmt"
	"strings"

	"github.com/iliyamo/campus-reservation/internal/repository"
	"github.com/iliyamo/campus-reservation/internal/validation"
)

// ConflictReason explains why a unit could not be allocated.
type ConflictReason string

const (
	ReasonAlreadyTaken ConflictReason = "already_taken"
	ReasonHoldExpired  ConflictReason = "hold_expired"
)

// ConflictError reports the first unit that could not be allocated.  No
// unit of the request stays held when it is returned.
type ConflictError struct {
	UnitID string
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unit %s: %s", e.UnitID, e.Reason)
}

// ValidationError carries every rule the request violated.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string { return e.Violations.Error() }

// TransientError wraps a storage failure that persisted after a retry.  The
// caller may try again.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: temporarily unavailable: %v", e.Op, e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

// DuplicateBookingError means the ledger found a second confirmed booking
// for a unit.  It signals a broken invariant, not a user error.
type DuplicateBookingError struct {
	UnitIDs []string
}

func (e *DuplicateBookingError) Error() string {
	return "duplicate booking for " + strings.Join(e.UnitIDs, ",")
}

func (e *DuplicateBookingError) Unwrap() error { return repository.ErrDuplicateBooking }

// NotFoundError names the missing entity.  It matches repository.ErrNotFound
// under errors.Is.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }

func (e *NotFoundError) Unwrap() error { return repository.ErrNotFound }
