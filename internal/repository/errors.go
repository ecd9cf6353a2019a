// Package repository defines the authoritative store for unit status and
// the booking ledger, plus the error values shared by its implementations.
// Higher layers use these sentinels to tell apart the different failure
// scenarios; any other error returned by a store is an infrastructure
// failure and may be retried.
package repository

import "github.com/pkg/errors"

// ErrNotFound is returned when a unit, resource or booking id is unknown,
// and when cancelling a booking that is no longer confirmed.
var ErrNotFound = errors.New("not found")

// ErrUnitUnavailable is returned by HoldUnit when the conditional
// available→held transition did not apply because the unit is held by
// someone else, booked or cancelled.
var ErrUnitUnavailable = errors.New("unit unavailable")

// ErrHoldLost is returned by Create when a unit is no longer held under the
// given token (the hold expired or was taken over after expiry).
var ErrHoldLost = errors.New("hold lost")

// ErrDuplicateBooking is returned by Create when a unit already has a
// confirmed booking.  Under a correct coordinator this never happens.
var ErrDuplicateBooking = errors.New("duplicate booking")

// ErrForbidden is returned when the caller attempts an operation on a hold
// or booking owned by someone else.  Handlers translate it to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert collides with an existing row,
// such as publishing a resource id twice.  Handlers translate it to 409.
var ErrConflict = errors.New("conflict")

// IsDomainError reports whether err is one of the sentinels above, as
// opposed to a storage failure.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrUnitUnavailable, ErrHoldLost, ErrDuplicateBooking, ErrForbidden, ErrConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
