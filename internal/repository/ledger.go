package repository

import (
	"context"
	"time"

	"github.com/iliyamo/campus-reservation/internal/model"
)

// UnitFilter narrows ListUnits to units starting in [From, To).  Nil bounds
// are open.
type UnitFilter struct {
	From *time.Time
	To   *time.Time
}

// Match reports whether u falls inside the filter window.  Units without a
// start time only match an unbounded filter.
func (f UnitFilter) Match(u model.BookableUnit) bool {
	if f.From == nil && f.To == nil {
		return true
	}
	if u.StartTime == nil {
		return false
	}
	if f.From != nil && u.StartTime.Before(*f.From) {
		return false
	}
	if f.To != nil && !u.StartTime.Before(*f.To) {
		return false
	}
	return true
}

// Ledger is the single authoritative store for unit status and bookings.
// Every status change is a conditional write: implementations must never
// read a status and then write it in a separate, unguarded step.
type Ledger interface {
	// CreateResource stores a published resource together with its units.
	// A duplicate resource or unit id yields ErrConflict.
	CreateResource(ctx context.Context, res model.Resource, units []model.BookableUnit) error
	// GetResource returns ErrNotFound for unknown ids.
	GetResource(ctx context.Context, id string) (*model.Resource, error)

	// GetUnit returns ErrNotFound for unknown ids.
	GetUnit(ctx context.Context, id string) (*model.BookableUnit, error)
	// ListUnits returns the units of a resource ordered by start time, then id.
	ListUnits(ctx context.Context, resourceID string, f UnitFilter) ([]model.BookableUnit, error)

	// HoldUnit atomically moves a unit from available (or from a lapsed
	// hold) to held under token.  Holding a unit again under the same
	// token succeeds.  ErrUnitUnavailable when the condition does not
	// hold, ErrNotFound when the unit does not exist.
	HoldUnit(ctx context.Context, unitID, token, requesterID string, expiresAt, now time.Time) error
	// ReleaseHold returns a unit held under token to available.  It is a
	// no-op when the unit is no longer held under that token.
	ReleaseHold(ctx context.Context, unitID, token string) error
	// HeldUnits lists the units currently held under token.
	HeldUnits(ctx context.Context, token string) ([]model.BookableUnit, error)
	// ExpireHolds returns every lapsed hold to available and reports the
	// affected unit ids.
	ExpireHolds(ctx context.Context, now time.Time) ([]string, error)

	// Create writes b and flips each of its units from held (under
	// holdToken, unexpired at now) to booked in one transaction.  It fails
	// with ErrDuplicateBooking if any unit already has a confirmed booking
	// and with ErrHoldLost if any hold is gone; nothing is written then.
	Create(ctx context.Context, b *model.Booking, holdToken string, now time.Time) error
	// Get returns a booking in any status, or ErrNotFound.
	Get(ctx context.Context, bookingID string) (*model.Booking, error)
	// FindByUnit returns the confirmed booking holding unitID, or ErrNotFound.
	FindByUnit(ctx context.Context, unitID string) (*model.Booking, error)
	// FindByRequester returns all bookings of a requester, newest first.
	FindByRequester(ctx context.Context, requesterID string) ([]model.Booking, error)
	// Cancel marks a confirmed booking cancelled and reclaims its units:
	// units whose time has not elapsed at now return to available, the
	// others are left cancelled.  Unknown or already cancelled bookings
	// yield ErrNotFound.
	Cancel(ctx context.Context, bookingID string, now time.Time) (*model.Booking, error)
}
