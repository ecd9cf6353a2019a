package model

import "time"

// UnitKind tags the flow a bookable unit belongs to.  All three flows share
// one engine; kind only changes which validation rules apply.
type UnitKind string

const (
	KindSeat              UnitKind = "seat"
	KindPresentationSlot  UnitKind = "presentation_slot"
	KindAppointmentWindow UnitKind = "appointment_window"
)

// Valid reports whether k is one of the known unit kinds.
func (k UnitKind) Valid() bool {
	switch k {
	case KindSeat, KindPresentationSlot, KindAppointmentWindow:
		return true
	}
	return false
}

// TimeBound reports whether units of this kind are checked against the
// business-hours window.  Seats inherit the event time and are exempt.
func (k UnitKind) TimeBound() bool {
	return k == KindPresentationSlot || k == KindAppointmentWindow
}

// UnitStatus is the allocation state of a unit.
type UnitStatus string

const (
	StatusAvailable UnitStatus = "available"
	StatusHeld      UnitStatus = "held"
	StatusBooked    UnitStatus = "booked"
	StatusCancelled UnitStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s UnitStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusHeld, StatusBooked, StatusCancelled:
		return true
	}
	return false
}

var transitions = map[UnitStatus]map[UnitStatus]bool{
	StatusAvailable: {StatusHeld: true},
	StatusHeld:      {StatusBooked: true, StatusAvailable: true},
	StatusBooked:    {StatusCancelled: true},
	StatusCancelled: {StatusAvailable: true},
}

// CanTransition reports whether a unit may move from one status to another.
// The only legal paths are available→held→booked, held→available and
// booked→cancelled→available.
func CanTransition(from, to UnitStatus) bool {
	return transitions[from][to]
}

// CapacityConstraints bounds the number of participants a booking of the
// unit may carry.  Only presentation slots declare them today.
type CapacityConstraints struct {
	MinParticipants int `json:"min_participants"`
	MaxParticipants int `json:"max_participants"`
}

// BookableUnit is a single seat, presentation slot or appointment window.
// It corresponds to a row in the `units` table.
//
// Fields:
//  ID              – opaque identifier unique within the catalog (e.g. seat-C7).
//  Kind            – seat, presentation_slot or appointment_window.
//  OwnerResourceID – event, session or faculty member the unit belongs to.
//  Label           – short display label (C7, 10:30).
//  Status          – allocation status.
//  StartTime       – start of the unit; seats carry the event start.
//  EndTime         – end of the unit.
//  Capacity        – participant bounds (nil when the unit declares none).
//  HoldToken       – token of the hold currently on the unit, if any.
//  HeldBy          – requester owning the hold.
//  HoldExpiresAt   – when the hold lapses.
//  UpdatedAt       – last status change.
type BookableUnit struct {
	ID              string               `json:"id"`
	Kind            UnitKind             `json:"kind"`
	OwnerResourceID string               `json:"owner_resource_id"`
	Label           string               `json:"label,omitempty"`
	Status          UnitStatus           `json:"status"`
	StartTime       *time.Time           `json:"start_time,omitempty"`
	EndTime         *time.Time           `json:"end_time,omitempty"`
	Capacity        *CapacityConstraints `json:"capacity,omitempty"`
	HoldToken       string               `json:"-"`
	HeldBy          string               `json:"-"`
	HoldExpiresAt   *time.Time           `json:"hold_expires_at,omitempty"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// HoldExpired reports whether the unit is held and its hold window has
// lapsed at now.
func (u BookableUnit) HoldExpired(now time.Time) bool {
	return u.Status == StatusHeld && u.HoldExpiresAt != nil && !u.HoldExpiresAt.After(now)
}

// Elapsed reports whether the unit's time has passed at now.  Units without
// a time component never elapse.
func (u BookableUnit) Elapsed(now time.Time) bool {
	if u.StartTime == nil {
		return false
	}
	return !u.StartTime.After(now)
}
