package model

import "time"

// ResourceKind identifies the parent a set of units is published from.
type ResourceKind string

const (
	ResourceEvent               ResourceKind = "event"
	ResourcePresentationSession ResourceKind = "presentation_session"
	ResourceFaculty             ResourceKind = "faculty"
)

// UnitKind returns the kind of unit a resource of this kind publishes.
func (k ResourceKind) UnitKind() (UnitKind, bool) {
	switch k {
	case ResourceEvent:
		return KindSeat, true
	case ResourcePresentationSession:
		return KindPresentationSlot, true
	case ResourceFaculty:
		return KindAppointmentWindow, true
	}
	return "", false
}

// Resource is the Resource Directory record for an event, a hosted
// presentation session or a faculty member's availability block.  It is
// read-only to the reservation core once published.
//
// Fields:
//  ID              – resource identifier, used as OwnerResourceID on units.
//  Kind            – event, presentation_session or faculty.
//  Name            – display name.
//  Venue           – room or hall.
//  StartTime       – start of the event or availability block.
//  EndTime         – end of the event or availability block.
//  SeatRows        – seating rows (events).
//  SeatCols        – seats per row (events).
//  SlotMinutes     – length of each slot or window (sessions, faculty).
//  MinParticipants – minimum team size (sessions).
//  MaxParticipants – maximum team size (sessions).
//  CreatedAt       – publication time.
type Resource struct {
	ID              string       `json:"id"`
	Kind            ResourceKind `json:"kind"`
	Name            string       `json:"name"`
	Venue           string       `json:"venue,omitempty"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	SeatRows        int          `json:"seat_rows,omitempty"`
	SeatCols        int          `json:"seat_cols,omitempty"`
	SlotMinutes     int          `json:"slot_minutes,omitempty"`
	MinParticipants int          `json:"min_participants,omitempty"`
	MaxParticipants int          `json:"max_participants,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Role names supplied by the identity provider.
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleAdmin   = "admin"
)
