package model

import "time"

// BookingStatus is the lifecycle state of a ledger entry.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Participant is one member of a team or appointment booking.  A
// participant is identified by ContactEmail or ExternalID (student or staff
// number); either is enough.
type Participant struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email,omitempty"`
	ExternalID   string `json:"external_id,omitempty"`
	Affiliation  string `json:"affiliation"`
}

// TimeProposal is an alternative time suggested in the appointment flow.
type TimeProposal struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AttachmentRef points at a file held by the attachment store.  The core
// never sees the bytes.
type AttachmentRef struct {
	Key         string `json:"key"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// BookingRequest is what a caller submits to reserve one or more units.
type BookingRequest struct {
	RequesterID  string            `json:"requester_id"`
	UnitIDs      []string          `json:"unit_ids"`
	Participants []Participant     `json:"participants,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Alternatives []TimeProposal    `json:"alternatives,omitempty"`
	Attachments  []AttachmentRef   `json:"attachments,omitempty"`
}

// Booking records a confirmed (or later cancelled) reservation.  It maps to
// the `bookings` table plus one `booking_units` row per unit.
//
// Fields:
//  ID           – UUID of the booking.
//  UnitIDs      – units held by the booking, sorted.
//  RequesterID  – identity that made the booking.
//  Participants – ordered team or appointment members.
//  Metadata     – free-form fields (team name, reason, description).
//  Attachments  – references into the attachment store.
//  Status       – confirmed or cancelled.
//  CreatedAt    – commit time.
//  CancelledAt  – cancellation time (nil while confirmed).
type Booking struct {
	ID           string            `json:"id"`
	UnitIDs      []string          `json:"unit_ids"`
	RequesterID  string            `json:"requester_id"`
	Participants []Participant     `json:"participants"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Attachments  []AttachmentRef   `json:"attachments,omitempty"`
	Status       BookingStatus     `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
}

// Hold is a short-lived provisional claim on a set of units made during
// checkout.  Confirming it produces a Booking; aborting it or letting it
// lapse returns the units to available.
type Hold struct {
	Token       string    `json:"token"`
	RequesterID string    `json:"requester_id"`
	UnitIDs     []string  `json:"unit_ids"`
	ExpiresAt   time.Time `json:"expires_at"`
}
