// Package queue carries booking events over RabbitMQ.  The coordinator
// publishes one event per committed booking or cancellation; a consumer
// appends each event to the booking log and mails the participants.
package queue

import (
	"time"

	"github.com/iliyamo/campus-reservation/internal/model"
)

// EventType names what happened to a booking.
type EventType string

const (
	EventConfirmed EventType = "booking.confirmed"
	EventCancelled EventType = "booking.cancelled"
)

// Recipient is a participant who can be reached by mail.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BookingEvent is the message body.  It carries enough of the booking for
// downstream consumers to log and notify without reading the ledger.
type BookingEvent struct {
	Type        EventType         `json:"type"`
	BookingID   string            `json:"booking_id"`
	RequesterID string            `json:"requester_id"`
	UnitIDs     []string          `json:"unit_ids"`
	Recipients  []Recipient       `json:"recipients,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// NewBookingEvent builds the event for b.  Participants without a contact
// email are left out of the recipients.
func NewBookingEvent(typ EventType, b model.Booking, at time.Time) BookingEvent {
	ev := BookingEvent{
		Type:        typ,
		BookingID:   b.ID,
		RequesterID: b.RequesterID,
		UnitIDs:     append([]string(nil), b.UnitIDs...),
		Metadata:    b.Metadata,
		OccurredAt:  at.UTC(),
	}
	for _, p := range b.Participants {
		if p.ContactEmail != "" {
			ev.Recipients = append(ev.Recipients, Recipient{Name: p.Name, Email: p.ContactEmail})
		}
	}
	return ev
}
