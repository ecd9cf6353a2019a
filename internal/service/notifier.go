package service

import (
	"context"

	"github.com/iliyamo/campus-reservation/internal/model"
)

// Notifier is told about committed bookings and cancellations.  Delivery
// is best effort: a failed notification never undoes the ledger change.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b model.Booking) error
	BookingCancelled(ctx context.Context, b model.Booking) error
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) BookingConfirmed(context.Context, model.Booking) error { return nil }
func (NopNotifier) BookingCancelled(context.Context, model.Booking) error { return nil }
