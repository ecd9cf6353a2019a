// Package service implements the allocation coordinator: the only component
// that writes unit status.  A reservation is validate, hold every unit with
// a conditional write, then commit the booking and the held→booked flips in
// one ledger transaction.  Any failure releases what was held.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/campus-reservation/internal/catalog"
	"github.com/iliyamo/campus-reservation/internal/metrics"
	"github.com/iliyamo/campus-reservation/internal/model"
	"github.com/iliyamo/campus-reservation/internal/repository"
	"github.com/iliyamo/campus-reservation/internal/validation"
)

// DefaultHoldTTL bounds how long a provisional hold survives without a
// commit.
const DefaultHoldTTL = 2 * time.Minute

const notifyTimeout = 5 * time.Second

// Options configures a Coordinator.  Zero values fall back to defaults.
type Options struct {
	HoldTTL   time.Duration
	Clock     clockwork.Clock
	Notifier  Notifier
	Validator *validation.Validator
	// NewID mints booking ids; uuid.NewString by default.
	NewID func() string
}

type Coordinator struct {
	ledger    repository.Ledger
	catalog   *catalog.Catalog
	validator *validation.Validator
	notifier  Notifier
	clock     clockwork.Clock
	holdTTL   time.Duration
	newID     func() string
	log       *log.Entry
	pending   sync.WaitGroup
}

func NewCoordinator(ledger repository.Ledger, opts Options) *Coordinator {
	if opts.HoldTTL <= 0 {
		opts.HoldTTL = DefaultHoldTTL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Validator == nil {
		opts.Validator = validation.New(validation.DefaultRules())
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Coordinator{
		ledger:    ledger,
		catalog:   catalog.New(ledger, opts.Clock),
		validator: opts.Validator,
		notifier:  opts.Notifier,
		clock:     opts.Clock,
		holdTTL:   opts.HoldTTL,
		newID:     opts.NewID,
		log:       log.WithField("component", "coordinator"),
	}
}

// Catalog returns the read-only view sharing the coordinator's ledger and
// clock.
func (c *Coordinator) Catalog() *catalog.Catalog { return c.catalog }

// Validate runs the validator against the current catalog without holding
// anything.  Unknown unit ids yield a NotFoundError.
func (c *Coordinator) Validate(ctx context.Context, req model.BookingRequest) (validation.Violations, error) {
	units, err := c.resolve(ctx, req.UnitIDs)
	if err != nil {
		return nil, err
	}
	violations := c.validator.Validate(req, units, c.clock.Now())
	if len(violations) > 0 {
		return violations, nil
	}
	if missing := unresolved(req.UnitIDs, units); missing != "" {
		return nil, &NotFoundError{Entity: "unit", ID: missing}
	}
	return nil, nil
}

// Reserve validates req, holds every requested unit and commits the
// booking.  It either returns the confirmed booking or leaves every unit as
// it found it.
func (c *Coordinator) Reserve(ctx context.Context, req model.BookingRequest) (*model.Booking, error) {
	units, err := c.admit(ctx, req)
	if err != nil {
		c.count(units, err)
		return nil, err
	}
	ids := sortedUnique(req.UnitIDs)
	token, err := randomToken(32)
	if err != nil {
		return nil, errors.Wrap(err, "hold token")
	}
	if err := c.acquire(ctx, ids, token, req.RequesterID); err != nil {
		c.count(units, err)
		return nil, err
	}
	b, err := c.commit(ctx, req, ids, token)
	c.count(units, err)
	return b, err
}

// Hold is the first phase of the two-step checkout: it validates and holds
// the units, returning a token to Confirm or Abort before ExpiresAt.
func (c *Coordinator) Hold(ctx context.Context, req model.BookingRequest) (*model.Hold, error) {
	units, err := c.admit(ctx, req)
	if err != nil {
		c.count(units, err)
		return nil, err
	}
	ids := sortedUnique(req.UnitIDs)
	token, err := randomToken(32)
	if err != nil {
		return nil, errors.Wrap(err, "hold token")
	}
	expires := c.clock.Now().Add(c.holdTTL)
	if err := c.acquireUntil(ctx, ids, token, req.RequesterID, expires); err != nil {
		c.count(units, err)
		return nil, err
	}
	c.log.WithFields(log.Fields{"requester": req.RequesterID, "units": ids, "expires_at": expires}).Debug("units held")
	return &model.Hold{Token: token, RequesterID: req.RequesterID, UnitIDs: ids, ExpiresAt: expires}, nil
}

// Confirm commits a hold.  The units are taken from the hold itself; the
// request supplies participants, metadata and attachments and is validated
// again against the held units.
func (c *Coordinator) Confirm(ctx context.Context, token string, req model.BookingRequest) (*model.Booking, error) {
	held, err := c.heldBy(ctx, token, req.RequesterID)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	ids := make([]string, 0, len(held))
	for _, u := range held {
		ids = append(ids, u.ID)
	}
	req.UnitIDs = ids
	if violations := c.validator.Validate(req, held, now); len(violations) > 0 {
		err := &ValidationError{Violations: violations}
		c.count(held, err)
		return nil, err
	}
	for _, u := range held {
		if u.HoldExpired(now) {
			c.release(ids, token)
			err := &ConflictError{UnitID: u.ID, Reason: ReasonHoldExpired}
			c.count(held, err)
			return nil, err
		}
	}
	b, err := c.commit(ctx, req, ids, token)
	c.count(held, err)
	return b, err
}

// Abort releases a hold immediately.
func (c *Coordinator) Abort(ctx context.Context, token, requesterID string) error {
	held, err := c.heldBy(ctx, token, requesterID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(held))
	for _, u := range held {
		ids = append(ids, u.ID)
	}
	c.release(ids, token)
	return nil
}

// Cancel cancels a confirmed booking on behalf of its requester or an
// admin.  Units whose time has not elapsed return to available.
func (c *Coordinator) Cancel(ctx context.Context, bookingID, requesterID, role string) (*model.Booking, error) {
	b, err := c.ledger.Get(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Entity: "booking", ID: bookingID}
	}
	if err != nil {
		return nil, &TransientError{Op: "cancel", Err: err}
	}
	if b.RequesterID != requesterID && role != model.RoleAdmin {
		return nil, errors.Wrapf(repository.ErrForbidden, "booking %s", bookingID)
	}

	var cancelled *model.Booking
	attempt := 0
	err = c.retry(ctx, "cancel", func() error {
		attempt++
		var err error
		cancelled, err = c.ledger.Cancel(ctx, bookingID, c.clock.Now())
		if attempt > 1 && errors.Is(err, repository.ErrNotFound) {
			// The first attempt landed but its acknowledgement was lost.
			if got, gerr := c.ledger.Get(ctx, bookingID); gerr == nil && got.Status == model.BookingCancelled {
				cancelled = got
				return nil
			}
		}
		return err
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, &NotFoundError{Entity: "booking", ID: bookingID}
	case err != nil:
		return nil, &TransientError{Op: "cancel", Err: err}
	}
	metrics.Cancellations.Inc()
	c.log.WithFields(log.Fields{"booking": bookingID, "by": requesterID}).Info("booking cancelled")
	c.notify(ctx, "cancelled", *cancelled, c.notifier.BookingCancelled)
	return cancelled, nil
}

// ExpireHolds reverts every lapsed hold to available.
func (c *Coordinator) ExpireHolds(ctx context.Context) ([]string, error) {
	ids, err := c.ledger.ExpireHolds(ctx, c.clock.Now())
	if err != nil {
		return nil, errors.Wrap(err, "expire holds")
	}
	if len(ids) > 0 {
		metrics.HoldsExpired.Add(float64(len(ids)))
		c.log.WithField("units", ids).Info("expired holds released")
	}
	return ids, nil
}

// Booking returns a booking by id.
func (c *Coordinator) Booking(ctx context.Context, bookingID string) (*model.Booking, error) {
	b, err := c.ledger.Get(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Entity: "booking", ID: bookingID}
	}
	return b, err
}

// BookingForUnit returns the confirmed booking holding a unit.
func (c *Coordinator) BookingForUnit(ctx context.Context, unitID string) (*model.Booking, error) {
	b, err := c.ledger.FindByUnit(ctx, unitID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Entity: "booking for unit", ID: unitID}
	}
	return b, err
}

// BookingsFor lists a requester's bookings, newest first.
func (c *Coordinator) BookingsFor(ctx context.Context, requesterID string) ([]model.Booking, error) {
	return c.ledger.FindByRequester(ctx, requesterID)
}

// admit resolves and validates a request.  The resolved units are returned
// even on error so the caller can label metrics.
func (c *Coordinator) admit(ctx context.Context, req model.BookingRequest) ([]model.BookableUnit, error) {
	units, err := c.resolve(ctx, req.UnitIDs)
	if err != nil {
		return nil, err
	}
	if violations := c.validator.Validate(req, units, c.clock.Now()); len(violations) > 0 {
		return units, &ValidationError{Violations: violations}
	}
	if missing := unresolved(req.UnitIDs, units); missing != "" {
		return units, &NotFoundError{Entity: "unit", ID: missing}
	}
	return units, nil
}

func (c *Coordinator) resolve(ctx context.Context, ids []string) ([]model.BookableUnit, error) {
	units, err := c.catalog.GetUnits(ctx, ids)
	if err != nil {
		return nil, &TransientError{Op: "resolve units", Err: err}
	}
	return units, nil
}

func (c *Coordinator) acquire(ctx context.Context, ids []string, token, requesterID string) error {
	return c.acquireUntil(ctx, ids, token, requesterID, c.clock.Now().Add(c.holdTTL))
}

// acquireUntil holds ids in order.  On the first failure every hold taken so
// far is released.
func (c *Coordinator) acquireUntil(ctx context.Context, ids []string, token, requesterID string, expires time.Time) error {
	for i, id := range ids {
		err := c.retry(ctx, "hold", func() error {
			return c.ledger.HoldUnit(ctx, id, token, requesterID, expires, c.clock.Now())
		})
		if err == nil {
			continue
		}
		// ids[i] may have been held even though the write reported an error.
		c.release(ids[:i+1], token)
		switch {
		case errors.Is(err, repository.ErrUnitUnavailable):
			return &ConflictError{UnitID: id, Reason: ReasonAlreadyTaken}
		case errors.Is(err, repository.ErrNotFound):
			return &NotFoundError{Entity: "unit", ID: id}
		default:
			return &TransientError{Op: "hold", Err: err}
		}
	}
	return nil
}

// commit writes the booking for units already held under token.
func (c *Coordinator) commit(ctx context.Context, req model.BookingRequest, ids []string, token string) (*model.Booking, error) {
	now := c.clock.Now()
	b := &model.Booking{
		ID:           c.newID(),
		UnitIDs:      ids,
		RequesterID:  req.RequesterID,
		Participants: req.Participants,
		Metadata:     req.Metadata,
		Attachments:  req.Attachments,
		Status:       model.BookingConfirmed,
		CreatedAt:    now,
	}
	attempt := 0
	err := c.retry(ctx, "create", func() error {
		attempt++
		done := metrics.Time(metrics.LedgerSeconds.WithLabelValues("create"))
		defer done()
		err := c.ledger.Create(ctx, b, token, now)
		if attempt > 1 && errors.Is(err, repository.ErrDuplicateBooking) && c.alreadyCommitted(ctx, b) {
			// The first attempt landed but its acknowledgement was lost.
			return nil
		}
		return err
	})
	if err == nil {
		c.log.WithFields(log.Fields{"booking": b.ID, "requester": b.RequesterID, "units": ids}).Info("booking confirmed")
		c.notify(ctx, "confirmed", *b, c.notifier.BookingConfirmed)
		return b, nil
	}

	c.release(ids, token)
	switch {
	case errors.Is(err, repository.ErrHoldLost):
		return nil, &ConflictError{UnitID: c.lostUnit(ctx, ids, token), Reason: ReasonHoldExpired}
	case errors.Is(err, repository.ErrDuplicateBooking):
		c.log.WithError(err).WithField("units", ids).Error("ledger already has a confirmed booking for a held unit")
		return nil, &DuplicateBookingError{UnitIDs: ids}
	default:
		return nil, &TransientError{Op: "commit", Err: err}
	}
}

func (c *Coordinator) alreadyCommitted(ctx context.Context, b *model.Booking) bool {
	got, err := c.ledger.FindByUnit(ctx, b.UnitIDs[0])
	return err == nil && got.ID == b.ID
}

// lostUnit names the first unit no longer held under token.
func (c *Coordinator) lostUnit(ctx context.Context, ids []string, token string) string {
	held, err := c.ledger.HeldUnits(ctx, token)
	if err != nil {
		return ids[0]
	}
	now := c.clock.Now()
	still := make(map[string]bool, len(held))
	for _, u := range held {
		if !u.HoldExpired(now) {
			still[u.ID] = true
		}
	}
	for _, id := range ids {
		if !still[id] {
			return id
		}
	}
	return ids[0]
}

// heldBy loads the units held under token and checks they belong to
// requesterID.
func (c *Coordinator) heldBy(ctx context.Context, token, requesterID string) ([]model.BookableUnit, error) {
	held, err := c.ledger.HeldUnits(ctx, token)
	if err != nil {
		return nil, &TransientError{Op: "load hold", Err: err}
	}
	if len(held) == 0 {
		return nil, &NotFoundError{Entity: "hold", ID: token}
	}
	for _, u := range held {
		if u.HeldBy != requesterID {
			return nil, errors.Wrap(repository.ErrForbidden, "hold belongs to another requester")
		}
	}
	return held, nil
}

// release returns units held under token to available.  It runs on a
// detached context so a cancelled request cannot strand holds.
func (c *Coordinator) release(ids []string, token string) {
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range ids {
		if err := c.ledger.ReleaseHold(ctx, id, token); err != nil {
			// The sweeper reclaims it once the hold lapses.
			c.log.WithError(err).WithField("unit", id).Warn("release hold failed")
		}
	}
}

// retry runs fn and, if it fails with an infrastructure error, once more.
func (c *Coordinator) retry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || repository.IsDomainError(err) || ctx.Err() != nil {
		return err
	}
	metrics.LedgerRetries.WithLabelValues(op).Inc()
	c.log.WithError(err).WithField("op", op).Warn("ledger error, retrying once")
	return fn()
}

// notify sends in the background so a slow broker never delays the
// booking response.
func (c *Coordinator) notify(ctx context.Context, event string, b model.Booking, send func(context.Context, model.Booking) error) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer cancel()
		if err := send(nctx, b); err != nil {
			metrics.NotifyErrors.WithLabelValues(event).Inc()
			c.log.WithError(err).WithFields(log.Fields{"booking": b.ID, "event": event}).Warn("notification failed")
		}
	}()
}

// Wait blocks until every notification in flight has been sent or has
// timed out.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

func (c *Coordinator) count(units []model.BookableUnit, err error) {
	kind := "unknown"
	if len(units) > 0 {
		kind = string(units[0].Kind)
	}
	outcome := metrics.OutcomeConfirmed
	var (
		conflict  *ConflictError
		invalid   *ValidationError
		missing   *NotFoundError
		transient *TransientError
		dup       *DuplicateBookingError
	)
	switch {
	case err == nil:
	case errors.As(err, &conflict):
		outcome = metrics.OutcomeConflict
	case errors.As(err, &invalid):
		outcome = metrics.OutcomeInvalid
	case errors.As(err, &missing):
		outcome = metrics.OutcomeNotFound
	case errors.As(err, &dup):
		outcome = metrics.OutcomeDuplicate
	case errors.As(err, &transient):
		outcome = metrics.OutcomeTransient
	default:
		return
	}
	metrics.Reservations.WithLabelValues(kind, outcome).Inc()
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// unresolved returns the first non-empty id absent from units.
func unresolved(ids []string, units []model.BookableUnit) string {
	found := make(map[string]bool, len(units))
	for _, u := range units {
		found[u.ID] = true
	}
	for _, id := range ids {
		if id != "" && !found[id] {
			return id
		}
	}
	return ""
}

// randomToken returns n random bytes hex encoded.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
