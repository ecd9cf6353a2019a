package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/campus-reservation/internal/model"
)

// MemoryStore is an in-process Ledger guarded by a single mutex.  It backs
// tests and single-node deployments that run without DB_DSN.
type MemoryStore struct {
	mu        sync.Mutex
	resources map[string]model.Resource
	units     map[string]*model.BookableUnit
	byOwner   map[string][]string
	bookings  map[string]*model.Booking
	byUnit    map[string][]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources: make(map[string]model.Resource),
		units:     make(map[string]*model.BookableUnit),
		byOwner:   make(map[string][]string),
		bookings:  make(map[string]*model.Booking),
		byUnit:    make(map[string][]string),
	}
}

var _ Ledger = (*MemoryStore)(nil)

func (s *MemoryStore) CreateResource(_ context.Context, res model.Resource, units []model.BookableUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[res.ID]; ok {
		return ErrConflict
	}
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if _, ok := s.units[u.ID]; ok || seen[u.ID] {
			return ErrConflict
		}
		seen[u.ID] = true
	}
	s.resources[res.ID] = res
	for _, u := range units {
		c := cloneUnit(u)
		s.units[u.ID] = &c
		s.byOwner[res.ID] = append(s.byOwner[res.ID], u.ID)
	}
	return nil
}

func (s *MemoryStore) GetResource(_ context.Context, id string) (*model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) GetUnit(_ context.Context, id string) (*model.BookableUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneUnit(*u)
	return &c, nil
}

func (s *MemoryStore) ListUnits(_ context.Context, resourceID string, f UnitFilter) ([]model.BookableUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BookableUnit, 0, len(s.byOwner[resourceID]))
	for _, id := range s.byOwner[resourceID] {
		u := s.units[id]
		if f.Match(*u) {
			out = append(out, cloneUnit(*u))
		}
	}
	SortUnits(out)
	return out, nil
}

func (s *MemoryStore) HoldUnit(_ context.Context, unitID, token, requesterID string, expiresAt, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok {
		return ErrNotFound
	}
	if u.HoldExpired(now) {
		clearHold(u, model.StatusAvailable, now)
	}
	exp := expiresAt
	if u.Status == model.StatusHeld && u.HoldToken == token {
		u.HoldExpiresAt = &exp
		u.UpdatedAt = now
		return nil
	}
	if !model.CanTransition(u.Status, model.StatusHeld) {
		return ErrUnitUnavailable
	}
	u.Status = model.StatusHeld
	u.HoldToken = token
	u.HeldBy = requesterID
	u.HoldExpiresAt = &exp
	u.UpdatedAt = now
	return nil
}

func (s *MemoryStore) ReleaseHold(_ context.Context, unitID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok || u.Status != model.StatusHeld || u.HoldToken != token {
		return nil
	}
	clearHold(u, model.StatusAvailable, u.UpdatedAt)
	return nil
}

func (s *MemoryStore) HeldUnits(_ context.Context, token string) ([]model.BookableUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BookableUnit
	for _, u := range s.units {
		if u.Status == model.StatusHeld && u.HoldToken == token {
			out = append(out, cloneUnit(*u))
		}
	}
	SortUnits(out)
	return out, nil
}

func (s *MemoryStore) ExpireHolds(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, u := range s.units {
		if u.HoldExpired(now) {
			clearHold(u, model.StatusAvailable, now)
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Create(_ context.Context, b *model.Booking, holdToken string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Check every unit before touching any of them.
	for _, id := range b.UnitIDs {
		for _, bid := range s.byUnit[id] {
			if s.bookings[bid].Status == model.BookingConfirmed {
				return ErrDuplicateBooking
			}
		}
	}
	for _, id := range b.UnitIDs {
		u, ok := s.units[id]
		if !ok || !model.CanTransition(u.Status, model.StatusBooked) || u.HoldToken != holdToken || u.HoldExpired(now) {
			return ErrHoldLost
		}
	}
	for _, id := range b.UnitIDs {
		clearHold(s.units[id], model.StatusBooked, now)
		s.byUnit[id] = append(s.byUnit[id], b.ID)
	}
	c := cloneBooking(*b)
	s.bookings[b.ID] = &c
	return nil
}

func (s *MemoryStore) Get(_ context.Context, bookingID string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneBooking(*b)
	return &c, nil
}

func (s *MemoryStore) FindByUnit(_ context.Context, unitID string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bid := range s.byUnit[unitID] {
		if b := s.bookings[bid]; b.Status == model.BookingConfirmed {
			c := cloneBooking(*b)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByRequester(_ context.Context, requesterID string) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.RequesterID == requesterID {
			out = append(out, cloneBooking(*b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Cancel(_ context.Context, bookingID string, now time.Time) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status != model.BookingConfirmed {
		return nil, ErrNotFound
	}
	at := now
	b.Status = model.BookingCancelled
	b.CancelledAt = &at
	for _, id := range b.UnitIDs {
		u, ok := s.units[id]
		if !ok || !model.CanTransition(u.Status, model.StatusCancelled) {
			continue
		}
		u.Status = model.StatusCancelled
		u.UpdatedAt = now
		// An elapsed unit stays cancelled for history.
		if !u.Elapsed(now) && model.CanTransition(u.Status, model.StatusAvailable) {
			u.Status = model.StatusAvailable
		}
	}
	c := cloneBooking(*b)
	return &c, nil
}

func clearHold(u *model.BookableUnit, to model.UnitStatus, now time.Time) {
	u.Status = to
	u.HoldToken = ""
	u.HeldBy = ""
	u.HoldExpiresAt = nil
	u.UpdatedAt = now
}

// SortUnits orders units by start time (untimed first), then id.
func SortUnits(units []model.BookableUnit) {
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i].StartTime, units[j].StartTime
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return units[i].ID < units[j].ID
	})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneUnit(u model.BookableUnit) model.BookableUnit {
	u.StartTime = cloneTime(u.StartTime)
	u.EndTime = cloneTime(u.EndTime)
	u.HoldExpiresAt = cloneTime(u.HoldExpiresAt)
	if u.Capacity != nil {
		c := *u.Capacity
		u.Capacity = &c
	}
	return u
}

func cloneBooking(b model.Booking) model.Booking {
	b.UnitIDs = append([]string(nil), b.UnitIDs...)
	b.Participants = append([]model.Participant(nil), b.Participants...)
	b.Attachments = append([]model.AttachmentRef(nil), b.Attachments...)
	if b.Metadata != nil {
		m := make(map[string]string, len(b.Metadata))
		for k, v := range b.Metadata {
			m[k] = v
		}
		b.Metadata = m
	}
	b.CancelledAt = cloneTime(b.CancelledAt)
	return b
}
