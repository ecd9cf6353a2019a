package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-reservation/internal/model"
)

var t0 = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	start := t0.Add(48 * time.Hour)
	past := t0.Add(-time.Hour)
	units := []model.BookableUnit{
		{ID: "seat-C7", Kind: model.KindSeat, OwnerResourceID: "ev-1", Status: model.StatusAvailable, StartTime: &start},
		{ID: "seat-C8", Kind: model.KindSeat, OwnerResourceID: "ev-1", Status: model.StatusAvailable, StartTime: &start},
		{ID: "seat-A1", Kind: model.KindSeat, OwnerResourceID: "ev-1", Status: model.StatusAvailable, StartTime: &past},
	}
	require.NoError(t, s.CreateResource(context.Background(), model.Resource{ID: "ev-1", Kind: model.ResourceEvent}, units))
	return s
}

func TestMemoryHoldIsExclusive(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	exp := t0.Add(2 * time.Minute)

	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok-a", "u-1", exp, t0))
	assert.ErrorIs(t, s.HoldUnit(ctx, "seat-C7", "tok-b", "u-2", exp, t0), ErrUnitUnavailable)
	assert.ErrorIs(t, s.HoldUnit(ctx, "nope", "tok-b", "u-2", exp, t0), ErrNotFound)
	// Repeating a hold under its own token is a no-op success.
	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok-a", "u-1", exp, t0))

	// A lapsed hold can be taken over without a sweep.
	later := exp.Add(time.Second)
	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok-b", "u-2", later.Add(time.Minute), later))
	u, err := s.GetUnit(ctx, "seat-C7")
	require.NoError(t, err)
	assert.Equal(t, "tok-b", u.HoldToken)
}

func TestMemoryConcurrentHoldsOneWinner(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	exp := t0.Add(time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.HoldUnit(ctx, "seat-C8", fmt.Sprintf("tok-%d", i), "u", exp, t0) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryCreateIsAllOrNothing(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	exp := t0.Add(time.Minute)
	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok", "u-1", exp, t0))

	// seat-C8 is not held under tok.
	b := &model.Booking{ID: "b-1", UnitIDs: []string{"seat-C7", "seat-C8"}, RequesterID: "u-1", Status: model.BookingConfirmed, CreatedAt: t0}
	assert.ErrorIs(t, s.Create(ctx, b, "tok", t0), ErrHoldLost)

	u, _ := s.GetUnit(ctx, "seat-C7")
	assert.Equal(t, model.StatusHeld, u.Status)
	_, err := s.Get(ctx, "b-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCreateRejectsExpiredHold(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	exp := t0.Add(time.Minute)
	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok", "u-1", exp, t0))

	b := &model.Booking{ID: "b-1", UnitIDs: []string{"seat-C7"}, RequesterID: "u-1", Status: model.BookingConfirmed, CreatedAt: exp}
	assert.ErrorIs(t, s.Create(ctx, b, "tok", exp), ErrHoldLost)
}

func TestMemoryBookingLifecycle(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	exp := t0.Add(time.Minute)
	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok", "u-1", exp, t0))

	b := &model.Booking{ID: "b-1", UnitIDs: []string{"seat-C7"}, RequesterID: "u-1", Status: model.BookingConfirmed, CreatedAt: t0}
	require.NoError(t, s.Create(ctx, b, "tok", t0))

	u, _ := s.GetUnit(ctx, "seat-C7")
	assert.Equal(t, model.StatusBooked, u.Status)
	assert.Empty(t, u.HoldToken)

	got, err := s.FindByUnit(ctx, "seat-C7")
	require.NoError(t, err)
	assert.Equal(t, "b-1", got.ID)

	mine, err := s.FindByRequester(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	cancelled, err := s.Cancel(ctx, "b-1", t0)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	u, _ = s.GetUnit(ctx, "seat-C7")
	assert.Equal(t, model.StatusAvailable, u.Status)
	_, err = s.FindByUnit(ctx, "seat-C7")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Cancel(ctx, "b-1", t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCancelElapsedUnitStaysInert(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	require.NoError(t, s.HoldUnit(ctx, "seat-A1", "tok", "u-1", t0.Add(time.Minute), t0))
	b := &model.Booking{ID: "b-2", UnitIDs: []string{"seat-A1"}, RequesterID: "u-1", Status: model.BookingConfirmed, CreatedAt: t0}
	require.NoError(t, s.Create(ctx, b, "tok", t0))

	_, err := s.Cancel(ctx, "b-2", t0)
	require.NoError(t, err)
	u, _ := s.GetUnit(ctx, "seat-A1")
	assert.Equal(t, model.StatusCancelled, u.Status)
	assert.ErrorIs(t, s.HoldUnit(ctx, "seat-A1", "tok-2", "u-2", t0.Add(time.Minute), t0), ErrUnitUnavailable)
}

func TestMemoryDuplicateBooking(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok", "u-1", t0.Add(time.Minute), t0))
	require.NoError(t, s.Create(ctx, &model.Booking{ID: "b-1", UnitIDs: []string{"seat-C7"}, Status: model.BookingConfirmed}, "tok", t0))

	err := s.Create(ctx, &model.Booking{ID: "b-2", UnitIDs: []string{"seat-C7"}, Status: model.BookingConfirmed}, "tok", t0)
	assert.ErrorIs(t, err, ErrDuplicateBooking)
}

func TestMemoryExpireHolds(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok", "u-1", t0.Add(time.Minute), t0))
	require.NoError(t, s.HoldUnit(ctx, "seat-C8", "tok", "u-1", t0.Add(time.Hour), t0))

	ids, err := s.ExpireHolds(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"seat-C7"}, ids)

	held, err := s.HeldUnits(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "seat-C8", held[0].ID)
}

func TestMemoryReleaseHoldIgnoresForeignToken(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	require.NoError(t, s.HoldUnit(ctx, "seat-C7", "tok", "u-1", t0.Add(time.Minute), t0))

	require.NoError(t, s.ReleaseHold(ctx, "seat-C7", "other"))
	u, _ := s.GetUnit(ctx, "seat-C7")
	assert.Equal(t, model.StatusHeld, u.Status)

	require.NoError(t, s.ReleaseHold(ctx, "seat-C7", "tok"))
	u, _ = s.GetUnit(ctx, "seat-C7")
	assert.Equal(t, model.StatusAvailable, u.Status)
}

func TestMemoryListUnitsFilterAndOrder(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	all, err := s.ListUnits(ctx, "ev-1", UnitFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"seat-A1", "seat-C7", "seat-C8"}, []string{all[0].ID, all[1].ID, all[2].ID})

	from := t0
	upcoming, err := s.ListUnits(ctx, "ev-1", UnitFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, upcoming, 2)
}

func TestMemoryCreateResourceConflict(t *testing.T) {
	s := seedStore(t)
	err := s.CreateResource(context.Background(), model.Resource{ID: "ev-1"}, nil)
	assert.ErrorIs(t, err, ErrConflict)

	err = s.CreateResource(context.Background(), model.Resource{ID: "ev-2"}, []model.BookableUnit{{ID: "seat-C7"}})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = s.GetResource(context.Background(), "ev-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := seedStore(t)
	u, err := s.GetUnit(context.Background(), "seat-C7")
	require.NoError(t, err)
	u.Status = model.StatusBooked
	again, _ := s.GetUnit(context.Background(), "seat-C7")
	assert.Equal(t, model.StatusAvailable, again.Status)
}
