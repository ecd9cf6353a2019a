package directory

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-reservation/internal/model"
	"github.com/iliyamo/campus-reservation/internal/repository"
)

var published = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func TestRowLabels(t *testing.T) {
	for i, want := range map[int]string{0: "A", 2: "C", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ"} {
		assert.Equal(t, want, indexToRowLabel(i))
		got, ok := rowLabelToIndex(want)
		assert.True(t, ok)
		assert.Equal(t, i, got)
	}
	_, ok := rowLabelToIndex("A1")
	assert.False(t, ok)

	row, n, ok := SeatLabel("C7")
	require.True(t, ok)
	assert.Equal(t, 2, row)
	assert.Equal(t, 7, n)
	_, _, ok = SeatLabel("7")
	assert.False(t, ok)
}

type countingStore struct {
	*repository.MemoryStore
	gets int
}

func (c *countingStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	c.gets++
	return c.MemoryStore.GetResource(ctx, id)
}

func newDirectory(t *testing.T) (*Directory, *countingStore) {
	t.Helper()
	store := &countingStore{MemoryStore: repository.NewMemoryStore()}
	d, err := New(store, 2, clockwork.NewFakeClockAt(published), time.UTC)
	require.NoError(t, err)
	return d, store
}

func TestPublishEventSeatsInheritTimes(t *testing.T) {
	d, store := newDirectory(t)
	start := time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC)
	res, units, err := d.Publish(context.Background(), model.Resource{
		ID: "gala", Kind: model.ResourceEvent, Name: "Winter gala", Venue: "Main hall",
		StartTime: start, EndTime: start.Add(3 * time.Hour), SeatRows: 3, SeatCols: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, published, res.CreatedAt)
	require.Len(t, units, 24)

	c7, err := store.GetUnit(context.Background(), "gala-C7")
	require.NoError(t, err)
	assert.Equal(t, "C7", c7.Label)
	assert.Equal(t, model.KindSeat, c7.Kind)
	assert.Equal(t, model.StatusAvailable, c7.Status)
	assert.True(t, c7.StartTime.Equal(start))
	assert.Nil(t, c7.Capacity)
}

func TestPublishSessionSlots(t *testing.T) {
	d, _ := newDirectory(t)
	start := time.Date(2026, 10, 22, 9, 0, 0, 0, time.UTC)
	_, units, err := d.Publish(context.Background(), model.Resource{
		ID: "capstone", Kind: model.ResourcePresentationSession, Name: "Capstone demos",
		StartTime: start, EndTime: start.Add(100 * time.Minute), SlotMinutes: 30,
		MinParticipants: 2, MaxParticipants: 4,
	})
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "capstone-202610220900", units[0].ID)
	assert.Equal(t, "10:00", units[2].Label)
	require.NotNil(t, units[1].Capacity)
	assert.Equal(t, 4, units[1].Capacity.MaxParticipants)
	assert.Equal(t, model.KindPresentationSlot, units[1].Kind)
}

func TestPublishFacultyWindows(t *testing.T) {
	d, _ := newDirectory(t)
	start := time.Date(2026, 10, 21, 14, 0, 0, 0, time.UTC)
	_, units, err := d.Publish(context.Background(), model.Resource{
		ID: "prof-lee", Kind: model.ResourceFaculty, Name: "Office hours",
		StartTime: start, EndTime: start.Add(time.Hour), SlotMinutes: 20,
	})
	require.NoError(t, err)
	require.Len(t, units, 3)
	for _, u := range units {
		assert.Equal(t, model.KindAppointmentWindow, u.Kind)
		assert.Nil(t, u.Capacity)
	}
}

func TestPublishRejectsBadResources(t *testing.T) {
	d, _ := newDirectory(t)
	start := time.Date(2026, 10, 21, 14, 0, 0, 0, time.UTC)
	for name, res := range map[string]model.Resource{
		"unknown kind": {ID: "x", Name: "x", Kind: "concert", StartTime: start, EndTime: start.Add(time.Hour)},
		"no seats":     {ID: "x", Name: "x", Kind: model.ResourceEvent, StartTime: start, EndTime: start.Add(time.Hour)},
		"ends first":   {ID: "x", Name: "x", Kind: model.ResourceFaculty, StartTime: start, EndTime: start, SlotMinutes: 10},
		"too short":    {ID: "x", Name: "x", Kind: model.ResourceFaculty, StartTime: start, EndTime: start.Add(5 * time.Minute), SlotMinutes: 10},
		"team bounds":  {ID: "x", Name: "x", Kind: model.ResourcePresentationSession, StartTime: start, EndTime: start.Add(time.Hour), SlotMinutes: 10, MinParticipants: 4, MaxParticipants: 2},
	} {
		_, _, err := d.Publish(context.Background(), res)
		assert.ErrorIs(t, err, ErrInvalidResource, name)
	}
}

func TestPublishTwiceConflicts(t *testing.T) {
	d, _ := newDirectory(t)
	start := time.Date(2026, 10, 21, 14, 0, 0, 0, time.UTC)
	res := model.Resource{ID: "prof-lee", Kind: model.ResourceFaculty, Name: "Office hours", StartTime: start, EndTime: start.Add(time.Hour), SlotMinutes: 30}
	_, _, err := d.Publish(context.Background(), res)
	require.NoError(t, err)
	_, _, err = d.Publish(context.Background(), res)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestGetIsCached(t *testing.T) {
	d, store := newDirectory(t)
	ctx := context.Background()
	require.NoError(t, store.CreateResource(ctx, model.Resource{ID: "r-1", Name: "one"}, nil))

	for i := 0; i < 3; i++ {
		r, err := d.Get(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, "one", r.Name)
	}
	assert.Equal(t, 1, store.gets)

	_, err := d.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSeatUnitID(t *testing.T) {
	d, _ := newDirectory(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC)
	_, _, err := d.Publish(ctx, model.Resource{
		ID: "gala", Kind: model.ResourceEvent, Name: "Winter gala",
		StartTime: start, EndTime: start.Add(3 * time.Hour), SeatRows: 3, SeatCols: 8,
	})
	require.NoError(t, err)

	id, err := d.SeatUnitID(ctx, "gala", "c7")
	require.NoError(t, err)
	assert.Equal(t, "gala-C7", id)

	_, err = d.SeatUnitID(ctx, "gala", "D1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = d.SeatUnitID(ctx, "gala", "A9")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = d.SeatUnitID(ctx, "gala", "9")
	assert.ErrorIs(t, err, ErrInvalidResource)
	_, err = d.SeatUnitID(ctx, "missing", "A1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, _, err = d.Publish(ctx, model.Resource{
		ID: "prof-lee", Kind: model.ResourceFaculty, Name: "Office hours",
		StartTime: start, EndTime: start.Add(time.Hour), SlotMinutes: 30,
	})
	require.NoError(t, err)
	_, err = d.SeatUnitID(ctx, "prof-lee", "A1")
	assert.ErrorIs(t, err, ErrInvalidResource)
}

func TestPublishUnitLimits(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)
	seats := func(rows, cols int) model.Resource {
		return model.Resource{ID: "hall", Kind: model.ResourceEvent, Name: "Hall", StartTime: start, EndTime: start.Add(time.Hour), SeatRows: rows, SeatCols: cols}
	}
	windows := func(minutes int, span time.Duration) model.Resource {
		return model.Resource{ID: "prof", Kind: model.ResourceFaculty, Name: "Office hours", StartTime: start, EndTime: start.Add(span), SlotMinutes: minutes}
	}

	for name, res := range map[string]model.Resource{
		"huge seat columns":  seats(1, 1<<62),
		"columns over limit": seats(1, maxSeatCols+1),
		"grid over limit":    seats(100, 101),
		"slot over a day":    windows(maxSlotMinutes+1, 48*time.Hour),
		"huge slot length":   windows(1<<62, time.Hour),
		"two years of slots": windows(1, 2*365*24*time.Hour),
	} {
		d, _ := newDirectory(t)
		assert.NotPanics(t, func() {
			_, _, err := d.Publish(ctx, res)
			assert.ErrorIs(t, err, ErrInvalidResource, name)
		}, name)
	}

	d, _ := newDirectory(t)
	_, units, err := d.Publish(ctx, seats(100, 100))
	require.NoError(t, err)
	assert.Len(t, units, maxUnits)

	d, _ = newDirectory(t)
	_, units, err = d.Publish(ctx, windows(1, maxUnits*time.Minute))
	require.NoError(t, err)
	assert.Len(t, units, maxUnits)
}
