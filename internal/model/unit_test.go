package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]UnitStatus{
		{StatusAvailable, StatusHeld},
		{StatusHeld, StatusBooked},
		{StatusHeld, StatusAvailable},
		{StatusBooked, StatusCancelled},
		{StatusCancelled, StatusAvailable},
	}
	all := []UnitStatus{StatusAvailable, StatusHeld, StatusBooked, StatusCancelled}
	isLegal := func(from, to UnitStatus) bool {
		for _, l := range legal {
			if l[0] == from && l[1] == to {
				return true
			}
		}
		return false
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, isLegal(from, to), CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestHoldExpired(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	assert.True(t, BookableUnit{Status: StatusHeld, HoldExpiresAt: &past}.HoldExpired(now))
	assert.True(t, BookableUnit{Status: StatusHeld, HoldExpiresAt: &now}.HoldExpired(now))
	assert.False(t, BookableUnit{Status: StatusHeld, HoldExpiresAt: &future}.HoldExpired(now))
	assert.False(t, BookableUnit{Status: StatusBooked, HoldExpiresAt: &past}.HoldExpired(now))
}

func TestElapsed(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, BookableUnit{StartTime: &past}.Elapsed(now))
	assert.False(t, BookableUnit{StartTime: &future}.Elapsed(now))
	assert.False(t, BookableUnit{}.Elapsed(now))
}

func TestResourceUnitKind(t *testing.T) {
	k, ok := ResourceEvent.UnitKind()
	assert.True(t, ok)
	assert.Equal(t, KindSeat, k)

	_, ok = ResourceKind("concert").UnitKind()
	assert.False(t, ok)
}
