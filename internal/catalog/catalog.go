// Package catalog is the read-only view of bookable units used for
// browsing.  It reads through to the ledger on every call and never
// mutates status; a hold that has lapsed is shown as available even
// before the sweeper reclaims it.
package catalog

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/iliyamo/campus-reservation/internal/model"
	"github.com/iliyamo/campus-reservation/internal/repository"
)

// Filter narrows a listing.  An empty Status matches every status.
type Filter struct {
	Status model.UnitStatus
	From   *time.Time
	To     *time.Time
}

// Reader is the subset of the ledger the catalog needs.
type Reader interface {
	GetUnit(ctx context.Context, id string) (*model.BookableUnit, error)
	ListUnits(ctx context.Context, resourceID string, f repository.UnitFilter) ([]model.BookableUnit, error)
}

type Catalog struct {
	store Reader
	clock clockwork.Clock
}

func New(store Reader, clock clockwork.Clock) *Catalog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Catalog{store: store, clock: clock}
}

// ListUnits returns the units of a resource as they currently present.
func (c *Catalog) ListUnits(ctx context.Context, resourceID string, f Filter) ([]model.BookableUnit, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.Errorf("unknown status %q", f.Status)
	}
	units, err := c.store.ListUnits(ctx, resourceID, repository.UnitFilter{From: f.From, To: f.To})
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	out := make([]model.BookableUnit, 0, len(units))
	for _, u := range units {
		u = present(u, now)
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// GetUnit returns a single unit, or repository.ErrNotFound.
func (c *Catalog) GetUnit(ctx context.Context, unitID string) (*model.BookableUnit, error) {
	u, err := c.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	v := present(*u, c.clock.Now())
	return &v, nil
}

// GetUnits resolves ids in order, skipping unknown ones.
func (c *Catalog) GetUnits(ctx context.Context, ids []string) ([]model.BookableUnit, error) {
	out := make([]model.BookableUnit, 0, len(ids))
	for _, id := range ids {
		u, err := c.GetUnit(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func present(u model.BookableUnit, now time.Time) model.BookableUnit {
	if u.HoldExpired(now) {
		u.Status = model.StatusAvailable
		u.HoldToken = ""
		u.HeldBy = ""
		u.HoldExpiresAt = nil
	}
	return u
}
