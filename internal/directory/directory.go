// Package directory is the Resource Directory: events, presentation
// sessions and faculty availability blocks.  Publishing a resource
// materialises its bookable units in the ledger; afterwards the record is
// read-only to the reservation core.
package directory

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/campus-reservation/internal/model"
	"github.com/iliyamo/campus-reservation/internal/repository"
	"github.com/iliyamo/campus-reservation/internal/validation"
)

// Store is the part of the ledger the directory writes to.
type Store interface {
	CreateResource(ctx context.Context, res model.Resource, units []model.BookableUnit) error
	GetResource(ctx context.Context, id string) (*model.Resource, error)
}

// ErrInvalidResource wraps every rejection from Publish.
var ErrInvalidResource = errors.New("invalid resource")

type Directory struct {
	store Store
	cache *lru.Cache[string, model.Resource]
	clock clockwork.Clock
	loc   *time.Location
}

// New returns a Directory caching up to size resources.  Unit labels for
// slots are rendered in loc.
func New(store Store, size int, clock clockwork.Clock, loc *time.Location) (*Directory, error) {
	cache, err := lru.New[string, model.Resource](size)
	if err != nil {
		return nil, errors.Wrap(err, "directory cache")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Directory{store: store, cache: cache, clock: clock, loc: loc}, nil
}

// Publish validates res, generates its units and stores both.  It returns
// the stored resource and the generated units.
func (d *Directory) Publish(ctx context.Context, res model.Resource) (*model.Resource, []model.BookableUnit, error) {
	res.ID = strings.TrimSpace(res.ID)
	res.Name = strings.TrimSpace(res.Name)
	res.StartTime = res.StartTime.UTC()
	res.EndTime = res.EndTime.UTC()
	if err := check(res); err != nil {
		return nil, nil, err
	}
	now := d.clock.Now().UTC()
	res.CreatedAt = now

	kind, _ := res.Kind.UnitKind()
	var units []model.BookableUnit
	if kind == model.KindSeat {
		units = seatGrid(res, now)
	} else {
		units = slots(res, kind, d.loc, now)
	}
	if len(units) == 0 {
		return nil, nil, errors.Wrap(ErrInvalidResource, "window shorter than one slot")
	}
	if err := d.store.CreateResource(ctx, res, units); err != nil {
		return nil, nil, err
	}
	d.cache.Add(res.ID, res)
	log.WithFields(log.Fields{"resource": res.ID, "kind": res.Kind, "units": len(units)}).Info("resource published")
	return &res, units, nil
}

// Get returns a resource, serving repeated reads from the LRU.
func (d *Directory) Get(ctx context.Context, id string) (*model.Resource, error) {
	if r, ok := d.cache.Get(id); ok {
		return &r, nil
	}
	r, err := d.store.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Add(id, *r)
	return r, nil
}

// SeatUnitID resolves a seat label such as "C7" (case-insensitive) on an
// event to its unit id.  Labels outside the event's grid are not found.
func (d *Directory) SeatUnitID(ctx context.Context, resourceID, label string) (string, error) {
	res, err := d.Get(ctx, resourceID)
	if err != nil {
		return "", err
	}
	if kind, _ := res.Kind.UnitKind(); kind != model.KindSeat {
		return "", errors.Wrapf(ErrInvalidResource, "%s has no seats", resourceID)
	}
	row, n, ok := SeatLabel(label)
	if !ok {
		return "", errors.Wrapf(ErrInvalidResource, "bad seat label %q", label)
	}
	if row >= res.SeatRows || n > res.SeatCols {
		return "", errors.Wrapf(repository.ErrNotFound, "seat %s", label)
	}
	return res.ID + "-" + seatLabel(row, n), nil
}

func check(res model.Resource) error {
	var v validation.Violations
	if res.ID == "" {
		v = append(v, validation.Violation{Field: "id", Kind: validation.Required})
	}
	if res.Name == "" {
		v = append(v, validation.Violation{Field: "name", Kind: validation.Required})
	}
	kind, ok := res.Kind.UnitKind()
	if !ok {
		v = append(v, validation.Violation{Field: "kind", Kind: validation.Invalid})
	}
	if res.StartTime.IsZero() {
		v = append(v, validation.Violation{Field: "startTime", Kind: validation.Required})
	}
	if !res.EndTime.After(res.StartTime) {
		v = append(v, validation.Violation{Field: "endTime", Kind: validation.Invalid})
	}
	switch {
	case !ok:
	case kind == model.KindSeat:
		if res.SeatRows < 1 || res.SeatRows > maxSeatRows {
			v = append(v, validation.Violation{Field: "seatRows", Kind: validation.Invalid})
		}
		if res.SeatCols < 1 || res.SeatCols > maxSeatCols {
			v = append(v, validation.Violation{Field: "seatCols", Kind: validation.Invalid})
		} else if res.SeatRows >= 1 && res.SeatRows <= maxSeatRows && res.SeatRows*res.SeatCols > maxUnits {
			v = append(v, validation.Violation{Field: "units", Kind: validation.Invalid})
		}
	default:
		if res.SlotMinutes < 1 || res.SlotMinutes > maxSlotMinutes {
			v = append(v, validation.Violation{Field: "slotMinutes", Kind: validation.Invalid})
		} else if slotCount(res) > maxUnits {
			v = append(v, validation.Violation{Field: "units", Kind: validation.Invalid})
		}
		if res.MinParticipants < 0 || (res.MaxParticipants > 0 && res.MaxParticipants < res.MinParticipants) {
			v = append(v, validation.Violation{Field: "maxParticipants", Kind: validation.Invalid})
		}
	}
	if len(v) > 0 {
		return errors.Wrap(ErrInvalidResource, v.Error())
	}
	return nil
}
