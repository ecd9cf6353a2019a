package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/campus-reservation/internal/model"
)

const (
	// maxSeatRows is the last two-letter row label, ZZ.
	maxSeatRows = 26 + 26*26
	maxSeatCols = 500
	// maxSlotMinutes is one day.
	maxSlotMinutes = 24 * 60
	// maxUnits caps the units a single resource may materialise.
	maxUnits = 10000
)

// indexToRowLabel converts a zero-based index to an alphabetical row label
// like A, B, AA.
func indexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// rowLabelToIndex converts a row label like A or AA into its zero-based
// index.
func rowLabelToIndex(label string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return -1, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}

// SeatLabel splits a seat label such as "C7" into row index and seat number.
func SeatLabel(label string) (row, number int, ok bool) {
	i := strings.IndexFunc(label, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return 0, 0, false
	}
	row, ok = rowLabelToIndex(label[:i])
	if !ok {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(label[i:], "%d", &number); err != nil || number < 1 {
		return 0, 0, false
	}
	return row, number, true
}

func seatLabel(row, number int) string {
	return fmt.Sprintf("%s%d", indexToRowLabel(row), number)
}

// seatGrid lays out an event's seats row by row.  Every seat carries the
// event's start and end time.
func seatGrid(res model.Resource, at time.Time) []model.BookableUnit {
	units := make([]model.BookableUnit, 0, res.SeatRows*res.SeatCols)
	for r := 0; r < res.SeatRows; r++ {
		for n := 1; n <= res.SeatCols; n++ {
			start, end := res.StartTime, res.EndTime
			label := seatLabel(r, n)
			units = append(units, model.BookableUnit{
				ID:              res.ID + "-" + label,
				Kind:            model.KindSeat,
				OwnerResourceID: res.ID,
				Label:           label,
				Status:          model.StatusAvailable,
				StartTime:       &start,
				EndTime:         &end,
				UpdatedAt:       at,
			})
		}
	}
	return units
}

// slotCount is how many whole slots fit in the resource's window.
func slotCount(res model.Resource) int64 {
	step := time.Duration(res.SlotMinutes) * time.Minute
	if step <= 0 {
		return 0
	}
	return int64(res.EndTime.Sub(res.StartTime) / step)
}

// slots cuts [StartTime, EndTime) into SlotMinutes pieces.  A trailing piece
// shorter than a full slot is dropped.
func slots(res model.Resource, kind model.UnitKind, loc *time.Location, at time.Time) []model.BookableUnit {
	step := time.Duration(res.SlotMinutes) * time.Minute
	var capacity *model.CapacityConstraints
	if kind == model.KindPresentationSlot && (res.MinParticipants > 0 || res.MaxParticipants > 0) {
		capacity = &model.CapacityConstraints{MinParticipants: res.MinParticipants, MaxParticipants: res.MaxParticipants}
	}
	var units []model.BookableUnit
	for start := res.StartTime; !start.Add(step).After(res.EndTime); start = start.Add(step) {
		s, e := start, start.Add(step)
		label := s.In(loc).Format("15:04")
		u := model.BookableUnit{
			ID:              fmt.Sprintf("%s-%s", res.ID, s.In(loc).Format("200601021504")),
			Kind:            kind,
			OwnerResourceID: res.ID,
			Label:           label,
			Status:          model.StatusAvailable,
			StartTime:       &s,
			EndTime:         &e,
			UpdatedAt:       at,
		}
		if capacity != nil {
			c := *capacity
			u.Capacity = &c
		}
		units = append(units, u)
	}
	return units
}
