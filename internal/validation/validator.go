// Package validation implements the constraint checks a booking request must
// pass before any allocation is attempted.  The validator is pure: it never
// reads the clock or the store, so the same input always produces the same
// violations in the same order.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/campus-reservation/internal/model"
)

// ErrorKind names the rule a request field violated.
type ErrorKind string

const (
	Required              ErrorKind = "Required"
	Invalid               ErrorKind = "Invalid"
	OutOfHours            ErrorKind = "OutOfHours"
	PastDate              ErrorKind = "PastDate"
	TeamSizeViolation     ErrorKind = "TeamSizeViolation"
	IncompleteParticipant ErrorKind = "IncompleteParticipant"
	DuplicateAlternative  ErrorKind = "DuplicateAlternative"
	LengthViolation       ErrorKind = "LengthViolation"
)

// Violation addresses a single failed rule to a request field.
type Violation struct {
	Field string    `json:"field"`
	Kind  ErrorKind `json:"kind"`
}

func (v Violation) String() string { return v.Field + ": " + string(v.Kind) }

// Violations is the full, ordered result of validating one request.  An
// empty list means the request is valid.
type Violations []Violation

// Valid reports whether no rule was violated.
func (vs Violations) Valid() bool { return len(vs) == 0 }

// Has reports whether the list contains the given field/kind pair.
func (vs Violations) Has(field string, kind ErrorKind) bool {
	for _, v := range vs {
		if v.Field == field && v.Kind == kind {
			return true
		}
	}
	return false
}

// HasKind reports whether any violation is of the given kind.
func (vs Violations) HasKind(kind ErrorKind) bool {
	for _, v := range vs {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

func (vs Violations) Error() string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%d validation errors: %s", len(vs), strings.Join(parts, "; "))
}

// Rules configures the validator.  Times of day are offsets from local
// midnight in Location.
type Rules struct {
	OpenAt           time.Duration
	CloseAt          time.Duration
	Location         *time.Location
	MinChars         int
	MaxChars         int
	TextFields       []string
	RequiredMetadata map[model.UnitKind][]string
}

// DefaultRules mirrors the portal's booking forms: 09:00–17:00 business
// window, 20–200 character free text, team slots need a team name and
// project title, appointments need a reason.
func DefaultRules() Rules {
	return Rules{
		OpenAt:     9 * time.Hour,
		CloseAt:    17 * time.Hour,
		Location:   time.UTC,
		MinChars:   20,
		MaxChars:   200,
		TextFields: []string{"reason", "description", "projectDescription"},
		RequiredMetadata: map[model.UnitKind][]string{
			model.KindPresentationSlot:  {"teamName", "projectTitle"},
			model.KindAppointmentWindow: {"reason"},
		},
	}
}

// Validator checks booking requests against Rules.
type Validator struct {
	rules Rules
}

// New returns a Validator for the given rules.  A nil Location means UTC.
func New(rules Rules) *Validator {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	return &Validator{rules: rules}
}

// Rules returns the rules the validator was built with.
func (v *Validator) Rules() Rules { return v.rules }

// target is a requested unit together with its position in the request.
type target struct {
	index int
	unit  model.BookableUnit
}

func unitField(i int) string { return fmt.Sprintf("unitIds[%d]", i) }

// Validate runs every rule against req.  units are the catalog entries the
// request targets (missing ones are simply not checked; resolving ids is the
// caller's job) and now anchors the past-date rule.  All rules are evaluated
// and every violation is returned, in rule order.
func (v *Validator) Validate(req model.BookingRequest, units []model.BookableUnit, now time.Time) Violations {
	byID := make(map[string]model.BookableUnit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	var targets []target
	seen := make(map[string]bool, len(req.UnitIDs))
	for i, id := range req.UnitIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := byID[id]; ok {
			targets = append(targets, target{index: i, unit: u})
		}
	}
	appointment := false
	for _, t := range targets {
		if t.unit.Kind == model.KindAppointmentWindow {
			appointment = true
		}
	}

	var out Violations
	out = append(out, v.checkRequired(req, targets, appointment)...)
	out = append(out, v.checkHours(req, targets, appointment)...)
	out = append(out, v.checkPastDates(req, targets, appointment, now)...)
	out = append(out, checkTeamSize(req, targets)...)
	out = append(out, checkParticipants(req)...)
	if appointment {
		out = append(out, checkAlternatives(req)...)
	}
	out = append(out, v.checkLengths(req)...)
	return out
}

func (v *Validator) checkRequired(req model.BookingRequest, targets []target, appointment bool) Violations {
	var out Violations
	if strings.TrimSpace(req.RequesterID) == "" {
		out = append(out, Violation{"requesterId", Required})
	}
	if len(req.UnitIDs) == 0 {
		out = append(out, Violation{"unitIds", Required})
	}
	seen := make(map[string]bool, len(req.UnitIDs))
	for i, id := range req.UnitIDs {
		switch {
		case strings.TrimSpace(id) == "":
			out = append(out, Violation{unitField(i), Required})
		case seen[id]:
			out = append(out, Violation{unitField(i), Invalid})
		}
		seen[id] = true
	}

	kinds := make(map[model.UnitKind]bool)
	needsParticipants := false
	for _, t := range targets {
		if !t.unit.Kind.Valid() {
			out = append(out, Violation{unitField(t.index), Invalid})
			continue
		}
		kinds[t.unit.Kind] = true
		if t.unit.Kind != model.KindSeat {
			needsParticipants = true
		}
	}
	if needsParticipants && len(req.Participants) == 0 {
		out = append(out, Violation{"participants", Required})
	}

	var fields []string
	for kind := range kinds {
		fields = append(fields, v.rules.RequiredMetadata[kind]...)
	}
	sort.Strings(fields)
	for i, f := range fields {
		if i > 0 && fields[i-1] == f {
			continue
		}
		if strings.TrimSpace(req.Metadata[f]) == "" {
			out = append(out, Violation{"metadata." + f, Required})
		}
	}

	if appointment {
		for i, alt := range req.Alternatives {
			field := fmt.Sprintf("alternatives[%d]", i)
			switch {
			case alt.Start.IsZero():
				out = append(out, Violation{field, Required})
			case !alt.End.IsZero() && !alt.End.After(alt.Start):
				out = append(out, Violation{field, Invalid})
			}
		}
	}
	return out
}

func (v *Validator) withinHours(t time.Time) bool {
	local := t.In(v.rules.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, v.rules.Location)
	offset := local.Sub(midnight)
	return offset >= v.rules.OpenAt && offset < v.rules.CloseAt
}

func (v *Validator) checkHours(req model.BookingRequest, targets []target, appointment bool) Violations {
	var out Violations
	for _, t := range targets {
		if !t.unit.Kind.TimeBound() || t.unit.StartTime == nil {
			continue
		}
		if !v.withinHours(*t.unit.StartTime) {
			out = append(out, Violation{unitField(t.index), OutOfHours})
		}
	}
	if appointment {
		for i, alt := range req.Alternatives {
			if alt.Start.IsZero() {
				continue
			}
			if !v.withinHours(alt.Start) {
				out = append(out, Violation{fmt.Sprintf("alternatives[%d]", i), OutOfHours})
			}
		}
	}
	return out
}

// beforeDay reports whether t falls on a calendar day earlier than now's.
func (v *Validator) beforeDay(t, now time.Time) bool {
	day := func(x time.Time) time.Time {
		l := x.In(v.rules.Location)
		return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, v.rules.Location)
	}
	return day(t).Before(day(now))
}

func (v *Validator) checkPastDates(req model.BookingRequest, targets []target, appointment bool, now time.Time) Violations {
	var out Violations
	for _, t := range targets {
		if t.unit.StartTime == nil {
			continue
		}
		if v.beforeDay(*t.unit.StartTime, now) {
			out = append(out, Violation{unitField(t.index), PastDate})
		}
	}
	if appointment {
		for i, alt := range req.Alternatives {
			if alt.Start.IsZero() {
				continue
			}
			if v.beforeDay(alt.Start, now) {
				out = append(out, Violation{fmt.Sprintf("alternatives[%d]", i), PastDate})
			}
		}
	}
	return out
}

func checkTeamSize(req model.BookingRequest, targets []target) Violations {
	n := len(req.Participants)
	for _, t := range targets {
		c := t.unit.Capacity
		if c == nil {
			continue
		}
		if n < c.MinParticipants || (c.MaxParticipants > 0 && n > c.MaxParticipants) {
			return Violations{{"participants", TeamSizeViolation}}
		}
	}
	return nil
}

func checkParticipants(req model.BookingRequest) Violations {
	var out Violations
	for i, p := range req.Participants {
		blank := func(s string) bool { return strings.TrimSpace(s) == "" }
		if blank(p.Name) || blank(p.Affiliation) || (blank(p.ContactEmail) && blank(p.ExternalID)) {
			out = append(out, Violation{fmt.Sprintf("participants[%d]", i), IncompleteParticipant})
		}
	}
	return out
}

func checkAlternatives(req model.BookingRequest) Violations {
	var out Violations
	for j := 1; j < len(req.Alternatives); j++ {
		for i := 0; i < j; i++ {
			a, b := req.Alternatives[i], req.Alternatives[j]
			if a.Start.IsZero() || b.Start.IsZero() {
				continue
			}
			if a.Start.Equal(b.Start) && a.End.Equal(b.End) {
				out = append(out, Violation{fmt.Sprintf("alternatives[%d]", j), DuplicateAlternative})
				break
			}
		}
	}
	return out
}

func (v *Validator) checkLengths(req model.BookingRequest) Violations {
	var out Violations
	for _, f := range v.rules.TextFields {
		val := strings.TrimSpace(req.Metadata[f])
		if val == "" {
			continue
		}
		n := utf8.RuneCountInString(val)
		if n < v.rules.MinChars || (v.rules.MaxChars > 0 && n > v.rules.MaxChars) {
			out = append(out, Violation{"metadata." + f, LengthViolation})
		}
	}
	return out
}
