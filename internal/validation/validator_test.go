package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-reservation/internal/model"
)

var now = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func at(day, hour, minute int) *time.Time {
	t := time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
	return &t
}

func alice() model.Participant {
	return model.Participant{Name: "Alice", ContactEmail: "alice@uni.example", Affiliation: "CS"}
}

func team(n int) []model.Participant {
	out := make([]model.Participant, n)
	for i := range out {
		out[i] = alice()
	}
	return out
}

func seat() model.BookableUnit {
	return model.BookableUnit{ID: "seat-C7", Kind: model.KindSeat, OwnerResourceID: "ev-1", StartTime: at(20, 19, 0)}
}

func slot() model.BookableUnit {
	return model.BookableUnit{
		ID: "slot-1", Kind: model.KindPresentationSlot, OwnerResourceID: "sess-1",
		StartTime: at(20, 10, 0), EndTime: at(20, 10, 30),
		Capacity: &model.CapacityConstraints{MinParticipants: 2, MaxParticipants: 4},
	}
}

func window() model.BookableUnit {
	return model.BookableUnit{
		ID: "appt-1", Kind: model.KindAppointmentWindow, OwnerResourceID: "fac-1",
		StartTime: at(16, 14, 0), EndTime: at(16, 14, 30),
	}
}

func slotRequest(n int) model.BookingRequest {
	return model.BookingRequest{
		RequesterID:  "u-1",
		UnitIDs:      []string{"slot-1"},
		Participants: team(n),
		Metadata: map[string]string{
			"teamName":           "Rustaceans",
			"projectTitle":       "Campus map",
			"projectDescription": "An indoor routing layer for the campus map.",
		},
	}
}

func TestSeatRequestValid(t *testing.T) {
	v := New(DefaultRules())
	req := model.BookingRequest{RequesterID: "u-1", UnitIDs: []string{"seat-C7"}, Participants: team(1)}
	assert.Empty(t, v.Validate(req, []model.BookableUnit{seat()}, now))
}

func TestTeamSizeBoundary(t *testing.T) {
	v := New(DefaultRules())
	for _, tc := range []struct {
		size  int
		valid bool
	}{
		{1, false}, {2, true}, {3, true}, {4, true}, {5, false},
	} {
		got := v.Validate(slotRequest(tc.size), []model.BookableUnit{slot()}, now)
		assert.Equal(t, !tc.valid, got.Has("participants", TeamSizeViolation), "team size %d", tc.size)
		if tc.valid {
			assert.Empty(t, got, "team size %d", tc.size)
		}
	}
}

func TestPastDateRejectedRegardlessOfOtherFields(t *testing.T) {
	v := New(DefaultRules())
	u := slot()
	u.StartTime = at(14, 10, 0) // yesterday
	got := v.Validate(slotRequest(3), []model.BookableUnit{u}, now)
	require.Len(t, got, 1)
	assert.Equal(t, Violation{"unitIds[0]", PastDate}, got[0])

	// Earlier the same day is not a past date at day granularity.
	u.StartTime = at(15, 9, 0)
	later := now.Add(6 * time.Hour)
	assert.False(t, v.Validate(slotRequest(3), []model.BookableUnit{u}, later).HasKind(PastDate))
}

func TestOutOfHours(t *testing.T) {
	v := New(DefaultRules())
	for _, tc := range []struct {
		start *time.Time
		out   bool
	}{
		{at(20, 8, 59), true},
		{at(20, 9, 0), false},
		{at(20, 16, 59), false},
		{at(20, 17, 0), true},
	} {
		u := slot()
		u.StartTime = tc.start
		got := v.Validate(slotRequest(2), []model.BookableUnit{u}, now)
		assert.Equal(t, tc.out, got.Has("unitIds[0]", OutOfHours), "start %s", tc.start)
	}

	// Seats inherit event times and are exempt from the window.
	s := seat()
	s.StartTime = at(20, 21, 0)
	req := model.BookingRequest{RequesterID: "u-1", UnitIDs: []string{"seat-C7"}}
	assert.False(t, v.Validate(req, []model.BookableUnit{s}, now).HasKind(OutOfHours))
}

func TestOutOfHoursHonoursLocation(t *testing.T) {
	rules := DefaultRules()
	rules.Location = time.FixedZone("UTC+3", 3*60*60)
	v := New(rules)
	u := slot()
	u.StartTime = at(20, 7, 0) // 10:00 local
	assert.False(t, v.Validate(slotRequest(2), []model.BookableUnit{u}, now).HasKind(OutOfHours))
}

func TestAllViolationsReportedInRuleOrder(t *testing.T) {
	v := New(DefaultRules())
	u := slot()
	u.StartTime = at(10, 18, 0)
	req := model.BookingRequest{
		UnitIDs:      []string{"slot-1"},
		Participants: []model.Participant{{Name: "Bob"}},
		Metadata:     map[string]string{"projectDescription": "too short"},
	}
	got := v.Validate(req, []model.BookableUnit{u}, now)
	assert.Equal(t, Violations{
		{"requesterId", Required},
		{"metadata.projectTitle", Required},
		{"metadata.teamName", Required},
		{"unitIds[0]", OutOfHours},
		{"unitIds[0]", PastDate},
		{"participants", TeamSizeViolation},
		{"participants[0]", IncompleteParticipant},
		{"metadata.projectDescription", LengthViolation},
	}, got)
}

func TestRequiredFields(t *testing.T) {
	v := New(DefaultRules())
	got := v.Validate(model.BookingRequest{}, nil, now)
	assert.Equal(t, Violations{{"requesterId", Required}, {"unitIds", Required}}, got)

	got = v.Validate(model.BookingRequest{RequesterID: "u", UnitIDs: []string{"seat-C7", "", "seat-C7"}},
		[]model.BookableUnit{seat()}, now)
	assert.True(t, got.Has("unitIds[1]", Required))
	assert.True(t, got.Has("unitIds[2]", Invalid))
}

func TestParticipantCompleteness(t *testing.T) {
	v := New(DefaultRules())
	req := model.BookingRequest{
		RequesterID: "u-1",
		UnitIDs:     []string{"seat-C7"},
		Participants: []model.Participant{
			{Name: "A", ExternalID: "s123", Affiliation: "EE"},
			{Name: "B", Affiliation: "EE"},
			{Name: "C", ContactEmail: "c@uni.example"},
			{ContactEmail: "d@uni.example", Affiliation: "EE"},
		},
	}
	got := v.Validate(req, []model.BookableUnit{seat()}, now)
	assert.Equal(t, Violations{
		{"participants[1]", IncompleteParticipant},
		{"participants[2]", IncompleteParticipant},
		{"participants[3]", IncompleteParticipant},
	}, got)
}

func appointmentRequest() model.BookingRequest {
	return model.BookingRequest{
		RequesterID:  "u-1",
		UnitIDs:      []string{"appt-1"},
		Participants: team(1),
		Metadata:     map[string]string{"reason": "Discuss thesis proposal and reading list."},
	}
}

func TestDuplicateAlternative(t *testing.T) {
	v := New(DefaultRules())
	req := appointmentRequest()
	alt := model.TimeProposal{Start: *at(17, 10, 0), End: *at(17, 10, 30)}
	req.Alternatives = []model.TimeProposal{alt, alt}
	got := v.Validate(req, []model.BookableUnit{window()}, now)
	assert.Equal(t, Violations{{"alternatives[1]", DuplicateAlternative}}, got)

	req.Alternatives[1] = model.TimeProposal{Start: *at(18, 11, 0), End: *at(18, 11, 30)}
	assert.Empty(t, v.Validate(req, []model.BookableUnit{window()}, now))
}

func TestAlternativesOnlyCheckedForAppointments(t *testing.T) {
	v := New(DefaultRules())
	alt := model.TimeProposal{Start: *at(17, 20, 0)}
	req := slotRequest(2)
	req.Alternatives = []model.TimeProposal{alt, alt}
	assert.Empty(t, v.Validate(req, []model.BookableUnit{slot()}, now))

	areq := appointmentRequest()
	areq.Alternatives = []model.TimeProposal{alt}
	assert.True(t, v.Validate(areq, []model.BookableUnit{window()}, now).Has("alternatives[0]", OutOfHours))
}

func TestLengthBounds(t *testing.T) {
	v := New(DefaultRules())
	for _, tc := range []struct {
		n     int
		valid bool
	}{
		{19, false}, {20, true}, {200, true}, {201, false},
	} {
		req := appointmentRequest()
		req.Metadata["reason"] = strings.Repeat("é", tc.n)
		got := v.Validate(req, []model.BookableUnit{window()}, now)
		assert.Equal(t, !tc.valid, got.Has("metadata.reason", LengthViolation), "length %d", tc.n)
	}
}

func TestValidatorIsDeterministic(t *testing.T) {
	v := New(DefaultRules())
	u := slot()
	u.StartTime = at(1, 6, 0)
	req := model.BookingRequest{
		UnitIDs:      []string{"slot-1", "appt-1"},
		Participants: []model.Participant{{Name: "x"}},
	}
	units := []model.BookableUnit{window(), u}
	first := v.Validate(req, units, now)
	require.NotEmpty(t, first)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, v.Validate(req, units, now))
	}
}
