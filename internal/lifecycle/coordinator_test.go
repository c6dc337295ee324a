package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusevents/internal/auth"
	"campusevents/internal/event"
	"campusevents/internal/student"
)

func hash(p string) (string, error) { return "hashed:" + p, nil }

func verify(p, h string) bool { return "hashed:"+p == h }

func newCoordinator(t *testing.T) (*Coordinator, *student.Service, *event.Service) {
	t.Helper()
	students := student.NewService(student.NewMemoryStore(), hash, verify)
	events := event.NewService(event.NewMemoryStore())
	return New(students, events), students, events
}

var officer = auth.Claims{Subject: "2020-9999", Role: auth.RoleOfficer}

// Walks one student through the full progression: register, list the
// event as upcoming, get checked in by an officer, evaluate once.
func TestLifecycleProgression(t *testing.T) {
	ctx := context.Background()
	coord, students, events := newCoordinator(t)

	st, err := students.Register(ctx, "2021-0001", "Alice Reyes", "BSCS", "CCS", "secret")
	require.NoError(t, err)
	st, err = students.Login(ctx, "2021-0001", "secret")
	require.NoError(t, err)
	self := auth.Claims{Subject: st.StudentNumber, Role: st.Role}

	ev, err := events.Create(ctx, officer, event.Event{
		Title:    "Orientation",
		Date:     "2026-09-01",
		Time:     "10:00",
		Location: "Gym",
	})
	require.NoError(t, err)

	// Upcoming: the student-side entry carries the event's display fields.
	updated, err := coord.AddUpcoming(ctx, self, st.ID, ev.ID)
	require.NoError(t, err)
	require.Len(t, updated.UpcomingEvents, 1)
	assert.Equal(t, "Orientation", updated.UpcomingEvents[0].Title)
	assert.Equal(t, "Gym", updated.UpcomingEvents[0].Location)

	// Evaluating before attending stops before any write.
	_, err = coord.SubmitEvaluation(ctx, self, st.ID, ev.ID, event.EvaluationDetail{Comment: "early"})
	assert.ErrorIs(t, err, student.ErrNoEventRecords)

	// Officer checks the student in; both aggregates record it.
	updated, err = coord.CheckIn(ctx, officer, st.ID, ev.ID)
	require.NoError(t, err)
	require.Len(t, updated.EventRecords, 1)
	assert.True(t, updated.EventRecords[0].Attended)
	assert.False(t, updated.EventRecords[0].Evaluated)

	gotEv, err := events.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, gotEv.Attendances, 1)
	assert.Equal(t, "2021-0001", gotEv.Attendances[0].StudentNumber)

	// First evaluation succeeds and mirrors onto the event.
	updated, err = coord.SubmitEvaluation(ctx, self, st.ID, ev.ID, event.EvaluationDetail{Comment: "great"})
	require.NoError(t, err)
	assert.True(t, updated.EventRecords[0].Evaluated)

	gotEv, err = events.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, gotEv.Evaluations, 1)
	assert.Equal(t, "Alice Reyes", gotEv.Evaluations[0].StudentName)

	final, err := students.Get(ctx, self, st.ID)
	require.NoError(t, err)
	require.Len(t, final.RecentEvaluations, 1)
	assert.Equal(t, ev.ID, final.RecentEvaluations[0].EventID)

	// Second evaluation is rejected on the student side, before the event
	// aggregate is touched.
	_, err = coord.SubmitEvaluation(ctx, self, st.ID, ev.ID, event.EvaluationDetail{Comment: "again"})
	assert.ErrorIs(t, err, student.ErrAlreadyEvaluated)
}

func TestAddUpcomingUnknownEvent(t *testing.T) {
	ctx := context.Background()
	coord, students, _ := newCoordinator(t)

	st, err := students.Register(ctx, "2021-0001", "Alice", "", "", "secret")
	require.NoError(t, err)
	self := auth.Claims{Subject: st.StudentNumber, Role: auth.RoleStudent}

	_, err = coord.AddUpcoming(ctx, self, st.ID, "no-such-event")
	assert.ErrorIs(t, err, event.ErrNotFound)
}

func TestCheckInIsStaffOnly(t *testing.T) {
	ctx := context.Background()
	coord, students, events := newCoordinator(t)

	st, err := students.Register(ctx, "2021-0001", "Alice", "", "", "secret")
	require.NoError(t, err)
	ev, err := events.Create(ctx, officer, event.Event{Title: "Fair"})
	require.NoError(t, err)

	self := auth.Claims{Subject: st.StudentNumber, Role: auth.RoleStudent}
	_, err = coord.CheckIn(ctx, self, st.ID, ev.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	gotEv, err := events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, gotEv.Attendances)
}

func TestSelfMarkAttendedThenEvaluate(t *testing.T) {
	ctx := context.Background()
	coord, students, events := newCoordinator(t)

	st, err := students.Register(ctx, "2021-0001", "Alice", "", "", "secret")
	require.NoError(t, err)
	ev, err := events.Create(ctx, officer, event.Event{Title: "Fair"})
	require.NoError(t, err)
	self := auth.Claims{Subject: st.StudentNumber, Role: auth.RoleStudent}

	updated, err := coord.MarkAttended(ctx, self, st.ID, ev.ID)
	require.NoError(t, err)
	require.Len(t, updated.EventRecords, 1)

	_, err = coord.MarkAttended(ctx, self, st.ID, ev.ID)
	assert.ErrorIs(t, err, student.ErrAlreadyAttended)

	_, err = coord.SubmitEvaluation(ctx, self, st.ID, ev.ID, event.EvaluationDetail{})
	assert.NoError(t, err)
}
