package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusevents/internal/auth"
)

var (
	studentClaims = auth.Claims{Subject: "2021-0001", Role: auth.RoleStudent}
	officerClaims = auth.Claims{Subject: "2020-9999", Role: auth.RoleOfficer}
	adminClaims   = auth.Claims{Subject: "2020-0001", Role: auth.RoleAdmin}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryStore())
}

func createTestEvent(t *testing.T, svc *Service) *Event {
	t.Helper()
	ev, err := svc.Create(context.Background(), officerClaims, Event{
		Title:    "Tech Summit",
		Date:     "2026-09-10",
		Time:     "09:00",
		Location: "Main Hall",
		Category: "seminar",
	})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	return ev
}

func TestCreateIsStaffOnly(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), studentClaims, Event{Title: "x"})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	ev := createTestEvent(t, svc)
	got, err := svc.Get(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tech Summit", got.Title)
}

func TestGetUnknownEvent(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMergesOnlyProvidedFields(t *testing.T) {
	svc := newTestService(t)
	ev := createTestEvent(t, svc)

	updated, err := svc.Update(context.Background(), officerClaims, ev.ID, Event{
		Location:            "Auditorium B",
		AllStudentAttending: 42,
	})
	require.NoError(t, err)

	// Untouched fields survive; the provided one overwrites.
	assert.Equal(t, "Tech Summit", updated.Title)
	assert.Equal(t, "2026-09-10", updated.Date)
	assert.Equal(t, "Auditorium B", updated.Location)
	assert.Equal(t, 42, updated.AllStudentAttending)

	// The counter is absolute: an update that omits it resets to zero.
	updated, err = svc.Update(context.Background(), officerClaims, ev.ID, Event{Title: "Tech Summit 2026"})
	require.NoError(t, err)
	assert.Equal(t, "Tech Summit 2026", updated.Title)
	assert.Equal(t, 0, updated.AllStudentAttending)
}

func TestUpdateAuthz(t *testing.T) {
	svc := newTestService(t)
	ev := createTestEvent(t, svc)

	_, err := svc.Update(context.Background(), studentClaims, ev.ID, Event{Title: "hijacked"})
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestDeleteIsAdminOnly(t *testing.T) {
	svc := newTestService(t)
	ev := createTestEvent(t, svc)

	err := svc.Delete(context.Background(), officerClaims, ev.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	err = svc.Delete(context.Background(), adminClaims, ev.ID)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), ev.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(context.Background(), adminClaims, ev.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddAttendancePermitsDuplicates(t *testing.T) {
	svc := newTestService(t)
	ev := createTestEvent(t, svc)

	checkIn := Attendance{StudentNumber: "2021-0001", StudentName: "Alice Reyes"}
	_, err := svc.AddAttendance(context.Background(), officerClaims, ev.ID, checkIn)
	require.NoError(t, err)
	updated, err := svc.AddAttendance(context.Background(), officerClaims, ev.ID, checkIn)
	require.NoError(t, err)

	// The event side keeps the raw check-in log, duplicates and all.
	require.Len(t, updated.Attendances, 2)
	assert.NotEmpty(t, updated.Attendances[0].CheckedInAt)

	_, err = svc.AddAttendance(context.Background(), studentClaims, ev.ID, checkIn)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestAddEvaluationDedupesByNameCaseInsensitively(t *testing.T) {
	svc := newTestService(t)
	ev := createTestEvent(t, svc)

	first := EvaluationDetail{StudentName: "Alice", Comment: "great"}
	updated, err := svc.AddEvaluation(context.Background(), studentClaims, ev.ID, first)
	require.NoError(t, err)
	require.Len(t, updated.Evaluations, 1)
	assert.NotEmpty(t, updated.Evaluations[0].SubmittedAt)

	for _, name := range []string{"Alice", "alice", "ALICE"} {
		updated, err = svc.AddEvaluation(context.Background(), studentClaims, ev.ID, EvaluationDetail{StudentName: name, Comment: "again"})
		require.NoError(t, err)
		assert.Len(t, updated.Evaluations, 1, name)
	}
	assert.Equal(t, "great", updated.Evaluations[0].Comment)

	updated, err = svc.AddEvaluation(context.Background(), studentClaims, ev.ID, EvaluationDetail{StudentName: "Bob"})
	require.NoError(t, err)
	assert.Len(t, updated.Evaluations, 2)
}

func TestSetAttendeeCountOverwrites(t *testing.T) {
	svc := newTestService(t)
	ev := createTestEvent(t, svc)

	updated, err := svc.SetAttendeeCount(context.Background(), studentClaims, ev.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, 120, updated.AllStudentAttending)

	updated, err = svc.SetAttendeeCount(context.Background(), studentClaims, ev.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.AllStudentAttending)
}

func TestSetImageRef(t *testing.T) {
	svc := newTestService(t)
	ev := createTestEvent(t, svc)

	_, err := svc.SetImageRef(context.Background(), studentClaims, ev.ID, "posters/abc")
	assert.ErrorIs(t, err, auth.ErrForbidden)

	updated, err := svc.SetImageRef(context.Background(), officerClaims, ev.ID, "posters/abc")
	require.NoError(t, err)
	assert.Equal(t, "posters/abc", updated.ImageRef)
}

func TestListReturnsAllEvents(t *testing.T) {
	svc := newTestService(t)
	createTestEvent(t, svc)
	createTestEvent(t, svc)

	events, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
