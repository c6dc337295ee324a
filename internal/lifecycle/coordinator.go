// Package lifecycle coordinates the upcoming -> attended -> evaluated
// progression of a (student, event) pair across the two aggregates. The
// student and event sides are written by independent saves with no
// cross-aggregate transaction: a failure between the two writes leaves
// them divergent until the second call is retried.
package lifecycle

import (
	"context"
	"fmt"

	"campusevents/internal/auth"
	"campusevents/internal/event"
	"campusevents/internal/student"
)

// Coordinator executes cross-aggregate transitions through the two
// aggregate services, which carry the authorization checks.
type Coordinator struct {
	students *student.Service
	events   *event.Service
}

// New creates a coordinator over the two services.
func New(students *student.Service, events *event.Service) *Coordinator {
	return &Coordinator{students: students, events: events}
}

// AddUpcoming moves the pair from absent to upcoming. The event profile
// supplies the display metadata stored on the student side; repeated
// calls are idempotent.
func (c *Coordinator) AddUpcoming(ctx context.Context, claims auth.Claims, studentID, eventID string) (*student.Student, error) {
	ev, err := c.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return c.students.AddUpcomingEvent(ctx, claims, studentID, student.UpcomingEvent{
		EventID:  ev.ID,
		Title:    ev.Title,
		Date:     ev.Date,
		Time:     ev.Time,
		Location: ev.Location,
	})
}

// CheckIn records a check-in on both aggregates: the event side always
// appends (its attendance log permits duplicates), the student side adds
// an idempotent attended record. Staff only. The two writes are not
// atomic; if the student-side write fails the event-side append stands.
func (c *Coordinator) CheckIn(ctx context.Context, claims auth.Claims, studentID, eventID string) (*student.Student, error) {
	st, err := c.students.Get(ctx, claims, studentID)
	if err != nil {
		return nil, err
	}
	if _, err := c.events.AddAttendance(ctx, claims, eventID, event.Attendance{
		StudentNumber: st.StudentNumber,
		StudentName:   st.Name,
		Course:        st.Course,
	}); err != nil {
		return nil, err
	}
	updated, err := c.students.AddAttendance(ctx, claims, studentID, eventID)
	if err != nil {
		return nil, fmt.Errorf("attendance recorded on event but not on student: %w", err)
	}
	return updated, nil
}

// MarkAttended transitions the student-side record to attended. Fails
// when the pair is already attended.
func (c *Coordinator) MarkAttended(ctx context.Context, claims auth.Claims, studentID, eventID string) (*student.Student, error) {
	return c.students.MarkAttended(ctx, claims, studentID, eventID)
}

// SubmitEvaluation transitions the pair from attended to evaluated and
// mirrors the submission onto the event aggregate. The student-side
// transition runs first and gates the whole operation: evaluate-before-
// attend and evaluate-twice both stop before any write. The event-side
// mirror and the recent-evaluations entry follow as separate best-effort
// writes.
func (c *Coordinator) SubmitEvaluation(ctx context.Context, claims auth.Claims, studentID, eventID string, detail event.EvaluationDetail) (*student.Student, error) {
	ev, err := c.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	st, err := c.students.MarkEvaluated(ctx, claims, studentID, eventID)
	if err != nil {
		return nil, err
	}
	if detail.StudentName == "" {
		detail.StudentName = st.Name
	}
	if _, err := c.events.AddEvaluation(ctx, claims, eventID, detail); err != nil {
		return st, fmt.Errorf("evaluation recorded on student but not on event: %w", err)
	}
	if _, err := c.students.AddRecentEvaluation(ctx, claims, studentID, student.Evaluation{
		EventID: ev.ID,
		Title:   ev.Title,
		Date:    ev.Date,
	}); err != nil {
		return st, err
	}
	return st, nil
}
