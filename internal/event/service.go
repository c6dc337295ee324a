package event

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"campusevents/internal/auth"
)

// Service owns all mutations of the event aggregate.
type Service struct {
	store Store
}

// NewService creates a service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns one event. Event reads are open.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	return s.store.FindByID(ctx, id)
}

// List returns all events.
func (s *Service) List(ctx context.Context) ([]*Event, error) {
	return s.store.FindAll(ctx)
}

// Create persists a new event. Staff only.
func (s *Service) Create(ctx context.Context, claims auth.Claims, e Event) (*Event, error) {
	if err := auth.Authorize(auth.ActionCreateEvent, claims, ""); err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := s.store.Save(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update merges incoming profile fields into an existing event. Staff
// only. Only non-empty fields overwrite; the attendee counter is an
// absolute value and always overwrites.
func (s *Service) Update(ctx context.Context, claims auth.Claims, id string, in Event) (*Event, error) {
	if err := auth.Authorize(auth.ActionUpdateEvent, claims, ""); err != nil {
		return nil, err
	}
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	mergeFields(e, in)
	if err := s.store.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes an event. Admin only.
func (s *Service) Delete(ctx context.Context, claims auth.Claims, id string) error {
	if err := auth.Authorize(auth.ActionDeleteEvent, claims, ""); err != nil {
		return err
	}
	return s.store.DeleteByID(ctx, id)
}

// AddAttendance appends a check-in record. Staff only. There is no
// uniqueness check: the event side keeps every check-in, duplicates
// included; deduplication lives on the student side.
func (s *Service) AddAttendance(ctx context.Context, claims auth.Claims, eventID string, a Attendance) (*Event, error) {
	if err := auth.Authorize(auth.ActionAddEventAttendance, claims, ""); err != nil {
		return nil, err
	}
	e, err := s.store.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if a.CheckedInAt == "" {
		a.CheckedInAt = time.Now().UTC().Format(time.RFC3339)
	}
	e.Attendances = append(e.Attendances, a)
	if err := s.store.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// AddEvaluation appends a feedback submission, unique by student name
// compared case-insensitively. A duplicate submission returns the
// unchanged event without error. Open to any authenticated role.
func (s *Service) AddEvaluation(ctx context.Context, claims auth.Claims, eventID string, d EvaluationDetail) (*Event, error) {
	if err := auth.Authorize(auth.ActionSubmitEvaluation, claims, ""); err != nil {
		return nil, err
	}
	e, err := s.store.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for _, existing := range e.Evaluations {
		if strings.EqualFold(existing.StudentName, d.StudentName) {
			return e, nil
		}
	}
	if d.SubmittedAt == "" {
		d.SubmittedAt = time.Now().UTC().Format(time.RFC3339)
	}
	e.Evaluations = append(e.Evaluations, d)
	if err := s.store.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SetAttendeeCount overwrites the headcount unconditionally. Open to any
// authenticated role.
func (s *Service) SetAttendeeCount(ctx context.Context, claims auth.Claims, eventID string, count int) (*Event, error) {
	if err := auth.Authorize(auth.ActionSetAttendeeCount, claims, ""); err != nil {
		return nil, err
	}
	e, err := s.store.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	e.AllStudentAttending = count
	if err := s.store.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SetImageRef stores the opaque poster reference. Staff only.
func (s *Service) SetImageRef(ctx context.Context, claims auth.Claims, eventID, ref string) (*Event, error) {
	if err := auth.Authorize(auth.ActionUpdateEvent, claims, ""); err != nil {
		return nil, err
	}
	e, err := s.store.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	e.ImageRef = ref
	if err := s.store.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func mergeFields(e *Event, in Event) {
	if in.Title != "" {
		e.Title = in.Title
	}
	if in.ShortDescription != "" {
		e.ShortDescription = in.ShortDescription
	}
	if in.Body != "" {
		e.Body = in.Body
	}
	if in.Date != "" {
		e.Date = in.Date
	}
	if in.Time != "" {
		e.Time = in.Time
	}
	if in.TimeLength != "" {
		e.TimeLength = in.TimeLength
	}
	if in.Location != "" {
		e.Location = in.Location
	}
	if in.Category != "" {
		e.Category = in.Category
	}
	if in.Organizer != (Organizer{}) {
		e.Organizer = in.Organizer
	}
	// Absolute value, not a delta.
	e.AllStudentAttending = in.AllStudentAttending
}
