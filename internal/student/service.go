package student

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campusevents/internal/auth"
	"campusevents/internal/metrics"
)

// VerifyFunc compares a plaintext password against a stored hash.
type VerifyFunc func(plain, hash string) bool

// HashFunc produces a stored credential from a plaintext password.
type HashFunc func(plain string) (string, error)

// Service owns all mutations of the student aggregate. Every list append
// follows the same template: load, lazily treat a missing list as empty,
// check membership by the list's uniqueness key, silently succeed on a
// duplicate, otherwise append and save the whole aggregate.
type Service struct {
	store  Store
	hash   HashFunc
	verify VerifyFunc
}

// NewService creates a service with injected credential functions.
func NewService(store Store, hash HashFunc, verify VerifyFunc) *Service {
	return &Service{store: store, hash: hash, verify: verify}
}

// Register creates a new student aggregate. The student number is the
// login key and must be unused.
func (s *Service) Register(ctx context.Context, number, name, course, department, password string) (*Student, error) {
	if number == "" || password == "" {
		return nil, errors.New("student number and password required")
	}
	if _, err := s.store.FindByNumber(ctx, number); err == nil {
		return nil, ErrNumberTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hashed, err := s.hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	st := &Student{
		ID:            uuid.NewString(),
		StudentNumber: number,
		PasswordHash:  hashed,
		Role:          auth.RoleStudent,
		Name:          name,
		Course:        course,
		Department:    department,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Login verifies credentials and returns the matching student. Wrong
// number and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, number, password string) (*Student, error) {
	st, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, auth.ErrUnauthorized
		}
		return nil, err
	}
	if !s.verify(password, st.PasswordHash) {
		return nil, auth.ErrUnauthorized
	}
	return st, nil
}

// Get returns a student record to the student themselves or to staff.
func (s *Service) Get(ctx context.Context, claims auth.Claims, id string) (*Student, error) {
	st, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionReadStudent, claims, st.StudentNumber); err != nil {
		return nil, err
	}
	return st, nil
}

// List returns every student. Staff only.
func (s *Service) List(ctx context.Context, claims auth.Claims) ([]*Student, error) {
	if err := auth.Authorize(auth.ActionListStudents, claims, ""); err != nil {
		return nil, err
	}
	return s.store.FindAll(ctx)
}

// PushRecipient pairs a student with their registered push token.
type PushRecipient struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	PushToken string `json:"push_token"`
}

// ListPushRecipients returns students that registered a push token.
// Staff only; used when dispatching push notifications.
func (s *Service) ListPushRecipients(ctx context.Context, claims auth.Claims) ([]PushRecipient, error) {
	if err := auth.Authorize(auth.ActionListPushTokens, claims, ""); err != nil {
		return nil, err
	}
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var res []PushRecipient
	for _, st := range all {
		if st.PushToken != "" {
			res = append(res, PushRecipient{StudentID: st.ID, Name: st.Name, PushToken: st.PushToken})
		}
	}
	return res, nil
}

// AddUpcomingEvent appends an event reference to the student's upcoming
// list. Duplicate event ids succeed silently without a write.
func (s *Service) AddUpcomingEvent(ctx context.Context, claims auth.Claims, studentID string, ev UpcomingEvent) (*Student, error) {
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionAddUpcomingEvent, claims, st.StudentNumber); err != nil {
		return nil, err
	}
	for _, existing := range st.UpcomingEvents {
		if existing.EventID == ev.EventID {
			return st, nil
		}
	}
	st.UpcomingEvents = append(st.UpcomingEvents, ev)
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// RemoveUpcomingEvent deletes an upcoming event by id. A missing id is
// ErrUpcomingNotFound, unlike the silent duplicate-add.
func (s *Service) RemoveUpcomingEvent(ctx context.Context, claims auth.Claims, studentID, eventID string) (*Student, error) {
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionRemoveUpcomingEvent, claims, st.StudentNumber); err != nil {
		return nil, err
	}
	kept := st.UpcomingEvents[:0]
	removed := false
	for _, ev := range st.UpcomingEvents {
		if ev.EventID == eventID {
			removed = true
			continue
		}
		kept = append(kept, ev)
	}
	if !removed {
		return nil, ErrUpcomingNotFound
	}
	st.UpcomingEvents = kept
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// AddRecentEvaluation appends an evaluated-event reference, unique by
// event id.
func (s *Service) AddRecentEvaluation(ctx context.Context, claims auth.Claims, studentID string, ev Evaluation) (*Student, error) {
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionAddRecentEvaluation, claims, st.StudentNumber); err != nil {
		return nil, err
	}
	for _, existing := range st.RecentEvaluations {
		if existing.EventID == ev.EventID {
			return st, nil
		}
	}
	st.RecentEvaluations = append(st.RecentEvaluations, ev)
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// AddAttendance records that a student attended an event. Staff only;
// duplicate event ids succeed silently. The record starts unevaluated.
func (s *Service) AddAttendance(ctx context.Context, claims auth.Claims, studentID, eventID string) (*Student, error) {
	if err := auth.Authorize(auth.ActionAddStudentAttendance, claims, ""); err != nil {
		return nil, err
	}
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if st.record(eventID) != nil {
		return st, nil
	}
	st.EventRecords = append(st.EventRecords, EventRecord{EventID: eventID, Attended: true})
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// MarkAttended transitions the (student, event) record to attended. It
// fails if the event is already attended, and creates the record when the
// student never listed the event as upcoming.
func (s *Service) MarkAttended(ctx context.Context, claims auth.Claims, studentID, eventID string) (*Student, error) {
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionMarkAttendance, claims, st.StudentNumber); err != nil {
		return nil, err
	}
	if rec := st.record(eventID); rec != nil {
		if rec.Attended {
			return nil, ErrAlreadyAttended
		}
		rec.Attended = true
	} else {
		st.EventRecords = append(st.EventRecords, EventRecord{EventID: eventID, Attended: true})
	}
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// MarkEvaluated transitions the record to evaluated. Evaluation strictly
// follows attendance: the record must exist, be attended, and not be
// evaluated yet.
func (s *Service) MarkEvaluated(ctx context.Context, claims auth.Claims, studentID, eventID string) (*Student, error) {
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionMarkEvaluation, claims, st.StudentNumber); err != nil {
		return nil, err
	}
	if len(st.EventRecords) == 0 {
		return nil, ErrNoEventRecords
	}
	rec := st.record(eventID)
	if rec == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotAttended)
	}
	if !rec.Attended {
		return nil, ErrNotAttended
	}
	if rec.Evaluated {
		return nil, ErrAlreadyEvaluated
	}
	rec.Evaluated = true
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// RemoveNotification deletes one inbox entry by id. A missing id is
// ErrNotificationNotFound.
func (s *Service) RemoveNotification(ctx context.Context, claims auth.Claims, studentID, notificationID string) (*Student, error) {
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionRemoveNotification, claims, st.StudentNumber); err != nil {
		return nil, err
	}
	kept := st.Notifications[:0]
	removed := false
	for _, n := range st.Notifications {
		if n.EventID == notificationID {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	if !removed {
		return nil, ErrNotificationNotFound
	}
	st.Notifications = kept
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// BroadcastResult reports the outcome of one student's append during a
// notification fan-out.
type BroadcastResult struct {
	StudentID string `json:"student_id"`
	Err       error  `json:"-"`
}

// BroadcastReport summarizes a fan-out. Writes that committed before a
// failure stand; the broadcast is best effort, never all-or-nothing.
type BroadcastReport struct {
	Delivered []BroadcastResult
	Failed    []BroadcastResult
}

// Broadcast appends a notification to every student, one save per
// student, in store order. Staff only. Per-student duplicates (same event
// id already in the inbox) are skipped and still counted as delivered.
func (s *Service) Broadcast(ctx context.Context, claims auth.Claims, n Notification) (BroadcastReport, error) {
	var report BroadcastReport
	if err := auth.Authorize(auth.ActionBroadcastNotification, claims, ""); err != nil {
		return report, err
	}
	if n.SentAt == "" {
		n.SentAt = time.Now().UTC().Format(time.RFC3339)
	}
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return report, err
	}
	for _, st := range all {
		if err := s.appendNotification(ctx, st, n); err != nil {
			metrics.BroadcastFailed.Inc()
			report.Failed = append(report.Failed, BroadcastResult{StudentID: st.ID, Err: err})
			continue
		}
		metrics.BroadcastDelivered.Inc()
		report.Delivered = append(report.Delivered, BroadcastResult{StudentID: st.ID})
	}
	return report, nil
}

func (s *Service) appendNotification(ctx context.Context, st *Student, n Notification) error {
	for _, existing := range st.Notifications {
		if existing.EventID == n.EventID {
			return nil
		}
	}
	st.Notifications = append(st.Notifications, n)
	return s.store.Save(ctx, st)
}

// Promote raises a student to OFFICER. Admin only.
func (s *Service) Promote(ctx context.Context, claims auth.Claims, studentID string) (*Student, error) {
	if err := auth.Authorize(auth.ActionPromoteStudent, claims, ""); err != nil {
		return nil, err
	}
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	st.Role = auth.RoleOfficer
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SetPushToken stores the opaque push recipient id for a student.
func (s *Service) SetPushToken(ctx context.Context, claims auth.Claims, studentID, token string) (*Student, error) {
	st, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(auth.ActionReadStudent, claims, st.StudentNumber); err != nil {
		return nil, err
	}
	st.PushToken = token
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
