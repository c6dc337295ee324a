package student

import (
	"errors"
	"time"

	"campusevents/internal/auth"
)

// Student is the persisted student aggregate: identity, credentials,
// profile, and the list-valued sub-collections tracked per event.
type Student struct {
	ID            string    `json:"id"`
	StudentNumber string    `json:"student_number"`
	PasswordHash  string    `json:"password_hash"`
	Role          auth.Role `json:"role"`

	Name       string `json:"name"`
	Course     string `json:"course,omitempty"`
	Department string `json:"department,omitempty"`

	// PushToken is the opaque push-notification recipient id registered by
	// the student's device. Delivery itself happens outside this core.
	PushToken string `json:"push_token,omitempty"`

	UpcomingEvents    []UpcomingEvent `json:"upcoming_events,omitempty"`
	EventRecords      []EventRecord   `json:"event_records,omitempty"`
	RecentEvaluations []Evaluation    `json:"recent_evaluations,omitempty"`
	Notifications     []Notification  `json:"notifications,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpcomingEvent is a reference to an event the student plans to attend,
// with enough display metadata to render a list without loading the event.
type UpcomingEvent struct {
	EventID  string `json:"event_id"`
	Title    string `json:"title"`
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Location string `json:"location,omitempty"`
}

// EventRecord is the canonical per-event attendance/evaluation record.
// Evaluated is never true unless Attended is.
type EventRecord struct {
	EventID   string `json:"event_id"`
	Attended  bool   `json:"attended"`
	Evaluated bool   `json:"evaluated"`
}

// Evaluation references an event the student recently evaluated.
type Evaluation struct {
	EventID string `json:"event_id"`
	Title   string `json:"title,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Notification is one entry in a student's inbox, keyed by the event that
// produced it.
type Notification struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Body    string `json:"body,omitempty"`
	SentAt  string `json:"sent_at,omitempty"`
}

var (
	// ErrNotFound - the requested student id or number does not exist.
	ErrNotFound = errors.New("student not found")

	// ErrNumberTaken - registration attempted with an existing student number.
	ErrNumberTaken = errors.New("student number already registered")

	// Removal targets. Removing an absent key is not-found, deliberately
	// asymmetric with the idempotent adds which succeed silently.
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUpcomingNotFound     = errors.New("upcoming event not found")

	// Lifecycle transition violations.
	ErrAlreadyAttended  = errors.New("event already marked as attended")
	ErrNotAttended      = errors.New("event not attended yet")
	ErrAlreadyEvaluated = errors.New("event already marked as evaluated")
	ErrNoEventRecords   = errors.New("no attended events for this student")
)

// record returns the combined record for an event id, or nil.
func (s *Student) record(eventID string) *EventRecord {
	for i := range s.EventRecords {
		if s.EventRecords[i].EventID == eventID {
			return &s.EventRecords[i]
		}
	}
	return nil
}
