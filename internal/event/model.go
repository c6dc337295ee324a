package event

import (
	"errors"
	"time"
)

// Event is the persisted event aggregate: profile fields plus the
// attendance and evaluation sub-collections.
type Event struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	ShortDescription string    `json:"short_description,omitempty"`
	Body             string    `json:"body,omitempty"`
	Date             string    `json:"date,omitempty"`
	Time             string    `json:"time,omitempty"`
	TimeLength       string    `json:"time_length,omitempty"`
	Location         string    `json:"location,omitempty"`
	Category         string    `json:"category,omitempty"`
	Organizer        Organizer `json:"organizer,omitempty"`

	// AllStudentAttending is an absolute headcount, overwritten on every
	// update rather than adjusted by deltas.
	AllStudentAttending int `json:"all_student_attending"`

	// ImageRef is the opaque id of the event poster in the image store.
	ImageRef string `json:"image_ref,omitempty"`

	Agenda              []AgendaItem         `json:"agenda,omitempty"`
	EvaluationQuestions []EvaluationQuestion `json:"evaluation_questions,omitempty"`

	// Attendances records every check-in. Duplicates are permitted here:
	// the student aggregate deduplicates on its side, the event side keeps
	// the raw log.
	Attendances []Attendance `json:"attendances,omitempty"`

	// Evaluations holds at most one submission per student name,
	// compared case-insensitively.
	Evaluations []EvaluationDetail `json:"evaluations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Organizer identifies who runs the event.
type Organizer struct {
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
	Contact    string `json:"contact,omitempty"`
}

// AgendaItem is one scheduled segment of the event program.
type AgendaItem struct {
	Time        string `json:"time,omitempty"`
	Description string `json:"description"`
}

// EvaluationQuestion is one question on the event's feedback form.
type EvaluationQuestion struct {
	Question string `json:"question"`
}

// Attendance is one check-in record.
type Attendance struct {
	StudentNumber string `json:"student_number"`
	StudentName   string `json:"student_name,omitempty"`
	Course        string `json:"course,omitempty"`
	CheckedInAt   string `json:"checked_in_at,omitempty"`
}

// EvaluationDetail is one submitted feedback form.
type EvaluationDetail struct {
	StudentName string   `json:"student_name"`
	Answers     []string `json:"answers,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	SubmittedAt string   `json:"submitted_at,omitempty"`
}

// ErrNotFound - the requested event id does not exist.
var ErrNotFound = errors.New("event not found")
