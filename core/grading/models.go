package grading

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// Task is an assignment definition. Read-only context for this package:
// grading never mutates it.
type Task struct {
	ID        uuid.UUID `json:"id"`
	CourseID  uuid.UUID `json:"course_id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	MaxPoints float64   `json:"max_points"`
	DueDate   time.Time `json:"due_date"` // UTC
}

type Attachment struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// Submission is a student's turned-in work for a Task, owned by the
// storage collaborator. A student may have none.
type Submission struct {
	ID          uuid.UUID    `json:"id"`
	SubmittedAt time.Time    `json:"submitted_at"` // UTC
	Attachments []Attachment `json:"attachments,omitempty"`
	Content     string       `json:"content,omitempty"`
}

// GradeRecord is the per-student, per-task unit of grading state.
// The student name/email come denormalized with the grading dataset;
// the roster itself is owned by an external collaborator.
type GradeRecord struct {
	ID           uuid.UUID    `json:"id"`
	StudentID    uuid.UUID    `json:"student_id"`
	StudentName  string       `json:"student_name"`
	StudentEmail string       `json:"student_email"`
	Submission   *Submission  `json:"submission,omitempty"`
	Grade        null.Float64 `json:"grade"`
	Feedback     string       `json:"feedback"`

	// dirty marks unsaved local edits; session-only, never persisted.
	dirty bool
}

func (r GradeRecord) Dirty() bool { return r.dirty }

type Status string

const (
	StatusNotSubmitted    Status = "not_submitted"
	StatusSubmittedOnTime Status = "submitted_on_time"
	StatusSubmittedLate   Status = "submitted_late"
	StatusGraded          Status = "graded"
)

// Status derives the display status of a record. It is never stored;
// callers recompute it on every read. A present grade wins over the
// submission state: a grade may exist with no submission (offline grading).
func (r GradeRecord) Status(dueDate time.Time) Status {
	switch {
	case r.Grade.Valid:
		return StatusGraded
	case r.Submission == nil:
		return StatusNotSubmitted
	case !r.Submission.SubmittedAt.After(dueDate):
		return StatusSubmittedOnTime
	default:
		return StatusSubmittedLate
	}
}

// GradeChange is one entry of a batch save payload.
// An absent grade marshals to JSON null.
type GradeChange struct {
	RecordID uuid.UUID    `json:"record_id"`
	Grade    null.Float64 `json:"grade"`
	Feedback string       `json:"feedback"`
}
