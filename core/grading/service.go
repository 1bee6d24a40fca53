package grading

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/google/uuid"

	"github.com/mkabeya/darasa/core"
)

var (
	// errors
	ErrTaskNotFound       = errors.New("task not found")
	ErrRecordNotFound     = errors.New("grade record not found")
	ErrSubmissionNotFound = errors.New("no submission for this grade record")
	ErrRecordNotActive    = errors.New("grade record is not being edited")
	ErrSaveInFlight       = errors.New("a batch save is already in progress")
	ErrNoPendingChanges   = errors.New("no changes to save")

	errGradeNotANumber = errors.New("grade is not a number")
	errGradeTooHigh    = errors.New("grade exceeds the maximum points")
	errGradeNegative   = errors.New("grade is negative")
)

// LoadError wraps a failure to fetch the grading dataset. Unrecoverable
// for the current grading view: the caller must abandon the session.
type LoadError struct {
	TaskID uuid.UUID
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading grading data for task %s: %v", e.TaskID, e.Err)
}
func (e *LoadError) Unwrap() error { return e.Err }

// SaveError wraps a failure to persist a grade batch. Recoverable: local
// edits and dirty flags are preserved so the save can be retried.
type SaveError struct {
	TaskID uuid.UUID
	Err    error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving grade batch for task %s: %v", e.TaskID, e.Err)
}
func (e *SaveError) Unwrap() error { return e.Err }

type (
	Repository interface {
		// FetchGradingData returns the task metadata and the full set of
		// GradeRecords for taskID, in roster order.
		// Returns ErrTaskNotFound if the task does not exist.
		FetchGradingData(ctx context.Context, taskID uuid.UUID) (Task, []GradeRecord, error)

		// SaveGradeBatch persists all changes in a single call.
		// All-or-nothing: on error no record may be left half-updated.
		// Returns ErrRecordNotFound if a change references an unknown record.
		SaveGradeBatch(ctx context.Context, taskID uuid.UUID, changes []GradeChange) error

		// GetSubmission returns the submission preview (attachments/content)
		// for a grade record. Pure read.
		// Returns ErrRecordNotFound or ErrSubmissionNotFound.
		GetSubmission(ctx context.Context, recordID uuid.UUID) (Submission, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger}
}

// NewSession returns an empty grading session; call Session.Load next.
func (svc *Service) NewSession() *Session {
	return &Session{svc: svc}
}

func (svc *Service) SubmissionPreview(ctx context.Context, recordID uuid.UUID) (Submission, error) {
	return svc.repo.GetSubmission(ctx, recordID)
}

// notifyGradesPosted emails each student whose record was in a successfully
// saved batch. Failures here never fail the save; the mail service logs its own.
func (svc *Service) notifyGradesPosted(task Task, records []GradeRecord, changes []GradeChange) {
	byID := make(map[uuid.UUID]GradeRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	msgs := make([]*core.EmailMessage, 0, len(changes))
	for _, ch := range changes {
		rec, ok := byID[ch.RecordID]
		if !ok || rec.StudentEmail == "" {
			continue
		}
		grade := "pending"
		if rec.Grade.Valid {
			grade = fmt.Sprintf("%g / %g", rec.Grade.Float64, task.MaxPoints)
		}
		body := fmt.Sprintf(
			"Hello %s,\n\nYour work for %q has been reviewed.\nGrade: %s\n\nSee %s for details.\n",
			rec.StudentName, task.Title, grade, core.Conf.FrontendBaseURL,
		)
		msgs = append(msgs, &core.EmailMessage{
			To:      []mail.Address{{Name: rec.StudentName, Address: rec.StudentEmail}},
			Subject: fmt.Sprintf("Grades posted for %s", task.Title),
			BodyStr: body,
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}
