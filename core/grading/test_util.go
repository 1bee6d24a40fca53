package grading

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/mkabeya/darasa/core"
)

// fakeRepository is an in-process Repository for session tests.
// When applyChanges is set, a successful SaveGradeBatch mutates the backing
// records so the post-save reload reflects the server's truth.
type fakeRepository struct {
	task    Task
	records []GradeRecord

	fetchErr error
	saveErr  error

	fetchCalls  int
	saveCalls   int
	lastChanges []GradeChange

	// blockSave, when non-nil, makes SaveGradeBatch signal saveStarted then
	// wait until blockSave is closed; used to test the in-flight guard.
	blockSave   chan struct{}
	saveStarted chan struct{}
}

var _ Repository = (*fakeRepository)(nil)

func (r *fakeRepository) FetchGradingData(_ context.Context, taskID uuid.UUID) (Task, []GradeRecord, error) {
	r.fetchCalls++
	if r.fetchErr != nil {
		return Task{}, nil, r.fetchErr
	}
	if taskID != r.task.ID {
		return Task{}, nil, ErrTaskNotFound
	}
	recs := make([]GradeRecord, len(r.records))
	copy(recs, r.records)
	return r.task, recs, nil
}

func (r *fakeRepository) SaveGradeBatch(_ context.Context, _ uuid.UUID, changes []GradeChange) error {
	r.saveCalls++
	r.lastChanges = changes
	if r.blockSave != nil {
		r.saveStarted <- struct{}{}
		<-r.blockSave
	}
	if r.saveErr != nil {
		return r.saveErr
	}
	for _, ch := range changes {
		for i := range r.records {
			if r.records[i].ID == ch.RecordID {
				r.records[i].Grade = ch.Grade
				r.records[i].Feedback = ch.Feedback
			}
		}
	}
	return nil
}

func (r *fakeRepository) GetSubmission(_ context.Context, recordID uuid.UUID) (Submission, error) {
	for _, rec := range r.records {
		if rec.ID == recordID {
			if rec.Submission == nil {
				return Submission{}, ErrSubmissionNotFound
			}
			return *rec.Submission, nil
		}
	}
	return Submission{}, ErrRecordNotFound
}

// fakeMailer captures notification emails synchronously.
type fakeMailer struct {
	sent []core.EmailMessage
}

func (m *fakeMailer) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		m.sent = append(m.sent, *msg)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func newTestTask(maxPoints float64, dueDate time.Time) Task {
	return Task{
		ID:        uuid.New(),
		CourseID:  uuid.New(),
		Title:     "Polynomials Worksheet",
		Type:      "homework",
		MaxPoints: maxPoints,
		DueDate:   dueDate,
	}
}

func newTestRecord(name, email string, sub *Submission, grade ...float64) GradeRecord {
	rec := GradeRecord{
		ID:           uuid.New(),
		StudentID:    uuid.New(),
		StudentName:  name,
		StudentEmail: email,
		Submission:   sub,
	}
	if len(grade) > 0 {
		rec.Grade = null.Float64From(grade[0])
	}
	return rec
}
