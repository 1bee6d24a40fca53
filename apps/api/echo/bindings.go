package echoapi

import (
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/mkabeya/darasa/core"
	"github.com/mkabeya/darasa/core/grading"
)

type createSessionRequest struct {
	TaskID uuid.UUID `json:"task_id" validate:"required"`
}

func (r createSessionRequest) Validate() error { return core.Validate.Struct(r) }

type beginEditRequest struct {
	RecordID uuid.UUID `json:"record_id" validate:"required"`
}

func (r beginEditRequest) Validate() error { return core.Validate.Struct(r) }

// setGradeRequest carries the grade as the raw form input;
// empty clears the grade.
type setGradeRequest struct {
	RecordID uuid.UUID `json:"record_id" validate:"required"`
	Grade    string    `json:"grade"`
}

func (r setGradeRequest) Validate() error { return core.Validate.Struct(r) }

type setFeedbackRequest struct {
	RecordID uuid.UUID `json:"record_id" validate:"required"`
	Feedback string    `json:"feedback" validate:"max=5000"`
}

func (r setFeedbackRequest) Validate() error { return core.Validate.Struct(r) }

type gradeRecordResponse struct {
	ID           uuid.UUID           `json:"id"`
	StudentID    uuid.UUID           `json:"student_id"`
	StudentName  string              `json:"student_name"`
	Submission   *grading.Submission `json:"submission,omitempty"`
	Grade        null.Float64        `json:"grade"`
	Feedback     string              `json:"feedback"`
	Status       grading.Status      `json:"status"`
	Dirty        bool                `json:"dirty"`
}

type sessionResponse struct {
	ID             uuid.UUID             `json:"id"`
	Task           grading.Task          `json:"task"`
	Records        []gradeRecordResponse `json:"records"`
	ActiveEditID   *uuid.UUID            `json:"active_edit_id,omitempty"`
	ChangesPending bool                  `json:"changes_pending"`
}

func newSessionResponse(id uuid.UUID, sess *grading.Session) sessionResponse {
	task := sess.Task()
	recs := sess.Records()

	resp := sessionResponse{
		ID:             id,
		Task:           task,
		Records:        make([]gradeRecordResponse, 0, len(recs)),
		ChangesPending: sess.ChangesPending(),
	}
	if editID, ok := sess.ActiveEditID(); ok {
		resp.ActiveEditID = &editID
	}
	for _, rec := range recs {
		resp.Records = append(resp.Records, gradeRecordResponse{
			ID:          rec.ID,
			StudentID:   rec.StudentID,
			StudentName: rec.StudentName,
			Submission:  rec.Submission,
			Grade:       rec.Grade,
			Feedback:    rec.Feedback,
			Status:      rec.Status(task.DueDate),
			Dirty:       rec.Dirty(),
		})
	}
	return resp
}
