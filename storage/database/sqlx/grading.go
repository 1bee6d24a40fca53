package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mkabeya/darasa/core/grading"
)

type gradingRepository struct {
	db *sqlx.DB
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *sqlx.DB) grading.Repository {
	return &gradingRepository{db: db}
}

type taskRow struct {
	ID        uuid.UUID `db:"id"`
	CourseID  uuid.UUID `db:"course_id"`
	Title     string    `db:"title"`
	Type      string    `db:"type"`
	MaxPoints float64   `db:"max_points"`
	DueDate   time.Time `db:"due_date"`
}

type gradeRecordRow struct {
	ID           uuid.UUID    `db:"id"`
	StudentID    uuid.UUID    `db:"student_id"`
	StudentName  string       `db:"student_name"`
	StudentEmail string       `db:"student_email"`
	Grade        null.Float64 `db:"grade"`
	Feedback     string       `db:"feedback"`
	SubID        *uuid.UUID   `db:"sub_id"`
	SubmittedAt  *time.Time   `db:"submitted_at"`
	Content      *string      `db:"content"`
}

type attachmentRow struct {
	SubmissionID uuid.UUID `db:"submission_id"`
	Name         string    `db:"name"`
	URL          string    `db:"url"`
	MediaType    string    `db:"media_type"`
}

func (repo *gradingRepository) FetchGradingData(ctx context.Context, taskID uuid.UUID) (grading.Task, []grading.GradeRecord, error) {
	var t taskRow
	err := repo.db.GetContext(ctx, &t,
		`SELECT id, course_id, title, type, max_points, due_date FROM task WHERE id = $1`, taskID)
	if err != nil {
		if err == sql.ErrNoRows {
			return grading.Task{}, nil, grading.ErrTaskNotFound
		}
		return grading.Task{}, nil, errors.Wrap(err, "querying task")
	}

	var rows []gradeRecordRow
	err = repo.db.SelectContext(ctx, &rows, `
		SELECT gr.id, gr.student_id, gr.student_name, gr.student_email, gr.grade, gr.feedback,
		       s.id AS sub_id, s.submitted_at, s.content
		FROM grade_record gr
		LEFT JOIN submission s ON s.record_id = gr.id
		WHERE gr.task_id = $1
		ORDER BY gr.position, gr.student_name`, taskID)
	if err != nil {
		return grading.Task{}, nil, errors.Wrap(err, "querying grade records")
	}

	var atts []attachmentRow
	err = repo.db.SelectContext(ctx, &atts, `
		SELECT sa.submission_id, sa.name, sa.url, sa.media_type
		FROM submission_attachment sa
		JOIN submission s ON s.id = sa.submission_id
		JOIN grade_record gr ON gr.id = s.record_id
		WHERE gr.task_id = $1
		ORDER BY sa.id`, taskID)
	if err != nil {
		return grading.Task{}, nil, errors.Wrap(err, "querying attachments")
	}
	attsBySub := make(map[uuid.UUID][]grading.Attachment)
	for _, a := range atts {
		attsBySub[a.SubmissionID] = append(attsBySub[a.SubmissionID], grading.Attachment{
			Name: a.Name, URL: a.URL, MediaType: a.MediaType,
		})
	}

	task := grading.Task{
		ID:        t.ID,
		CourseID:  t.CourseID,
		Title:     t.Title,
		Type:      t.Type,
		MaxPoints: t.MaxPoints,
		DueDate:   t.DueDate.UTC(),
	}
	recs := make([]grading.GradeRecord, 0, len(rows))
	for _, row := range rows {
		rec := grading.GradeRecord{
			ID:           row.ID,
			StudentID:    row.StudentID,
			StudentName:  row.StudentName,
			StudentEmail: row.StudentEmail,
			Grade:        row.Grade,
			Feedback:     row.Feedback,
		}
		if row.SubID != nil {
			sub := grading.Submission{
				ID:          *row.SubID,
				SubmittedAt: row.SubmittedAt.UTC(),
				Attachments: attsBySub[*row.SubID],
			}
			if row.Content != nil {
				sub.Content = *row.Content
			}
			rec.Submission = &sub
		}
		recs = append(recs, rec)
	}
	return task, recs, nil
}

func (repo *gradingRepository) SaveGradeBatch(ctx context.Context, taskID uuid.UUID, changes []grading.GradeChange) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, ch := range changes {
		res, err := tx.ExecContext(ctx,
			`UPDATE grade_record SET grade = $1, feedback = $2 WHERE id = $3 AND task_id = $4`,
			ch.Grade, ch.Feedback, ch.RecordID, taskID)
		if err != nil {
			return errors.Wrap(err, "updating grade record")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "updating grade record")
		}
		if n == 0 {
			return grading.ErrRecordNotFound
		}
	}
	return errors.Wrap(tx.Commit(), "committing grade batch")
}

func (repo *gradingRepository) GetSubmission(ctx context.Context, recordID uuid.UUID) (grading.Submission, error) {
	var row struct {
		ID          uuid.UUID `db:"id"`
		SubmittedAt time.Time `db:"submitted_at"`
		Content     string    `db:"content"`
	}
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, submitted_at, content FROM submission WHERE record_id = $1`, recordID)
	if err == sql.ErrNoRows {
		var exists bool
		if err = repo.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM grade_record WHERE id = $1)`, recordID); err != nil {
			return grading.Submission{}, errors.Wrap(err, "checking grade record")
		}
		if !exists {
			return grading.Submission{}, grading.ErrRecordNotFound
		}
		return grading.Submission{}, grading.ErrSubmissionNotFound
	}
	if err != nil {
		return grading.Submission{}, errors.Wrap(err, "querying submission")
	}

	var atts []attachmentRow
	err = repo.db.SelectContext(ctx, &atts, `
		SELECT submission_id, name, url, media_type
		FROM submission_attachment WHERE submission_id = $1 ORDER BY id`, row.ID)
	if err != nil {
		return grading.Submission{}, errors.Wrap(err, "querying attachments")
	}

	sub := grading.Submission{ID: row.ID, SubmittedAt: row.SubmittedAt.UTC(), Content: row.Content}
	for _, a := range atts {
		sub.Attachments = append(sub.Attachments, grading.Attachment{Name: a.Name, URL: a.URL, MediaType: a.MediaType})
	}
	return sub, nil
}
