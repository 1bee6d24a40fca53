package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkabeya/darasa/core/grading"
)

type gradingRepository struct {
	task  *taskTable
	grade *gradeTable
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{task: db.task, grade: db.grade}
}

func (repo *gradingRepository) FetchGradingData(_ context.Context, taskID uuid.UUID) (grading.Task, []grading.GradeRecord, error) {
	repo.task.RLock()
	task, ok := repo.task.table[taskID]
	repo.task.RUnlock()
	if !ok {
		return grading.Task{}, nil, grading.ErrTaskNotFound
	}

	repo.grade.RLock()
	defer repo.grade.RUnlock()
	rows := repo.grade.table[taskID]
	recs := make([]grading.GradeRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, copyRecord(row))
	}
	return *task, recs, nil
}

func (repo *gradingRepository) SaveGradeBatch(_ context.Context, taskID uuid.UUID, changes []grading.GradeChange) error {
	repo.grade.Lock()
	defer repo.grade.Unlock()

	rows := repo.grade.table[taskID]
	byID := make(map[uuid.UUID]*grading.GradeRecord, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	// all-or-nothing: verify the whole batch before applying any of it
	for _, ch := range changes {
		if _, ok := byID[ch.RecordID]; !ok {
			return grading.ErrRecordNotFound
		}
	}
	for _, ch := range changes {
		row := byID[ch.RecordID]
		row.Grade = ch.Grade
		row.Feedback = ch.Feedback
	}
	return nil
}

func (repo *gradingRepository) GetSubmission(_ context.Context, recordID uuid.UUID) (grading.Submission, error) {
	repo.grade.RLock()
	defer repo.grade.RUnlock()

	for _, rows := range repo.grade.table {
		for _, row := range rows {
			if row.ID != recordID {
				continue
			}
			if row.Submission == nil {
				return grading.Submission{}, grading.ErrSubmissionNotFound
			}
			return *row.Submission, nil
		}
	}
	return grading.Submission{}, grading.ErrRecordNotFound
}

func copyRecord(row *grading.GradeRecord) grading.GradeRecord {
	rec := *row
	if row.Submission != nil {
		sub := *row.Submission
		sub.Attachments = append([]grading.Attachment(nil), row.Submission.Attachments...)
		rec.Submission = &sub
	}
	return rec
}
