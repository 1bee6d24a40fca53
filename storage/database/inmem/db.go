package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mkabeya/darasa/core/grading"
)

type (
	// DB is an in-memory stand-in for the grading collaborators;
	// used in DEV mode and by tests.
	DB struct {
		task  *taskTable
		grade *gradeTable
	}

	taskTable struct {
		sync.RWMutex
		table map[uuid.UUID]*grading.Task
	}

	gradeTable struct {
		sync.RWMutex
		table map[uuid.UUID][]*grading.GradeRecord // keyed by task ID, roster order
	}
)

func Open() (*DB, error) {
	db := &DB{
		task:  &taskTable{table: make(map[uuid.UUID]*grading.Task)},
		grade: &gradeTable{table: make(map[uuid.UUID][]*grading.GradeRecord)},
	}
	return db, nil
}

// AddTask seeds a task.
func (db *DB) AddTask(task grading.Task) {
	db.task.Lock()
	defer db.task.Unlock()
	db.task.table[task.ID] = &task
}

// AddGradeRecords seeds grade records for a task, appended in roster order.
func (db *DB) AddGradeRecords(taskID uuid.UUID, recs ...grading.GradeRecord) {
	db.grade.Lock()
	defer db.grade.Unlock()
	for i := range recs {
		rec := recs[i]
		db.grade.table[taskID] = append(db.grade.table[taskID], &rec)
	}
}
