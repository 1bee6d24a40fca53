package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkabeya/darasa/core"
	"github.com/mkabeya/darasa/storage/database"
)

// seedDemo inserts a demo task and enrolls n demo students: roughly a third
// submitted on time, a third late, the rest not at all.
func (cli *commandLine) seedDemo(n int) error {
	db, err := database.Open(core.Conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	dueDate := time.Now().UTC().Truncate(time.Hour)
	taskID := uuid.New()
	_, err = db.Exec(
		`INSERT INTO task (id, course_id, title, type, max_points, due_date) VALUES ($1, $2, $3, $4, $5, $6)`,
		taskID, uuid.New(), "Demo Assignment", "homework", 100.0, dueDate)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		recordID := uuid.New()
		name := fmt.Sprintf("Demo Student %02d", i+1)
		email := fmt.Sprintf("student%02d@students.example.com", i+1)
		_, err = db.Exec(
			`INSERT INTO grade_record (id, task_id, student_id, student_name, student_email, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			recordID, taskID, uuid.New(), name, email, i)
		if err != nil {
			return err
		}

		var submittedAt time.Time
		switch i % 3 {
		case 0:
			submittedAt = dueDate.Add(-time.Duration(i+1) * time.Hour)
		case 1:
			submittedAt = dueDate.Add(time.Duration(i) * time.Hour)
		default:
			continue // never submitted
		}
		subID := uuid.New()
		_, err = db.Exec(
			`INSERT INTO submission (id, record_id, submitted_at, content) VALUES ($1, $2, $3, $4)`,
			subID, recordID, submittedAt, "Demo submission text.")
		if err != nil {
			return err
		}
		_, err = db.Exec(
			`INSERT INTO submission_attachment (submission_id, name, url, media_type) VALUES ($1, $2, $3, $4)`,
			subID, "homework.pdf", fmt.Sprintf("/files/%s/homework.pdf", recordID), "application/pdf")
		if err != nil {
			return err
		}
	}

	fmt.Printf("seeded task %s with %d grade records\n", taskID, n)
	return nil
}
