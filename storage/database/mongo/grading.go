package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mkabeya/darasa/core"
	"github.com/mkabeya/darasa/core/grading"
)

const queryTimeout = 10 * time.Second

// Open connects to the configured mongo deployment and returns the app database.
func Open(ctx context.Context, conf *core.Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Database.MongoURI))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, nil, errors.Wrap(err, "pinging mongo")
	}
	return client, client.Database(conf.Database.Name), nil
}

type gradingRepository struct {
	tasks  *mongo.Collection
	grades *mongo.Collection
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *mongo.Database) grading.Repository {
	return &gradingRepository{
		tasks:  db.Collection("tasks"),
		grades: db.Collection("grade_records"),
	}
}

type taskDoc struct {
	ID        string    `bson:"_id"`
	CourseID  string    `bson:"course_id"`
	Title     string    `bson:"title"`
	Type      string    `bson:"type"`
	MaxPoints float64   `bson:"max_points"`
	DueDate   time.Time `bson:"due_date"`
}

type attachmentDoc struct {
	Name      string `bson:"name"`
	URL       string `bson:"url"`
	MediaType string `bson:"media_type"`
}

type submissionDoc struct {
	ID          string          `bson:"id"`
	SubmittedAt time.Time       `bson:"submitted_at"`
	Attachments []attachmentDoc `bson:"attachments,omitempty"`
	Content     string          `bson:"content,omitempty"`
}

type gradeRecordDoc struct {
	ID           string         `bson:"_id"`
	TaskID       string         `bson:"task_id"`
	StudentID    string         `bson:"student_id"`
	StudentName  string         `bson:"student_name"`
	StudentEmail string         `bson:"student_email"`
	Submission   *submissionDoc `bson:"submission,omitempty"`
	Grade        *float64       `bson:"grade"`
	Feedback     string         `bson:"feedback"`
	Position     int            `bson:"position"`
}

func (repo *gradingRepository) FetchGradingData(ctx context.Context, taskID uuid.UUID) (grading.Task, []grading.GradeRecord, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t taskDoc
	err := repo.tasks.FindOne(queryCtx, bson.M{"_id": taskID.String()}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return grading.Task{}, nil, grading.ErrTaskNotFound
		}
		return grading.Task{}, nil, errors.Wrap(err, "querying task")
	}
	task, err := t.toTask()
	if err != nil {
		return grading.Task{}, nil, err
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "student_name", Value: 1}})
	cursor, err := repo.grades.Find(queryCtx, bson.M{"task_id": taskID.String()}, findOpts)
	if err != nil {
		return grading.Task{}, nil, errors.Wrap(err, "querying grade records")
	}
	defer func() { _ = cursor.Close(queryCtx) }()

	var recs []grading.GradeRecord
	for cursor.Next(queryCtx) {
		var doc gradeRecordDoc
		if err = cursor.Decode(&doc); err != nil {
			return grading.Task{}, nil, errors.Wrap(err, "decoding grade record")
		}
		rec, err := doc.toGradeRecord()
		if err != nil {
			return grading.Task{}, nil, err
		}
		recs = append(recs, rec)
	}
	if err = cursor.Err(); err != nil {
		return grading.Task{}, nil, errors.Wrap(err, "reading grade records")
	}
	return task, recs, nil
}

func (repo *gradingRepository) SaveGradeBatch(ctx context.Context, taskID uuid.UUID, changes []grading.GradeChange) error {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(changes))
	for _, ch := range changes {
		var grade *float64
		if ch.Grade.Valid {
			g := ch.Grade.Float64
			grade = &g
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": ch.RecordID.String(), "task_id": taskID.String()}).
			SetUpdate(bson.M{"$set": bson.M{"grade": grade, "feedback": ch.Feedback}}))
	}

	res, err := repo.grades.BulkWrite(queryCtx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return errors.Wrap(err, "writing grade batch")
	}
	if res.MatchedCount != int64(len(changes)) {
		return grading.ErrRecordNotFound
	}
	return nil
}

func (repo *gradingRepository) GetSubmission(ctx context.Context, recordID uuid.UUID) (grading.Submission, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc gradeRecordDoc
	opts := options.FindOne().SetProjection(bson.M{"submission": 1})
	err := repo.grades.FindOne(queryCtx, bson.M{"_id": recordID.String()}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return grading.Submission{}, grading.ErrRecordNotFound
		}
		return grading.Submission{}, errors.Wrap(err, "querying submission")
	}
	if doc.Submission == nil {
		return grading.Submission{}, grading.ErrSubmissionNotFound
	}
	return doc.Submission.toSubmission()
}

func (d taskDoc) toTask() (grading.Task, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return grading.Task{}, errors.Wrap(err, "parsing task ID")
	}
	courseID, err := uuid.Parse(d.CourseID)
	if err != nil {
		return grading.Task{}, errors.Wrap(err, "parsing course ID")
	}
	return grading.Task{
		ID:        id,
		CourseID:  courseID,
		Title:     d.Title,
		Type:      d.Type,
		MaxPoints: d.MaxPoints,
		DueDate:   d.DueDate.UTC(),
	}, nil
}

func (d gradeRecordDoc) toGradeRecord() (grading.GradeRecord, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return grading.GradeRecord{}, errors.Wrap(err, "parsing record ID")
	}
	studentID, err := uuid.Parse(d.StudentID)
	if err != nil {
		return grading.GradeRecord{}, errors.Wrap(err, "parsing student ID")
	}
	rec := grading.GradeRecord{
		ID:           id,
		StudentID:    studentID,
		StudentName:  d.StudentName,
		StudentEmail: d.StudentEmail,
		Feedback:     d.Feedback,
	}
	if d.Grade != nil {
		rec.Grade = null.Float64From(*d.Grade)
	}
	if d.Submission != nil {
		sub, err := d.Submission.toSubmission()
		if err != nil {
			return grading.GradeRecord{}, err
		}
		rec.Submission = &sub
	}
	return rec, nil
}

func (d submissionDoc) toSubmission() (grading.Submission, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return grading.Submission{}, errors.Wrap(err, "parsing submission ID")
	}
	sub := grading.Submission{
		ID:          id,
		SubmittedAt: d.SubmittedAt.UTC(),
		Content:     d.Content,
	}
	for _, a := range d.Attachments {
		sub.Attachments = append(sub.Attachments, grading.Attachment{Name: a.Name, URL: a.URL, MediaType: a.MediaType})
	}
	return sub, nil
}
