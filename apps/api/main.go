package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	echoapi "github.com/mkabeya/darasa/apps/api/echo"
	"github.com/mkabeya/darasa/core"
	"github.com/mkabeya/darasa/core/grading"
	emailsvc "github.com/mkabeya/darasa/services/email"
	logsvc "github.com/mkabeya/darasa/services/logger"
	"github.com/mkabeya/darasa/storage/database"
	inmemdb "github.com/mkabeya/darasa/storage/database/inmem"
	mongodb "github.com/mkabeya/darasa/storage/database/mongo"
	sqlxrepos "github.com/mkabeya/darasa/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up services
	var logger core.Logger
	if core.Conf.Debug || core.Conf.TestMode {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	repo, cleanup, err := openRepository(logger)
	errAndDie(err)
	defer cleanup()

	gradingSvc := grading.NewService(repo, mailSvc, logger)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Address:    core.Conf.Server.Address(),
			GradingSvc: gradingSvc,
			Logger:     logger,
		},
	)
	app.Start()
}

func openRepository(logger core.Logger) (grading.Repository, func(), error) {
	switch core.Conf.Database.Engine {
	case "postgres":
		db, err := database.Open(core.Conf)
		if err != nil {
			return nil, nil, err
		}
		return sqlxrepos.NewGradingRepository(db), func() { _ = db.Close() }, nil
	case "mongodb":
		client, db, err := mongodb.Open(context.Background(), core.Conf)
		if err != nil {
			return nil, nil, err
		}
		return mongodb.NewGradingRepository(db), func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		db, err := inmemdb.Open()
		if err != nil {
			return nil, nil, err
		}
		seedDemoData(db)
		logger.Info("using in-memory storage with demo data")
		return inmemdb.NewGradingRepository(db), func() {}, nil
	}
}

// seedDemoData fills the in-memory store so a fresh DEV server has something to grade.
func seedDemoData(db *inmemdb.DB) {
	dueDate := time.Now().UTC().Truncate(time.Hour)
	task := grading.Task{
		ID:        uuid.New(),
		CourseID:  uuid.New(),
		Title:     "Demo Assignment",
		Type:      "homework",
		MaxPoints: 100,
		DueDate:   dueDate,
	}
	db.AddTask(task)
	db.AddGradeRecords(task.ID,
		grading.GradeRecord{
			ID:           uuid.New(),
			StudentID:    uuid.New(),
			StudentName:  "Asha Odhiambo",
			StudentEmail: "asha@students.example.com",
			Submission: &grading.Submission{
				ID:          uuid.New(),
				SubmittedAt: dueDate.Add(-2 * time.Hour),
				Attachments: []grading.Attachment{{Name: "homework.pdf", URL: "/files/homework.pdf", MediaType: "application/pdf"}},
			},
		},
		grading.GradeRecord{
			ID:           uuid.New(),
			StudentID:    uuid.New(),
			StudentName:  "Brian Mwangi",
			StudentEmail: "brian@students.example.com",
			Submission: &grading.Submission{
				ID:          uuid.New(),
				SubmittedAt: dueDate.Add(3 * time.Hour),
			},
		},
		grading.GradeRecord{
			ID:           uuid.New(),
			StudentID:    uuid.New(),
			StudentName:  "Chantal Uwase",
			StudentEmail: "chantal@students.example.com",
		},
	)
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
