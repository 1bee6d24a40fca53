package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/mkabeya/darasa/core"
	"github.com/mkabeya/darasa/core/grading"
	inmemdb "github.com/mkabeya/darasa/storage/database/inmem"
)

type nopMailer struct{}

func (nopMailer) SendMessages(...*core.EmailMessage) {}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func setup(t *testing.T) (Server, grading.Task, []grading.GradeRecord) {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	dueDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	task := grading.Task{
		ID:        uuid.New(),
		CourseID:  uuid.New(),
		Title:     "Lab Report 3",
		Type:      "lab",
		MaxPoints: 20,
		DueDate:   dueDate,
	}
	recs := []grading.GradeRecord{
		{
			ID:           uuid.New(),
			StudentID:    uuid.New(),
			StudentName:  "Asha Odhiambo",
			StudentEmail: "asha@students.test",
			Submission:   &grading.Submission{ID: uuid.New(), SubmittedAt: dueDate.Add(-time.Hour)},
		},
		{
			ID:          uuid.New(),
			StudentID:   uuid.New(),
			StudentName: "Brian Mwangi",
		},
	}
	db.AddTask(task)
	db.AddGradeRecords(task.ID, recs...)

	svc := grading.NewService(inmemdb.NewGradingRepository(db), nopMailer{}, nopLogger{})
	srv := NewServer(&Options{
		Address:        ":0",
		DisableReqLogs: true,
		GradingSvc:     svc,
		Logger:         nopLogger{},
	})
	return srv, task, recs
}

func request(t *testing.T, srv Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("request() failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding session response: %v", err)
	}
	return resp
}

func createSession(t *testing.T, srv Server, taskID uuid.UUID) sessionResponse {
	t.Helper()
	rec := request(t, srv, http.MethodPost, "/v1/grading/sessions", createSessionRequest{TaskID: taskID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: code = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decodeSession(t, rec)
}

func sessionPath(id uuid.UUID, parts ...string) string {
	p := "/v1/grading/sessions/" + id.String()
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func Test_gradingApi_sessionCreate(t *testing.T) {
	srv, task, recs := setup(t)

	sess := createSession(t, srv, task.ID)
	assert.Equal(t, task.ID, sess.Task.ID)
	assert.Len(t, sess.Records, 2)
	assert.Equal(t, recs[0].ID, sess.Records[0].ID)
	assert.Equal(t, grading.StatusSubmittedOnTime, sess.Records[0].Status)
	assert.Equal(t, grading.StatusNotSubmitted, sess.Records[1].Status)
	assert.False(t, sess.ChangesPending)
	assert.Nil(t, sess.ActiveEditID)

	t.Run("unknown task", func(t *testing.T) {
		rec := request(t, srv, http.MethodPost, "/v1/grading/sessions", createSessionRequest{TaskID: uuid.New()})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing task_id", func(t *testing.T) {
		rec := request(t, srv, http.MethodPost, "/v1/grading/sessions", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_gradingApi_editAndSave(t *testing.T) {
	srv, task, recs := setup(t)
	sess := createSession(t, srv, task.ID)
	recA := recs[0]

	// grade edits require an active edit
	code := request(t, srv, http.MethodPut, sessionPath(sess.ID, "grade"), setGradeRequest{RecordID: recA.ID, Grade: "15"}).Code
	assert.Equal(t, http.StatusConflict, code)

	code = request(t, srv, http.MethodPut, sessionPath(sess.ID, "edit"), beginEditRequest{RecordID: recA.ID}).Code
	assert.Equal(t, http.StatusNoContent, code)

	// above max points: rejected, field error
	rec := request(t, srv, http.MethodPut, sessionPath(sess.ID, "grade"), setGradeRequest{RecordID: recA.ID, Grade: "21"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code = request(t, srv, http.MethodPut, sessionPath(sess.ID, "grade"), setGradeRequest{RecordID: recA.ID, Grade: "15"}).Code
	assert.Equal(t, http.StatusNoContent, code)
	code = request(t, srv, http.MethodPut, sessionPath(sess.ID, "feedback"), setFeedbackRequest{RecordID: recA.ID, Feedback: "well done"}).Code
	assert.Equal(t, http.StatusNoContent, code)

	state := decodeSession(t, request(t, srv, http.MethodGet, sessionPath(sess.ID), nil))
	assert.True(t, state.ChangesPending)
	assert.True(t, state.Records[0].Dirty)
	if assert.NotNil(t, state.ActiveEditID) {
		assert.Equal(t, recA.ID, *state.ActiveEditID)
	}

	// save: one batch, then a clean reloaded set
	saved := decodeSession(t, request(t, srv, http.MethodPost, sessionPath(sess.ID, "save"), nil))
	assert.False(t, saved.ChangesPending)
	assert.Nil(t, saved.ActiveEditID)
	assert.Equal(t, null.Float64From(15), saved.Records[0].Grade)
	assert.Equal(t, "well done", saved.Records[0].Feedback)
	assert.Equal(t, grading.StatusGraded, saved.Records[0].Status)
	assert.False(t, saved.Records[0].Dirty)

	// nothing dirty: no-op save
	rec = request(t, srv, http.MethodPost, sessionPath(sess.ID, "save"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "no changes to save")
}

func Test_gradingApi_sessionSubmission(t *testing.T) {
	srv, task, recs := setup(t)
	sess := createSession(t, srv, task.ID)

	rec := request(t, srv, http.MethodGet, sessionPath(sess.ID, "records", recs[0].ID.String(), "submission"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var sub grading.Submission
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, recs[0].Submission.ID, sub.ID)

	// record with no submission
	rec = request(t, srv, http.MethodGet, sessionPath(sess.ID, "records", recs[1].ID.String(), "submission"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_gradingApi_sessionClose(t *testing.T) {
	srv, task, _ := setup(t)
	sess := createSession(t, srv, task.ID)

	code := request(t, srv, http.MethodDelete, sessionPath(sess.ID), nil).Code
	assert.Equal(t, http.StatusNoContent, code)

	code = request(t, srv, http.MethodGet, sessionPath(sess.ID), nil).Code
	assert.Equal(t, http.StatusNotFound, code)

	t.Run("unknown session", func(t *testing.T) {
		code := request(t, srv, http.MethodGet, sessionPath(uuid.New()), nil).Code
		assert.Equal(t, http.StatusNotFound, code)

		code = request(t, srv, http.MethodPost, sessionPath(uuid.New(), "save"), nil).Code
		assert.Equal(t, http.StatusNotFound, code)
	})
}
