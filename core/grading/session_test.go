package grading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/mkabeya/darasa/core"
)

var testDueDate = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func newTestRepo() *fakeRepository {
	task := newTestTask(100, testDueDate)
	onTime := &Submission{SubmittedAt: testDueDate.Add(-time.Hour)}
	late := &Submission{SubmittedAt: testDueDate.Add(24 * time.Hour)}
	return &fakeRepository{
		task: task,
		records: []GradeRecord{
			newTestRecord("Asha Odhiambo", "asha@students.test", onTime),
			newTestRecord("Brian Mwangi", "brian@students.test", late, 80),
			newTestRecord("Chantal Uwase", "chantal@students.test", nil),
		},
	}
}

func newLoadedSession(t *testing.T, repo *fakeRepository, mailer core.EmailService) *Session {
	t.Helper()
	if mailer == nil {
		mailer = &fakeMailer{}
	}
	svc := NewService(repo, mailer, nopLogger{})
	sess := svc.NewSession()
	if err := sess.Load(context.Background(), repo.task.ID); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return sess
}

func TestSessionLoad(t *testing.T) {
	repo := newTestRepo()
	sess := newLoadedSession(t, repo, nil)

	recs := sess.Records()
	assert.Len(t, recs, 3)
	for _, rec := range recs {
		assert.False(t, rec.Dirty())
	}
	assert.Equal(t, repo.task, sess.Task())
	_, active := sess.ActiveEditID()
	assert.False(t, active)
	assert.False(t, sess.ChangesPending())

	t.Run("unknown task", func(t *testing.T) {
		err := sess.Load(context.Background(), repo.records[0].ID)
		var loadErr *LoadError
		assert.True(t, errors.As(err, &loadErr))
		assert.True(t, errors.Is(err, ErrTaskNotFound))
	})

	t.Run("fetch failure", func(t *testing.T) {
		repo.fetchErr = errors.New("connection reset")
		defer func() { repo.fetchErr = nil }()

		err := sess.Load(context.Background(), repo.task.ID)
		var loadErr *LoadError
		assert.True(t, errors.As(err, &loadErr))
		// previous working set survives, even though the caller must leave the view
		assert.Len(t, sess.Records(), 3)
	})
}

func TestSessionBeginEdit(t *testing.T) {
	repo := newTestRepo()
	sess := newLoadedSession(t, repo, nil)

	recA, recB := repo.records[0], repo.records[1]

	if err := sess.BeginEdit(repo.task.ID); err != ErrRecordNotFound {
		t.Errorf("BeginEdit(unknown) error = %v, want %v", err, ErrRecordNotFound)
	}

	// edit A, then switch to B: A keeps its pending edit
	assert.NoError(t, sess.BeginEdit(recA.ID))
	assert.NoError(t, sess.SetGrade(recA.ID, "90"))
	assert.NoError(t, sess.BeginEdit(recB.ID))

	id, ok := sess.ActiveEditID()
	assert.True(t, ok)
	assert.Equal(t, recB.ID, id)

	recs := sess.Records()
	assert.True(t, recs[0].Dirty())
	assert.Equal(t, null.Float64From(90), recs[0].Grade)

	sess.EndEdit()
	_, ok = sess.ActiveEditID()
	assert.False(t, ok)
}

func TestSessionSetGrade(t *testing.T) {
	repo := newTestRepo()
	recA, recB := repo.records[0], repo.records[1]

	tests := []struct {
		name      string
		raw       string
		wantVal   bool
		wantGrade null.Float64
		wantDirty bool
	}{
		{name: "valid grade", raw: "75.5", wantGrade: null.Float64From(75.5), wantDirty: true},
		{name: "upper bound is allowed", raw: "100", wantGrade: null.Float64From(100), wantDirty: true},
		{name: "empty input clears the grade", raw: "  ", wantGrade: null.Float64{}, wantDirty: true},
		{name: "exceeds max points", raw: "150", wantVal: true},
		{name: "negative", raw: "-1", wantVal: true},
		{name: "not a number", raw: "ninety", wantVal: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newLoadedSession(t, repo, nil)
			assert.NoError(t, sess.BeginEdit(recA.ID))

			err := sess.SetGrade(recA.ID, tt.raw)
			rec := sess.Records()[0]
			if tt.wantVal {
				var vErr *core.ValidationError
				assert.True(t, errors.As(err, &vErr), "SetGrade() error = %v, want ValidationError", err)
				// rejected: record left unchanged, not marked dirty
				assert.Equal(t, recA.Grade, rec.Grade)
				assert.False(t, rec.Dirty())
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantGrade, rec.Grade)
			assert.Equal(t, tt.wantDirty, rec.Dirty())
		})
	}

	t.Run("non-active record is refused", func(t *testing.T) {
		sess := newLoadedSession(t, repo, nil)
		assert.NoError(t, sess.BeginEdit(recA.ID))
		assert.Equal(t, ErrRecordNotActive, sess.SetGrade(recB.ID, "50"))
		assert.Equal(t, ErrRecordNotActive, sess.SetFeedback(recB.ID, "nope"))
	})

	t.Run("no edit in progress", func(t *testing.T) {
		sess := newLoadedSession(t, repo, nil)
		assert.Equal(t, ErrRecordNotActive, sess.SetGrade(recA.ID, "50"))
	})

	t.Run("no-op edit still marks dirty", func(t *testing.T) {
		// recB loads with grade 80; re-entering 80 must still flag it
		sess := newLoadedSession(t, repo, nil)
		assert.NoError(t, sess.BeginEdit(recB.ID))
		assert.NoError(t, sess.SetGrade(recB.ID, "80"))
		assert.True(t, sess.Records()[1].Dirty())
	})
}

func TestSessionSetFeedback(t *testing.T) {
	repo := newTestRepo()
	sess := newLoadedSession(t, repo, nil)
	rec := repo.records[2]

	assert.NoError(t, sess.BeginEdit(rec.ID))
	assert.NoError(t, sess.SetFeedback(rec.ID, "See me after class."))

	got := sess.Records()[2]
	assert.Equal(t, "See me after class.", got.Feedback)
	assert.True(t, got.Dirty())

	// unconditional dirty-marking applies to feedback too
	sess2 := newLoadedSession(t, repo, nil)
	assert.NoError(t, sess2.BeginEdit(rec.ID))
	assert.NoError(t, sess2.SetFeedback(rec.ID, rec.Feedback))
	assert.True(t, sess2.Records()[2].Dirty())
}

func TestSessionCollectChanges(t *testing.T) {
	repo := newTestRepo()
	sess := newLoadedSession(t, repo, nil)
	recA, recC := repo.records[0], repo.records[2]

	assert.Empty(t, sess.CollectChanges())

	// edit the third record first, then the first: payload stays in load order
	assert.NoError(t, sess.BeginEdit(recC.ID))
	assert.NoError(t, sess.SetFeedback(recC.ID, "missing work"))
	assert.NoError(t, sess.BeginEdit(recA.ID))
	assert.NoError(t, sess.SetGrade(recA.ID, "66"))

	changes := sess.CollectChanges()
	assert.Len(t, changes, 2)
	assert.Equal(t, recA.ID, changes[0].RecordID)
	assert.Equal(t, null.Float64From(66), changes[0].Grade)
	assert.Equal(t, recC.ID, changes[1].RecordID)
	assert.False(t, changes[1].Grade.Valid, "absent grade must serialize as null")
	assert.Equal(t, "missing work", changes[1].Feedback)
	assert.True(t, sess.ChangesPending())
}

func TestSessionSave(t *testing.T) {
	repo := newTestRepo()
	mailer := &fakeMailer{}
	sess := newLoadedSession(t, repo, mailer)
	recA := repo.records[0]

	assert.NoError(t, sess.BeginEdit(recA.ID))
	assert.NoError(t, sess.SetGrade(recA.ID, "88"))
	assert.NoError(t, sess.SetFeedback(recA.ID, "good work"))

	assert.NoError(t, sess.Save(context.Background()))
	assert.Equal(t, 1, repo.saveCalls)
	assert.Len(t, repo.lastChanges, 1)
	assert.Equal(t, recA.ID, repo.lastChanges[0].RecordID)

	// reload cleared every dirty flag and the active edit
	for _, rec := range sess.Records() {
		assert.False(t, rec.Dirty())
	}
	_, active := sess.ActiveEditID()
	assert.False(t, active)
	assert.Equal(t, null.Float64From(88), sess.Records()[0].Grade)

	// only the changed student is notified
	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, recA.StudentEmail, mailer.sent[0].To[0].Address)

	// no edits since: second save performs no network call
	assert.Equal(t, ErrNoPendingChanges, sess.Save(context.Background()))
	assert.Equal(t, 1, repo.saveCalls)
}

func TestSessionSaveFailure(t *testing.T) {
	repo := newTestRepo()
	mailer := &fakeMailer{}
	sess := newLoadedSession(t, repo, mailer)
	recB := repo.records[1]

	assert.NoError(t, sess.BeginEdit(recB.ID))
	assert.NoError(t, sess.SetGrade(recB.ID, "95"))
	before := sess.CollectChanges()

	repo.saveErr = errors.New("gateway timeout")
	err := sess.Save(context.Background())
	var saveErr *SaveError
	assert.True(t, errors.As(err, &saveErr))
	assert.Empty(t, mailer.sent)

	// dirty set identical to the one immediately before the call
	assert.Equal(t, before, sess.CollectChanges())
	id, active := sess.ActiveEditID()
	assert.True(t, active)
	assert.Equal(t, recB.ID, id)

	// retry without re-entering edits
	repo.saveErr = nil
	assert.NoError(t, sess.Save(context.Background()))
	assert.Equal(t, 2, repo.saveCalls)
	assert.False(t, sess.ChangesPending())
}

func TestSessionSaveInFlight(t *testing.T) {
	repo := newTestRepo()
	repo.blockSave = make(chan struct{})
	repo.saveStarted = make(chan struct{})
	sess := newLoadedSession(t, repo, nil)
	recA := repo.records[0]

	assert.NoError(t, sess.BeginEdit(recA.ID))
	assert.NoError(t, sess.SetGrade(recA.ID, "70"))

	done := make(chan error, 1)
	go func() { done <- sess.Save(context.Background()) }()
	<-repo.saveStarted

	// at most one batch save in flight; reloads and edits are fenced too
	assert.Equal(t, ErrSaveInFlight, sess.Save(context.Background()))
	assert.Equal(t, ErrSaveInFlight, sess.Load(context.Background(), repo.task.ID))
	assert.Equal(t, ErrSaveInFlight, sess.SetGrade(recA.ID, "71"))
	assert.Equal(t, ErrSaveInFlight, sess.SetFeedback(recA.ID, "x"))
	assert.Equal(t, ErrSaveInFlight, sess.BeginEdit(recA.ID))

	close(repo.blockSave)
	assert.NoError(t, <-done)
	assert.Equal(t, 1, repo.saveCalls)
}

func TestServiceSubmissionPreview(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo, &fakeMailer{}, nopLogger{})

	sub, err := svc.SubmissionPreview(context.Background(), repo.records[0].ID)
	assert.NoError(t, err)
	assert.Equal(t, *repo.records[0].Submission, sub)

	_, err = svc.SubmissionPreview(context.Background(), repo.records[2].ID)
	assert.Equal(t, ErrSubmissionNotFound, err)

	_, err = svc.SubmissionPreview(context.Background(), repo.task.ID)
	assert.Equal(t, ErrRecordNotFound, err)
}
