package grading

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/mkabeya/darasa/core"
)

// Session owns the working set of GradeRecords for one task: the record
// store, the single active edit, the dirty tracking and the batch save.
// A session is created empty via Service.NewSession and populated by Load.
//
// Load, Save and all mutations are refused with ErrSaveInFlight while a
// batch save is on the wire; at most one save may be in flight per session.
type Session struct {
	svc *Service

	mu      sync.Mutex
	task    Task
	records []*GradeRecord // load order
	index   map[uuid.UUID]*GradeRecord
	active  uuid.NullUUID // single active edit; at most one record editable at a time
	saving  bool
}

// Load fetches the task metadata and the full record set, replacing any
// previous working set wholesale. Every record starts clean. On failure the
// previous state is kept but the caller must leave the grading view.
func (s *Session) Load(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	s.mu.Unlock()

	task, recs, err := s.svc.repo.FetchGradingData(ctx, taskID)
	if err != nil {
		return &LoadError{TaskID: taskID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInFlight
	}
	s.replaceAll(task, recs)
	return nil
}

// replaceAll swaps the in-memory set atomically; replacement is by identity,
// not merge, so edits against stale record IDs become no-ops. mu must be held.
func (s *Session) replaceAll(task Task, recs []GradeRecord) {
	records := make([]*GradeRecord, len(recs))
	index := make(map[uuid.UUID]*GradeRecord, len(recs))
	for i := range recs {
		rec := recs[i]
		rec.dirty = false
		records[i] = &rec
		index[rec.ID] = &rec
	}
	s.task = task
	s.records = records
	s.index = index
	s.active = uuid.NullUUID{}
}

func (s *Session) Task() Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// Records returns a snapshot of the working set, in load order.
func (s *Session) Records() []GradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]GradeRecord, len(s.records))
	for i, rec := range s.records {
		recs[i] = *rec
	}
	return recs
}

func (s *Session) ActiveEditID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.UUID, s.active.Valid
}

// BeginEdit makes recordID the session's single active edit, overwriting any
// previous one. The previously active record keeps whatever dirty state it
// was left in; switching rows does not discard pending edits.
func (s *Session) BeginEdit(recordID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInFlight
	}
	if _, ok := s.index[recordID]; !ok {
		return ErrRecordNotFound
	}
	s.active = uuid.NullUUID{UUID: recordID, Valid: true}
	return nil
}

func (s *Session) EndEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = uuid.NullUUID{}
}

// SetGrade parses raw and updates the active record's grade. Empty input
// clears the grade. Values above Task.MaxPoints or below zero are rejected
// with a ValidationError; the record is left unchanged, never clamped.
// Any accepted edit marks the record dirty, even when the value is unchanged.
func (s *Session) SetGrade(recordID uuid.UUID, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInFlight
	}
	rec, err := s.activeRecord(recordID)
	if err != nil {
		return err
	}

	raw = core.CleanString(raw)
	if raw == "" {
		rec.Grade.Valid = false
		rec.Grade.Float64 = 0
		rec.dirty = true
		return nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return core.NewValidationError(errGradeNotANumber,
			core.FieldError{Field: "grade", Error: "must be a number"})
	}
	if val > s.task.MaxPoints {
		return core.NewValidationError(errGradeTooHigh,
			core.FieldError{Field: "grade", Error: "may not exceed " + strconv.FormatFloat(s.task.MaxPoints, 'f', -1, 64) + " points"})
	}
	if val < 0 {
		return core.NewValidationError(errGradeNegative,
			core.FieldError{Field: "grade", Error: "may not be negative"})
	}

	rec.Grade.Float64 = val
	rec.Grade.Valid = true
	rec.dirty = true
	return nil
}

// SetFeedback updates the active record's feedback and marks it dirty
// unconditionally.
func (s *Session) SetFeedback(recordID uuid.UUID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInFlight
	}
	rec, err := s.activeRecord(recordID)
	if err != nil {
		return err
	}
	rec.Feedback = text
	rec.dirty = true
	return nil
}

// activeRecord enforces that only the active edit may be mutated. mu must be held.
func (s *Session) activeRecord(recordID uuid.UUID) (*GradeRecord, error) {
	if !s.active.Valid || s.active.UUID != recordID {
		return nil, ErrRecordNotActive
	}
	rec, ok := s.index[recordID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// CollectChanges returns the batch payload: one entry per dirty record,
// in load order. Absent grades serialize as null.
func (s *Session) CollectChanges() []GradeChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectChanges()
}

// collectChanges: mu must be held.
func (s *Session) collectChanges() []GradeChange {
	var changes []GradeChange
	for _, rec := range s.records {
		if rec.dirty {
			changes = append(changes, GradeChange{
				RecordID: rec.ID,
				Grade:    rec.Grade,
				Feedback: rec.Feedback,
			})
		}
	}
	return changes
}

func (s *Session) ChangesPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.dirty {
			return true
		}
	}
	return false
}

// Save persists all dirty records in a single batch call, then reloads the
// record set from the source of truth (clearing every dirty flag and the
// active edit) and notifies the affected students.
//
// Returns ErrNoPendingChanges without a network call when nothing is dirty,
// ErrSaveInFlight when a save is already on the wire, and a SaveError on
// persistence failure, in which case the working set is left exactly as it
// was so the caller may retry without re-entering edits.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	changes := s.collectChanges()
	if len(changes) == 0 {
		s.mu.Unlock()
		return ErrNoPendingChanges
	}
	taskID := s.task.ID
	s.saving = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	if err := s.svc.repo.SaveGradeBatch(ctx, taskID, changes); err != nil {
		return &SaveError{TaskID: taskID, Err: err}
	}

	// Reload from the source of truth; server-computed fields win.
	// The batch did persist, so a failure here is a LoadError: the caller
	// must abandon the now-stale view rather than retry the save.
	task, recs, err := s.svc.repo.FetchGradingData(ctx, taskID)
	if err != nil {
		return &LoadError{TaskID: taskID, Err: err}
	}

	s.mu.Lock()
	s.replaceAll(task, recs)
	s.mu.Unlock()

	s.svc.notifyGradesPosted(task, recs, changes)
	return nil
}
