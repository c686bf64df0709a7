// Package shift implements the live shift session lifecycle: the in-progress
// work period during which ride records accumulate before finalization into
// permanent history.
//
// A session is scoped to one user's single active shift. Every operation
// read-modify-writes the same record list and rest-minute counter, so the
// whole lifecycle is serialized behind one mutex.
package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamaji/taxikko/internal/businessday"
	"github.com/hamaji/taxikko/internal/common"
	"github.com/hamaji/taxikko/internal/model"
	"github.com/hamaji/taxikko/internal/reconcile"
	"github.com/hamaji/taxikko/internal/service"
)

// State is the session lifecycle state.
type State string

// Session states. Transitions: CLOSED → OPEN ⇄ ON_BREAK → CLOSED, with
// finalize legal from either OPEN or ON_BREAK.
const (
	StateClosed  State = "CLOSED"
	StateOpen    State = "OPEN"
	StateOnBreak State = "ON_BREAK"
)

// InvalidTransitionError reports a lifecycle call made in a state that does
// not permit it. The call is a no-op.
type InvalidTransitionError struct {
	Op    string
	State State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid session transition: %s while %s", e.Op, e.State)
}

// Unwrap maps closed-state rejections to the shared sentinel so callers can
// treat "no shift in progress" uniformly.
func (e *InvalidTransitionError) Unwrap() error {
	if e.State == StateClosed {
		return common.ErrNoActiveSession
	}
	return nil
}

// writeRetryOpts bounds the write-through retry. Delays stay short: the store
// is local sqlite or an already-connected Firestore client.
var writeRetryOpts = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     time.Second,
	Multiplier:   2.0,
}

// Session is the stateful shift aggregate. Mutations apply to in-memory state
// synchronously and are written through to the store; a store failure is
// surfaced as a retryable error and never rolls back memory.
type Session struct {
	startTime     time.Time
	breakStart    time.Time
	now           func() time.Time
	store         service.RecordStore
	meta          service.DayMetadataStore
	records       []model.Record
	id            string
	res           businessday.Resolver
	state         State
	dailyGoal     int
	plannedHours  int
	totalRestMins int
	startOdometer int
	mu            sync.Mutex
}

// NewSession creates a closed session. The now function defaults to time.Now;
// tests inject a fixed clock.
func NewSession(store service.RecordStore, meta service.DayMetadataStore, res businessday.Resolver, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{
		store: store,
		meta:  meta,
		res:   res,
		now:   now,
		state: StateClosed,
	}
}

// Start opens the session. Valid only from CLOSED. It re-adopts any records
// already belonging to today's business date (a previous session that was
// never finalized) and carries over the day's accumulated rest minutes from
// DayMetadata, so closing the app mid-shift loses nothing.
func (s *Session) Start(ctx context.Context, goal, plannedHours, startOdo int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		return &InvalidTransitionError{Op: "start", State: s.state}
	}

	now := s.now()
	day := s.res.Resolve(now)
	from := day.Add(time.Duration(s.res.StartHour) * time.Hour)
	to := from.Add(24 * time.Hour)

	seed, err := s.store.GetRecordsByRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to load today's records: %w", err)
	}

	restMins := 0
	meta, err := s.meta.GetDayMetadata(ctx, day.Format(businessday.KeyLayout))
	switch {
	case err == nil:
		restMins = meta.RestMinutes
	case errors.Is(err, common.ErrNotFound):
		// first shift of the day
	default:
		return fmt.Errorf("failed to load day metadata: %w", err)
	}

	s.id = uuid.NewString()
	s.state = StateOpen
	s.startTime = now
	s.dailyGoal = goal
	s.plannedHours = plannedHours
	s.startOdometer = startOdo
	s.totalRestMins = restMins
	s.records = seed
	s.sortRecords()

	slog.Info("Shift session started",
		"session_id", s.id,
		"business_date", day.Format(businessday.KeyLayout),
		"seeded_records", len(seed),
		"carried_rest_minutes", restMins)
	return nil
}

// AddRecord adds a new record to the open session. A missing ID is minted.
// The write is checked against the reconciliation rules: landing a record of
// one mode on a day held by the other mode is rejected with a Conflict the
// caller must resolve explicitly.
func (s *Session) AddRecord(ctx context.Context, rec model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen && s.state != StateOnBreak {
		return &InvalidTransitionError{Op: "addRecord", State: s.state}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if conflict := reconcile.CheckWrite(s.records, rec, s.res); conflict != nil {
		return conflict
	}

	return s.applyWrite(ctx, rec)
}

// EditRecord replaces the session record with the same ID.
func (s *Session) EditRecord(ctx context.Context, rec model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen && s.state != StateOnBreak {
		return &InvalidTransitionError{Op: "editRecord", State: s.state}
	}

	if s.indexOf(rec.ID) < 0 {
		return fmt.Errorf("record %s: %w", rec.ID, common.ErrNotFound)
	}
	if conflict := reconcile.CheckWrite(s.records, rec, s.res); conflict != nil {
		return conflict
	}

	return s.applyWrite(ctx, rec)
}

// applyWrite installs the record locally, replacing any prior summary on its
// business date (a date holds at most one SimpleSummary), then writes through.
// Callers hold the mutex.
func (s *Session) applyWrite(ctx context.Context, rec model.Record) error {
	prior := reconcile.PriorSummaries(s.records, rec, s.res)
	for _, id := range prior {
		if i := s.indexOf(id); i >= 0 {
			s.records = append(s.records[:i], s.records[i+1:]...)
		}
	}
	s.upsert(rec)

	if len(prior) > 0 {
		err := common.WithRetry(ctx, func() error {
			return s.store.DeleteRecords(ctx, prior)
		}, writeRetryOpts)
		if err != nil {
			return &common.RetryableError{Err: fmt.Errorf("summary replaced locally, store delete failed: %w", err), Retryable: true}
		}
	}
	return s.persist(ctx, rec)
}

// DeleteRecord removes the record from the session and the store.
func (s *Session) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen && s.state != StateOnBreak {
		return &InvalidTransitionError{Op: "deleteRecord", State: s.state}
	}

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	s.records = append(s.records[:i], s.records[i+1:]...)

	err := common.WithRetry(ctx, func() error {
		return s.store.DeleteRecords(ctx, []string{id})
	}, writeRetryOpts)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("record deleted locally, store delete failed: %w", err), Retryable: true}
	}
	return nil
}

// ToggleBreak flips OPEN ⇄ ON_BREAK and returns the new state. Break time is
// added to the rest-minute counter only when the break ends; records may
// still be added while on break.
func (s *Session) ToggleBreak() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateOpen:
		s.state = StateOnBreak
		s.breakStart = s.now()
	case StateOnBreak:
		s.endBreak()
		s.state = StateOpen
	default:
		return s.state, &InvalidTransitionError{Op: "toggleBreak", State: s.state}
	}
	return s.state, nil
}

// Finalize ends the shift: records are committed to history (the store has
// them already from write-through, so the commit is idempotent), DayMetadata
// is written for the shift's business date, and the session clears. This is
// the only operation that permanently closes out a day's detailed records.
func (s *Session) Finalize(ctx context.Context, endOdo int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen && s.state != StateOnBreak {
		return &InvalidTransitionError{Op: "finalize", State: s.state}
	}
	if s.state == StateOnBreak {
		s.endBreak()
	}

	day := s.res.Resolve(s.startTime)
	dateKey := day.Format(businessday.KeyLayout)
	count := len(s.records)
	records := s.records
	restMins := s.totalRestMins
	startOdo := s.startOdometer

	// The session is closed regardless of how the store calls below fare.
	s.state = StateClosed
	s.records = nil
	s.id = ""
	s.totalRestMins = 0

	if len(records) > 0 {
		if err := s.store.SaveRecords(ctx, records); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("session closed, history commit failed: %w", err), Retryable: true}
		}
	}

	meta := &model.DayMetadata{
		Date:          dateKey,
		RestMinutes:   restMins,
		StartOdometer: startOdo,
		EndOdometer:   endOdo,
		UpdatedAt:     s.now(),
	}
	if existing, err := s.meta.GetDayMetadata(ctx, dateKey); err == nil {
		meta.Memo = existing.Memo
		meta.AttributedMonth = existing.AttributedMonth
	}
	if err := s.meta.SaveDayMetadata(ctx, meta); err != nil {
		return &common.RetryableError{Err: fmt.Errorf("session closed, day metadata write failed: %w", err), Retryable: true}
	}

	slog.Info("Shift session finalized",
		"business_date", dateKey,
		"records", count,
		"rest_minutes", restMins)
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Records returns a copy of the session's live records, timestamp-ascending.
func (s *Session) Records() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Snapshot is a read-only view of session progress for live status displays.
type Snapshot struct {
	StartTime    time.Time
	ID           string
	State        State
	DailyGoal    int
	PlannedHours int
	RestMinutes  int
	Sales        int
	Rides        int
}

// Snapshot returns the session's current progress.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		State:        s.state,
		StartTime:    s.startTime,
		DailyGoal:    s.dailyGoal,
		PlannedHours: s.plannedHours,
		RestMinutes:  s.totalRestMins,
	}
	for i := range s.records {
		snap.Sales += s.records[i].Sales()
		snap.Rides += s.records[i].Rides()
	}
	return snap
}

// PersistedState is the minimal scalar state needed to rehydrate an open
// session across process restarts. Records are not part of it: they are
// written through to the store as they happen and re-seed on Restore.
type PersistedState struct {
	StartTime     time.Time `json:"start_time"`
	BreakStart    time.Time `json:"break_start"`
	ID            string    `json:"id"`
	State         State     `json:"state"`
	DailyGoal     int       `json:"daily_goal"`
	PlannedHours  int       `json:"planned_hours"`
	StartOdometer int       `json:"start_odometer"`
	RestMinutes   int       `json:"rest_minutes"`
}

// PersistedState returns the session's rehydratable scalar state.
func (s *Session) PersistedState() PersistedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PersistedState{
		ID:            s.id,
		State:         s.state,
		StartTime:     s.startTime,
		BreakStart:    s.breakStart,
		DailyGoal:     s.dailyGoal,
		PlannedHours:  s.plannedHours,
		StartOdometer: s.startOdometer,
		RestMinutes:   s.totalRestMins,
	}
}

// Restore rehydrates a previously persisted open session, re-adopting its
// business date's records from the store. Valid only from CLOSED; restoring
// a CLOSED state is a no-op.
func (s *Session) Restore(ctx context.Context, st PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		return &InvalidTransitionError{Op: "restore", State: s.state}
	}
	if st.State != StateOpen && st.State != StateOnBreak {
		return nil
	}

	day := s.res.Resolve(st.StartTime)
	from := day.Add(time.Duration(s.res.StartHour) * time.Hour)
	to := from.Add(24 * time.Hour)
	seed, err := s.store.GetRecordsByRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to load session records: %w", err)
	}

	s.id = st.ID
	s.state = st.State
	s.startTime = st.StartTime
	s.breakStart = st.BreakStart
	s.dailyGoal = st.DailyGoal
	s.plannedHours = st.PlannedHours
	s.startOdometer = st.StartOdometer
	s.totalRestMins = st.RestMinutes
	s.records = seed
	s.sortRecords()
	return nil
}

// endBreak accumulates the elapsed break into the rest-minute counter.
// Callers hold the mutex.
func (s *Session) endBreak() {
	s.totalRestMins += int(s.now().Sub(s.breakStart).Minutes())
	s.breakStart = time.Time{}
}

// upsert replaces by ID or appends, keeping timestamp order. Callers hold the
// mutex.
func (s *Session) upsert(rec model.Record) {
	if i := s.indexOf(rec.ID); i >= 0 {
		s.records[i] = rec
	} else {
		s.records = append(s.records, rec)
	}
	s.sortRecords()
}

func (s *Session) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) sortRecords() {
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].Timestamp.Before(s.records[j].Timestamp)
	})
}

// persist writes the record through to the store, retrying transient failures.
// A final failure is surfaced as retryable and leaves local state intact.
func (s *Session) persist(ctx context.Context, rec model.Record) error {
	err := common.WithRetry(ctx, func() error {
		return s.store.SaveRecords(ctx, []model.Record{rec})
	}, writeRetryOpts)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("record applied locally, store write failed: %w", err), Retryable: true}
	}
	return nil
}
