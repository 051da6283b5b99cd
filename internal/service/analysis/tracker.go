package analysis

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/report-assistant/internal/model"
)

// completedRetention bounds how long a finished session keeps reporting
// Completed before it falls back to its default state.
const completedRetention = time.Hour

var (
	ErrAnalysisRunning = errors.New("an analysis is running for this session")
	ErrSessionDeleting = errors.New("this session is being deleted")
)

// Tracker holds the orchestration state of each session. Running analyses and
// pending deletions are exclusive: a session is never analyzed while it is
// being deleted, and never deleted mid-analysis.
type Tracker struct {
	mu        sync.Mutex
	analyzing map[uuid.UUID]struct{}
	deleting  map[uuid.UUID]struct{}
	completed *cache.Cache
}

func NewTracker() *Tracker {
	return &Tracker{
		analyzing: make(map[uuid.UUID]struct{}),
		deleting:  make(map[uuid.UUID]struct{}),
		completed: cache.New(completedRetention, completedRetention/2),
	}
}

func (t *Tracker) State(sessionID uuid.UUID) model.AnalysisState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.analyzing[sessionID]; ok {
		return model.StateAnalyzing
	}
	if _, ok := t.completed.Get(sessionID.String()); ok {
		return model.StateCompleted
	}
	return model.StateIdle
}

// Begin moves the session to Analyzing and returns the state to restore on
// Abort. It fails while another run or a deletion holds the session.
func (t *Tracker) Begin(sessionID uuid.UUID) (model.AnalysisState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.deleting[sessionID]; ok {
		return model.StateIdle, ErrSessionDeleting
	}
	if _, ok := t.analyzing[sessionID]; ok {
		return model.StateAnalyzing, ErrAnalysisRunning
	}

	prev := model.StateIdle
	if _, ok := t.completed.Get(sessionID.String()); ok {
		prev = model.StateCompleted
	}
	t.analyzing[sessionID] = struct{}{}
	return prev, nil
}

// Abort undoes Begin for a run that never started its pipeline.
func (t *Tracker) Abort(sessionID uuid.UUID, prev model.AnalysisState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.analyzing, sessionID)
	if prev == model.StateCompleted {
		t.completed.SetDefault(sessionID.String(), struct{}{})
	}
}

// Finish ends a run. Completed is remembered for a while; a failed run leaves
// nothing behind.
func (t *Tracker) Finish(sessionID uuid.UUID, state model.AnalysisState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.analyzing[sessionID]; !ok {
		return
	}
	delete(t.analyzing, sessionID)
	if state == model.StateCompleted {
		t.completed.SetDefault(sessionID.String(), struct{}{})
		return
	}
	t.completed.Delete(sessionID.String())
}

// BeginDelete reserves the session for deletion. It fails while an analysis
// runs or another deletion is pending.
func (t *Tracker) BeginDelete(sessionID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.analyzing[sessionID]; ok {
		return ErrAnalysisRunning
	}
	if _, ok := t.deleting[sessionID]; ok {
		return ErrSessionDeleting
	}
	t.deleting[sessionID] = struct{}{}
	return nil
}

// EndDelete releases a reservation whose deletion did not go through.
func (t *Tracker) EndDelete(sessionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.deleting, sessionID)
}

// Reset forgets everything about a deleted session.
func (t *Tracker) Reset(sessionID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.analyzing, sessionID)
	delete(t.deleting, sessionID)
	t.completed.Delete(sessionID.String())
}
