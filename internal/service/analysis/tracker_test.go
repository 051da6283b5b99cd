package analysis

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/report-assistant/internal/model"
)

func TestTrackerRemembersCompletedOnly(t *testing.T) {
	tr := NewTracker()
	id := uuid.New()

	prev, err := tr.Begin(id)
	require.NoError(t, err)
	assert.Equal(t, model.StateIdle, prev)
	assert.Equal(t, model.StateAnalyzing, tr.State(id))

	tr.Finish(id, model.StateCompleted)
	assert.Equal(t, model.StateCompleted, tr.State(id))

	prev, err = tr.Begin(id)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, prev)
	tr.Finish(id, model.StateFailed)
	assert.Equal(t, model.StateIdle, tr.State(id))
	assert.Empty(t, tr.analyzing)
	assert.Equal(t, 0, tr.completed.ItemCount())
}

func TestTrackerRejectsSecondRun(t *testing.T) {
	tr := NewTracker()
	id := uuid.New()

	_, err := tr.Begin(id)
	require.NoError(t, err)
	_, err = tr.Begin(id)
	assert.ErrorIs(t, err, ErrAnalysisRunning)
}

func TestTrackerAbortRestoresCompleted(t *testing.T) {
	tr := NewTracker()
	id := uuid.New()

	_, err := tr.Begin(id)
	require.NoError(t, err)
	tr.Finish(id, model.StateCompleted)

	prev, err := tr.Begin(id)
	require.NoError(t, err)
	tr.Abort(id, prev)
	assert.Equal(t, model.StateCompleted, tr.State(id))
}

func TestTrackerDeleteExcludesAnalysis(t *testing.T) {
	tr := NewTracker()
	id := uuid.New()

	require.NoError(t, tr.BeginDelete(id))
	_, err := tr.Begin(id)
	assert.ErrorIs(t, err, ErrSessionDeleting)
	assert.ErrorIs(t, tr.BeginDelete(id), ErrSessionDeleting)

	tr.EndDelete(id)
	_, err = tr.Begin(id)
	require.NoError(t, err)
	assert.ErrorIs(t, tr.BeginDelete(id), ErrAnalysisRunning)

	tr.Reset(id)
	assert.Equal(t, model.StateIdle, tr.State(id))
	assert.NoError(t, tr.BeginDelete(id))
}

func TestTrackerFinishWithoutBeginIsNoop(t *testing.T) {
	tr := NewTracker()
	id := uuid.New()

	tr.Finish(id, model.StateCompleted)
	assert.Equal(t, model.StateIdle, tr.State(id))
}
