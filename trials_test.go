package hyperopt

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMemoryTrialsIDs(t *testing.T) {
	store := NewTrials()

	assert.Equal(t, []int64{0, 1, 2}, store.NewTrialIDs(3))
	assert.Empty(t, store.NewTrialIDs(0))

	// Ids are never reused, even when unused.
	assert.Equal(t, []int64{3}, store.NewTrialIDs(1))
}

func TestMemoryTrialsViews(t *testing.T) {
	store := NewTrials()

	ids := store.NewTrialIDs(2)
	require.NoError(t, store.InsertTrialDocs([]*Trial{NewTrial(ids[0], nil), NewTrial(ids[1], nil)}))

	// The dynamic list is authoritative; the synced view lags until Refresh.
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 2, store.CountByStateUnsynced(StateNew))
	assert.Zero(t, store.CountByStateSynced(StateNew))
	assert.Empty(t, store.Trials())

	require.NoError(t, store.Refresh())
	assert.Equal(t, 2, store.CountByStateSynced(StateNew))

	store.UpdateTrial(store.DynamicTrials()[0], func(doc *Trial) {
		doc.State = StateDone
		doc.Result = &Result{Loss: 1}
	})

	assert.Equal(t, 1, store.CountByStateUnsynced(StateDone))
	assert.Len(t, store.Trials(), 2)

	// The synchronized view holds copies taken by the last Refresh.
	assert.Zero(t, store.CountByStateSynced(StateDone))
	assert.Equal(t, StateNew, store.Trials()[0].State)
	assert.Nil(t, store.Trials()[0].Result)

	require.NoError(t, store.Refresh())
	assert.Equal(t, 1, store.CountByStateSynced(StateDone))
	assert.NotSame(t, store.DynamicTrials()[0], store.Trials()[0])
}

func TestMemoryTrialsInsertValidation(t *testing.T) {
	store := NewTrials()

	assert.ErrorIs(t, store.InsertTrialDocs([]*Trial{nil}), ErrInvalidProposal)

	running := NewTrial(0, nil)
	running.State = StateRunning
	assert.ErrorIs(t, store.InsertTrialDocs([]*Trial{NewTrial(1, nil), running}), ErrNotNew)

	// Nothing from a rejected batch is admitted.
	assert.Zero(t, store.Len())

	require.NoError(t, store.InsertTrialDocs([]*Trial{NewTrial(0, nil)}))
	assert.Error(t, store.InsertTrialDocs([]*Trial{NewTrial(0, nil)}))
	assert.Error(t, store.InsertTrialDocs([]*Trial{NewTrial(5, nil), NewTrial(5, nil)}))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryTrialsRestore(t *testing.T) {
	store := NewTrials()

	require.NoError(t, store.Restore([]*Trial{
		doneTrial(4, Params{"x": 1}, 3),
		doneTrial(9, Params{"x": 2}, 1),
	}))

	assert.Equal(t, 2, store.CountByStateSynced(StateDone))
	assert.Equal(t, []int64{10, 11}, store.NewTrialIDs(2))
}

func TestBestTrialAndLosses(t *testing.T) {
	store := NewTrials()

	_, ok := BestTrial(store)
	assert.False(t, ok)

	failed := NewTrial(2, Params{"x": 3})
	failed.State = StateError

	require.NoError(t, store.Restore([]*Trial{
		doneTrial(0, Params{"x": 0}, 5),
		doneTrial(1, Params{"x": 1}, 2),
		failed,
		doneTrial(3, Params{"x": 2}, 2),
	}))

	best, ok := BestTrial(store)
	require.True(t, ok)
	assert.Equal(t, int64(1), best.TID)

	losses := Losses(store)
	require.Len(t, losses, 4)
	assert.Equal(t, 5.0, losses[0])
	assert.True(t, math.IsNaN(losses[2]))
}

func TestTrialStateText(t *testing.T) {
	for _, st := range []TrialState{StateNew, StateRunning, StateDone, StateError} {
		parsed, ok := ParseTrialState(st.String())
		assert.True(t, ok)
		assert.Equal(t, st, parsed)
	}

	_, ok := ParseTrialState("paused")
	assert.False(t, ok)

	assert.True(t, StateDone.Terminal())
	assert.True(t, StateError.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.Equal(t, "unknown", TrialState(42).String())

	var st TrialState
	assert.Error(t, st.UnmarshalText([]byte("paused")))
}

func TestTrialEncoding(t *testing.T) {
	doc := doneTrial(3, Params{"x": 1.5}, 0.25)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"done"`)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "state: done")

	var back Trial
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, StateDone, back.State)
	assert.Equal(t, 0.25, back.Result.Loss)
}

func TestRandomStateRange(t *testing.T) {
	rng := NewRandomState(1)

	for i := 0; i < 1000; i++ {
		v := rng.RandRange(0, seedBound)
		assert.GreaterOrEqual(t, v, int64(0))
		assert.Less(t, v, int64(seedBound))
	}

	assert.Equal(t, int64(7), rng.RandRange(7, 8))
}
