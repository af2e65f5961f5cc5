package hyperopt

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample function to be minimized: a bowl centered on x=3, workers=8.
func quadratic(_ context.Context, p Params) (Result, error) {
	dx := p["x"] - 3
	dw := p["workers"] - 8

	return Result{Loss: dx*dx + dw*dw/10}, nil
}

func testSpace() Space {
	return Space{
		Range("x", ParameterRange[float64]{Min: -10, Max: 10}),
		Range("workers", ParameterRange[int]{Min: 1, Max: 32}),
	}
}

func TestMinimizeRandomSearch(t *testing.T) {
	// Using default options, seeded for reproducibility.
	opts := DefaultOptions()
	opts.RandomState = NewRandomState(7)

	trials, err := Minimize(context.Background(), quadratic, testSpace(), RandomSearch(), 200, opts)
	require.NoError(t, err)

	assert.Equal(t, 200, trials.Len())
	assert.Equal(t, 200, trials.CountByStateSynced(StateDone))

	best, ok := BestTrial(trials)
	require.True(t, ok)

	// 200 uniform draws land within one unit of x=3 with overwhelming probability.
	assert.Less(t, best.Result.Loss, 10.0)

	for _, doc := range trials.Trials() {
		assert.GreaterOrEqual(t, doc.Args["x"], -10.0)
		assert.LessOrEqual(t, doc.Args["x"], 10.0)

		w := doc.Args["workers"]
		assert.Equal(t, math.Trunc(w), w)
		assert.GreaterOrEqual(t, w, 1.0)
		assert.LessOrEqual(t, w, 32.0)
	}
}

func TestMinimizeBayesSearch(t *testing.T) {
	// Using default configuration (UCB).
	config := DefaultBayesConfig()

	// The following isn't necessary, this is just exist for testing purposes.
	config.InitialSamples = 5
	config.NumCandidates = 20

	opts := DefaultOptions()
	opts.RandomState = NewRandomState(11)
	opts.MaxQueueLen = 2

	trials, err := Minimize(context.Background(), quadratic, testSpace(), BayesSearch(config), 30, opts)
	require.NoError(t, err)

	assert.Equal(t, 30, trials.Len())
	assert.Equal(t, 30, trials.CountByStateSynced(StateDone))

	losses := Losses(trials)
	assert.Len(t, losses, 30)

	for _, loss := range losses {
		assert.False(t, math.IsNaN(loss))
	}
}

func TestMinimizeChannel(t *testing.T) {
	config := DefaultBayesConfig()

	// The following isn't necessary, this is just exist for testing purposes.
	config.InitialSamples = 3

	const maxEvals = 8

	// Create a bidirectional channel for progress updates.
	progressChan := make(chan ProgressUpdate, maxEvals)

	// Assign the channel to options (will be automatically converted to send-only).
	opts := DefaultOptions()
	opts.ProgressChan = progressChan

	// This isn't necessary when collecting metrics. This just exist for
	// testing purposes.
	var counter int32

	done := make(chan struct{})

	// Start a goroutine to handle progress updates.
	go func() {
		defer close(done)

		for update := range progressChan {
			atomic.AddInt32(&counter, int32(update.Done))
		}
	}()

	trials, err := Minimize(context.Background(), quadratic, testSpace(), BayesSearch(config), maxEvals, opts)
	require.NoError(t, err)

	close(progressChan)
	<-done

	// Ensure events were emitted.
	assert.Greater(t, atomic.LoadInt32(&counter), int32(0))

	best, ok := BestTrial(trials)
	require.True(t, ok)
	assert.Len(t, best.Args, 2)
}

func TestMinimizeReturnsStoreOnFailure(t *testing.T) {
	boom := errors.New("objective exploded")

	objective := func(_ context.Context, p Params) (Result, error) {
		if p["x"] > 0 {
			return Result{}, boom
		}

		return Result{Loss: -p["x"]}, nil
	}

	space := Space{Range("x", ParameterRange[float64]{Min: -1, Max: 1})}

	opts := DefaultOptions()
	opts.RandomState = NewRandomState(3)

	trials, err := Minimize(context.Background(), objective, space, RandomSearch(), 50, opts)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, trials)

	assert.Equal(t, 1, trials.CountByStateSynced(StateError))
	assert.Zero(t, trials.CountByStateSynced(StateNew))

	docs := trials.Trials()
	assert.Equal(t, StateError, docs[len(docs)-1].State)
	assert.Equal(t, "objective exploded", docs[len(docs)-1].Error)
}

func TestMinimizePanickingObjective(t *testing.T) {
	objective := func(_ context.Context, p Params) (Result, error) {
		if p["x"] < 0 {
			panic("negative")
		}

		return Result{Loss: p["x"]}, nil
	}

	space := Space{Range("x", ParameterRange[float64]{Min: -1, Max: 1})}

	opts := DefaultOptions()
	opts.CatchExceptions = true
	opts.RandomState = NewRandomState(5)

	trials, err := Minimize(context.Background(), objective, space, RandomSearch(), 40, opts)
	require.NoError(t, err)

	assert.Equal(t, 40, trials.Len())
	assert.Greater(t, trials.CountByStateSynced(StateError), 0)

	for _, doc := range trials.Trials() {
		if doc.State == StateError {
			assert.Contains(t, doc.Error, "negative")
		}
	}
}

func TestMinimizeZeroBudget(t *testing.T) {
	trials, err := Minimize(context.Background(), quadratic, testSpace(), RandomSearch(), 0, Options{})
	require.NoError(t, err)
	assert.Zero(t, trials.Len())
}

func TestMinimizeNilAlgo(t *testing.T) {
	trials, err := Minimize(context.Background(), quadratic, testSpace(), nil, 5, Options{})
	assert.ErrorIs(t, err, ErrNilAlgo)
	assert.NotNil(t, trials)
}
