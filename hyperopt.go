package hyperopt

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

//////
// Exported functionalities.
//////

// DefaultOptions returns the default options: a fresh in-memory store, a
// time-seeded random source, objective failures aborting the run and a
// queue bound of one.
func DefaultOptions() Options {
	return Options{
		Trials:          NewTrials(),
		RandomState:     NewRandomState(time.Now().UnixNano()),
		CatchExceptions: false,
		MaxQueueLen:     1,
		Logger:          slog.Default(),
		ProgressChan:    nil, // Default to no progress updates.
	}
}

// DefaultBayesConfig returns a default BayesSearch configuration.
func DefaultBayesConfig() BayesConfig {
	return BayesConfig{
		InitialSamples:  10,
		NumCandidates:   50,
		AcquisitionFunc: UCB,
		AcqParams: AcquisitionParams{
			BestSoFar:   math.MaxFloat64,
			Beta:        2.0,
			RandomState: rand.New(rand.NewSource(time.Now().UnixNano())),
			Xi:          0.01,
		},
	}
}

// Minimize runs algo against objective over space until maxEvals trials
// are in the store, the strategy is exhausted or a stop is requested, and
// returns the populated store.
//
// Parameters:
// - ctx: Passed to the objective and callbacks; cancelling it stops the run at the next trial boundary
// - objective: The function to minimize
// - space: The search space, see Range
// - algo: The search strategy, e.g. RandomSearch or BayesSearch
// - maxEvals: Total number of trials wanted in the store
// - opts: Options, see DefaultOptions
//
// Returns:
// - Trials: The store, also returned alongside a fatal error so the failed trial can be inspected
// - error: A fatal error, see Runner.Run
//
// Usage example:
//
//	space := Space{
//	    Range("x", ParameterRange[float64]{Min: -10, Max: 10}),
//	    Range("workers", ParameterRange[int]{Min: 1, Max: 32}),
//	}
//
//	objective := func(ctx context.Context, p Params) (Result, error) {
//	    return Result{Loss: (p["x"] - 3) * (p["x"] - 3) + p["workers"]}, nil
//	}
//
//	opts := DefaultOptions()
//	opts.CatchExceptions = true
//
//	trials, err := Minimize(ctx, objective, space, BayesSearch(DefaultBayesConfig()), 100, opts)
//	if err != nil {
//	    return err
//	}
//
//	best, _ := BestTrial(trials)
//
// How it works:
// 1. Asks the strategy for up to MaxQueueLen proposals, each call seeded from RandomState
// 2. Evaluates pending trials one at a time, in order
// 3. Repeats until the budget is spent or a stop is requested
func Minimize(
	ctx context.Context,
	objective ObjectiveFunc,
	space Space,
	algo Algo,
	maxEvals int,
	opts Options,
) (Trials, error) {
	opts = resolveOptions(opts)

	runner, err := NewRunner(algo, NewDomain(objective, space), maxEvals, opts)
	if err != nil {
		return opts.Trials, err
	}

	if err := runner.Exhaust(ctx); err != nil {
		return runner.Trials(), err
	}

	return runner.Trials(), nil
}

//////
// Helper functions.
//////

// resolveOptions fills zero-valued options with defaults.
func resolveOptions(opts Options) Options {
	if opts.Trials == nil {
		opts.Trials = NewTrials()
	}

	if opts.RandomState == nil {
		opts.RandomState = NewRandomState(time.Now().UnixNano())
	}

	if opts.MaxQueueLen < 1 {
		opts.MaxQueueLen = 1
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return opts
}
