// Package hyperopt drives black-box optimization: it repeatedly asks a
// search strategy for candidate parameter sets, keeps a bounded number of
// them pending, evaluates them one at a time against an objective, records
// each outcome as a trial and decides when to stop.
//
// # Features
//
//   - Pluggable search strategies: RandomSearch, BayesSearch (Gaussian
//     Process with UCB, PI, EI or Thompson Sampling acquisition) or any Algo
//   - Bounded proposal queue: MaxQueueLen controls how many proposals a
//     strategy may batch before evaluation starts
//   - Serial evaluation in insertion order, with begin/end callbacks that
//     can request a cooperative stop
//   - Recoverable or fatal objective failures, see Options.CatchExceptions
//   - Pluggable trial store: MemoryTrials here, SQL stores in pkg/store
//   - Progress monitoring via channels and Prometheus metrics
//
// # Trial lifecycle
//
// A trial is created in state NEW when a strategy proposes it, moves to
// RUNNING when its evaluation starts and ends in DONE or ERROR:
//
//	NEW -> RUNNING -> DONE | ERROR
//
// Trials still NEW when a run stops early are abandoned and stay NEW.
//
// # Usage
//
//	space := hyperopt.Space{
//	    hyperopt.Range("x", hyperopt.ParameterRange[float64]{Min: -10, Max: 10}),
//	}
//
//	objective := func(ctx context.Context, p hyperopt.Params) (hyperopt.Result, error) {
//	    return hyperopt.Result{Loss: (p["x"] - 3) * (p["x"] - 3)}, nil
//	}
//
//	trials, err := hyperopt.Minimize(ctx, objective, space, hyperopt.RandomSearch(), 100, hyperopt.DefaultOptions())
//
// # Stopping
//
// A run ends when the evaluation budget is spent, when the strategy returns
// no proposals, when a callback returns true or when the context is
// cancelled. Stops are honored at trial boundaries only: an evaluation in
// flight always completes, and there is no evaluation timeout.
package hyperopt
