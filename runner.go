package hyperopt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/thalesfsp/hyperopt/internal/metrics"
)

//////
// Const, vars, types.
//////

// seedBound is the exclusive upper bound of the seed handed to strategies.
const seedBound = 1 << 31

// Stop reasons, as reported to metrics and logs.
const (
	stopExhausted = "exhausted"
	stopCallback  = "callback"
	stopCancelled = "cancelled"
)

// Runner drives a search strategy against a domain: it asks the strategy
// for proposals while fewer than MaxQueueLen trials are pending, evaluates
// pending trials one at a time in insertion order, and stops when the
// budget is spent, the strategy is exhausted, a callback asks for it or
// the context is cancelled.
//
// A Runner is not safe for concurrent use.
type Runner struct {
	algo            Algo
	domain          *Domain
	trials          Trials
	rng             RandomSource
	catchExceptions bool
	maxQueueLen     int
	maxEvals        int
	callbacks       Callbacks
	logger          *slog.Logger
	progress        chan<- ProgressUpdate

	// done counts evaluations performed by this runner.
	done int

	// bestLoss and bestParams track the best DONE trial seen by this runner.
	bestLoss   float64
	bestParams Params

	// stopReason is the reason of the last cooperative stop.
	stopReason string
}

//////
// Factory.
//////

// NewRunner returns a Runner evaluating at most maxEvals trials in total,
// counting those already in the store. Zero-valued options are replaced by
// their defaults, see Options.
func NewRunner(algo Algo, domain *Domain, maxEvals int, opts Options) (*Runner, error) {
	if algo == nil {
		return nil, ErrNilAlgo
	}

	if domain == nil {
		return nil, ErrNilDomain
	}

	opts = resolveOptions(opts)

	return &Runner{
		algo:            algo,
		domain:          domain,
		trials:          opts.Trials,
		rng:             opts.RandomState,
		catchExceptions: opts.CatchExceptions,
		maxQueueLen:     opts.MaxQueueLen,
		maxEvals:        maxEvals,
		callbacks:       opts.Callbacks,
		logger:          opts.Logger.With("component", "hyperopt.Runner"),
		progress:        opts.ProgressChan,
		bestLoss:        math.MaxFloat64,
	}, nil
}

//////
// Exported functionalities.
//////

// Trials returns the store the runner fills.
func (r *Runner) Trials() Trials { return r.trials }

// Exhaust spends the remaining budget: maxEvals minus the trials already
// in the store.
func (r *Runner) Exhaust(ctx context.Context) error {
	if err := r.Run(ctx, r.maxEvals-r.trials.Len()); err != nil {
		return err
	}

	return r.trials.Refresh()
}

// Run queues up to n new trials and evaluates them.
//
// Each round first asks the strategy for proposals until MaxQueueLen trials
// are pending or n trials were queued, then evaluates every pending trial.
// A strategy returning no trials ends the run after the pending ones are
// evaluated. Trials still pending when the run stops are left in state NEW.
//
// Returned errors are fatal: a strategy failure or contract violation, a
// store failure, or an *EvaluationError when CatchExceptions is disabled.
// Cooperative stops are not errors.
func (r *Runner) Run(ctx context.Context, n int) error {
	queued := 0
	stopped := false

	for queued < n {
		if ctx.Err() != nil {
			stopped = true
			r.stopReason = stopCancelled

			break
		}

		qlen := r.queueLen()

		for qlen < r.maxQueueLen && queued < n {
			k := min(r.maxQueueLen-qlen, n-queued)

			ids := r.trials.NewTrialIDs(k)

			// The strategy must observe every trial inserted so far.
			if err := r.trials.Refresh(); err != nil {
				return fmt.Errorf("refresh before proposal: %w", err)
			}

			seed := r.rng.RandRange(0, seedBound)

			docs, err := r.algo(ids, r.domain, r.trials, seed)
			if err != nil {
				return fmt.Errorf("propose %d trials: %w", k, err)
			}

			if len(docs) > len(ids) {
				return fmt.Errorf("%w: got %d, granted %d", ErrProposalOverflow, len(docs), len(ids))
			}

			if len(docs) == 0 {
				r.logger.Info("search strategy exhausted", "queued", queued)

				stopped = true
				r.stopReason = stopExhausted

				break
			}

			if err := r.trials.InsertTrialDocs(docs); err != nil {
				return fmt.Errorf("insert proposals: %w", err)
			}

			if err := r.trials.Refresh(); err != nil {
				return fmt.Errorf("refresh after insert: %w", err)
			}

			queued += len(docs)
			qlen = r.queueLen()

			metrics.AddProposed(len(docs))
		}

		evalStopped, err := r.SerialEvaluate(ctx, -1)
		if err != nil {
			return err
		}

		stopped = stopped || evalStopped
		if stopped {
			break
		}
	}

	if stopped {
		metrics.IncStopped(r.stopReason)
	}

	if qlen := r.queueLen(); qlen > 0 {
		r.logger.Warn("exiting run, not waiting for jobs", "jobs", qlen, "reason", r.stopReason)

		metrics.AddAbandoned(qlen)
	}

	return nil
}

// SerialEvaluate evaluates pending trials one at a time, in store order.
//
// Every record of the store is visited; only those in state NEW are
// evaluated. limit caps the number of evaluations, a negative limit means
// no cap. Visited DONE, ERROR or RUNNING records do not count against
// limit, so SerialEvaluate(ctx, 1) evaluates the first NEW trial wherever
// it sits in the store. A stop requested by a callback takes effect once
// the current trial is finished, and a cancelled context is checked before
// each trial. The store is refreshed before returning, whatever the limit.
//
// Returns:
// - bool: Whether a stop was requested
// - error: *EvaluationError when the objective failed and CatchExceptions
// is disabled, or a store failure
func (r *Runner) SerialEvaluate(ctx context.Context, limit int) (bool, error) {
	stopped := false

	for i := 0; limit != 0; i++ {
		all := r.trials.DynamicTrials()
		if i >= len(all) {
			break
		}

		trial := all[i]
		if trial.State != StateNew {
			continue
		}

		if ctx.Err() != nil {
			stopped = true
			r.stopReason = stopCancelled

			break
		}

		now := time.Now()
		r.trials.UpdateTrial(trial, func(t *Trial) {
			t.State = StateRunning
			t.BookTime = now
			t.RefreshTime = now
		})

		if cb := r.callbacks.OnExperimentBegin; cb != nil && cb(ctx, i, trial) {
			stopped = true
			r.stopReason = stopCallback
		}

		start := time.Now()
		res, err := r.domain.Evaluate(ctx, trial.Args)
		elapsed := time.Since(start)

		if err != nil {
			r.trials.UpdateTrial(trial, func(t *Trial) {
				t.State = StateError
				t.Error = errorMessage(err)
				touch(t)
			})

			metrics.ObserveFinished(StateError.String(), elapsed.Seconds())

			if !r.catchExceptions {
				if rerr := r.trials.Refresh(); rerr != nil {
					return stopped, errors.Join(&EvaluationError{TID: trial.TID, Err: err}, rerr)
				}

				return stopped, &EvaluationError{TID: trial.TID, Err: err}
			}

			r.logger.Warn("trial failed", "tid", trial.TID, "error", trial.Error)
		} else {
			r.trials.UpdateTrial(trial, func(t *Trial) {
				t.State = StateDone
				t.Result = &res
				touch(t)
			})

			metrics.ObserveFinished(StateDone.String(), elapsed.Seconds())

			r.updateBest(trial)
		}

		r.done++
		r.sendProgress(trial)

		if cb := r.callbacks.OnExperimentEnd; cb != nil && cb(ctx, i, trial) {
			stopped = true
			r.stopReason = stopCallback
		}

		if limit > 0 {
			limit--
		}

		if stopped {
			break
		}
	}

	if err := r.trials.Refresh(); err != nil {
		return stopped, fmt.Errorf("refresh after evaluation: %w", err)
	}

	return stopped, nil
}

//////
// Helper functions.
//////

func (r *Runner) queueLen() int {
	n := r.trials.CountByStateUnsynced(StateNew)

	metrics.SetQueueLength(n)

	return n
}

// updateBest records trial if it beats the best loss seen so far.
func (r *Runner) updateBest(trial *Trial) {
	if trial.Result == nil || trial.Result.Loss >= r.bestLoss {
		return
	}

	r.bestLoss = trial.Result.Loss
	r.bestParams = trial.Args.Clone()

	metrics.SetBestLoss(r.bestLoss)
}

// sendProgress performs a non-blocking send of the run state after trial.
func (r *Runner) sendProgress(trial *Trial) {
	if r.progress == nil {
		return
	}

	update := ProgressUpdate{
		TID:        trial.TID,
		State:      trial.State,
		BestLoss:   r.bestLoss,
		BestParams: r.bestParams.Clone(),
		Done:       r.done,
		Total:      r.maxEvals,
	}

	if trial.Result != nil {
		update.Loss = trial.Result.Loss
	}

	select {
	case r.progress <- update:
	default:
		// Skip update if channel is full.
	}
}

// touch stamps the refresh time of trial, never moving it backwards.
func touch(trial *Trial) {
	now := time.Now()
	if now.Before(trial.RefreshTime) {
		now = trial.RefreshTime
	}

	trial.RefreshTime = now
}

// errorMessage derives a non-empty trial error message from err.
func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}

	return fmt.Sprintf("%T", err)
}
