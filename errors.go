package hyperopt

import (
	"errors"
	"fmt"
)

var (
	// ErrProposalOverflow means a strategy returned more trials than ids it
	// was granted. It indicates a defect in the strategy and always aborts
	// the run.
	ErrProposalOverflow = errors.New("strategy returned more trials than ids granted")

	// ErrInvalidProposal means a strategy returned a trial that is nil or
	// not in state NEW.
	ErrInvalidProposal = errors.New("strategy returned an invalid trial")

	// ErrNotNew is returned by stores asked to admit a trial that is not NEW.
	ErrNotNew = errors.New("trial is not in state new")

	// ErrNilObjective is returned when a Domain has no objective bound.
	ErrNilObjective = errors.New("nil objective")

	// ErrNilDomain is returned by NewRunner without a domain.
	ErrNilDomain = errors.New("nil domain")

	// ErrNilAlgo is returned by NewRunner without a strategy.
	ErrNilAlgo = errors.New("nil search strategy")

	// ErrEmptySpace is returned by strategies that need at least one dimension.
	ErrEmptySpace = errors.New("empty search space")
)

// EvaluationError is the fatal abort raised when an objective fails and
// CatchExceptions is disabled. It unwraps to the objective's error.
type EvaluationError struct {
	TID int64
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("trial %d: %v", e.TID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
