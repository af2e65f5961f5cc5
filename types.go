package hyperopt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

//////
// Trial state.
//////

// TrialState is the lifecycle state of a trial.
//
// Valid transitions:
//
//	NEW -> RUNNING -> DONE
//	NEW -> RUNNING -> ERROR
//
// DONE and ERROR are terminal.
type TrialState int

const (
	// StateNew is a proposed trial waiting for evaluation.
	StateNew TrialState = iota

	// StateRunning is a trial whose objective is being evaluated.
	StateRunning

	// StateDone is a trial whose objective returned a result.
	StateDone

	// StateError is a trial whose objective failed.
	StateError
)

// String implements fmt.Stringer.
func (s TrialState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s TrialState) Terminal() bool {
	return s == StateDone || s == StateError
}

// ParseTrialState is the inverse of TrialState.String.
func ParseTrialState(s string) (TrialState, bool) {
	for _, st := range []TrialState{StateNew, StateRunning, StateDone, StateError} {
		if st.String() == s {
			return st, true
		}
	}

	return StateNew, false
}

// MarshalText encodes the state by name in JSON and YAML.
func (s TrialState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TrialState) UnmarshalText(text []byte) error {
	st, ok := ParseTrialState(string(text))
	if !ok {
		return fmt.Errorf("unknown trial state %q", text)
	}

	*s = st

	return nil
}

//////
// Records.
//////

// Params holds one value per search-space dimension, keyed by dimension name.
// This is the argument payload handed to the objective.
type Params map[string]float64

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}

// Result is what a successful objective evaluation yields. Lower Loss is better.
type Result struct {
	// Loss is the value being minimized.
	Loss float64 `json:"loss" yaml:"loss"`

	// Status is a free-form status reported by the objective, "ok" by default.
	Status string `json:"status" yaml:"status"`

	// Attachments carries optional objective-specific data.
	Attachments map[string]string `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// Trial is one proposed parameter set and its evaluation outcome.
//
// Fields:
// - TID: Identifier allocated by the store, unique and strictly increasing
// - State: Lifecycle state, see TrialState
// - Args: Parameters passed to the objective
// - Result: Set only when State is StateDone
// - Error: Set only when State is StateError
// - BookTime: When evaluation started
// - RefreshTime: Last state change, never decreases
type Trial struct {
	TID         int64      `json:"tid" yaml:"tid"`
	State       TrialState `json:"state" yaml:"state"`
	Args        Params     `json:"args" yaml:"args"`
	Result      *Result    `json:"result,omitempty" yaml:"result,omitempty"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
	BookTime    time.Time  `json:"book_time" yaml:"book_time"`
	RefreshTime time.Time  `json:"refresh_time" yaml:"refresh_time"`
}

// NewTrial returns a trial in state NEW. Strategies use it to build proposals.
func NewTrial(tid int64, args Params) *Trial {
	return &Trial{
		TID:   tid,
		State: StateNew,
		Args:  args,
	}
}

//////
// Search space.
//////

// ParameterRange defines the valid range for a single dimension of the search space.
//
// Type Parameter:
//   - T: The numeric type for this parameter range (integer or float)
//
// Fields:
// - Min: The minimum (inclusive) value
// - Max: The maximum (inclusive) value
//
// Usage:
//
//	space := Space{
//	    Range("buffer_size", ParameterRange[int64]{Min: 1024, Max: 1048576}),
//	    Range("learning_rate", ParameterRange[float64]{Min: 0.0001, Max: 0.1}),
//	}
//
// Warning:
//   - Using a very large range may result in slower convergence
//     as the search space becomes too large to explore effectively
type ParameterRange[T constraints.Integer | constraints.Float] struct {
	// Min defines the minimum allowed value (inclusive).
	Min T

	// Max defines the maximum allowed value (inclusive).
	Max T
}

// Dimension is a named, type-erased ParameterRange. Integer dimensions are
// sampled as whole numbers.
type Dimension struct {
	Name    string
	Min     float64
	Max     float64
	Integer bool
}

// Range converts a typed ParameterRange into a Dimension. Integer-typed
// ranges produce integer dimensions.
func Range[T constraints.Integer | constraints.Float](name string, r ParameterRange[T]) Dimension {
	var zero T

	integer := false

	switch any(zero).(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		integer = true
	}

	return Dimension{
		Name:    name,
		Min:     float64(r.Min),
		Max:     float64(r.Max),
		Integer: integer,
	}
}

// Space is an ordered list of dimensions. Order matters for the vector form
// used by model-based strategies.
type Space []Dimension

//////
// Collaborators.
//////

// ObjectiveFunc is the function being minimized.
//
// Returns:
// - Result: The loss (and optional attachments) on success
// - error: Any failure; the trial is then recorded in state ERROR
type ObjectiveFunc func(ctx context.Context, params Params) (Result, error)

// Algo is a search strategy. Given freshly allocated ids, the domain, a
// synchronized view of the store and a seed, it returns between zero and
// len(ids) new trials, all in state NEW. Returning zero trials for a
// non-empty request means the strategy is exhausted.
//
// A returned error is fatal for the run.
type Algo func(ids []int64, domain *Domain, trials Trials, seed int64) ([]*Trial, error)

// RandomSource supplies bounded random integers.
type RandomSource interface {
	// RandRange returns a uniformly distributed integer in [low, high).
	RandRange(low, high int64) int64
}

// TrialCallback observes a trial at a boundary of its evaluation. Returning
// true requests a cooperative stop; the stop is honored only after the
// current trial has finished.
type TrialCallback func(ctx context.Context, index int, trial *Trial) bool

// Callbacks are optional hooks invoked around each evaluation.
type Callbacks struct {
	// OnExperimentBegin runs after the trial moved to RUNNING and before the
	// objective is called.
	OnExperimentBegin TrialCallback

	// OnExperimentEnd runs after the trial reached DONE or ERROR.
	OnExperimentEnd TrialCallback
}

// ProgressUpdate represents the state of the run after a trial finished.
type ProgressUpdate struct {
	// TID is the identifier of the trial that just finished.
	TID int64

	// State is the terminal state of that trial.
	State TrialState

	// Loss of that trial. Zero when State is StateError.
	Loss float64

	// BestLoss holds the best loss found so far.
	BestLoss float64

	// BestParams holds the parameters which produced BestLoss.
	BestParams Params

	// Done is the number of trials evaluated by this runner so far.
	Done int

	// Total is the evaluation budget.
	Total int
}

//////
// Acquisition.
//////

// AcquisitionFunc defines the signature for acquisition functions used by
// BayesSearch to decide which candidate to propose next.
//
// Parameters:
// - mean: The predicted loss at a point (lower is better)
// - variance: The predicted variance/uncertainty at that point
// - params: Additional parameters needed by specific acquisition functions
//
// Returns:
// - float64: Acquisition value (lower values indicate more promising points)
//
// Built-in acquisition functions:
// - UCB: Upper Confidence Bound
// - ProbabilityOfImprovement: Probability of finding better value
// - ExpectedImprovement: Expected magnitude of improvement
// - ThompsonSampling: Random sampling from posterior
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds parameters used by the acquisition functions.
type AcquisitionParams struct {
	// Beta controls the exploration-exploitation trade-off of UCB.
	// Typical values range from 0.1 to 5.0, with 2.0 being a good default.
	Beta float64

	// Xi is the minimum improvement wanted by PI and EI.
	// Typical values range from 0.01 to 0.1.
	Xi float64

	// BestSoFar is the lowest loss observed so far. BayesSearch sets it
	// before scoring candidates.
	BestSoFar float64

	// RandomState is used by ThompsonSampling. BayesSearch replaces it with a
	// generator seeded from the seed of each call.
	RandomState *rand.Rand
}

//////
// Configuration.
//////

// BayesConfig controls BayesSearch.
//
// Fields explanation:
// - InitialSamples: Completed trials required before the model is used
// - NumCandidates: Random candidates scored per proposal
// - AcquisitionFunc: Strategy for choosing among candidates
// - AcqParams: Parameters for the acquisition function
// - KernelWidth: Gaussian Process kernel width on normalized inputs, 1.0 when zero
//
// Recommended settings:
// - InitialSamples: 5-20 (more = better initial model)
// - NumCandidates: 50-500 (more = better search but slower proposals)
type BayesConfig struct {
	InitialSamples  int
	NumCandidates   int
	AcquisitionFunc AcquisitionFunc
	AcqParams       AcquisitionParams
	KernelWidth     float64
}

// Options configures Minimize and NewRunner. Start from DefaultOptions.
type Options struct {
	// Trials is the store to fill. A fresh MemoryTrials is used when nil.
	Trials Trials

	// RandomState seeds every strategy call. A time-seeded RandomState is
	// used when nil.
	RandomState RandomSource

	// CatchExceptions records objective failures and keeps going. When
	// false the first failure aborts the run and is returned.
	CatchExceptions bool

	// MaxQueueLen bounds how many trials may wait in state NEW. It controls
	// batching of proposals, not parallelism: evaluation is always serial.
	MaxQueueLen int

	// Callbacks are invoked around each evaluation.
	Callbacks Callbacks

	// Logger receives run diagnostics. slog.Default() when nil.
	Logger *slog.Logger

	// ProgressChan receives an update after each evaluation. Sends never
	// block: updates are dropped while the channel is full.
	ProgressChan chan<- ProgressUpdate
}
