package hyperopt

import (
	"fmt"
	"math"
	"sync"
)

//////
// Store contract.
//////

// Trials is the trial store. It owns every trial record, allocates ids and
// keeps two views of the records: the dynamic list, which is authoritative
// and changes as trials are inserted and evaluated, and the synchronized
// view, which is only updated by Refresh.
type Trials interface {
	// NewTrialIDs allocates n unique ids, strictly greater than any id
	// allocated before. Ids are never reused.
	NewTrialIDs(n int) []int64

	// InsertTrialDocs admits trials in state NEW.
	InsertTrialDocs(docs []*Trial) error

	// Refresh synchronizes cached views (and any backing storage) with the
	// dynamic list.
	Refresh() error

	// CountByStateUnsynced counts dynamic trials in state without
	// refreshing first.
	CountByStateUnsynced(state TrialState) int

	// CountByStateSynced counts trials in state as of the last Refresh.
	CountByStateSynced(state TrialState) int

	// Len returns the total number of records.
	Len() int

	// DynamicTrials returns the live, insertion-ordered records. Callers
	// must not modify the slice, and change records through UpdateTrial.
	DynamicTrials() []*Trial

	// UpdateTrial applies fn to doc, a record of the dynamic list, under
	// the store's write lock.
	UpdateTrial(doc *Trial, fn func(*Trial))

	// Trials returns the records as of the last Refresh.
	Trials() []*Trial
}

//////
// In-memory store.
//////

// MemoryTrials is the default, in-memory Trials implementation.
//
// The runner is expected to be the only writer. Other goroutines may call
// the counting methods, Len and Trials, together with BestTrial and Losses,
// while a run is in progress: records change only inside UpdateTrial, and
// the synchronized view holds copies taken by Refresh which are never
// changed afterwards.
type MemoryTrials struct {
	mu      sync.RWMutex
	nextID  int64
	index   map[int64]int
	dynamic []*Trial
	synced  []*Trial
}

// NewTrials returns an empty MemoryTrials.
func NewTrials() *MemoryTrials {
	return &MemoryTrials{index: make(map[int64]int)}
}

// NewTrialIDs implements Trials.
func (t *MemoryTrials) NewTrialIDs(n int) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, t.nextID)
		t.nextID++
	}

	return ids
}

// InsertTrialDocs implements Trials. Either every doc is admitted or none.
func (t *MemoryTrials) InsertTrialDocs(docs []*Trial) error {
	for _, doc := range docs {
		if doc == nil {
			return fmt.Errorf("insert: %w", ErrInvalidProposal)
		}

		if doc.State != StateNew {
			return fmt.Errorf("insert trial %d (%s): %w", doc.TID, doc.State, ErrNotNew)
		}
	}

	return t.admit(docs)
}

// Restore admits previously persisted trials in any state. Id allocation
// continues after the largest restored id.
func (t *MemoryTrials) Restore(docs []*Trial) error {
	if err := t.admit(docs); err != nil {
		return err
	}

	return t.Refresh()
}

func (t *MemoryTrials) admit(docs []*Trial) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[int64]struct{}, len(docs))
	for _, doc := range docs {
		if _, dup := t.index[doc.TID]; dup {
			return fmt.Errorf("insert trial %d: duplicate id", doc.TID)
		}

		if _, dup := seen[doc.TID]; dup {
			return fmt.Errorf("insert trial %d: duplicate id", doc.TID)
		}

		seen[doc.TID] = struct{}{}
	}

	for _, doc := range docs {
		t.index[doc.TID] = len(t.dynamic)
		t.dynamic = append(t.dynamic, doc)

		if doc.TID >= t.nextID {
			t.nextID = doc.TID + 1
		}
	}

	return nil
}

// Refresh implements Trials. The synchronized view receives a copy of
// every record.
func (t *MemoryTrials) Refresh() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	synced := make([]*Trial, len(t.dynamic))
	for i, doc := range t.dynamic {
		c := *doc
		synced[i] = &c
	}

	t.synced = synced

	return nil
}

// UpdateTrial implements Trials.
func (t *MemoryTrials) UpdateTrial(doc *Trial, fn func(*Trial)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(doc)
}

// CountByStateUnsynced implements Trials.
func (t *MemoryTrials) CountByStateUnsynced(state TrialState) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return countState(t.dynamic, state)
}

// CountByStateSynced implements Trials.
func (t *MemoryTrials) CountByStateSynced(state TrialState) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return countState(t.synced, state)
}

// Len implements Trials.
func (t *MemoryTrials) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.dynamic)
}

// DynamicTrials implements Trials.
func (t *MemoryTrials) DynamicTrials() []*Trial {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.dynamic[:len(t.dynamic):len(t.dynamic)]
}

// Trials implements Trials.
func (t *MemoryTrials) Trials() []*Trial {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.synced[:len(t.synced):len(t.synced)]
}

//////
// Helper functions.
//////

func countState(docs []*Trial, state TrialState) int {
	n := 0

	for _, doc := range docs {
		if doc.State == state {
			n++
		}
	}

	return n
}

// BestTrial returns the DONE trial with the lowest loss in the synchronized
// view. Ties keep the earliest trial.
func BestTrial(trials Trials) (*Trial, bool) {
	var best *Trial

	bestLoss := math.Inf(1)

	for _, doc := range trials.Trials() {
		if doc.State != StateDone || doc.Result == nil {
			continue
		}

		if doc.Result.Loss < bestLoss {
			bestLoss = doc.Result.Loss
			best = doc
		}
	}

	return best, best != nil
}

// Losses returns the loss of every trial in the synchronized view, NaN for
// trials without a result.
func Losses(trials Trials) []float64 {
	docs := trials.Trials()
	out := make([]float64, len(docs))

	for i, doc := range docs {
		if doc.Result == nil {
			out[i] = math.NaN()

			continue
		}

		out[i] = doc.Result.Loss
	}

	return out
}
