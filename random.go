package hyperopt

import (
	"math/rand"
	"sync"
)

// RandomState is the default RandomSource, a mutex-guarded math/rand
// generator.
type RandomState struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomState returns a RandomState seeded with seed.
func NewRandomState(seed int64) *RandomState {
	return &RandomState{rng: rand.New(rand.NewSource(seed))}
}

// RandRange returns a uniformly distributed integer in [low, high). It
// panics if high <= low, like rand.Int63n.
func (r *RandomState) RandRange(low, high int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return low + r.rng.Int63n(high-low)
}
