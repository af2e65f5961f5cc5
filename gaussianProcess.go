package hyperopt

import (
	"math"
	"sync"
)

//////
// Const, vars, types.
//////

// defaultKernelWidth suits inputs normalized to the unit hypercube.
const defaultKernelWidth = 1.0

// observation is one fitted point: a normalized parameter vector and its loss.
type observation struct {
	x    []float64
	loss float64
}

// gaussianProcess is a kernel regression model with a Gaussian Process
// style uncertainty estimate. BayesSearch fits one per proposal call on the
// terminal trials of the store and asks it for the expected loss of
// untested parameters.
//
// Fields:
// - mu: RWMutex guarding every field
// - obs: Fitted observations, all vectors of the same length
// - width: Kernel width controlling the smoothness of interpolation
//
// Memory usage:
// - O(n*d) for n observations of d dimensions.
type gaussianProcess struct {
	mu sync.RWMutex

	obs []observation

	// width is the kernel width.
	// Larger values = smoother interpolation
	// Smaller values = more local influence
	width float64
}

//////
// Methods.
//////

// RBFKernel returns the Radial Basis Function (Gaussian) similarity of two
// vectors:
//
//	k(a, b) = exp(-|a - b|^2 / (2 * width^2))
//
// It is 1.0 for identical vectors and tends to 0.0 as they move apart.
// Panics if the vectors have different lengths.
func (gp *gaussianProcess) RBFKernel(a, b []float64) float64 {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return gp.similarity(a, b)
}

// Predict estimates the loss at x and how uncertain that estimate is.
//
// Returns:
// - mean: Kernel-weighted average of the fitted losses
// - variance: In [0, 1], 1 far from every observation
//
// Returns (0, 1) when nothing has been fitted yet.
//
// Performance considerations:
// - O(n*d) time for n observations of d dimensions.
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	n := float64(len(gp.obs))
	if n == 0 {
		return 0, 1
	}

	var weighted, total float64

	for _, o := range gp.obs {
		k := gp.similarity(x, o.x)

		weighted += k * o.loss
		total += k
	}

	// 1 - sum_i sum_j k_i*k_j / n, the double sum being total^2.
	return weighted / n, math.Max(0, 1-total*total/n)
}

// Update fits one more observation. x is copied.
func (gp *gaussianProcess) Update(x []float64, loss float64) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.obs = append(gp.obs, observation{
		x:    append([]float64(nil), x...),
		loss: loss,
	})
}

// SetSigma changes the kernel width. Callers pass a positive width.
func (gp *gaussianProcess) SetSigma(width float64) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.width = width
}

// Len returns the number of fitted observations.
func (gp *gaussianProcess) Len() int {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return len(gp.obs)
}

// similarity is RBFKernel for callers holding the lock.
func (gp *gaussianProcess) similarity(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("input vectors must have the same length")
	}

	var dist2 float64

	for i := range a {
		d := a[i] - b[i]
		dist2 += d * d
	}

	return math.Exp(-dist2 / (2 * gp.width * gp.width))
}

//////
// Factory.
//////

// newGaussianProcess returns an empty model with the default kernel width.
func newGaussianProcess() *gaussianProcess {
	return &gaussianProcess{width: defaultKernelWidth}
}
