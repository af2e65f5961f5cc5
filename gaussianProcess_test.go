package hyperopt

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRBFKernel(t *testing.T) {
	gp := newGaussianProcess()

	assert.Equal(t, 1.0, gp.RBFKernel([]float64{0.2, 0.4}, []float64{0.2, 0.4}))
	assert.InDelta(t, math.Exp(-0.5), gp.RBFKernel([]float64{0}, []float64{1}), 1e-12)

	gp.SetSigma(0.1)
	assert.Less(t, gp.RBFKernel([]float64{0}, []float64{1}), 1e-10)

	assert.Panics(t, func() { gp.RBFKernel([]float64{0}, []float64{0, 1}) })
}

func TestGaussianProcessPredict(t *testing.T) {
	gp := newGaussianProcess()
	gp.SetSigma(0.1)

	gp.Update([]float64{0}, 1)
	gp.Update([]float64{1}, 3)

	// Near an observation the model is confident.
	_, nearVar := gp.Predict([]float64{0})

	// Far from both observations it is not.
	_, farVar := gp.Predict([]float64{0.5})

	assert.Less(t, nearVar, farVar)
	assert.InDelta(t, 0.5, nearVar, 1e-9)
	assert.InDelta(t, 1.0, farVar, 1e-3)

	// Duplicated observations never drive the variance below zero.
	gp.Update([]float64{0}, 1)
	gp.Update([]float64{0}, 1)

	_, v := gp.Predict([]float64{0})
	assert.GreaterOrEqual(t, v, 0.0)
}

func TestGaussianProcessUpdateCopies(t *testing.T) {
	gp := newGaussianProcess()

	x := []float64{0.3}
	gp.Update(x, 2)
	x[0] = 0.9

	assert.Equal(t, 0.3, gp.obs[0].x[0])
	assert.Equal(t, 1, gp.Len())
}

func TestAcquisitionFunctions(t *testing.T) {
	params := AcquisitionParams{Beta: 2, Xi: 0.01, BestSoFar: 1}

	// Lower mean is more promising for every deterministic function.
	assert.Less(t, UCB(0, 0.25, params), UCB(1, 0.25, params))
	assert.Less(t, ProbabilityOfImprovement(0, 0.25, params), ProbabilityOfImprovement(1, 0.25, params))
	assert.Less(t, ExpectedImprovement(0, 0.25, params), ExpectedImprovement(1, 0.25, params))

	// More uncertainty is more promising for UCB.
	assert.Less(t, UCB(1, 1, params), UCB(1, 0.01, params))

	// Zero variance.
	assert.Equal(t, -1.0, ProbabilityOfImprovement(0, 0, params))
	assert.Equal(t, 0.0, ProbabilityOfImprovement(2, 0, params))
	assert.InDelta(t, -0.99, ExpectedImprovement(0, 0, params), 1e-12)
	assert.Equal(t, 0.0, ExpectedImprovement(2, 0, params))

	// Negative variance from rounding is treated as zero.
	assert.False(t, math.IsNaN(UCB(1, -1e-12, params)))

	params.RandomState = rand.New(rand.NewSource(1))
	assert.Equal(t, 0.5, ThompsonSampling(0.5, 0, params))
}

func TestDomainEvaluate(t *testing.T) {
	domain := NewDomain(func(_ context.Context, p Params) (Result, error) {
		if p["x"] < 0 {
			panic("negative")
		}

		return Result{Loss: p["x"]}, nil
	}, nil)

	res, err := domain.Evaluate(context.Background(), Params{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)

	_, err = domain.Evaluate(context.Background(), Params{"x": -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "objective panicked: negative")

	_, err = NewDomain(nil, nil).Evaluate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilObjective)
}
