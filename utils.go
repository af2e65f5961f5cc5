package hyperopt

import (
	"math"
	"math/rand"
)

//////
// Helper functions.
//////

// Helper function used by PI and EI to compute the cumulative distribution
// function of the standard normal distribution.
//
// Returns:
// - Probability that a standard normal random variable is less than x.
func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// Helper function used by EI to compute the probability density function
// of the standard normal distribution.
//
// Returns:
// - Value of the standard normal PDF at x.
func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}

// sampleParams draws one value per dimension, uniformly within its range.
// Integer dimensions include both ends.
func sampleParams(rng *rand.Rand, space Space) Params {
	params := make(Params, len(space))

	for _, dim := range space {
		if dim.Integer {
			lo := int64(math.Ceil(dim.Min))
			hi := int64(math.Floor(dim.Max))

			if hi < lo {
				hi = lo
			}

			params[dim.Name] = float64(lo + rng.Int63n(hi-lo+1))

			continue
		}

		params[dim.Name] = dim.Min + rng.Float64()*(dim.Max-dim.Min)
	}

	return params
}

// paramsToVector maps params onto the unit hypercube, in space order, so
// the Gaussian Process kernel width is meaningful for every dimension.
// Missing values map to the middle of their range.
func paramsToVector(space Space, params Params) []float64 {
	vec := make([]float64, len(space))

	for i, dim := range space {
		v, ok := params[dim.Name]
		if !ok {
			vec[i] = 0.5

			continue
		}

		width := dim.Max - dim.Min
		if width <= 0 {
			vec[i] = 0

			continue
		}

		vec[i] = (v - dim.Min) / width
	}

	return vec
}

// failurePenalty is the loss given to failed trials when fitting the model.
// It sits one spread above the worst observed loss, which teaches the model
// to avoid failing configurations without overflowing its sums.
func failurePenalty(minLoss, maxLoss float64) float64 {
	if minLoss > maxLoss {
		// No successful observation yet.
		return 1.0
	}

	return maxLoss + (maxLoss - minLoss) + 1.0
}
