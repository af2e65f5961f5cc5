package hyperopt

import "math"

//////
// Available acquisition functions for BayesSearch.
// Each one scores a candidate from the model's prediction, balancing
// exploration (uncertain areas) against exploitation (known low losses).
// Lower scores are more promising.
//////

// UCB implements the (lower) confidence bound: the predicted loss minus
// Beta standard deviations.
//
// When to use:
// - General purpose, the default of DefaultBayesConfig
// - When you want direct control over exploration-exploitation trade-off
//
// Example:
//
//	params := AcquisitionParams{Beta: 2.0}
//	value := UCB(0.5, 0.2, params)
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean - params.Beta*math.Sqrt(math.Max(variance, 0))
}

// ProbabilityOfImprovement (PI) scores a candidate by the probability that
// its loss improves on BestSoFar by at least Xi, negated so that lower is
// better.
//
// When to use:
// - When small, reliable improvements matter more than large ones
// - In noise-sensitive problems
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(math.Max(variance, 0))
	if sigma == 0 {
		if mean < params.BestSoFar-params.Xi {
			return -1
		}

		return 0
	}

	z := (params.BestSoFar - params.Xi - mean) / sigma

	return -normalCDF(z)
}

// ExpectedImprovement (EI) scores a candidate by the expected amount its
// loss improves on BestSoFar minus Xi, negated so that lower is better.
//
// When to use:
// - Most commonly used acquisition function
// - When the magnitude of improvement matters
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	improvement := params.BestSoFar - params.Xi - mean

	sigma := math.Sqrt(math.Max(variance, 0))
	if sigma == 0 {
		return -math.Max(improvement, 0)
	}

	z := improvement / sigma

	return -(improvement*normalCDF(z) + sigma*normalPDF(z))
}

// ThompsonSampling draws a sample from the predicted distribution of the
// loss at the candidate.
//
// Warning:
// - params.RandomState must be set; BayesSearch sets it from the call seed.
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	return mean + math.Sqrt(math.Max(variance, 0))*params.RandomState.NormFloat64()
}
