package hyperopt

import (
	"math"
	"math/rand"
)

//////
// Search strategies.
//////

// RandomSearch proposes uniformly sampled parameters, one trial per id. It
// never exhausts.
//
// Usage example:
//
//	trials, err := Minimize(ctx, objective, space, RandomSearch(), 50, DefaultOptions())
func RandomSearch() Algo {
	return func(ids []int64, domain *Domain, _ Trials, seed int64) ([]*Trial, error) {
		space := domain.Space()
		if len(space) == 0 {
			return nil, ErrEmptySpace
		}

		rng := rand.New(rand.NewSource(seed))

		docs := make([]*Trial, 0, len(ids))
		for _, id := range ids {
			docs = append(docs, NewTrial(id, sampleParams(rng, space)))
		}

		return docs, nil
	}
}

// BayesSearch proposes trials with Bayesian optimization: a Gaussian
// Process fitted on completed trials predicts the loss of random
// candidates, and the acquisition function picks the most promising one.
//
// How it works:
// 1. Until InitialSamples trials are DONE or ERROR, proposals are random
// 2. Then, for each id:
//   - Generates NumCandidates random candidate points
//   - Uses the Gaussian Process to predict the loss at each point
//   - Uses AcquisitionFunc to select the most promising point
//
// Important notes:
// - Failed trials are fitted with a penalty loss so the model avoids them
// - Proposals in the same batch do not see each other's outcome
// - Randomness comes only from the seed, so a call is reproducible
func BayesSearch(config BayesConfig) Algo {
	if config.AcquisitionFunc == nil {
		config.AcquisitionFunc = UCB
	}

	if config.NumCandidates < 1 {
		config.NumCandidates = 1
	}

	return func(ids []int64, domain *Domain, trials Trials, seed int64) ([]*Trial, error) {
		space := domain.Space()
		if len(space) == 0 {
			return nil, ErrEmptySpace
		}

		rng := rand.New(rand.NewSource(seed))

		gp, observed, bestLoss := fitModel(space, trials.Trials(), config.KernelWidth)

		docs := make([]*Trial, 0, len(ids))

		// Phase 1: Initial random sampling.
		if observed < config.InitialSamples {
			for _, id := range ids {
				docs = append(docs, NewTrial(id, sampleParams(rng, space)))
			}

			return docs, nil
		}

		// Phase 2: Model-guided proposals.
		params := config.AcqParams
		params.BestSoFar = bestLoss
		params.RandomState = rng

		for _, id := range ids {
			var next Params

			bestAcquisition := math.MaxFloat64

			for j := 0; j < config.NumCandidates; j++ {
				candidate := sampleParams(rng, space)

				mean, variance := gp.Predict(paramsToVector(space, candidate))

				acquisition := config.AcquisitionFunc(mean, variance, params)

				// NaN never compares lower, keep the first candidate then.
				if next == nil || acquisition < bestAcquisition {
					bestAcquisition = acquisition
					next = candidate
				}
			}

			docs = append(docs, NewTrial(id, next))
		}

		return docs, nil
	}
}

// Limit caps algo at n proposals in total. Once n trials were proposed it
// returns no trials, which ends the run. The returned strategy keeps a
// counter, so use a fresh one per run.
func Limit(algo Algo, n int) Algo {
	proposed := 0

	return func(ids []int64, domain *Domain, trials Trials, seed int64) ([]*Trial, error) {
		remaining := n - proposed
		if remaining <= 0 {
			return nil, nil
		}

		if len(ids) > remaining {
			ids = ids[:remaining]
		}

		docs, err := algo(ids, domain, trials, seed)
		if err != nil {
			return nil, err
		}

		proposed += len(docs)

		return docs, nil
	}
}

//////
// Helper functions.
//////

// fitModel trains a Gaussian Process on the terminal trials of docs.
//
// Returns:
// - *gaussianProcess: The fitted model
// - int: Number of observations used
// - float64: Lowest loss among DONE trials, math.MaxFloat64 if none
func fitModel(space Space, docs []*Trial, kernelWidth float64) (*gaussianProcess, int, float64) {
	minLoss, maxLoss := math.MaxFloat64, -math.MaxFloat64

	for _, doc := range docs {
		if doc.State == StateDone && doc.Result != nil {
			minLoss = math.Min(minLoss, doc.Result.Loss)
			maxLoss = math.Max(maxLoss, doc.Result.Loss)
		}
	}

	penalty := failurePenalty(minLoss, maxLoss)

	gp := newGaussianProcess()
	if kernelWidth > 0 {
		gp.SetSigma(kernelWidth)
	}

	for _, doc := range docs {
		var loss float64

		switch {
		case doc.State == StateDone && doc.Result != nil:
			loss = doc.Result.Loss
		case doc.State == StateError:
			loss = penalty
		default:
			continue
		}

		gp.Update(paramsToVector(space, doc.Args), loss)
	}

	return gp, gp.Len(), minLoss
}
