package hotune

import "math"

//////
// Acquisition functions.
//
// All of them score a candidate from the surrogate's posterior at that
// point and are minimized: the candidate with the lowest score is the one
// the optimizer evaluates next.
//////

// minSigma keeps PI and EI finite where the surrogate is certain.
const minSigma = 1e-9

// UCB is the confidence bound on the minimized objective: the posterior
// mean minus Beta standard deviations. A larger Beta rewards uncertain
// regions of the search space.
//
// Parameters:
// - mean: Posterior mean of the (minimized) objective
// - variance: Posterior variance
// - params.Beta: Weight of the uncertainty term
//
// Usage example:
//
//	score := UCB(-0.8, 0.01, AcquisitionParams{Beta: 2})
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean - params.Beta*math.Sqrt(math.Max(variance, 0))
}

// ProbabilityOfImprovement returns Φ((mean - best + Xi) / σ), the chance
// that the candidate does NOT beat BestSoFar by Xi. Minimizing it picks the
// candidate most likely to improve.
//
// Parameters:
// - mean, variance: Posterior at the candidate
// - params.BestSoFar: Lowest minimized value observed
// - params.Xi: Margin a candidate must improve by
//
// Suits small budgets where steady gains matter more than coverage.
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Max(math.Sqrt(math.Max(variance, 0)), minSigma)

	z := (mean - params.BestSoFar + params.Xi) / sigma

	return normalCDF(z)
}

// ExpectedImprovement returns minus the expected amount by which the
// candidate beats BestSoFar - Xi:
//
//	imp = BestSoFar - mean - Xi
//	score = -(imp*Φ(imp/σ) + σ*φ(imp/σ))
//
// Usage example:
//
//	score := ExpectedImprovement(-0.9, 0.02, AcquisitionParams{BestSoFar: -0.85, Xi: 0.01})
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Max(math.Sqrt(math.Max(variance, 0)), minSigma)

	improvement := params.BestSoFar - mean - params.Xi
	z := improvement / sigma

	return -(improvement*normalCDF(z) + sigma*normalPDF(z))
}

// ThompsonSampling scores a candidate with one draw from its posterior.
// params.RandomState must be set; Optimize seeds one from config.Seed when
// it is nil.
func ThompsonSampling(mean, variance float64, params AcquisitionParams) float64 {
	return mean + math.Sqrt(math.Max(variance, 0))*params.RandomState.NormFloat64()
}
