// Package hotune searches hyperparameter configurations under a fixed trial
// budget. Each trial evaluates the objective once at one configuration; the
// run keeps every trial in memory and reports the best.
//
// # Samplers
//
//   - SamplerGP (default): Bayesian optimization with an exact Gaussian
//     Process (RBF kernel, Cholesky solve via gonum) over a unit-scaled
//     encoding of the search space. The first InitialSamples trials are
//     random; after that NumCandidates random candidates are scored by an
//     acquisition function and the lowest scoring one is evaluated.
//   - SamplerTPE: goptuna's Tree-structured Parzen Estimator drives the
//     proposals; bookkeeping and error handling are shared with SamplerGP.
//
// # Acquisition Functions
//
// Used by SamplerGP only. Every function is minimized.
//
//   - UCB: mean minus Beta standard deviations. The default.
//   - ProbabilityOfImprovement: chance of not beating the best by Xi.
//   - ExpectedImprovement: negated expected gain over the best.
//   - ThompsonSampling: one posterior draw.
//
// Switching is one assignment:
//
//	config := DefaultConfig()
//	config.AcquisitionFunc = ExpectedImprovement
//	config.AcqParams.Xi = 0.01
//
// # Search Spaces
//
//	space := SearchSpace{
//	    CategoricalDimension("criterion", "gini", "entropy"),
//	    IntDimension("n_estimators", ParameterRange[int]{Min: 100, Max: 1500}),
//	    IntDimension("max_depth", ParameterRange[int]{Min: 3, Max: 15}),
//	    FloatDimension("max_features", ParameterRange[float64]{Min: 0.01, Max: 1.0}),
//	}
//
// Int bounds are inclusive. Objectives read values back with Params.Int,
// Params.Float and Params.Categorical.
//
// # Failures
//
// The first objective error ends the run and is returned wrapped with the
// trial number. With ContinueOnError the trial is recorded as TrialFailed
// and the run goes on. A NaN value counts as a failure.
//
// # Concurrency
//
// Trials never overlap: the objective is called from a single goroutine.
// Concurrent Optimize calls with separate configs are safe. Progress
// updates are sent without blocking and dropped when ProgressChan is full.
package hotune
