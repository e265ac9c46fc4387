package hotune

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidConfig is returned when an OptimizationConfig cannot be run.
var ErrInvalidConfig = errors.New("invalid optimization config")

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration: 15 trials, the first 5
// random, Gaussian Process proposals scored by UCB, minimizing.
func DefaultConfig() OptimizationConfig {
	return OptimizationConfig{
		Trials:          15,
		InitialSamples:  5,
		NumCandidates:   100,
		Direction:       Minimize,
		Sampler:         SamplerGP,
		AcquisitionFunc: UCB,
		AcqParams: AcquisitionParams{
			BestSoFar: math.MaxFloat64,
			Beta:      2.0,
			Xi:        0.01,
		},
		Seed:         time.Now().UnixNano(),
		Logger:       zerolog.Nop(),
		ProgressChan: nil, // Default to no progress updates.
	}
}

// Optimize searches space for the configuration with the best objective
// value, spending exactly config.Trials objective evaluations unless the
// run stops early.
//
// Parameters:
// - ctx: Cancels the run between trials; also passed to the objective
// - config: OptimizationConfig controlling the optimization process
// - space: The hyperparameters and their ranges
// - objective: The function whose configuration you want to optimize
//
// Returns:
// - *Result: Every trial plus the best one
// - error: Invalid input, the first objective error (unless
// ContinueOnError), or ctx.Err()
//
// When the run stops early because of an objective error or cancellation,
// the trials completed so far are returned alongside the error if at least
// one of them succeeded.
//
// Usage example:
//
//	space := SearchSpace{
//	    CategoricalDimension("criterion", "gini", "entropy"),
//	    IntDimension("n_estimators", ParameterRange[int]{Min: 100, Max: 1500}),
//	    FloatDimension("max_features", ParameterRange[float64]{Min: 0.01, Max: 1}),
//	}
//
//	result, err := Optimize(ctx, DefaultConfig(), space, objective)
//	if err != nil {
//	    return err
//	}
//
//	fmt.Println(result.BestParams(), result.BestValue())
//
// How it works (SamplerGP):
// 1. Takes InitialSamples random samples to build initial model
// 2. For each remaining trial:
//   - Generates NumCandidates random candidate points
//   - Uses Gaussian Process to predict the objective at each point
//   - Uses AcquisitionFunc to select most promising point
//   - Evaluates the selected point
//   - Updates the model with the new result
//
// 3. Returns the best parameters found
//
// SamplerTPE hands proposals to goptuna's TPE sampler instead.
//
// Trials run strictly one after another.
func Optimize(
	ctx context.Context,
	config OptimizationConfig,
	space SearchSpace,
	objective ObjectiveFunc,
) (*Result, error) {
	if objective == nil {
		return nil, fmt.Errorf("%w: nil objective", ErrInvalidConfig)
	}

	if err := space.Validate(); err != nil {
		return nil, err
	}

	if config.Trials < 1 {
		return nil, fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidConfig, config.Trials)
	}

	if config.LengthScale < 0 || math.IsNaN(config.LengthScale) {
		return nil, fmt.Errorf("%w: length scale must not be negative, got %v", ErrInvalidConfig, config.LengthScale)
	}

	if config.Sampler == "" {
		config.Sampler = SamplerGP
	}

	rec := newRecorder(config)

	var err error

	switch config.Sampler {
	case SamplerGP:
		err = optimizeGP(ctx, config, space, objective, rec)
	case SamplerTPE:
		err = optimizeTPE(ctx, config, space, objective, rec)
	default:
		return nil, fmt.Errorf("%w: unknown sampler %q", ErrInvalidConfig, config.Sampler)
	}

	result, resErr := rec.result()
	if err != nil {
		return result, err
	}

	return result, resErr
}

// optimizeGP runs the Gaussian Process Bayesian optimization loop.
func optimizeGP(
	ctx context.Context,
	config OptimizationConfig,
	space SearchSpace,
	objective ObjectiveFunc,
	rec *recorder,
) error {
	rng := rand.New(rand.NewSource(config.Seed))

	if config.AcqParams.RandomState == nil {
		config.AcqParams.RandomState = rand.New(rand.NewSource(config.Seed + 1))
	}

	acquisition := config.AcquisitionFunc
	if acquisition == nil {
		acquisition = UCB
	}

	initial := clamp(config.InitialSamples, 1, config.Trials)
	candidates := max(config.NumCandidates, 1)

	// Initialize the Gaussian Process model that will be used to predict
	// the objective at untested points.
	gp := newGaussianProcess(config.LengthScale)

	for i := 0; i < config.Trials; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var params Params

		phase := "InitialSampling"

		if i < initial || gp.Len() == 0 {
			// Phase 1: Initial random sampling.
			params = space.sample(rng)
		} else {
			// Phase 2: choose the most promising of NumCandidates random
			// candidates according to the acquisition function.
			phase = "Optimization"
			config.AcqParams.BestSoFar = rec.bestInternal()

			bestAcquisition := math.Inf(1)

			for j := 0; j < candidates; j++ {
				candidate := space.sample(rng)

				mean, variance := gp.Predict(space.encode(candidate))

				acq := acquisition(mean, variance, config.AcqParams)
				if params == nil || acq < bestAcquisition {
					bestAcquisition = acq
					params = candidate
				}
			}
		}

		value, duration, objErr := measure(ctx, objective, params)

		trial, err := rec.record(phase, params, value, duration, objErr)
		if err != nil {
			return err
		}

		// Failed trials are kept out of the surrogate.
		if trial.State == TrialComplete {
			gp.Update(space.encode(params), internalValue(value, config.Direction))
		}
	}

	return nil
}
