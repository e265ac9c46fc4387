package hotune

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoCompletedTrials is returned when every trial of a run failed.
var ErrNoCompletedTrials = errors.New("no trial completed")

// errNaNValue marks an objective that returned NaN without an error.
var errNaNValue = errors.New("objective returned NaN")

// Result is the optimizer's in-memory bookkeeping of a run.
type Result struct {
	// Best is the completed trial with the best value.
	Best Trial

	// Trials lists every trial in execution order.
	Trials []Trial

	// Direction is the direction the run optimized in.
	Direction Direction
}

// BestParams returns a copy of the best configuration.
func (r *Result) BestParams() Params {
	return r.Best.Params.Clone()
}

// BestValue returns the objective value of the best trial.
func (r *Result) BestValue() float64 {
	return r.Best.Value
}

// Completed returns the trials that produced a value.
func (r *Result) Completed() []Trial {
	out := make([]Trial, 0, len(r.Trials))

	for _, t := range r.Trials {
		if t.State == TrialComplete {
			out = append(out, t)
		}
	}

	return out
}

// Failed returns the number of failed trials.
func (r *Result) Failed() int {
	return len(r.Trials) - len(r.Completed())
}

// recorder is the trial bookkeeping shared by every sampler.
type recorder struct {
	config  OptimizationConfig
	trials  []Trial
	best    Trial
	hasBest bool
}

func newRecorder(config OptimizationConfig) *recorder {
	return &recorder{
		config: config,
		trials: make([]Trial, 0, config.Trials),
	}
}

// record stores the outcome of one objective call. It returns an error only
// when the trial failed and the run must stop.
func (r *recorder) record(phase string, params Params, value float64, d time.Duration, objErr error) (Trial, error) {
	if objErr == nil && math.IsNaN(value) {
		objErr = errNaNValue
	}

	trial := Trial{
		Number:   len(r.trials),
		Params:   params.Clone(),
		Value:    value,
		State:    TrialComplete,
		Duration: d,
	}

	if objErr != nil {
		trial.State = TrialFailed
		trial.Err = objErr
		trial.Value = math.NaN()
	}

	r.trials = append(r.trials, trial)

	logger := r.config.Logger

	if trial.State == TrialFailed {
		logger.Warn().
			Err(objErr).
			Int("trial", trial.Number).
			Str("params", params.String()).
			Msg("trial failed")

		r.sendProgress(phase, trial)

		if !r.config.ContinueOnError {
			return trial, fmt.Errorf("trial %d: %w", trial.Number, objErr)
		}

		return trial, nil
	}

	if !r.hasBest || r.better(value, r.best.Value) {
		r.best = trial
		r.hasBest = true
	}

	logger.Info().
		Int("trial", trial.Number).
		Float64("value", value).
		Float64("best", r.best.Value).
		Dur("duration", d).
		Str("params", params.String()).
		Msg("trial finished")

	r.sendProgress(phase, trial)

	return trial, nil
}

// better reports whether a beats b in the configured direction.
func (r *recorder) better(a, b float64) bool {
	return internalValue(a, r.config.Direction) < internalValue(b, r.config.Direction)
}

// bestInternal returns the best value so far as the minimized quantity.
func (r *recorder) bestInternal() float64 {
	if !r.hasBest {
		return math.MaxFloat64
	}

	return internalValue(r.best.Value, r.config.Direction)
}

// sendProgress reports a finished trial without blocking.
func (r *recorder) sendProgress(phase string, trial Trial) {
	if r.config.ProgressChan == nil {
		return
	}

	update := ProgressUpdate{
		Phase:             phase,
		CurrentIteration:  trial.Number + 1,
		TotalIterations:   r.config.Trials,
		CurrentParams:     trial.Params.Clone(),
		CurrentBestParams: r.best.Params.Clone(),
		CurrentBestValue:  r.best.Value,
		LastValue:         trial.Value,
		Failed:            trial.State == TrialFailed,
	}

	select {
	case r.config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}

// result freezes the bookkeeping into a Result.
func (r *recorder) result() (*Result, error) {
	if !r.hasBest {
		return nil, ErrNoCompletedTrials
	}

	trials := make([]Trial, len(r.trials))
	copy(trials, r.trials)

	return &Result{
		Best:      r.best,
		Trials:    trials,
		Direction: r.config.Direction,
	}, nil
}
