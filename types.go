package hotune

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/constraints"
)

//////
// Const, vars, types.
//////

// Kind identifies how a Dimension is sampled and encoded.
type Kind int

const (
	// Int is an integer dimension, sampled uniformly from [Min, Max].
	Int Kind = iota

	// Float is a real dimension, sampled uniformly from [Min, Max].
	Float

	// Categorical is a dimension whose value is one of Choices.
	Categorical
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Direction tells the optimizer whether lower or higher objective values are
// better.
type Direction int

const (
	// Minimize treats lower objective values as better. This is the default.
	Minimize Direction = iota

	// Maximize treats higher objective values as better.
	Maximize
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}

	return "minimize"
}

// Sampler selects the strategy used to propose the next configuration.
type Sampler string

const (
	// SamplerGP is the built-in Gaussian Process Bayesian optimizer.
	SamplerGP Sampler = "gp"

	// SamplerTPE delegates proposals to goptuna's Tree-structured Parzen
	// Estimator.
	SamplerTPE Sampler = "tpe"
)

// TrialState reports how a trial ended.
type TrialState int

const (
	// TrialComplete means the objective returned a value.
	TrialComplete TrialState = iota

	// TrialFailed means the objective returned an error and the search was
	// configured to continue.
	TrialFailed
)

// String implements fmt.Stringer.
func (s TrialState) String() string {
	if s == TrialFailed {
		return "failed"
	}

	return "complete"
}

// ParameterRange defines the inclusive range of a numeric hyperparameter.
//
// Type Parameter:
//   - T: The numeric type for this parameter range (int or float64)
//
// Usage:
//
//	// Number of trees in a forest.
//	trees := ParameterRange[int]{Min: 100, Max: 1500}
//
//	// Fraction of features considered at each split.
//	features := ParameterRange[float64]{Min: 0.01, Max: 1.0}
//
// Validation:
// - Min must be less than or equal to Max
type ParameterRange[T constraints.Integer | constraints.Float] struct {
	// Min defines the minimum allowed value (inclusive).
	Min T

	// Max defines the maximum allowed value (inclusive).
	Max T
}

// Dimension describes one searchable hyperparameter.
//
// Build dimensions with IntDimension, FloatDimension or CategoricalDimension
// rather than filling the struct by hand.
type Dimension struct {
	// Name is the key under which the sampled value appears in Params.
	Name string

	// Kind selects sampling and encoding.
	Kind Kind

	// Min and Max bound Int and Float dimensions (inclusive).
	Min float64
	Max float64

	// Choices lists the values of a Categorical dimension.
	Choices []string
}

// SearchSpace is the ordered set of dimensions the optimizer explores.
type SearchSpace []Dimension

// Params maps a dimension name to its sampled value. Values are int for Int
// dimensions, float64 for Float dimensions and string for Categorical ones.
type Params map[string]any

// ObjectiveFunc scores one configuration. It is called once per trial, never
// concurrently.
//
// Usage example:
//
//	objective := ObjectiveFunc(func(ctx context.Context, p Params) (float64, error) {
//	    depth, err := p.Int("max_depth")
//	    if err != nil {
//	        return 0, err
//	    }
//
//	    accuracy, err := trainAndScore(ctx, depth)
//	    if err != nil {
//	        return 0, fmt.Errorf("training failed: %w", err)
//	    }
//
//	    // Minimize by default, so negate a score that should grow.
//	    return -accuracy, nil
//	})
type ObjectiveFunc func(ctx context.Context, params Params) (float64, error)

// Trial records one evaluation of the objective.
type Trial struct {
	// Number is the zero-based position of the trial in execution order.
	Number int

	// Params holds the configuration that was evaluated.
	Params Params

	// Value is the objective value. Meaningless when State is TrialFailed.
	Value float64

	// State reports whether the objective succeeded.
	State TrialState

	// Err is the objective error for failed trials.
	Err error

	// Duration is the wall time spent in the objective.
	Duration time.Duration
}

// ProgressUpdate represents the current state of the optimization process.
type ProgressUpdate struct {
	// Phase is "InitialSampling" or "Optimization" for the GP sampler and
	// "TPE" for the goptuna sampler.
	Phase string

	// CurrentIteration is the 1-based trial number within the whole run.
	CurrentIteration int

	// TotalIterations is the trial budget.
	TotalIterations int

	// CurrentParams holds the parameter values just evaluated.
	CurrentParams Params

	// CurrentBestParams holds the best parameters found so far.
	CurrentBestParams Params

	// CurrentBestValue holds the best objective value found so far.
	CurrentBestValue float64

	// LastValue holds the objective value of the trial just evaluated.
	LastValue float64

	// Failed is true when the trial just evaluated failed.
	Failed bool
}

// AcquisitionFunc defines the signature for acquisition functions used in the
// Bayesian optimization process. These functions help decide which points in the
// parameter space should be evaluated next.
//
// Parameters:
// - mean: The predicted objective at a point (lower is better)
// - variance: The predicted variance/uncertainty at that point
// - params: Additional parameters needed by specific acquisition functions
//
// Returns:
// - float64: Acquisition value (lower values indicate more promising points)
//
// Built-in acquisition functions:
// - UCB: Upper Confidence Bound
// - ProbabilityOfImprovement: Probability of finding better value
// - ExpectedImprovement: Expected magnitude of improvement
// - ThompsonSampling: Random sampling from posterior
//
// Implementation notes for custom acquisition functions:
// - Should handle edge cases (zero variance, extreme means)
// - Should return lower values for more promising points
// - The optimizer always minimizes internally, so mean and BestSoFar are
// already negated when the run maximizes.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams holds parameters used by different acquisition functions to make decisions
// about which points to sample next in the optimization process.
type AcquisitionParams struct {
	// Beta controls the exploration-exploitation trade-off in the Upper Confidence Bound (UCB)
	// acquisition function.
	// - Higher values (e.g., 3.0 or 5.0) encourage more exploration of uncertain areas
	// - Lower values (e.g., 0.1 or 0.5) focus more on exploiting known good areas
	Beta float64

	// Xi is the minimum improvement over BestSoFar that Probability of
	// Improvement and Expected Improvement look for.
	// Typical values range from 0.01 to 0.1.
	Xi float64

	// BestSoFar keeps track of the best (lowest) objective value seen so far.
	// It is maintained by the optimizer.
	BestSoFar float64

	// RandomState is the random number generator used by Thompson Sampling.
	// When nil the optimizer derives one from OptimizationConfig.Seed.
	RandomState *rand.Rand
}

// OptimizationConfig holds all configuration parameters for the optimization
// process.
//
// Usage example:
//
//	config := DefaultConfig()
//
//	// Evaluate 30 configurations in total.
//	config.Trials = 30
//
//	// The first 8 are random, the rest are proposed by the surrogate.
//	config.InitialSamples = 8
//
//	// Use Expected Improvement strategy.
//	config.AcquisitionFunc = ExpectedImprovement
//
// Performance impact notes:
// - Every trial costs one objective evaluation
// - Higher NumCandidates = better proposals but slower iterations
// - GP fitting is cubic in the number of completed trials
type OptimizationConfig struct {
	// Trials is the total number of objective evaluations.
	Trials int

	// InitialSamples is how many random trials build the first surrogate.
	// Capped at Trials. Only used by SamplerGP.
	InitialSamples int

	// NumCandidates is how many random candidates the surrogate scores before
	// each proposal. Only used by SamplerGP.
	NumCandidates int

	// Direction tells whether the objective is minimized or maximized.
	Direction Direction

	// Sampler selects the proposal strategy.
	Sampler Sampler

	// AcquisitionFunc determines the strategy for selecting the next point to
	// evaluate. Only used by SamplerGP.
	AcquisitionFunc AcquisitionFunc

	// AcqParams holds the parameters for the acquisition function.
	AcqParams AcquisitionParams

	// LengthScale is the RBF kernel length scale on unit-scaled inputs.
	// Larger values give a smoother surrogate. 0 uses 0.25. Only used by
	// SamplerGP.
	LengthScale float64

	// Seed makes random sampling reproducible.
	Seed int64

	// ContinueOnError records a failing objective as a failed trial and
	// keeps searching. When false the first objective error ends the run.
	ContinueOnError bool

	// Logger receives structured per-trial logs.
	Logger zerolog.Logger

	// ProgressChan is used to send progress updates during optimization.
	// If nil, no updates will be sent. Updates are dropped if the channel is
	// full.
	ProgressChan chan<- ProgressUpdate
}
