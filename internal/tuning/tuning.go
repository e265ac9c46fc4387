// Package tuning wires the random forest and stratified cross-validation
// into an objective the optimizer can search.
package tuning

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/thalesfsp/hotune"
	"github.com/thalesfsp/hotune/internal/dataset"
	"github.com/thalesfsp/hotune/internal/forest"
	"github.com/thalesfsp/hotune/internal/validation"
)

// Search space dimension names.
const (
	ParamCriterion   = "criterion"
	ParamNEstimators = "n_estimators"
	ParamMaxDepth    = "max_depth"
	ParamMaxFeatures = "max_features"
)

// Bounds are the ranges searched for each forest hyperparameter.
type Bounds struct {
	Criteria    []string
	NEstimators hotune.ParameterRange[int]
	MaxDepth    hotune.ParameterRange[int]
	MaxFeatures hotune.ParameterRange[float64]
}

// DefaultBounds returns the classic random forest search space.
func DefaultBounds() Bounds {
	return Bounds{
		Criteria:    []string{"gini", "entropy"},
		NEstimators: hotune.ParameterRange[int]{Min: 100, Max: 1500},
		MaxDepth:    hotune.ParameterRange[int]{Min: 3, Max: 15},
		MaxFeatures: hotune.ParameterRange[float64]{Min: 0.01, Max: 1.0},
	}
}

// ForestSpace turns b into a search space.
func ForestSpace(b Bounds) hotune.SearchSpace {
	return hotune.SearchSpace{
		hotune.CategoricalDimension(ParamCriterion, b.Criteria...),
		hotune.IntDimension(ParamNEstimators, b.NEstimators),
		hotune.IntDimension(ParamMaxDepth, b.MaxDepth),
		hotune.FloatDimension(ParamMaxFeatures, b.MaxFeatures),
	}
}

// ForestOptions converts sampled params into forest options.
func ForestOptions(p hotune.Params) ([]forest.Option, error) {
	name, err := p.Categorical(ParamCriterion)
	if err != nil {
		return nil, err
	}

	criterion, err := forest.ParseCriterion(name)
	if err != nil {
		return nil, err
	}

	trees, err := p.Int(ParamNEstimators)
	if err != nil {
		return nil, err
	}

	depth, err := p.Int(ParamMaxDepth)
	if err != nil {
		return nil, err
	}

	features, err := p.Float(ParamMaxFeatures)
	if err != nil {
		return nil, err
	}

	return []forest.Option{
		forest.WithCriterion(criterion),
		forest.WithNEstimators(trees),
		forest.WithMaxDepth(depth),
		forest.WithMaxFeatures(features),
	}, nil
}

// Options configure NewObjective.
type Options struct {
	// Folds is the number of stratified folds.
	Folds int

	// Seed seeds every forest so a configuration always scores the same.
	Seed int64

	// Workers bounds concurrent tree fitting inside one forest. 0 uses
	// GOMAXPROCS.
	Workers int

	// CacheSize keeps the scores of that many recent configurations so a
	// repeated proposal is not refit. 0 disables the cache.
	CacheSize int

	Logger zerolog.Logger
}

// NewObjective returns an objective that scores a configuration by its mean
// stratified k-fold accuracy on ds. The value is the negated accuracy, so the
// optimizer minimizes it.
func NewObjective(ds *dataset.Dataset, opts Options) (hotune.ObjectiveFunc, error) {
	splitter := validation.StratifiedKFold{Splits: opts.Folds, Logger: opts.Logger}

	var cache *lru.Cache

	if opts.CacheSize > 0 {
		c, err := lru.New(opts.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create score cache")
		}

		cache = c
	}

	return func(ctx context.Context, p hotune.Params) (float64, error) {
		key := p.String()

		if cache != nil {
			if v, ok := cache.Get(key); ok {
				opts.Logger.Debug().Str("params", key).Msg("configuration already scored")

				return v.(float64), nil
			}
		}

		forestOpts, err := ForestOptions(p)
		if err != nil {
			return 0, errors.Wrap(err, "build forest")
		}

		forestOpts = append(forestOpts, forest.WithSeed(opts.Seed))
		if opts.Workers > 0 {
			forestOpts = append(forestOpts, forest.WithWorkers(opts.Workers))
		}

		newModel := func() validation.Classifier {
			return forest.New(forestOpts...)
		}

		scores, err := validation.CrossValidate(ctx, newModel, ds.X, ds.Y, splitter)
		if err != nil {
			return 0, errors.Wrap(err, "cross-validate")
		}

		opts.Logger.Debug().
			Floats64("folds", scores.Folds).
			Float64("mean_accuracy", scores.Mean()).
			Float64("std_accuracy", scores.Std()).
			Str("params", key).
			Msg("configuration scored")

		value := -scores.Mean()

		if cache != nil {
			cache.Add(key, value)
		}

		return value, nil
	}, nil
}
