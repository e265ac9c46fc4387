package tuning

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/hotune"
	"github.com/thalesfsp/hotune/internal/dataset"
	"github.com/thalesfsp/hotune/internal/forest"
)

// phones builds a small CSV where price_range depends on ram only.
func phones(t *testing.T, n int) *dataset.Dataset {
	t.Helper()

	rng := rand.New(rand.NewSource(1))

	var b strings.Builder
	b.WriteString("battery_power,ram,price_range\n")

	for i := 0; i < n; i++ {
		class := i % 4
		ram := class*1000 + rng.Intn(800)
		fmt.Fprintf(&b, "%d,%d,%d\n", 500+rng.Intn(1500), ram, class)
	}

	ds, err := dataset.Read(strings.NewReader(b.String()), "price_range")
	require.NoError(t, err)

	return ds
}

func smallBounds() Bounds {
	b := DefaultBounds()
	b.NEstimators = hotune.ParameterRange[int]{Min: 5, Max: 15}

	return b
}

func TestForestSpace(t *testing.T) {
	space := ForestSpace(DefaultBounds())

	require.NoError(t, space.Validate())
	require.Len(t, space, 4)

	assert.Equal(t, ParamCriterion, space[0].Name)
	assert.Equal(t, []string{"gini", "entropy"}, space[0].Choices)
	assert.Equal(t, 100.0, space[1].Min)
	assert.Equal(t, 1500.0, space[1].Max)
	assert.Equal(t, 3.0, space[2].Min)
	assert.Equal(t, 15.0, space[2].Max)
	assert.Equal(t, 0.01, space[3].Min)
	assert.Equal(t, 1.0, space[3].Max)
}

func TestForestOptions(t *testing.T) {
	opts, err := ForestOptions(hotune.Params{
		ParamCriterion:   "entropy",
		ParamNEstimators: 7,
		ParamMaxDepth:    4,
		ParamMaxFeatures: 0.5,
	})
	require.NoError(t, err)

	rf := forest.New(opts...)
	assert.Equal(t, forest.Entropy, rf.Criterion)
	assert.Equal(t, 7, rf.NEstimators)
	assert.Equal(t, 4, rf.MaxDepth)
	assert.Equal(t, 0.5, rf.MaxFeatures)

	_, err = ForestOptions(hotune.Params{ParamCriterion: "log_loss"})
	assert.ErrorIs(t, err, forest.ErrInvalidParam)

	_, err = ForestOptions(hotune.Params{ParamCriterion: "gini"})
	assert.ErrorIs(t, err, hotune.ErrUnknownParam)
}

func TestObjectiveReturnsNegatedAccuracy(t *testing.T) {
	ds := phones(t, 80)

	objective, err := NewObjective(ds, Options{Folds: 5, Seed: 3})
	require.NoError(t, err)

	value, err := objective(context.Background(), hotune.Params{
		ParamCriterion:   "gini",
		ParamNEstimators: 10,
		ParamMaxDepth:    6,
		ParamMaxFeatures: 1.0,
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, value, -0.9)
	assert.GreaterOrEqual(t, value, -1.0)
}

func TestObjectiveWithOptimizer(t *testing.T) {
	ds := phones(t, 60)

	config := hotune.DefaultConfig()
	config.Seed = 9
	config.Trials = 4
	config.InitialSamples = 2

	objective, err := NewObjective(ds, Options{Folds: 5, Seed: 9, Workers: 2, CacheSize: 8})
	require.NoError(t, err)

	result, err := hotune.Optimize(context.Background(), config, ForestSpace(smallBounds()), objective)
	require.NoError(t, err)

	assert.Len(t, result.Trials, 4)
	assert.Less(t, result.BestValue(), -0.5)

	_, err = ForestOptions(result.BestParams())
	assert.NoError(t, err)
}

func TestObjectiveTooManyFolds(t *testing.T) {
	ds := phones(t, 8)

	objective, err := NewObjective(ds, Options{Folds: 5, Seed: 1})
	require.NoError(t, err)

	_, err = objective(context.Background(), hotune.Params{
		ParamCriterion:   "gini",
		ParamNEstimators: 3,
		ParamMaxDepth:    3,
		ParamMaxFeatures: 0.5,
	})
	assert.Error(t, err)
}

func TestObjectiveCachesScores(t *testing.T) {
	ds := phones(t, 40)

	objective, err := NewObjective(ds, Options{Folds: 5, Seed: 4, CacheSize: 4})
	require.NoError(t, err)

	params := hotune.Params{
		ParamCriterion:   "entropy",
		ParamNEstimators: 5,
		ParamMaxDepth:    4,
		ParamMaxFeatures: 0.5,
	}

	first, err := objective(context.Background(), params)
	require.NoError(t, err)

	// A cancelled context would fail a real fit, so a value means a cache hit.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second, err := objective(ctx, params.Clone())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	params[ParamMaxDepth] = 5
	_, err = objective(ctx, params)
	assert.ErrorIs(t, err, context.Canceled)
}
