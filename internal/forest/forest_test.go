package forest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns three well separated classes in two dimensions plus one
// noise feature.
func blobs(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	centers := [][2]float64{{0, 0}, {10, 0}, {0, 10}}

	X := make([][]float64, 0, n)
	y := make([]int, 0, n)

	for i := 0; i < n; i++ {
		c := i % len(centers)
		X = append(X, []float64{
			centers[c][0] + rng.NormFloat64(),
			centers[c][1] + rng.NormFloat64(),
			rng.Float64(),
		})
		y = append(y, c)
	}

	return X, y
}

func accuracy(a, b []int) float64 {
	hits := 0
	for i := range a {
		if a[i] == b[i] {
			hits++
		}
	}

	return float64(hits) / float64(len(a))
}

func TestParseCriterion(t *testing.T) {
	c, err := ParseCriterion("gini")
	require.NoError(t, err)
	assert.Equal(t, Gini, c)

	c, err = ParseCriterion(" Entropy ")
	require.NoError(t, err)
	assert.Equal(t, Entropy, c)
	assert.Equal(t, "entropy", c.String())

	_, err = ParseCriterion("log_loss")
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestImpurity(t *testing.T) {
	assert.InDelta(t, 0.5, Gini.impurity([]int{5, 5}, 10), 1e-12)
	assert.InDelta(t, 1.0, Entropy.impurity([]int{5, 5}, 10), 1e-12)
	assert.Equal(t, 0.0, Gini.impurity([]int{10, 0}, 10))
	assert.Equal(t, 0.0, Entropy.impurity([]int{0, 0}, 0))
}

func TestDecisionTreeFitsTrainingData(t *testing.T) {
	X, y := blobs(90, 1)

	for _, c := range []Criterion{Gini, Entropy} {
		tree := NewDecisionTree()
		tree.Criterion = c

		require.NoError(t, tree.Fit(X, y))

		preds, err := tree.Predict(X)
		require.NoError(t, err)
		assert.Equal(t, 1.0, accuracy(y, preds), c.String())
	}
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	X, y := blobs(90, 2)

	tree := NewDecisionTree()
	tree.MaxDepth = 1

	require.NoError(t, tree.Fit(X, y))
	assert.Equal(t, 1, tree.Depth())
}

func TestDecisionTreeMissingValues(t *testing.T) {
	// NaN joins the larger side of the only perfect split.
	X := [][]float64{{1}, {2}, {math.NaN()}, {3}, {10}, {11}}
	y := []int{0, 0, 0, 0, 1, 1}

	tree := NewDecisionTree()
	require.NoError(t, tree.Fit(X, y))

	preds, err := tree.Predict([][]float64{{1.5}, {10.5}, {math.NaN()}})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 0}, preds)
	assert.Equal(t, 1, tree.Depth())
}

func TestDecisionTreeErrors(t *testing.T) {
	tree := NewDecisionTree()

	_, err := tree.Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	assert.ErrorIs(t, tree.Fit(nil, nil), ErrInvalidInput)
	assert.ErrorIs(t, tree.Fit([][]float64{{1}, {2}}, []int{0}), ErrInvalidInput)
	assert.ErrorIs(t, tree.Fit([][]float64{{1}, {2, 3}}, []int{0, 1}), ErrInvalidInput)
	assert.ErrorIs(t, tree.Fit([][]float64{{1}}, []int{-1}), ErrInvalidInput)

	tree.MaxFeatures = 1.5
	assert.ErrorIs(t, tree.Fit([][]float64{{1}, {2}}, []int{0, 1}), ErrInvalidParam)

	tree = NewDecisionTree()
	require.NoError(t, tree.Fit([][]float64{{1}, {2}}, []int{0, 1}))

	_, err = tree.Predict([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRandomForestGeneralizes(t *testing.T) {
	X, y := blobs(300, 3)
	Xtest, ytest := blobs(90, 4)

	rf := New(
		WithNEstimators(25),
		WithCriterion(Entropy),
		WithMaxDepth(5),
		WithMaxFeatures(0.5),
		WithSeed(7),
	)

	require.NoError(t, rf.Fit(X, y))
	assert.Equal(t, 25, rf.Len())

	preds, err := rf.Predict(Xtest)
	require.NoError(t, err)
	assert.Greater(t, accuracy(ytest, preds), 0.9)
}

func TestRandomForestIsDeterministic(t *testing.T) {
	X, y := blobs(150, 5)

	predict := func(workers int) []int {
		rf := New(WithNEstimators(10), WithMaxFeatures(0.34), WithSeed(11), WithWorkers(workers))
		require.NoError(t, rf.Fit(X, y))

		preds, err := rf.Predict(X)
		require.NoError(t, err)

		return preds
	}

	assert.Equal(t, predict(1), predict(4))
}

func TestRandomForestErrors(t *testing.T) {
	rf := New()

	_, err := rf.Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	rf = New(WithNEstimators(0))
	assert.ErrorIs(t, rf.Fit([][]float64{{1}}, []int{0}), ErrInvalidParam)

	rf = New(WithNEstimators(3), WithMinSamplesSplit(1))
	assert.ErrorIs(t, rf.Fit([][]float64{{1}, {2}}, []int{0, 1}), ErrInvalidParam)
}

func TestFeaturesPerSplit(t *testing.T) {
	assert.Equal(t, 20, featuresPerSplit(0, 20))
	assert.Equal(t, 20, featuresPerSplit(1, 20))
	assert.Equal(t, 1, featuresPerSplit(0.01, 20))
	assert.Equal(t, 10, featuresPerSplit(0.5, 20))
}
