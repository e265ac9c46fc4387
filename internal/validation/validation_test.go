package validation

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratifiedKFoldPartitions(t *testing.T) {
	// 3 classes of 10, 7 and 5 members, interleaved.
	var y []int
	for i := 0; i < 10; i++ {
		y = append(y, 0)
		if i < 7 {
			y = append(y, 1)
		}
		if i < 5 {
			y = append(y, 2)
		}
	}

	folds, err := StratifiedKFold{Splits: 5}.Split(y)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := make([]int, len(y))
	total := map[int]int{0: 10, 1: 7, 2: 5}

	for _, fold := range folds {
		assert.Equal(t, len(y), len(fold.Train)+len(fold.Test))

		inTest := map[int]bool{}
		counts := map[int]int{}

		for _, i := range fold.Test {
			seen[i]++
			inTest[i] = true
			counts[y[i]]++
		}

		for _, i := range fold.Train {
			assert.False(t, inTest[i], "index %d is in train and test", i)
		}

		for c, n := range total {
			ideal := float64(n) / 5
			assert.InDelta(t, ideal, float64(counts[c]), 1, "class %d", c)
		}

		assert.True(t, sort.IntsAreSorted(fold.Test))
	}

	for i, n := range seen {
		assert.Equal(t, 1, n, "index %d", i)
	}
}

func TestStratifiedKFoldContiguousBlocks(t *testing.T) {
	y := make([]int, 20)
	for i := 10; i < 20; i++ {
		y[i] = 1
	}

	folds, err := StratifiedKFold{Splits: 5}.Split(y)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 10, 11}, folds[0].Test)
	assert.Equal(t, []int{2, 3, 12, 13}, folds[1].Test)
	assert.Equal(t, []int{8, 9, 18, 19}, folds[4].Test)
}

func TestStratifiedKFoldUnevenClasses(t *testing.T) {
	// Sorted labels 0,0,0,1,1,1,1 dealt over 3 folds give class 0 one member
	// per fold, and class 1 two members in fold 0 then one in folds 1 and 2.
	y := []int{1, 0, 1, 0, 1, 0, 1}

	folds, err := StratifiedKFold{Splits: 3}.Split(y)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, folds[0].Test)
	assert.Equal(t, []int{3, 4}, folds[1].Test)
	assert.Equal(t, []int{5, 6}, folds[2].Test)
}

func TestStratifiedKFoldErrors(t *testing.T) {
	tests := []struct {
		name   string
		splits int
		y      []int
	}{
		{name: "one split", splits: 1, y: []int{0, 1, 0, 1}},
		{name: "more splits than samples", splits: 5, y: []int{0, 1, 0, 1}},
		{name: "more splits than any class", splits: 3, y: []int{0, 1, 0, 1, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StratifiedKFold{Splits: tt.splits}.Split(tt.y)
			assert.ErrorIs(t, err, ErrInvalidSplits)
		})
	}
}

func TestStratifiedKFoldSmallClass(t *testing.T) {
	// Class 1 has fewer members than splits; allowed.
	y := []int{0, 0, 0, 0, 0, 1}

	folds, err := StratifiedKFold{Splits: 3}.Split(y)
	require.NoError(t, err)
	assert.Len(t, folds, 3)
}

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy([]int{1, 2, 3, 4}, []int{1, 2, 0, 4})
	require.NoError(t, err)
	assert.Equal(t, 0.75, acc)

	acc, err = Accuracy([]int{1, 1}, []int{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, acc)

	_, err = Accuracy([]int{1}, []int{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Accuracy(nil, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestScores(t *testing.T) {
	s := Scores{Folds: []float64{0.8, 0.9, 1.0}}

	assert.InDelta(t, 0.9, s.Mean(), 1e-12)
	assert.InDelta(t, 0.0816496580927726, s.Std(), 1e-12)
}

// threshold predicts class 1 when the first feature exceeds 0.5.
type threshold struct {
	fits int
}

func (m *threshold) Fit([][]float64, []int) error {
	m.fits++

	return nil
}

func (m *threshold) Predict(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, row := range X {
		if row[0] > 0.5 {
			out[i] = 1
		}
	}

	return out, nil
}

type failing struct{}

func (failing) Fit([][]float64, []int) error       { return errors.New("no fit") }
func (failing) Predict([][]float64) ([]int, error) { return nil, nil }

func TestCrossValidate(t *testing.T) {
	X := [][]float64{{0}, {1}, {0}, {1}, {0}, {1}, {0}, {1}, {0}, {1}}
	y := []int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}

	var models []*threshold

	newModel := func() Classifier {
		m := &threshold{}
		models = append(models, m)

		return m
	}

	scores, err := CrossValidate(context.Background(), newModel, X, y, StratifiedKFold{Splits: 5})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 1, 1, 1, 1}, scores.Folds)
	assert.Equal(t, 1.0, scores.Mean())

	// A fresh model per fold.
	require.Len(t, models, 5)
	for _, m := range models {
		assert.Equal(t, 1, m.fits)
	}
}

func TestCrossValidateErrors(t *testing.T) {
	X := [][]float64{{0}, {1}, {0}, {1}}
	y := []int{0, 1, 0, 1}

	_, err := CrossValidate(context.Background(), func() Classifier { return failing{} }, X, y, StratifiedKFold{Splits: 2})
	assert.ErrorContains(t, err, "fold 0: fit")

	_, err = CrossValidate(context.Background(), func() Classifier { return &threshold{} }, X[:3], y, StratifiedKFold{Splits: 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = CrossValidate(ctx, func() Classifier { return &threshold{} }, X, y, StratifiedKFold{Splits: 2})
	assert.ErrorIs(t, err, context.Canceled)
}
