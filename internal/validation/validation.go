// Package validation scores classifiers with stratified k-fold
// cross-validation.
package validation

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInvalidSplits is returned when the labels cannot be split into the
	// requested number of folds.
	ErrInvalidSplits = errors.New("validation: invalid number of splits")

	// ErrLengthMismatch is returned when label vectors differ in length or
	// are empty.
	ErrLengthMismatch = errors.New("validation: length mismatch")
)

// Classifier is the model contract CrossValidate needs.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) ([]int, error)
}

// Fold is one train/test partition, as row indices into the dataset.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits samples into Splits folds that keep the class
// proportions of the whole set. There is no shuffling: every test fold takes
// a contiguous run of each class's members, in index order.
type StratifiedKFold struct {
	Splits int

	// Logger receives a warning when a class has fewer members than Splits.
	Logger zerolog.Logger
}

// Split returns Splits folds over labels y. Test folds are disjoint and
// cover every index exactly once; each Train is the complement of its Test.
//
// Per-fold class counts come from dealing the labels, sorted by class, across
// the folds in turn. Each class then fills fold 0 first with its leading
// members, fold 1 with the next ones, and so on.
func (s StratifiedKFold) Split(y []int) ([]Fold, error) {
	k := s.Splits
	n := len(y)

	if k < 2 {
		return nil, errors.Wrapf(ErrInvalidSplits, "need at least 2 splits, got %d", k)
	}

	if k > n {
		return nil, errors.Wrapf(ErrInvalidSplits, "cannot have %d splits with %d samples", k, n)
	}

	members := map[int][]int{}
	for i, c := range y {
		members[c] = append(members[c], i)
	}

	classes := make([]int, 0, len(members))
	for c := range members {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	largest := 0
	for _, c := range classes {
		largest = max(largest, len(members[c]))

		if len(members[c]) < k {
			s.Logger.Warn().
				Int("class", c).
				Int("members", len(members[c])).
				Int("splits", k).
				Msg("least populated class has fewer members than splits")
		}
	}

	if largest < k {
		return nil, errors.Wrapf(ErrInvalidSplits, "%d splits exceeds the size of every class", k)
	}

	// allocation[f][ci] is how many members of classes[ci] go to fold f.
	allocation := make([][]int, k)
	for f := range allocation {
		allocation[f] = make([]int, len(classes))
	}

	pos := 0
	for ci, c := range classes {
		for range members[c] {
			allocation[pos%k][ci]++
			pos++
		}
	}

	fold := make([]int, n)

	for ci, c := range classes {
		next := 0

		for f := 0; f < k; f++ {
			for j := 0; j < allocation[f][ci]; j++ {
				fold[members[c][next]] = f
				next++
			}
		}
	}

	folds := make([]Fold, k)
	for i := 0; i < n; i++ {
		for f := range folds {
			if fold[i] == f {
				folds[f].Test = append(folds[f].Test, i)
			} else {
				folds[f].Train = append(folds[f].Train, i)
			}
		}
	}

	return folds, nil
}

// Accuracy returns the fraction of positions where yTrue and yPred agree.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0, errors.Wrapf(ErrLengthMismatch, "%d true labels, %d predictions", len(yTrue), len(yPred))
	}

	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}

	return float64(hits) / float64(len(yTrue)), nil
}

// Scores are the per-fold accuracies of one cross-validation run.
type Scores struct {
	Folds []float64
}

// Mean returns the mean fold accuracy.
func (s Scores) Mean() float64 {
	if len(s.Folds) == 0 {
		return math.NaN()
	}

	return stat.Mean(s.Folds, nil)
}

// Std returns the population standard deviation of the fold accuracies.
func (s Scores) Std() float64 {
	if len(s.Folds) == 0 {
		return math.NaN()
	}

	return stat.PopStdDev(s.Folds, nil)
}

// CrossValidate fits a fresh model from newModel on every training fold and
// scores it on the matching test fold. Folds run sequentially; ctx is
// checked before each one.
func CrossValidate(
	ctx context.Context,
	newModel func() Classifier,
	X [][]float64,
	y []int,
	splitter StratifiedKFold,
) (Scores, error) {
	if len(X) != len(y) {
		return Scores{}, errors.Wrapf(ErrLengthMismatch, "X has %d rows, y has %d labels", len(X), len(y))
	}

	folds, err := splitter.Split(y)
	if err != nil {
		return Scores{}, err
	}

	scores := Scores{Folds: make([]float64, 0, len(folds))}

	for f, fold := range folds {
		if err := ctx.Err(); err != nil {
			return scores, err
		}

		xTrain, yTrain := subset(X, y, fold.Train)
		xTest, yTest := subset(X, y, fold.Test)

		model := newModel()

		if err := model.Fit(xTrain, yTrain); err != nil {
			return scores, errors.Wrapf(err, "fold %d: fit", f)
		}

		preds, err := model.Predict(xTest)
		if err != nil {
			return scores, errors.Wrapf(err, "fold %d: predict", f)
		}

		acc, err := Accuracy(yTest, preds)
		if err != nil {
			return scores, errors.Wrapf(err, "fold %d", f)
		}

		splitter.Logger.Debug().Int("fold", f).Float64("accuracy", acc).Msg("fold scored")

		scores.Folds = append(scores.Folds, acc)
	}

	return scores, nil
}

// subset gathers rows by index without copying the row slices.
func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))

	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}

	return xs, ys
}
