package forest

import (
	"math/rand"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// RandomForest is a bagged ensemble of DecisionTrees voting by majority.
type RandomForest struct {
	NEstimators     int
	Criterion       Criterion
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     float64
	Bootstrap       bool
	Seed            int64

	// Workers bounds how many trees are grown at once.
	Workers int

	trees    []*DecisionTree
	nClasses int
}

// Option configures a RandomForest.
type Option func(*RandomForest)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(rf *RandomForest) { rf.NEstimators = n } }

// WithCriterion sets the split quality measure.
func WithCriterion(c Criterion) Option { return func(rf *RandomForest) { rf.Criterion = c } }

// WithMaxDepth caps tree depth. 0 means unlimited.
func WithMaxDepth(d int) Option { return func(rf *RandomForest) { rf.MaxDepth = d } }

// WithMaxFeatures sets the fraction of features tried at each split.
// 0 or 1 and above use all of them.
func WithMaxFeatures(frac float64) Option { return func(rf *RandomForest) { rf.MaxFeatures = frac } }

// WithMinSamplesSplit sets how many samples a node needs to be split.
func WithMinSamplesSplit(n int) Option { return func(rf *RandomForest) { rf.MinSamplesSplit = n } }

// WithMinSamplesLeaf sets the smallest number of samples a leaf may hold.
func WithMinSamplesLeaf(n int) Option { return func(rf *RandomForest) { rf.MinSamplesLeaf = n } }

// WithBootstrap toggles sampling rows with replacement for every tree.
func WithBootstrap(b bool) Option { return func(rf *RandomForest) { rf.Bootstrap = b } }

// WithSeed seeds bootstrap sampling and feature subsampling.
func WithSeed(seed int64) Option { return func(rf *RandomForest) { rf.Seed = seed } }

// WithWorkers bounds how many trees are grown concurrently. 0 uses
// GOMAXPROCS.
func WithWorkers(n int) Option { return func(rf *RandomForest) { rf.Workers = n } }

// New returns a forest of 100 gini trees with bootstrap sampling.
func New(opts ...Option) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		Criterion:       Gini,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Workers:         runtime.GOMAXPROCS(0),
	}

	for _, o := range opts {
		o(rf)
	}

	return rf
}

// Fit grows NEstimators trees, each on its own bootstrap sample.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if rf.NEstimators < 1 {
		return errors.Wrapf(ErrInvalidParam, "n estimators %d", rf.NEstimators)
	}

	nClasses, err := checkTrainingData(X, y)
	if err != nil {
		return err
	}

	workers := rf.Workers
	if workers < 1 {
		workers = 1
	}

	trees := make([]*DecisionTree, rf.NEstimators)
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				tree, err := rf.growTree(X, y, nClasses, i)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}

				trees[i] = tree
			}
		}()
	}

	for i := 0; i < rf.NEstimators; i++ {
		jobs <- i
	}

	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	rf.trees = trees
	rf.nClasses = nClasses

	return nil
}

// growTree fits tree i. Its seed depends only on rf.Seed and i so results
// do not depend on scheduling.
func (rf *RandomForest) growTree(X [][]float64, y []int, nClasses, i int) (*DecisionTree, error) {
	seed := rf.Seed + int64(i)*7919

	n := len(y)
	idx := make([]int, n)

	if rf.Bootstrap {
		rng := rand.New(rand.NewSource(seed))
		for j := range idx {
			idx[j] = rng.Intn(n)
		}
	} else {
		for j := range idx {
			idx[j] = j
		}
	}

	tree := &DecisionTree{
		Criterion:       rf.Criterion,
		MaxDepth:        rf.MaxDepth,
		MinSamplesSplit: rf.MinSamplesSplit,
		MinSamplesLeaf:  rf.MinSamplesLeaf,
		MaxFeatures:     rf.MaxFeatures,
		Seed:            seed + 1,
	}

	if err := tree.fitIndices(X, y, idx, nClasses); err != nil {
		return nil, err
	}

	return tree, nil
}

// Predict returns the majority vote of all trees. Ties go to the lowest
// class index.
func (rf *RandomForest) Predict(X [][]float64) ([]int, error) {
	if len(rf.trees) == 0 {
		return nil, ErrNotFitted
	}

	votes := make([][]int, len(X))
	for i := range votes {
		votes[i] = make([]int, rf.nClasses)
	}

	for _, tree := range rf.trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}

		for i, c := range preds {
			votes[i][c]++
		}
	}

	out := make([]int, len(X))
	for i := range votes {
		out[i] = argmax(votes[i])
	}

	return out, nil
}

// Len returns the number of fitted trees.
func (rf *RandomForest) Len() int {
	return len(rf.trees)
}
