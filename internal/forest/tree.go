// Package forest implements CART decision trees and a bagged random forest
// classifier over dense float64 features.
//
// Labels are class indices in [0, nClasses). Missing values are NaN and
// follow the child that received more training samples.
package forest

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidParam is returned for out-of-range hyperparameters.
	ErrInvalidParam = errors.New("forest: invalid hyperparameter")

	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("forest: model is not fitted")

	// ErrInvalidInput is returned for empty, ragged or mismatched data.
	ErrInvalidInput = errors.New("forest: invalid input")
)

// Criterion is the impurity measure used to rank splits.
type Criterion int

const (
	// Gini impurity.
	Gini Criterion = iota
	// Entropy is Shannon entropy (information gain).
	Entropy
)

// String implements fmt.Stringer.
func (c Criterion) String() string {
	if c == Entropy {
		return "entropy"
	}

	return "gini"
}

// ParseCriterion accepts "gini" or "entropy", case-insensitively.
func ParseCriterion(s string) (Criterion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gini":
		return Gini, nil
	case "entropy":
		return Entropy, nil
	default:
		return Gini, errors.Wrapf(ErrInvalidParam, "unknown criterion %q", s)
	}
}

func (c Criterion) impurity(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}

	n := float64(total)
	res := 0.0

	switch c {
	case Entropy:
		for _, cnt := range counts {
			if cnt == 0 {
				continue
			}
			p := float64(cnt) / n
			res -= p * math.Log2(p)
		}
	default:
		res = 1
		for _, cnt := range counts {
			p := float64(cnt) / n
			res -= p * p
		}
	}

	return res
}

// DecisionTree is a CART classifier.
type DecisionTree struct {
	Criterion Criterion

	// MaxDepth limits the depth of the tree (root depth = 0). 0 means no
	// limit.
	MaxDepth int

	// MinSamplesSplit is the minimum number of samples a node needs to be
	// split.
	MinSamplesSplit int

	// MinSamplesLeaf is the minimum number of samples in each child.
	MinSamplesLeaf int

	// MaxFeatures is the fraction of features examined at each split. At
	// least one feature is always examined. 0 means all features.
	MaxFeatures float64

	// Seed drives feature subsampling.
	Seed int64

	root      *node
	nClasses  int
	nFeatures int
}

type node struct {
	leaf bool

	// split
	feature   int
	threshold float64 // x <= threshold goes left
	nanLeft   bool
	left      *node
	right     *node

	// leaf
	class int
}

// NewDecisionTree returns a tree with sklearn-like defaults.
func NewDecisionTree() *DecisionTree {
	return &DecisionTree{
		Criterion:       Gini,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

func (t *DecisionTree) validate() error {
	switch {
	case t.MaxDepth < 0:
		return errors.Wrapf(ErrInvalidParam, "max depth %d", t.MaxDepth)
	case t.MinSamplesSplit < 2:
		return errors.Wrapf(ErrInvalidParam, "min samples split %d", t.MinSamplesSplit)
	case t.MinSamplesLeaf < 1:
		return errors.Wrapf(ErrInvalidParam, "min samples leaf %d", t.MinSamplesLeaf)
	case t.MaxFeatures < 0 || t.MaxFeatures > 1 || math.IsNaN(t.MaxFeatures):
		return errors.Wrapf(ErrInvalidParam, "max features %v", t.MaxFeatures)
	case t.Criterion != Gini && t.Criterion != Entropy:
		return errors.Wrapf(ErrInvalidParam, "criterion %d", t.Criterion)
	}

	return nil
}

// Fit trains the tree on every row of X.
func (t *DecisionTree) Fit(X [][]float64, y []int) error {
	nClasses, err := checkTrainingData(X, y)
	if err != nil {
		return err
	}

	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}

	return t.fitIndices(X, y, idx, nClasses)
}

// fitIndices trains on the rows named by idx, which may repeat (bootstrap).
func (t *DecisionTree) fitIndices(X [][]float64, y []int, idx []int, nClasses int) error {
	if err := t.validate(); err != nil {
		return err
	}

	t.nClasses = nClasses
	t.nFeatures = len(X[0])

	b := &builder{
		tree: t,
		X:    X,
		y:    y,
		rng:  rand.New(rand.NewSource(t.Seed)),
		k:    featuresPerSplit(t.MaxFeatures, t.nFeatures),
	}

	t.root = b.build(idx, 0)

	return nil
}

// Predict returns the predicted class index of every row.
func (t *DecisionTree) Predict(X [][]float64) ([]int, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}

	out := make([]int, len(X))

	for i, row := range X {
		if len(row) != t.nFeatures {
			return nil, errors.Wrapf(ErrInvalidInput, "row %d has %d features, want %d", i, len(row), t.nFeatures)
		}

		out[i] = t.root.predict(row)
	}

	return out, nil
}

// Depth returns the depth of the fitted tree.
func (t *DecisionTree) Depth() int {
	return t.root.depth()
}

func (n *node) predict(row []float64) int {
	for !n.leaf {
		v := row[n.feature]

		switch {
		case math.IsNaN(v):
			if n.nanLeft {
				n = n.left
			} else {
				n = n.right
			}
		case v <= n.threshold:
			n = n.left
		default:
			n = n.right
		}
	}

	return n.class
}

func (n *node) depth() int {
	if n == nil || n.leaf {
		return 0
	}

	return 1 + max(n.left.depth(), n.right.depth())
}

// builder holds the state of one Fit call.
type builder struct {
	tree *DecisionTree
	X    [][]float64
	y    []int
	rng  *rand.Rand
	k    int
}

type split struct {
	feature   int
	threshold float64
	nanLeft   bool
	gain      float64
}

func (b *builder) build(idx []int, depth int) *node {
	t := b.tree

	counts := make([]int, t.nClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}

	leaf := &node{leaf: true, class: argmax(counts)}

	if len(idx) < t.MinSamplesSplit || isPure(counts) || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return leaf
	}

	parent := t.Criterion.impurity(counts, len(idx))

	best := split{feature: -1}
	for _, f := range b.candidateFeatures() {
		if s, ok := b.bestSplit(idx, f, parent); ok && s.gain > best.gain {
			best = s
		}
	}

	if best.feature < 0 {
		return leaf
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))

	for _, i := range idx {
		v := b.X[i][best.feature]
		if (math.IsNaN(v) && best.nanLeft) || v <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &node{
		feature:   best.feature,
		threshold: best.threshold,
		nanLeft:   best.nanLeft,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}

// candidateFeatures draws k distinct features.
func (b *builder) candidateFeatures() []int {
	p := b.tree.nFeatures

	feats := make([]int, p)
	for i := range feats {
		feats[i] = i
	}

	if b.k >= p {
		return feats
	}

	for i := 0; i < b.k; i++ {
		j := i + b.rng.Intn(p-i)
		feats[i], feats[j] = feats[j], feats[i]
	}

	return feats[:b.k]
}

// bestSplit scans the thresholds of feature f between distinct sorted
// values. NaN rows join whichever side holds more valid rows.
func (b *builder) bestSplit(idx []int, f int, parent float64) (split, bool) {
	t := b.tree
	nc := t.nClasses

	valid := make([]int, 0, len(idx))
	nanCounts := make([]int, nc)
	nNaN := 0

	for _, i := range idx {
		if math.IsNaN(b.X[i][f]) {
			nanCounts[b.y[i]]++
			nNaN++
		} else {
			valid = append(valid, i)
		}
	}

	if len(valid) < 2 {
		return split{}, false
	}

	sort.Slice(valid, func(a, c int) bool { return b.X[valid[a]][f] < b.X[valid[c]][f] })

	leftCounts := make([]int, nc)
	rightCounts := make([]int, nc)
	for _, i := range valid {
		rightCounts[b.y[i]]++
	}

	withL := make([]int, nc)
	withR := make([]int, nc)
	total := float64(len(idx))
	best := split{feature: -1}

	for s := 1; s < len(valid); s++ {
		c := b.y[valid[s-1]]
		leftCounts[c]++
		rightCounts[c]--

		lo := b.X[valid[s-1]][f]
		hi := b.X[valid[s]][f]
		if lo == hi {
			continue
		}

		nL, nR := s, len(valid)-s
		nanLeft := nL >= nR

		copy(withL, leftCounts)
		copy(withR, rightCounts)
		if nanLeft {
			addCounts(withL, nanCounts)
			nL += nNaN
		} else {
			addCounts(withR, nanCounts)
			nR += nNaN
		}

		if nL < t.MinSamplesLeaf || nR < t.MinSamplesLeaf {
			continue
		}

		weighted := float64(nL)/total*t.Criterion.impurity(withL, nL) +
			float64(nR)/total*t.Criterion.impurity(withR, nR)

		gain := parent - weighted
		if gain > best.gain+1e-12 {
			best = split{feature: f, threshold: (lo + hi) / 2, nanLeft: nanLeft, gain: gain}
		}
	}

	return best, best.feature >= 0
}

//////
// Helpers.
//////

func featuresPerSplit(frac float64, p int) int {
	if frac <= 0 || frac >= 1 {
		return p
	}

	return max(1, int(frac*float64(p)))
}

func checkTrainingData(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, errors.Wrap(ErrInvalidInput, "empty X")
	}

	if len(X) != len(y) {
		return 0, errors.Wrapf(ErrInvalidInput, "X has %d rows, y has %d labels", len(X), len(y))
	}

	p := len(X[0])
	if p == 0 {
		return 0, errors.Wrap(ErrInvalidInput, "no features")
	}

	nClasses := 0

	for i := range X {
		if len(X[i]) != p {
			return 0, errors.Wrapf(ErrInvalidInput, "row %d has %d features, want %d", i, len(X[i]), p)
		}

		if y[i] < 0 {
			return 0, errors.Wrapf(ErrInvalidInput, "negative label %d at row %d", y[i], i)
		}

		nClasses = max(nClasses, y[i]+1)
	}

	return nClasses, nil
}

func addCounts(dst, src []int) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// argmax returns the lowest index holding the maximum.
func argmax(counts []int) int {
	best := 0

	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}

	return best
}

func isPure(counts []int) bool {
	nonZero := 0

	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}

	return nonZero <= 1
}
