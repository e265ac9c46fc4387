package hotune

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//////
// Const, vars, types.
//////

const (
	// defaultSigma is the RBF length scale on unit-scaled inputs.
	defaultSigma = 0.25

	// defaultNoise is added to the kernel diagonal. Cross-validated scores
	// are noisy and duplicate proposals must not make K singular.
	defaultNoise = 1e-4

	// maxJitterAttempts bounds how often the noise is grown when the
	// Cholesky factorization fails.
	maxJitterAttempts = 6
)

// gaussianProcess implements a thread-safe Gaussian Process model for regression
// with multidimensional inputs. It is used to predict the objective of untested
// hyperparameter combinations based on previously observed results.
//
// Fields:
// - mu: RWMutex for thread-safe access to all fields
// - X: Observed input points, each encoded onto the unit hypercube
// - Y: Observed objective values at each input point
// - sigma: Kernel length scale controlling the smoothness of interpolation
//
// The posterior is exact: Update refits a Cholesky factorization of
// K + noise*I over the standardized targets, and Predict solves against it.
//
// Memory usage:
// - O(n^2) for the kernel factorization where n is number of observations.
type gaussianProcess struct {
	// mu protects access to all fields
	mu sync.RWMutex

	// X stores the input points (encoded hyperparameter combinations)
	X [][]float64

	// Y stores the observed objective values at each point in X
	Y []float64

	// sigma is the kernel length scale
	sigma float64

	chol  *mat.Cholesky
	alpha *mat.VecDense
	yMean float64
	yStd  float64
}

//////
// Methods.
//////

// RBFKernel implements the Radial Basis Function (also known as Gaussian) kernel.
//
// Mathematical formula:
//
//	k(x1, x2) = exp(-sum((x1 - x2)^2) / (2 * sigma^2))
//
// Important notes:
// - Panics if input vectors have different lengths
// - Returns 1.0 for identical points
// - Callers must hold at least a read lock
func (gp *gaussianProcess) RBFKernel(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	return math.Exp(-sum / (2 * gp.sigma * gp.sigma))
}

// Predict estimates the expected objective and its uncertainty at x.
//
// Returns:
// - mean: Expected objective at the input point
// - variance: Posterior variance in objective units (higher = less certain)
//
// Returns (0, 1) if no observations exist.
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	if len(gp.X) == 0 || gp.chol == nil {
		return 0, 1
	}

	n := len(gp.X)

	k := mat.NewVecDense(n, nil)
	for i := range gp.X {
		k.SetVec(i, gp.RBFKernel(x, gp.X[i]))
	}

	mean = mat.Dot(k, gp.alpha)*gp.yStd + gp.yMean

	var v mat.VecDense
	if err := gp.chol.SolveVecTo(&v, k); err != nil {
		return mean, gp.yStd * gp.yStd
	}

	variance = math.Max(1-mat.Dot(k, &v), 1e-12) * gp.yStd * gp.yStd

	return mean, variance
}

// Update adds a new observation point to the Gaussian Process model and
// refits the posterior.
//
// Important notes:
// - Creates a deep copy of input slice x to prevent external modifications
// - O(n^3) due to the refactorization
func (gp *gaussianProcess) Update(x []float64, y float64) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	newX := make([]float64, len(x))
	copy(newX, x)

	gp.X = append(gp.X, newX)
	gp.Y = append(gp.Y, y)

	gp.fit()
}

// fit factorizes the kernel matrix. Callers must hold the write lock.
func (gp *gaussianProcess) fit() {
	n := len(gp.X)

	gp.yMean, gp.yStd = stat.MeanStdDev(gp.Y, nil)
	if n < 2 || gp.yStd == 0 || math.IsNaN(gp.yStd) {
		gp.yStd = 1
	}

	ys := mat.NewVecDense(n, nil)
	for i, y := range gp.Y {
		ys.SetVec(i, (y-gp.yMean)/gp.yStd)
	}

	noise := defaultNoise

	for attempt := 0; attempt < maxJitterAttempts; attempt++ {
		k := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				k.SetSym(i, j, gp.RBFKernel(gp.X[i], gp.X[j]))
			}

			k.SetSym(i, i, 1+noise)
		}

		var chol mat.Cholesky
		if chol.Factorize(k) {
			var alpha mat.VecDense
			if err := chol.SolveVecTo(&alpha, ys); err == nil {
				gp.chol = &chol
				gp.alpha = &alpha

				return
			}
		}

		noise *= 10
	}

	// Could not factorize: fall back to the prior.
	gp.chol = nil
	gp.alpha = nil
}

// Len returns the number of observations.
func (gp *gaussianProcess) Len() int {
	gp.mu.RLock()
	defer gp.mu.RUnlock()

	return len(gp.X)
}

//////
// Factory.
//////

// newGaussianProcess creates a Gaussian Process model with RBF length scale
// sigma. A non-positive sigma uses defaultSigma.
func newGaussianProcess(sigma float64) *gaussianProcess {
	if sigma <= 0 {
		sigma = defaultSigma
	}

	return &gaussianProcess{
		sigma: sigma,
		yStd:  1,
	}
}
