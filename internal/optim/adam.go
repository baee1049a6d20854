package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// Adam implements Adaptive Moment Estimation.
//
// Update rule:
//
//	m = beta1 * m + (1 - beta1) * dx
//	v = beta2 * v + (1 - beta2) * dx^2
//	m_hat = m / (1 - beta1^t)
//	v_hat = v / (1 - beta2^t)
//	x = x - eta * m_hat / (sqrt(v_hat) + eps)
//
// The moment estimates are element-wise, so Adam is applied to sparse values
// exactly as to dense data.
type Adam[T tensor.Float] struct {
	x, dx []T
	m, v  []T
	beta1 float64
	beta2 float64
	eps   float64
	t     int // Timestep for bias correction
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam binds Adam to the pair (x, dx). Zero config fields take their defaults.
func NewAdam[T tensor.Float](x, dx []T, config AdamConfig) *Adam[T] {
	checkPair("Adam", x, dx)
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[T]{
		x:     x,
		dx:    dx,
		m:     make([]T, len(x)),
		v:     make([]T, len(x)),
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}
}

// Update implements Optimizer.
func (a *Adam[T]) Update(eta T) {
	a.t++
	biasCorrection1 := T(1 - math.Pow(a.beta1, float64(a.t)))
	biasCorrection2 := T(1 - math.Pow(a.beta2, float64(a.t)))
	beta1, beta2, eps := T(a.beta1), T(a.beta2), T(a.eps)

	for i, g := range a.dx {
		a.m[i] = beta1*a.m[i] + (1-beta1)*g
		a.v[i] = beta2*a.v[i] + (1-beta2)*g*g
		mHat := a.m[i] / biasCorrection1
		vHat := a.v[i] / biasCorrection2
		a.x[i] -= eta * mHat / (T(math.Sqrt(float64(vHat))) + eps)
	}
}

// Timestep returns the number of updates performed so far.
func (a *Adam[T]) Timestep() int { return a.t }

func (a *Adam[T]) String() string {
	return fmt.Sprintf("Adam(%g;%g;%g)", a.beta1, a.beta2, a.eps)
}
