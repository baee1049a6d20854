package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/sparsenet/internal/optim"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Batch normalization defaults.
const (
	DefaultBatchNormMomentum = 0.1
	DefaultBatchNormEpsilon  = 1e-5
)

// BatchNorm normalizes every feature over the batch and applies a learned
// affine transformation:
//
//	Z = (X - mean(X)) / sqrt(var(X) + epsilon)
//	Y = gamma ⊙ Z + beta
//
// In training mode the batch statistics are used and running estimates are
// updated with the given momentum; in evaluation mode the running estimates
// are used instead. BatchNorm has no weight matrix, so it is the same layer
// for dense and sparse networks.
type BatchNorm[T tensor.Float] struct {
	size     int
	momentum T
	epsilon  T
	training bool

	gamma, beta   *tensor.Matrix[T] // 1 x size
	Dgamma, Dbeta *tensor.Matrix[T]

	RunningMean, RunningVar *tensor.Matrix[T]

	// Batch state kept for Backpropagate.
	Z      *tensor.Matrix[T]
	DZ     *tensor.Matrix[T]
	mean   *tensor.Matrix[T]
	invStd *tensor.Matrix[T]
	colBuf *tensor.Matrix[T]

	factory   optim.Factory[T]
	optimizer *optim.Composite[T]
}

// NewBatchNorm creates a batch normalization layer for size features with
// gamma = 1, beta = 0 and gradient descent as optimizer.
func NewBatchNorm[T tensor.Float](size int) *BatchNorm[T] {
	l := &BatchNorm[T]{
		size:        size,
		momentum:    DefaultBatchNormMomentum,
		epsilon:     DefaultBatchNormEpsilon,
		training:    true,
		gamma:       tensor.Full[T](1, size, 1),
		beta:        tensor.NewMatrix[T](1, size),
		Dgamma:      tensor.NewMatrix[T](1, size),
		Dbeta:       tensor.NewMatrix[T](1, size),
		RunningMean: tensor.NewMatrix[T](1, size),
		RunningVar:  tensor.Full[T](1, size, 1),
		mean:        tensor.NewMatrix[T](1, size),
		invStd:      tensor.NewMatrix[T](1, size),
		colBuf:      tensor.NewMatrix[T](1, size),
	}
	l.SetOptimizer(func(x, dx []T) optim.Optimizer[T] { return optim.NewGradientDescent(x, dx) })
	return l
}

// Gamma returns the scale vector.
func (l *BatchNorm[T]) Gamma() *tensor.Matrix[T] { return l.gamma }

// Beta returns the shift vector.
func (l *BatchNorm[T]) Beta() *tensor.Matrix[T] { return l.beta }

// SetMomentum sets the momentum of the running statistics.
func (l *BatchNorm[T]) SetMomentum(momentum T) { l.momentum = momentum }

// Inputs implements Layer.
func (l *BatchNorm[T]) Inputs() int { return l.size }

// Outputs implements Layer.
func (l *BatchNorm[T]) Outputs() int { return l.size }

// SetTraining implements Layer.
func (l *BatchNorm[T]) SetTraining(training bool) { l.training = training }

// Feedforward implements Layer.
func (l *BatchNorm[T]) Feedforward(Y, X *tensor.Matrix[T]) {
	n := X.Rows()
	l.Z = resize(l.Z, n, l.size)
	mean, invStd := l.mean.Data(), l.invStd.Data()

	if l.training && n > 0 {
		tensor.ColSums(l.mean, X)
		l.mean.Scale(1 / T(n))

		variance := l.colBuf.Data()
		clear(variance)
		for r := 0; r < n; r++ {
			for j, x := range X.Row(r) {
				d := x - mean[j]
				variance[j] += d * d
			}
		}
		rm, rv := l.RunningMean.Data(), l.RunningVar.Data()
		for j := range variance {
			variance[j] /= T(n)
			invStd[j] = 1 / T(math.Sqrt(float64(variance[j]+l.epsilon)))
			rm[j] = (1-l.momentum)*rm[j] + l.momentum*mean[j]
			rv[j] = (1-l.momentum)*rv[j] + l.momentum*variance[j]
		}
	} else {
		l.mean.CopyFrom(l.RunningMean)
		for j, v := range l.RunningVar.Data() {
			invStd[j] = 1 / T(math.Sqrt(float64(v+l.epsilon)))
		}
	}

	gamma, beta := l.gamma.Data(), l.beta.Data()
	for r := 0; r < n; r++ {
		x, z, y := X.Row(r), l.Z.Row(r), Y.Row(r)
		for j := range z {
			z[j] = (x[j] - mean[j]) * invStd[j]
			y[j] = gamma[j]*z[j] + beta[j]
		}
	}
}

// Backpropagate implements Layer. It assumes the batch statistics of training mode:
//
//	Dbeta  = colsum(DY)
//	Dgamma = colsum(DY ⊙ Z)
//	DZ     = gamma ⊙ DY
//	DX     = (1/N) * invStd ⊙ (N * DZ - colsum(DZ) - Z ⊙ colsum(DZ ⊙ Z))
func (l *BatchNorm[T]) Backpropagate(DX, _, _, DY *tensor.Matrix[T]) {
	n := DY.Rows()
	tensor.ColSums(l.Dbeta, DY)

	l.DZ = resize(l.DZ, n, l.size)
	tensor.Hadamard(l.DZ, DY, l.Z)
	tensor.ColSums(l.Dgamma, l.DZ)

	gamma := l.gamma.Data()
	for r := 0; r < n; r++ {
		dz, dy := l.DZ.Row(r), DY.Row(r)
		for j := range dz {
			dz[j] = gamma[j] * dy[j]
		}
	}
	if DX == nil {
		return
	}

	sumDZ := tensor.NewMatrix[T](1, l.size)
	tensor.ColSums(sumDZ, l.DZ)
	sumDZZ := l.colBuf
	sumDZZ.Zero()
	s := sumDZZ.Data()
	for r := 0; r < n; r++ {
		for j, g := range l.DZ.Row(r) {
			s[j] += g * l.Z.At(r, j)
		}
	}

	invStd, sd := l.invStd.Data(), sumDZ.Data()
	N := T(n)
	for r := 0; r < n; r++ {
		dx, dz, z := DX.Row(r), l.DZ.Row(r), l.Z.Row(r)
		for j := range dx {
			dx[j] = invStd[j] / N * (N*dz[j] - sd[j] - z[j]*s[j])
		}
	}
}

// Optimize implements Layer.
func (l *BatchNorm[T]) Optimize(eta T) {
	l.optimizer.Update(eta)
}

// Clip implements Layer.
func (l *BatchNorm[T]) Clip(epsilon T) int {
	return l.gamma.Clip(epsilon) + l.beta.Clip(epsilon)
}

// Parameters implements Layer.
func (l *BatchNorm[T]) Parameters() []Parameter[T] {
	return []Parameter[T]{
		NewParameter("gamma", l.gamma.Data(), l.Dgamma.Data()),
		NewParameter("beta", l.beta.Data(), l.Dbeta.Data()),
	}
}

// SetOptimizer implements Layer.
func (l *BatchNorm[T]) SetOptimizer(f optim.Factory[T]) {
	l.factory = f
	l.optimizer = optim.NewComposite(f(l.gamma.Data(), l.Dgamma.Data()), f(l.beta.Data(), l.Dbeta.Data()))
}

// String implements Layer.
func (l *BatchNorm[T]) String() string {
	return fmt.Sprintf("BatchNormalization(input_size=%d, output_size=%d, optimizer=%s)", l.size, l.size, l.optimizer.Parts()[0])
}
