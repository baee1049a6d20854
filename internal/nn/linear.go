package nn

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/born-ml/sparsenet/internal/optim"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Linear is a fully connected layer fused with an activation function.
//
// Feedforward computes
//
//	Z = X * W^T + b
//	Y = f(Z)
//
// and Backpropagate computes
//
//	DZ = f'(Z) applied to DY
//	DW = DZ^T * X
//	Db = colsum(DZ)
//	DX = DZ * W
//
// where W has shape (outputs, inputs) and b is a 1 x outputs row vector.
// W is stored in a Weights kernel, dense or sparse.
//
// Example:
//
//	w := nn.NewDenseWeights[float32](128, 784)
//	layer := nn.NewLinear(nn.ReLU, w)
//	layer.Feedforward(Y, X) // X: (batch, 784), Y: (batch, 128)
type Linear[T tensor.Float] struct {
	activation Activation
	alpha      T // LeakyReLU slope
	weights    Weights[T]
	b, Db      *tensor.Matrix[T]

	// Batch buffers, resized to the batch size on demand.
	Z, DZ *tensor.Matrix[T]

	factory   optim.Factory[T]
	optimizer *optim.Composite[T]
}

// NewLinear creates a layer with the given activation on top of weights.
// The bias is zero and the optimizer is gradient descent.
func NewLinear[T tensor.Float](activation Activation, weights Weights[T]) *Linear[T] {
	l := &Linear[T]{
		activation: activation,
		weights:    weights,
		b:          tensor.NewMatrix[T](1, weights.Rows()),
		Db:         tensor.NewMatrix[T](1, weights.Rows()),
	}
	l.SetOptimizer(func(x, dx []T) optim.Optimizer[T] { return optim.NewGradientDescent(x, dx) })
	return l
}

// SetAlpha sets the slope of a LeakyReLU layer for negative inputs.
func (l *Linear[T]) SetAlpha(alpha T) { l.alpha = alpha }

// Activation returns the activation of the layer.
func (l *Linear[T]) Activation() Activation { return l.activation }

// Alpha returns the LeakyReLU slope.
func (l *Linear[T]) Alpha() T { return l.alpha }

// Weights returns the weight kernel.
func (l *Linear[T]) Weights() Weights[T] { return l.weights }

// Bias returns the 1 x outputs bias vector.
func (l *Linear[T]) Bias() *tensor.Matrix[T] { return l.b }

// BiasGradient returns the gradient of the bias.
func (l *Linear[T]) BiasGradient() *tensor.Matrix[T] { return l.Db }

// Inputs implements Layer.
func (l *Linear[T]) Inputs() int { return l.weights.Cols() }

// Outputs implements Layer.
func (l *Linear[T]) Outputs() int { return l.weights.Rows() }

// Feedforward implements Layer.
func (l *Linear[T]) Feedforward(Y, X *tensor.Matrix[T]) {
	z := Y
	if l.activation != Identity {
		l.Z = resize(l.Z, X.Rows(), l.Outputs())
		z = l.Z
	}
	l.weights.Forward(z, X)
	z.AddRowVector(l.b)
	if l.activation != Identity {
		activate(l.activation, l.alpha, Y, z)
	}
}

// Backpropagate implements Layer.
func (l *Linear[T]) Backpropagate(DX, X, Y, DY *tensor.Matrix[T]) {
	dz := DY
	if l.activation != Identity {
		l.DZ = resize(l.DZ, DY.Rows(), DY.Cols())
		dz = l.DZ
		derivative(l.activation, l.alpha, dz, l.Z, Y, DY)
	}
	l.weights.Gradient(dz, X)
	tensor.ColSums(l.Db, dz)
	if DX != nil {
		l.weights.InputGradient(DX, dz)
	}
}

// Optimize implements Layer.
func (l *Linear[T]) Optimize(eta T) {
	l.optimizer.Update(eta)
}

// Clip implements Layer.
func (l *Linear[T]) Clip(epsilon T) int {
	return tensor.ClipValues(l.weights.Values(), epsilon) + l.b.Clip(epsilon)
}

// Parameters implements Layer.
func (l *Linear[T]) Parameters() []Parameter[T] {
	return []Parameter[T]{
		NewParameter("W", l.weights.Values(), l.weights.GradValues()),
		NewParameter("b", l.b.Data(), l.Db.Data()),
	}
}

// SetOptimizer implements Layer.
func (l *Linear[T]) SetOptimizer(f optim.Factory[T]) {
	l.factory = f
	l.optimizer = optim.NewComposite(
		f(l.weights.Values(), l.weights.GradValues()),
		f(l.b.Data(), l.Db.Data()),
	)
}

// Optimizer returns the optimizer of the layer.
func (l *Linear[T]) Optimizer() optim.Optimizer[T] { return l.optimizer }

// SetTraining implements Layer. A linear layer behaves the same in both modes.
func (l *Linear[T]) SetTraining(bool) {}

// supportChanged rebinds the weight optimizer after the sparse support of W
// was replaced. The optimizer state of W starts from zero; the bias keeps its state.
func (l *Linear[T]) supportChanged() {
	if sw, ok := l.weights.(*SparseWeights[T]); ok {
		sw.resetGradient()
	}
	l.optimizer.Replace(0, l.factory(l.weights.Values(), l.weights.GradValues()))
}

// Prune applies a pruning function to the weights and returns the number of
// pruned entries. fn receives the weight values and the replacement value;
// dense weights are pruned to zero, sparse weights lose the pruned positions.
//
// Example:
//
//	layer.Prune(func(w []float32, v float32) int { return prune.Magnitude(w, 100, v) })
func (l *Linear[T]) Prune(fn func(values []T, replacement T) int) int {
	sw, ok := l.weights.(*SparseWeights[T])
	if !ok {
		return fn(l.weights.Values(), 0)
	}
	n := fn(sw.W.Values(), T(math.NaN()))
	if n == 0 {
		return 0
	}
	sw.W.Compact(func(x T) bool { return math.IsNaN(float64(x)) })
	l.supportChanged()
	return n
}

// Grow adds count positions to the support of sparse weights, initialized by init.
func (l *Linear[T]) Grow(count int, rng *rand.Rand, init func() T) error {
	sw, ok := l.weights.(*SparseWeights[T])
	if !ok {
		return fmt.Errorf("cannot grow dense weights of %s", l)
	}
	if err := sw.W.Grow(count, rng, init); err != nil {
		return err
	}
	l.supportChanged()
	return nil
}

// SetWeights replaces the weight kernel, for example with a loaded sparse support.
func (l *Linear[T]) SetWeights(w Weights[T]) error {
	want, got := tensor.Shape{l.Outputs(), l.Inputs()}, tensor.Shape{w.Rows(), w.Cols()}
	if !got.Equal(want) {
		return fmt.Errorf("%w: layer %v, weights %v", ErrShapeMismatch, want, got)
	}
	l.weights = w
	l.SetOptimizer(l.factory)
	return nil
}

// Kind returns the layer text accepted by ParseLayers, e.g. "ReLU" or "LeakyReLU(0.1)".
func (l *Linear[T]) Kind() string {
	if l.activation == LeakyReLU {
		bits := 64
		if tensor.TypeOf[T]() == tensor.Float32 {
			bits = 32
		}
		return "LeakyReLU(" + strconv.FormatFloat(float64(l.alpha), 'g', -1, bits) + ")"
	}
	return l.activation.String()
}

// String implements Layer.
func (l *Linear[T]) String() string {
	var sb strings.Builder
	if l.weights.Sparse() {
		fmt.Fprintf(&sb, "Sparse(input_size=%d, output_size=%d, density=%g", l.Inputs(), l.Outputs(), l.weights.Density())
	} else {
		fmt.Fprintf(&sb, "Dense(input_size=%d, output_size=%d", l.Inputs(), l.Outputs())
	}
	fmt.Fprintf(&sb, ", optimizer=%s, activation=%s)", l.optimizer.Parts()[0], l.Kind())
	return sb.String()
}
