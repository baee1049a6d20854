// Package nn implements the layers, losses and multilayer perceptron of the
// sparsenet framework.
//
// Every layer is hand differentiated and works on batches stored as row-major
// matrices with one example per row. Layers with a weight matrix delegate the
// matrix products to a Weights kernel, which is either dense or CSR; both
// kernels produce the same results up to floating point rounding.
package nn

import (
	"github.com/born-ml/sparsenet/internal/optim"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Layer is the feedforward/backpropagate/optimize protocol shared by all layer kinds.
//
// Buffers are owned by the caller (the MLP arena): a layer reads X and writes
// Y in Feedforward, and reads X, Y and DY and writes DX in Backpropagate.
// Gradients of the parameters are overwritten on every Backpropagate call,
// never accumulated.
type Layer[T tensor.Float] interface {
	// Inputs returns the number of input features.
	Inputs() int

	// Outputs returns the number of output features.
	Outputs() int

	// Feedforward computes Y from X. Y must have X.Rows() rows and Outputs() columns.
	Feedforward(Y, X *tensor.Matrix[T])

	// Backpropagate computes the parameter gradients and, when DX is not nil,
	// the gradient DX with respect to X. Y must be the output of the last
	// Feedforward call on X.
	Backpropagate(DX, X, Y, DY *tensor.Matrix[T])

	// Optimize updates the parameters from their gradients with learning rate eta.
	Optimize(eta T)

	// Clip sets parameter entries with 0 < |x| < epsilon to zero and returns their number.
	Clip(epsilon T) int

	// Parameters returns the named parameters with their gradients.
	Parameters() []Parameter[T]

	// SetOptimizer binds a new optimizer created by f to every parameter.
	SetOptimizer(f optim.Factory[T])

	// SetTraining switches between training and evaluation behavior.
	SetTraining(training bool)

	// String describes the layer.
	String() string
}

// resize returns m reshaped to rows x cols, allocating it when nil.
func resize[T tensor.Float](m *tensor.Matrix[T], rows, cols int) *tensor.Matrix[T] {
	if m == nil {
		return tensor.NewMatrix[T](rows, cols)
	}
	if m.Rows() != rows || m.Cols() != cols {
		m.Resize(rows, cols)
	}
	return m
}
