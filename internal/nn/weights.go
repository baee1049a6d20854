package nn

import (
	"fmt"

	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Weights is the matrix kernel behind a layer's weight matrix W and its
// gradient DW. W has shape (outputs, inputs).
//
// The two implementations, DenseWeights and SparseWeights, produce the same
// numbers up to floating point rounding when they hold the same content.
type Weights[T tensor.Float] interface {
	// Rows returns the number of outputs.
	Rows() int

	// Cols returns the number of inputs.
	Cols() int

	// Forward computes Z = X * W^T.
	Forward(Z, X *tensor.Matrix[T])

	// Gradient computes DW = DZ^T * X. For sparse weights only the entries in
	// the support of W are computed.
	Gradient(DZ, X *tensor.Matrix[T])

	// InputGradient computes DX = DZ * W.
	InputGradient(DX, DZ *tensor.Matrix[T])

	// Values returns the parameter buffer: the row-major data of a dense
	// matrix or the stored values of a CSR matrix.
	Values() []T

	// GradValues returns the gradient buffer paired with Values.
	GradValues() []T

	// Dense returns W as a new dense matrix.
	Dense() *tensor.Matrix[T]

	// Density returns the fraction of stored entries.
	Density() float64

	// Sparse reports whether W is stored in CSR format.
	Sparse() bool
}

// DenseWeights stores W and DW as dense matrices.
type DenseWeights[T tensor.Float] struct {
	W  *tensor.Matrix[T]
	DW *tensor.Matrix[T]
}

// NewDenseWeights allocates zero dense weights with shape (outputs, inputs).
func NewDenseWeights[T tensor.Float](outputs, inputs int) *DenseWeights[T] {
	return &DenseWeights[T]{
		W:  tensor.NewMatrix[T](outputs, inputs),
		DW: tensor.NewMatrix[T](outputs, inputs),
	}
}

// Rows implements Weights.
func (d *DenseWeights[T]) Rows() int { return d.W.Rows() }

// Cols implements Weights.
func (d *DenseWeights[T]) Cols() int { return d.W.Cols() }

// Forward implements Weights.
func (d *DenseWeights[T]) Forward(Z, X *tensor.Matrix[T]) {
	tensor.Product(Z, X, d.W, false, true)
}

// Gradient implements Weights.
func (d *DenseWeights[T]) Gradient(DZ, X *tensor.Matrix[T]) {
	tensor.Product(d.DW, DZ, X, true, false)
}

// InputGradient implements Weights.
func (d *DenseWeights[T]) InputGradient(DX, DZ *tensor.Matrix[T]) {
	tensor.Product(DX, DZ, d.W, false, false)
}

// Values implements Weights.
func (d *DenseWeights[T]) Values() []T { return d.W.Data() }

// GradValues implements Weights.
func (d *DenseWeights[T]) GradValues() []T { return d.DW.Data() }

// Dense implements Weights.
func (d *DenseWeights[T]) Dense() *tensor.Matrix[T] { return d.W.Clone() }

// Density implements Weights. Zero entries of a dense matrix are not counted.
func (d *DenseWeights[T]) Density() float64 {
	if d.W.Len() == 0 {
		return 0
	}
	nonzero := 0
	for _, x := range d.W.Data() {
		if x != 0 {
			nonzero++
		}
	}
	return float64(nonzero) / float64(d.W.Len())
}

// Sparse implements Weights.
func (d *DenseWeights[T]) Sparse() bool { return false }

// SparseWeights stores W in CSR format. DW always shares the support of W.
type SparseWeights[T tensor.Float] struct {
	W  *sparse.CSR[T]
	DW *sparse.CSR[T]
}

// NewSparseWeights wraps W and allocates a gradient with the same support.
func NewSparseWeights[T tensor.Float](W *sparse.CSR[T]) *SparseWeights[T] {
	return &SparseWeights[T]{W: W, DW: W.ZeroClone()}
}

// Rows implements Weights.
func (s *SparseWeights[T]) Rows() int { return s.W.Rows() }

// Cols implements Weights.
func (s *SparseWeights[T]) Cols() int { return s.W.Cols() }

// Forward implements Weights.
func (s *SparseWeights[T]) Forward(Z, X *tensor.Matrix[T]) {
	sparse.ProductRight(Z, X, s.W, false, true)
}

// Gradient implements Weights.
func (s *SparseWeights[T]) Gradient(DZ, X *tensor.Matrix[T]) {
	sparse.SampledProduct(s.DW, DZ, X, true, false)
}

// InputGradient implements Weights.
func (s *SparseWeights[T]) InputGradient(DX, DZ *tensor.Matrix[T]) {
	sparse.ProductRight(DX, DZ, s.W, false, false)
}

// Values implements Weights.
func (s *SparseWeights[T]) Values() []T { return s.W.Values() }

// GradValues implements Weights.
func (s *SparseWeights[T]) GradValues() []T { return s.DW.Values() }

// Dense implements Weights.
func (s *SparseWeights[T]) Dense() *tensor.Matrix[T] { return s.W.ToDense() }

// Density implements Weights.
func (s *SparseWeights[T]) Density() float64 { return s.W.Density() }

// Sparse implements Weights.
func (s *SparseWeights[T]) Sparse() bool { return true }

// SetSupport replaces W and reallocates DW for the new support.
func (s *SparseWeights[T]) SetSupport(W *sparse.CSR[T]) {
	s.W = W
	s.DW = W.ZeroClone()
}

// resetGradient reallocates DW after the support of W changed in place.
func (s *SparseWeights[T]) resetGradient() {
	s.DW = s.W.ZeroClone()
}

// SetDense overwrites the weights with the content of m. Sparse weights keep
// their support and take the matching entries of m.
func SetDense[T tensor.Float](w Weights[T], m *tensor.Matrix[T]) error {
	if shape := (tensor.Shape{w.Rows(), w.Cols()}); !m.Shape().Equal(shape) {
		return fmt.Errorf("%w: weights %v, got %v", ErrShapeMismatch, shape, m.Shape())
	}
	switch w := w.(type) {
	case *DenseWeights[T]:
		w.W.CopyFrom(m)
	case *SparseWeights[T]:
		w.W.SetValuesFromDense(m)
	}
	return nil
}
