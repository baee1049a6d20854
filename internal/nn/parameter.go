package nn

import "github.com/born-ml/sparsenet/internal/tensor"

// Parameter is a named trainable buffer together with its gradient.
//
// Value and Grad are views of the layer's storage: writing to Value changes
// the layer. For sparse weights they are the stored values only, so a
// Parameter exposes exactly the entries that training can change.
//
// Parameters are returned fresh by Layer.Parameters because the buffers of a
// sparse layer are replaced when its support changes.
type Parameter[T tensor.Float] struct {
	Name  string // "W", "b", "gamma" or "beta", prefixed with the layer index by MLP
	Value []T
	Grad  []T
}

// NewParameter creates a parameter view.
func NewParameter[T tensor.Float](name string, value, grad []T) Parameter[T] {
	return Parameter[T]{Name: name, Value: value, Grad: grad}
}

// Len returns the number of elements.
func (p Parameter[T]) Len() int { return len(p.Value) }
