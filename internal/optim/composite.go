package optim

import (
	"strings"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// Composite applies a group of optimizers under a single Update call,
// typically one for the weights and one for the bias of a layer.
type Composite[T tensor.Float] struct {
	parts []Optimizer[T]
}

// NewComposite groups the given optimizers.
func NewComposite[T tensor.Float](parts ...Optimizer[T]) *Composite[T] {
	return &Composite[T]{parts: parts}
}

// Update implements Optimizer.
func (c *Composite[T]) Update(eta T) {
	for _, p := range c.parts {
		p.Update(eta)
	}
}

// Parts returns the grouped optimizers.
func (c *Composite[T]) Parts() []Optimizer[T] { return c.parts }

// Replace substitutes the optimizer at index i.
func (c *Composite[T]) Replace(i int, o Optimizer[T]) { c.parts[i] = o }

func (c *Composite[T]) String() string {
	names := make([]string, len(c.parts))
	for i, p := range c.parts {
		names[i] = p.String()
	}
	return "Composite(" + strings.Join(names, ", ") + ")"
}
