// Package optim implements the per-parameter update rules used for training.
//
// An optimizer binds to exactly one (parameter, gradient) pair of equally long
// buffers: the row-major data of a dense matrix, or the values of a CSR matrix
// together with the values of its gradient, which share one support. Because
// of that an optimizer does not know which kernel a layer uses.
//
// Example usage:
//
//	opt, _ := optim.Parse[float32]("Momentum(0.9)")
//	o := opt(W.Data(), DW.Data())
//	for batch := range batches {
//	    // ... feedforward and backpropagate write DW ...
//	    o.Update(learningRate)
//	}
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/sparsenet/internal/funcall"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// ErrUnknownOptimizer is returned by Parse for unsupported optimizer text.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Optimizer updates a parameter buffer in place from its gradient buffer.
//
// Stateful optimizers keep accumulators matching the parameter length; the
// state persists across batches and epochs.
type Optimizer[T tensor.Float] interface {
	// Update applies one step with learning rate eta.
	Update(eta T)

	// String returns the textual form accepted by Parse.
	String() string
}

// Factory binds an optimizer to a parameter buffer x and its gradient dx.
//
// Layers keep the factory so they can bind again when the support of a sparse
// parameter changes.
type Factory[T tensor.Float] func(x, dx []T) Optimizer[T]

// Parse returns a factory for the optimizer described by text.
//
// Supported values: "GradientDescent", "Momentum(mu)", "Nesterov(mu)" and
// "Adam(beta1;beta2;epsilon)" where all Adam arguments are optional.
func Parse[T tensor.Float](text string) (Factory[T], error) {
	c, err := funcall.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownOptimizer, err)
	}

	switch c.Name {
	case "GradientDescent":
		if err := c.Arity(0, 0); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownOptimizer, err)
		}
		return func(x, dx []T) Optimizer[T] { return NewGradientDescent(x, dx) }, nil

	case "Momentum", "Nesterov":
		if err := c.Arity(1, 1); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownOptimizer, err)
		}
		mu, err := c.Float(0, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownOptimizer, err)
		}
		if c.Name == "Nesterov" {
			return func(x, dx []T) Optimizer[T] { return NewNesterov(x, dx, T(mu)) }, nil
		}
		return func(x, dx []T) Optimizer[T] { return NewMomentum(x, dx, T(mu)) }, nil

	case "Adam":
		if err := c.Arity(0, 3); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownOptimizer, err)
		}
		var cfg AdamConfig
		var args [3]float64
		defaults := [3]float64{0.9, 0.999, 1e-8}
		for i := range args {
			if args[i], err = c.Float(i, defaults[i]); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnknownOptimizer, err)
			}
		}
		cfg.Betas = [2]float64{args[0], args[1]}
		cfg.Eps = args[2]
		return func(x, dx []T) Optimizer[T] { return NewAdam(x, dx, cfg) }, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, text)
}

func checkPair[T tensor.Float](name string, x, dx []T) {
	if len(x) != len(dx) {
		panic(fmt.Sprintf("%s: parameter has %d elements, gradient has %d", name, len(x), len(dx)))
	}
}
