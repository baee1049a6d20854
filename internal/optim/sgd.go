package optim

import (
	"fmt"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// GradientDescent is the stateless update rule
//
//	x = x - eta * dx
type GradientDescent[T tensor.Float] struct {
	x, dx []T
}

// NewGradientDescent binds gradient descent to the pair (x, dx).
func NewGradientDescent[T tensor.Float](x, dx []T) *GradientDescent[T] {
	checkPair("GradientDescent", x, dx)
	return &GradientDescent[T]{x: x, dx: dx}
}

// Update implements Optimizer.
func (g *GradientDescent[T]) Update(eta T) {
	tensor.Axpy(-eta, g.dx, g.x)
}

func (g *GradientDescent[T]) String() string { return "GradientDescent" }

// Momentum implements gradient descent with momentum:
//
//	delta = mu * delta - eta * dx
//	x = x + delta
//
// Momentum helps accelerate descent in relevant directions and dampens oscillations.
type Momentum[T tensor.Float] struct {
	x, dx []T
	delta []T
	mu    T
}

// NewMomentum binds momentum with factor mu to the pair (x, dx).
func NewMomentum[T tensor.Float](x, dx []T, mu T) *Momentum[T] {
	checkPair("Momentum", x, dx)
	return &Momentum[T]{x: x, dx: dx, delta: make([]T, len(x)), mu: mu}
}

// Update implements Optimizer.
func (m *Momentum[T]) Update(eta T) {
	tensor.Scal(m.mu, m.delta)
	tensor.Axpy(-eta, m.dx, m.delta)
	tensor.Axpy(1, m.delta, m.x)
}

func (m *Momentum[T]) String() string { return fmt.Sprintf("Momentum(%g)", float64(m.mu)) }

// Nesterov implements Nesterov accelerated gradient:
//
//	delta' = mu * delta - eta * dx
//	x = x - mu * delta + (1 + mu) * delta'
type Nesterov[T tensor.Float] struct {
	x, dx []T
	delta []T
	prev  []T
	mu    T
}

// NewNesterov binds Nesterov momentum with factor mu to the pair (x, dx).
func NewNesterov[T tensor.Float](x, dx []T, mu T) *Nesterov[T] {
	checkPair("Nesterov", x, dx)
	return &Nesterov[T]{x: x, dx: dx, delta: make([]T, len(x)), prev: make([]T, len(x)), mu: mu}
}

// Update implements Optimizer.
func (n *Nesterov[T]) Update(eta T) {
	copy(n.prev, n.delta)
	tensor.Scal(n.mu, n.delta)
	tensor.Axpy(-eta, n.dx, n.delta)
	tensor.Axpy(-n.mu, n.prev, n.x)
	tensor.Axpy(1+n.mu, n.delta, n.x)
}

func (n *Nesterov[T]) String() string { return fmt.Sprintf("Nesterov(%g)", float64(n.mu)) }
