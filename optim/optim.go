// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the parameter update rules of the sparsenet framework.
//
// An optimizer owns a parameter buffer x and its gradient dx and updates x in
// place. A Factory creates optimizers for buffers; layers call it again when
// the support of their sparse weights changes.
//
// Example:
//
//	factory, err := optim.Parse[float32]("Nesterov(0.9)")
//	model.SetOptimizer(factory)
package optim

import (
	"github.com/born-ml/sparsenet/internal/optim"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Optimizer updates a parameter buffer from its gradient.
type Optimizer[T tensor.Float] = optim.Optimizer[T]

// Factory creates an optimizer for a parameter buffer and its gradient.
type Factory[T tensor.Float] = optim.Factory[T]

// Update rules.
type (
	GradientDescent[T tensor.Float] = optim.GradientDescent[T]
	Momentum[T tensor.Float]        = optim.Momentum[T]
	Nesterov[T tensor.Float]        = optim.Nesterov[T]
	Adam[T tensor.Float]            = optim.Adam[T]
	Composite[T tensor.Float]       = optim.Composite[T]
)

// AdamConfig contains the Adam hyperparameters.
type AdamConfig = optim.AdamConfig

// ErrUnknownOptimizer is returned by Parse for unsupported text.
var ErrUnknownOptimizer = optim.ErrUnknownOptimizer

// Parse returns a factory for "GradientDescent", "Momentum(mu)", "Nesterov(mu)"
// or "Adam(beta1;beta2;epsilon)".
func Parse[T tensor.Float](text string) (Factory[T], error) {
	return optim.Parse[T](text)
}

// NewGradientDescent creates plain gradient descent: x -= eta * dx.
func NewGradientDescent[T tensor.Float](x, dx []T) *GradientDescent[T] {
	return optim.NewGradientDescent(x, dx)
}

// NewMomentum creates gradient descent with momentum mu.
func NewMomentum[T tensor.Float](x, dx []T, mu T) *Momentum[T] {
	return optim.NewMomentum(x, dx, mu)
}

// NewNesterov creates gradient descent with Nesterov momentum mu.
func NewNesterov[T tensor.Float](x, dx []T, mu T) *Nesterov[T] {
	return optim.NewNesterov(x, dx, mu)
}

// NewAdam creates an Adam optimizer.
func NewAdam[T tensor.Float](x, dx []T, config AdamConfig) *Adam[T] {
	return optim.NewAdam(x, dx, config)
}

// NewComposite combines optimizers of several buffers into one.
func NewComposite[T tensor.Float](parts ...Optimizer[T]) *Composite[T] {
	return optim.NewComposite(parts...)
}
