// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers, losses and network type of the sparsenet
// framework.
//
// A network is a chain of layers. Every linear layer stores its weight matrix
// either dense or in CSR format; both produce the same numbers.
//
// Example:
//
//	model, err := nn.Build[float32](nn.Architecture{
//	    Layers:    "ReLU;ReLU;Linear",
//	    Sizes:     []int{784, 1024, 512, 10},
//	    Densities: []float64{0.05, 0.05, 1},
//	    Init:      nn.Xavier,
//	    Optimizer: "Momentum(0.9)",
//	}, rng)
package nn

import (
	"math/rand"

	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Layer is the feedforward, backpropagate and optimize protocol of a layer.
type Layer[T tensor.Float] = nn.Layer[T]

// MLP is a multilayer perceptron.
type MLP[T tensor.Float] = nn.MLP[T]

// Linear is a fully connected layer fused with an activation function.
type Linear[T tensor.Float] = nn.Linear[T]

// BatchNorm is a batch normalization layer.
type BatchNorm[T tensor.Float] = nn.BatchNorm[T]

// Parameter is a named parameter buffer with its gradient.
type Parameter[T tensor.Float] = nn.Parameter[T]

// Weights is the storage kernel of a weight matrix.
type Weights[T tensor.Float] = nn.Weights[T]

// DenseWeights stores a weight matrix densely.
type DenseWeights[T tensor.Float] = nn.DenseWeights[T]

// SparseWeights stores a weight matrix in CSR format.
type SparseWeights[T tensor.Float] = nn.SparseWeights[T]

// Architecture describes a network to be built by Build.
type Architecture = nn.Architecture

// LayerSpec is one parsed entry of a layer description.
type LayerSpec = nn.LayerSpec

// Activation selects the function applied after the linear transform.
type Activation = nn.Activation

// Supported activations.
const (
	Identity          = nn.Identity
	ReLU              = nn.ReLU
	Sigmoid           = nn.Sigmoid
	Softmax           = nn.Softmax
	LogSoftmax        = nn.LogSoftmax
	HyperbolicTangent = nn.HyperbolicTangent
	LeakyReLU         = nn.LeakyReLU
)

// Initializer is a weight initialization scheme.
type Initializer = nn.Initializer

// Weight initializers.
var (
	Xavier           = nn.Xavier
	XavierNormalized = nn.XavierNormalized
	He               = nn.He
	Uniform          = nn.Uniform
	PyTorch          = nn.PyTorch
	Zero             = nn.Zero
	None             = nn.None
)

// Configuration errors.
var (
	ErrUnknownLayer  = nn.ErrUnknownLayer
	ErrUnknownLoss   = nn.ErrUnknownLoss
	ErrUnknownInit   = nn.ErrUnknownInit
	ErrShapeMismatch = nn.ErrShapeMismatch
)

// Build creates a network from an architecture.
func Build[T tensor.Float](arch Architecture, rng *rand.Rand) (*MLP[T], error) {
	return nn.Build[T](arch, rng)
}

// NewMLP chains layers with matching sizes.
func NewMLP[T tensor.Float](layers ...Layer[T]) (*MLP[T], error) {
	return nn.NewMLP(layers...)
}

// NewLinear creates a linear layer on top of weights.
func NewLinear[T tensor.Float](activation Activation, weights Weights[T]) *Linear[T] {
	return nn.NewLinear(activation, weights)
}

// NewBatchNorm creates a batch normalization layer for size features.
func NewBatchNorm[T tensor.Float](size int) *BatchNorm[T] {
	return nn.NewBatchNorm[T](size)
}

// NewDenseWeights allocates zero dense weights with shape (outputs, inputs).
func NewDenseWeights[T tensor.Float](outputs, inputs int) *DenseWeights[T] {
	return nn.NewDenseWeights[T](outputs, inputs)
}

// NewSparseWeights wraps a CSR matrix as weights.
func NewSparseWeights[T tensor.Float](W *sparse.CSR[T]) *SparseWeights[T] {
	return nn.NewSparseWeights(W)
}

// ParseLayers parses a layer description such as "ReLU;BatchNorm;ReLU;Linear".
func ParseLayers(text string) ([]LayerSpec, error) {
	return nn.ParseLayers(text)
}

// ParseInitializer returns the initializer with the given name.
func ParseInitializer(name string) (Initializer, error) {
	return nn.ParseInitializer(name)
}

// ErdosRenyiDensities distributes an overall density over the layers of a
// network with the given sizes.
func ErdosRenyiDensities(overall float64, sizes []int) ([]float64, error) {
	return nn.ErdosRenyiDensities(overall, sizes)
}
