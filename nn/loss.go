// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Loss is a loss function with its gradient.
type Loss[T tensor.Float] = nn.Loss[T]

// Loss functions.
type (
	SquaredError[T tensor.Float]          = nn.SquaredError[T]
	CrossEntropy[T tensor.Float]          = nn.CrossEntropy[T]
	LogisticCrossEntropy[T tensor.Float]  = nn.LogisticCrossEntropy[T]
	SoftmaxCrossEntropy[T tensor.Float]   = nn.SoftmaxCrossEntropy[T]
	NegativeLogLikelihood[T tensor.Float] = nn.NegativeLogLikelihood[T]
)

// ParseLoss returns the loss function with the given name.
func ParseLoss[T tensor.Float](name string) (Loss[T], error) {
	return nn.ParseLoss[T](name)
}
