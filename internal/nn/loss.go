package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// Loss is a loss function over a batch of outputs Y and targets T of equal shape.
//
// Value returns the loss summed over the batch. Gradient writes the derivative
// of Value with respect to Y into DY. The gradient is per example: averaging
// over the batch is done by the caller.
type Loss[T tensor.Float] interface {
	Value(Y, targets *tensor.Matrix[T]) T
	Gradient(DY, Y, targets *tensor.Matrix[T])
	String() string
}

// ParseLoss returns the loss function with the given name.
//
// Supported names: SquaredError, CrossEntropy, LogisticCrossEntropy,
// SoftmaxCrossEntropy and NegativeLogLikelihood.
func ParseLoss[T tensor.Float](name string) (Loss[T], error) {
	switch name {
	case "SquaredError":
		return SquaredError[T]{}, nil
	case "CrossEntropy":
		return CrossEntropy[T]{}, nil
	case "LogisticCrossEntropy":
		return LogisticCrossEntropy[T]{}, nil
	case "SoftmaxCrossEntropy":
		return SoftmaxCrossEntropy[T]{}, nil
	case "NegativeLogLikelihood":
		return NegativeLogLikelihood[T]{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLoss, name)
}

func checkLossShapes[T tensor.Float](name string, Y, targets *tensor.Matrix[T]) {
	if !Y.SameShape(targets) {
		panic(fmt.Sprintf("%s: outputs %v and targets %v differ in shape", name, Y.Shape(), targets.Shape()))
	}
}

func logOf[T tensor.Float](x T) T { return T(math.Log(float64(x))) }

// SquaredError is sum((Y - T)^2) with gradient 2 (Y - T).
type SquaredError[T tensor.Float] struct{}

// Value implements Loss.
func (SquaredError[T]) Value(Y, targets *tensor.Matrix[T]) T {
	checkLossShapes("SquaredError", Y, targets)
	return tensor.SquaredDistance(Y, targets)
}

// Gradient implements Loss.
func (SquaredError[T]) Gradient(DY, Y, targets *tensor.Matrix[T]) {
	checkLossShapes("SquaredError", Y, targets)
	dy, y, t := DY.Data(), Y.Data(), targets.Data()
	for i := range dy {
		dy[i] = 2 * (y[i] - t[i])
	}
}

func (SquaredError[T]) String() string { return "SquaredError" }

// CrossEntropy is -sum(T ⊙ log(Y)) with gradient -T / Y.
// Y is expected to hold probabilities, e.g. the output of a softmax layer.
type CrossEntropy[T tensor.Float] struct{}

// Value implements Loss.
func (CrossEntropy[T]) Value(Y, targets *tensor.Matrix[T]) T {
	checkLossShapes("CrossEntropy", Y, targets)
	var sum T
	for i, t := range targets.Data() {
		if t != 0 {
			sum -= t * logOf(Y.Data()[i])
		}
	}
	return sum
}

// Gradient implements Loss.
func (CrossEntropy[T]) Gradient(DY, Y, targets *tensor.Matrix[T]) {
	checkLossShapes("CrossEntropy", Y, targets)
	dy, y, t := DY.Data(), Y.Data(), targets.Data()
	for i := range dy {
		dy[i] = -t[i] / y[i]
	}
}

func (CrossEntropy[T]) String() string { return "CrossEntropy" }

// LogisticCrossEntropy is -sum(T ⊙ log(sigmoid(Y))) with gradient T ⊙ sigmoid(Y) - T.
type LogisticCrossEntropy[T tensor.Float] struct{}

// Value implements Loss.
func (LogisticCrossEntropy[T]) Value(Y, targets *tensor.Matrix[T]) T {
	checkLossShapes("LogisticCrossEntropy", Y, targets)
	var sum float64
	for i, t := range targets.Data() {
		if t != 0 {
			// log(sigmoid(y)) = -log(1 + exp(-y))
			y := float64(Y.Data()[i])
			sum += float64(t) * softplus(-y)
		}
	}
	return T(sum)
}

// Gradient implements Loss.
func (LogisticCrossEntropy[T]) Gradient(DY, Y, targets *tensor.Matrix[T]) {
	checkLossShapes("LogisticCrossEntropy", Y, targets)
	dy, y, t := DY.Data(), Y.Data(), targets.Data()
	for i := range dy {
		dy[i] = t[i]*sigmoid(y[i]) - t[i]
	}
}

func (LogisticCrossEntropy[T]) String() string { return "LogisticCrossEntropy" }

// softplus computes log(1 + exp(x)) without overflow.
func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// SoftmaxCrossEntropy is -sum(T ⊙ log(softmax(Y))) with the softmax taken per
// row. The gradient is softmax(Y) ⊙ rowsum(T) - T. It is meant to follow a
// linear output layer.
type SoftmaxCrossEntropy[T tensor.Float] struct{}

// Value implements Loss.
func (SoftmaxCrossEntropy[T]) Value(Y, targets *tensor.Matrix[T]) T {
	checkLossShapes("SoftmaxCrossEntropy", Y, targets)
	var sum T
	for r := 0; r < Y.Rows(); r++ {
		y, t := Y.Row(r), targets.Row(r)
		lse := logSumExp(y)
		for j, tj := range t {
			if tj != 0 {
				sum -= tj * (y[j] - lse)
			}
		}
	}
	return sum
}

// Gradient implements Loss.
func (SoftmaxCrossEntropy[T]) Gradient(DY, Y, targets *tensor.Matrix[T]) {
	checkLossShapes("SoftmaxCrossEntropy", Y, targets)
	for r := 0; r < Y.Rows(); r++ {
		dy, y, t := DY.Row(r), Y.Row(r), targets.Row(r)
		var s T
		for _, tj := range t {
			s += tj
		}
		softmaxRow(dy, y)
		for j := range dy {
			dy[j] = dy[j]*s - t[j]
		}
	}
}

func (SoftmaxCrossEntropy[T]) String() string { return "SoftmaxCrossEntropy" }

// NegativeLogLikelihood is -sum_i log(rowsum(Y ⊙ T)_i) with gradient -T / rowsum(Y ⊙ T).
// Y is expected to hold probabilities.
type NegativeLogLikelihood[T tensor.Float] struct{}

// Value implements Loss.
func (NegativeLogLikelihood[T]) Value(Y, targets *tensor.Matrix[T]) T {
	checkLossShapes("NegativeLogLikelihood", Y, targets)
	var sum T
	for r := 0; r < Y.Rows(); r++ {
		sum -= logOf(tensor.Dot(Y.Row(r), targets.Row(r)))
	}
	return sum
}

// Gradient implements Loss.
func (NegativeLogLikelihood[T]) Gradient(DY, Y, targets *tensor.Matrix[T]) {
	checkLossShapes("NegativeLogLikelihood", Y, targets)
	for r := 0; r < Y.Rows(); r++ {
		dy, t := DY.Row(r), targets.Row(r)
		p := tensor.Dot(Y.Row(r), t)
		for j := range dy {
			dy[j] = -t[j] / p
		}
	}
}

func (NegativeLogLikelihood[T]) String() string { return "NegativeLogLikelihood" }
