package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// Activation selects the element-wise (or row-wise) function applied after the
// linear transform of a layer.
type Activation int

// Supported activations.
const (
	Identity Activation = iota
	ReLU
	Sigmoid
	Softmax
	LogSoftmax
	HyperbolicTangent
	LeakyReLU
)

var activationNames = [...]string{
	Identity:          "Linear",
	ReLU:              "ReLU",
	Sigmoid:           "Sigmoid",
	Softmax:           "Softmax",
	LogSoftmax:        "LogSoftmax",
	HyperbolicTangent: "HyperbolicTangent",
	LeakyReLU:         "LeakyReLU",
}

// String returns the layer name of the activation.
func (a Activation) String() string {
	if a < 0 || int(a) >= len(activationNames) {
		return fmt.Sprintf("Activation(%d)", int(a))
	}
	return activationNames[a]
}

// activate computes Y = f(Z). Y and Z may be the same matrix for element-wise functions.
func activate[T tensor.Float](kind Activation, alpha T, Y, Z *tensor.Matrix[T]) {
	z, y := Z.Data(), Y.Data()
	switch kind {
	case Identity:
		if Y != Z {
			Y.CopyFrom(Z)
		}
	case ReLU:
		for i, x := range z {
			y[i] = max(x, 0)
		}
	case LeakyReLU:
		for i, x := range z {
			if x > 0 {
				y[i] = x
			} else {
				y[i] = alpha * x
			}
		}
	case Sigmoid:
		for i, x := range z {
			y[i] = sigmoid(x)
		}
	case HyperbolicTangent:
		for i, x := range z {
			y[i] = T(math.Tanh(float64(x)))
		}
	case Softmax:
		for r := 0; r < Z.Rows(); r++ {
			softmaxRow(Y.Row(r), Z.Row(r))
		}
	case LogSoftmax:
		for r := 0; r < Z.Rows(); r++ {
			logSoftmaxRow(Y.Row(r), Z.Row(r))
		}
	default:
		panic(fmt.Sprintf("activate: unsupported activation %v", kind))
	}
}

// derivative computes DZ from DY for the activation, using Z and Y = f(Z).
// DZ may alias DY.
func derivative[T tensor.Float](kind Activation, alpha T, DZ, Z, Y, DY *tensor.Matrix[T]) {
	dz, z, y, dy := DZ.Data(), Z.Data(), Y.Data(), DY.Data()
	switch kind {
	case Identity:
		if DZ != DY {
			DZ.CopyFrom(DY)
		}
	case ReLU:
		for i, g := range dy {
			if z[i] > 0 {
				dz[i] = g
			} else {
				dz[i] = 0
			}
		}
	case LeakyReLU:
		for i, g := range dy {
			if z[i] > 0 {
				dz[i] = g
			} else {
				dz[i] = alpha * g
			}
		}
	case Sigmoid:
		for i, g := range dy {
			dz[i] = g * y[i] * (1 - y[i])
		}
	case HyperbolicTangent:
		for i, g := range dy {
			dz[i] = g * (1 - y[i]*y[i])
		}
	case Softmax:
		// DZ = Y ⊙ (DY - rowsum(Y ⊙ DY))
		for r := 0; r < Y.Rows(); r++ {
			yr, gr, dr := Y.Row(r), DY.Row(r), DZ.Row(r)
			s := tensor.Dot(yr, gr)
			for j := range dr {
				dr[j] = yr[j] * (gr[j] - s)
			}
		}
	case LogSoftmax:
		// DZ = DY - softmax(Z) ⊙ rowsum(DY)
		for r := 0; r < Y.Rows(); r++ {
			yr, gr, dr := Y.Row(r), DY.Row(r), DZ.Row(r)
			var s T
			for _, g := range gr {
				s += g
			}
			for j := range dr {
				dr[j] = gr[j] - T(math.Exp(float64(yr[j])))*s
			}
		}
	default:
		panic(fmt.Sprintf("derivative: unsupported activation %v", kind))
	}
}

func sigmoid[T tensor.Float](x T) T {
	return T(1 / (1 + math.Exp(-float64(x))))
}

// softmaxRow writes the softmax of z into y, shifted by the row maximum.
func softmaxRow[T tensor.Float](y, z []T) {
	m := rowMax(z)
	var sum float64
	for j, x := range z {
		e := math.Exp(float64(x - m))
		y[j] = T(e)
		sum += e
	}
	for j := range y {
		y[j] = T(float64(y[j]) / sum)
	}
}

// logSoftmaxRow writes z - logsumexp(z) into y.
func logSoftmaxRow[T tensor.Float](y, z []T) {
	lse := logSumExp(z)
	for j, x := range z {
		y[j] = x - lse
	}
}

func rowMax[T tensor.Float](z []T) T {
	m := T(math.Inf(-1))
	for _, x := range z {
		m = max(m, x)
	}
	return m
}

func logSumExp[T tensor.Float](z []T) T {
	m := rowMax(z)
	var sum float64
	for _, x := range z {
		sum += math.Exp(float64(x - m))
	}
	return m + T(math.Log(sum))
}
