package nn

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// Initializer draws initial weights and biases for a layer with the given
// number of inputs and outputs. The same per-element distribution is used for
// dense matrices and for the stored values of CSR matrices, and for weights
// added when a sparse support grows.
type Initializer struct {
	name   string
	weight func(inputs, outputs int, rng *rand.Rand) float64 // nil leaves weights untouched
	bias   func(inputs, outputs int, rng *rand.Rand) float64 // nil leaves biases untouched
}

func zero(int, int, *rand.Rand) float64 { return 0 }

func uniform(bound float64, rng *rand.Rand) float64 {
	return (rng.Float64()*2 - 1) * bound
}

// Supported initializers.
var (
	// Xavier draws from U(-1/sqrt(inputs), 1/sqrt(inputs)). Biases are zero.
	Xavier = Initializer{
		name: "Xavier",
		weight: func(in, _ int, rng *rand.Rand) float64 {
			return uniform(1/math.Sqrt(float64(in)), rng)
		},
		bias: zero,
	}

	// XavierNormalized draws from U(-b, b) with b = sqrt(6 / (inputs + outputs)),
	// the Glorot uniform initialization. Biases are zero.
	XavierNormalized = Initializer{
		name: "XavierNormalized",
		weight: func(in, out int, rng *rand.Rand) float64 {
			return uniform(math.Sqrt(6.0/float64(in+out)), rng)
		},
		bias: zero,
	}

	// He draws from N(0, 2 / inputs). Biases are zero.
	He = Initializer{
		name: "He",
		weight: func(in, _ int, rng *rand.Rand) float64 {
			return rng.NormFloat64() * math.Sqrt(2/float64(in))
		},
		bias: zero,
	}

	// Uniform draws weights and biases from U(-1, 1).
	Uniform = Initializer{
		name:   "Uniform",
		weight: func(_, _ int, rng *rand.Rand) float64 { return uniform(1, rng) },
		bias:   func(_, _ int, rng *rand.Rand) float64 { return uniform(1, rng) },
	}

	// PyTorch draws weights and biases from U(-1/sqrt(inputs), 1/sqrt(inputs)),
	// the default of torch.nn.Linear.
	PyTorch = Initializer{
		name: "PyTorch",
		weight: func(in, _ int, rng *rand.Rand) float64 {
			return uniform(1/math.Sqrt(float64(in)), rng)
		},
		bias: func(in, _ int, rng *rand.Rand) float64 {
			return uniform(1/math.Sqrt(float64(in)), rng)
		},
	}

	// Zero sets weights and biases to zero.
	Zero = Initializer{name: "Zero", weight: zero, bias: zero}

	// None keeps the current values.
	None = Initializer{name: "None"}
)

var initializers = []Initializer{Xavier, XavierNormalized, He, Uniform, PyTorch, Zero, None}

// ParseInitializer returns the initializer with the given name (case-insensitive).
func ParseInitializer(name string) (Initializer, error) {
	for _, init := range initializers {
		if strings.EqualFold(init.name, name) {
			return init, nil
		}
	}
	return Initializer{}, fmt.Errorf("%w: %q", ErrUnknownInit, name)
}

// String returns the initializer name.
func (i Initializer) String() string { return i.name }

// InitWeights fills the weight values of a layer with inputs and outputs.
func InitWeights[T tensor.Float](init Initializer, values []T, inputs, outputs int, rng *rand.Rand) {
	if init.weight == nil {
		return
	}
	for k := range values {
		values[k] = T(init.weight(inputs, outputs, rng))
	}
}

// InitBias fills the bias values of a layer with inputs and outputs.
func InitBias[T tensor.Float](init Initializer, values []T, inputs, outputs int, rng *rand.Rand) {
	if init.bias == nil {
		return
	}
	for k := range values {
		values[k] = T(init.bias(inputs, outputs, rng))
	}
}

// Sampler returns a function drawing single weights of a layer with inputs and
// outputs, used to initialize positions added to a sparse support. When the
// initializer leaves weights untouched the sampler returns zero.
func Sampler[T tensor.Float](init Initializer, inputs, outputs int, rng *rand.Rand) func() T {
	if init.weight == nil {
		return func() T { return 0 }
	}
	return func() T { return T(init.weight(inputs, outputs, rng)) }
}
