package nn

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/sparsenet/internal/funcall"
	"github.com/born-ml/sparsenet/internal/optim"
	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// LayerSpec is the parsed form of one entry of a layer description.
type LayerSpec struct {
	BatchNorm  bool
	Activation Activation
	Alpha      float64 // LeakyReLU slope
}

// String formats the spec as accepted by ParseLayers.
func (s LayerSpec) String() string {
	switch {
	case s.BatchNorm:
		return "BatchNorm"
	case s.Activation == LeakyReLU:
		return fmt.Sprintf("LeakyReLU(%g)", s.Alpha)
	}
	return s.Activation.String()
}

// ParseLayers parses a semicolon separated layer description such as
// "ReLU;BatchNorm;ReLU;Linear".
func ParseLayers(text string) ([]LayerSpec, error) {
	var specs []LayerSpec
	for _, word := range splitLayers(text) {
		spec, err := parseLayer(word)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: empty layer description", ErrUnknownLayer)
	}
	return specs, nil
}

// splitLayers splits on semicolons outside parentheses.
func splitLayers(text string) []string {
	var words []string
	depth, start := 0, 0
	for i, c := range text {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ';':
			if depth == 0 {
				words = append(words, strings.TrimSpace(text[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(text[start:]); last != "" || len(words) > 0 {
		words = append(words, last)
	}
	return words
}

var simpleLayers = map[string]LayerSpec{
	"BatchNorm":          {BatchNorm: true},
	"BatchNormalization": {BatchNorm: true},
	"Linear":             {Activation: Identity},
	"ReLU":               {Activation: ReLU},
	"Sigmoid":            {Activation: Sigmoid},
	"Softmax":            {Activation: Softmax},
	"LogSoftmax":         {Activation: LogSoftmax},
	"HyperbolicTangent":  {Activation: HyperbolicTangent},
	"Tanh":               {Activation: HyperbolicTangent},
}

func parseLayer(word string) (LayerSpec, error) {
	c, err := funcall.Parse(word)
	if err != nil {
		return LayerSpec{}, fmt.Errorf("%w: %w", ErrUnknownLayer, err)
	}
	if spec, ok := simpleLayers[c.Name]; ok {
		if err := c.Arity(0, 0); err != nil {
			return LayerSpec{}, fmt.Errorf("%w: %w", ErrUnknownLayer, err)
		}
		return spec, nil
	}
	if c.Name != "LeakyReLU" {
		return LayerSpec{}, fmt.Errorf("%w: %q", ErrUnknownLayer, word)
	}
	if err := c.Arity(1, 1); err != nil {
		return LayerSpec{}, fmt.Errorf("%w: %w", ErrUnknownLayer, err)
	}
	alpha, err := c.Float(0, 0)
	if err != nil {
		return LayerSpec{}, fmt.Errorf("%w: %w", ErrUnknownLayer, err)
	}
	return LayerSpec{Activation: LeakyReLU, Alpha: alpha}, nil
}

// Architecture describes a network to be built by Build.
type Architecture struct {
	// Layers is the layer description, e.g. "ReLU;ReLU;Linear".
	Layers string

	// Sizes holds the input size followed by the output size of every
	// non-batch-norm layer.
	Sizes []int

	// Densities holds the weight density of every non-batch-norm layer.
	// Density 1 selects dense weights, a smaller density CSR weights with a
	// random support. Empty means all dense.
	Densities []float64

	// Init is the weight initializer (default Xavier).
	Init Initializer

	// Optimizer is the optimizer text accepted by optim.Parse (default GradientDescent).
	Optimizer string
}

// LinearCount returns the number of layers with a weight matrix in a layer description.
func LinearCount(specs []LayerSpec) int {
	n := 0
	for _, s := range specs {
		if !s.BatchNorm {
			n++
		}
	}
	return n
}

// Build creates a multilayer perceptron from an architecture. rng drives the
// random supports and the weight initialization.
func Build[T tensor.Float](arch Architecture, rng *rand.Rand) (*MLP[T], error) {
	specs, err := ParseLayers(arch.Layers)
	if err != nil {
		return nil, err
	}
	linear := LinearCount(specs)
	if len(arch.Sizes) != linear+1 {
		return nil, fmt.Errorf("%w: %d layers with weights need %d sizes, got %v",
			ErrShapeMismatch, linear, linear+1, arch.Sizes)
	}
	densities := arch.Densities
	if len(densities) == 0 {
		densities = make([]float64, linear)
		for i := range densities {
			densities[i] = 1
		}
	}
	if len(densities) != linear {
		return nil, fmt.Errorf("%w: %d layers with weights need %d densities, got %d",
			ErrShapeMismatch, linear, linear, len(densities))
	}

	init := arch.Init
	if init.name == "" {
		init = Xavier
	}
	optText := arch.Optimizer
	if optText == "" {
		optText = "GradientDescent"
	}
	factory, err := optim.Parse[T](optText)
	if err != nil {
		return nil, err
	}

	var layers []Layer[T]
	k := 0 // index into Sizes and densities
	for _, spec := range specs {
		if spec.BatchNorm {
			size := arch.Sizes[k]
			bn := NewBatchNorm[T](size)
			bn.SetOptimizer(factory)
			layers = append(layers, bn)
			continue
		}
		inputs, outputs := arch.Sizes[k], arch.Sizes[k+1]
		weights, err := newWeights[T](inputs, outputs, densities[k], init, rng)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", len(layers)+1, err)
		}
		layer := NewLinear(spec.Activation, weights)
		layer.SetAlpha(T(spec.Alpha))
		InitBias(init, layer.Bias().Data(), inputs, outputs, rng)
		layer.SetOptimizer(factory)
		layers = append(layers, layer)
		k++
	}
	return NewMLP(layers...)
}

func newWeights[T tensor.Float](inputs, outputs int, density float64, init Initializer, rng *rand.Rand) (Weights[T], error) {
	if density >= 1 {
		w := NewDenseWeights[T](outputs, inputs)
		InitWeights(init, w.W.Data(), inputs, outputs, rng)
		return w, nil
	}
	support, err := sparse.RandomSupport[T](outputs, inputs, density, rng)
	if err != nil {
		return nil, err
	}
	InitWeights(init, support.Values(), inputs, outputs, rng)
	return NewSparseWeights(support), nil
}
