package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/sparsenet/internal/optim"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// MLP is a multilayer perceptron: an ordered sequence of layers where the
// output of layer i is the input of layer i+1.
//
// The interior activation and gradient buffers form an arena indexed by layer
// position. Buffer i (1 <= i < len(Layers)) is written by layer i-1 and read
// by layer i during Feedforward, and the other way around for the gradients
// during Backpropagate. The input X and the output Y belong to the caller.
//
// Example:
//
//	mlp, _ := nn.NewMLP[float32](layer1, layer2, layer3)
//	mlp.Feedforward(X, Y)
//	loss.Gradient(DY, Y, T)
//	DY.Scale(1 / float32(X.Rows()))
//	mlp.Backpropagate(Y, DY)
//	mlp.Optimize(0.01)
type MLP[T tensor.Float] struct {
	Layers []Layer[T]

	activations []*tensor.Matrix[T]
	gradients   []*tensor.Matrix[T]
	input       *tensor.Matrix[T]
}

// NewMLP chains the given layers. Consecutive layers must agree on their sizes.
func NewMLP[T tensor.Float](layers ...Layer[T]) (*MLP[T], error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: a multilayer perceptron needs at least one layer", ErrShapeMismatch)
	}
	for i := 1; i < len(layers); i++ {
		if layers[i-1].Outputs() != layers[i].Inputs() {
			return nil, fmt.Errorf("%w: layer %d has %d outputs, layer %d has %d inputs",
				ErrShapeMismatch, i, layers[i-1].Outputs(), i+1, layers[i].Inputs())
		}
	}
	return &MLP[T]{
		Layers:      layers,
		activations: make([]*tensor.Matrix[T], len(layers)),
		gradients:   make([]*tensor.Matrix[T], len(layers)),
	}, nil
}

// Inputs returns the number of input features.
func (m *MLP[T]) Inputs() int { return m.Layers[0].Inputs() }

// Outputs returns the number of outputs.
func (m *MLP[T]) Outputs() int { return m.Layers[len(m.Layers)-1].Outputs() }

// Feedforward computes the output Y of the network for the batch X.
// Y must have X.Rows() rows and Outputs() columns.
func (m *MLP[T]) Feedforward(X, Y *tensor.Matrix[T]) {
	if X.Cols() != m.Inputs() || Y.Rows() != X.Rows() || Y.Cols() != m.Outputs() {
		panic(fmt.Sprintf("MLP.Feedforward: input %v and output %v do not fit a network with %d inputs and %d outputs",
			X.Shape(), Y.Shape(), m.Inputs(), m.Outputs()))
	}
	m.input = X
	n := X.Rows()
	last := len(m.Layers) - 1
	for i, layer := range m.Layers {
		in := X
		if i > 0 {
			in = m.activations[i]
		}
		out := Y
		if i < last {
			m.activations[i+1] = resize(m.activations[i+1], n, layer.Outputs())
			out = m.activations[i+1]
		}
		layer.Feedforward(out, in)
	}
}

// Backpropagate computes the gradients of all parameters from the output
// gradient DY. Y must be the output of the last Feedforward call.
// The gradient with respect to the network input is not computed.
func (m *MLP[T]) Backpropagate(Y, DY *tensor.Matrix[T]) {
	if m.input == nil {
		panic("MLP.Backpropagate: called before Feedforward")
	}
	n := DY.Rows()
	last := len(m.Layers) - 1
	for i := last; i >= 0; i-- {
		x := m.input
		if i > 0 {
			x = m.activations[i]
		}
		y, dy := Y, DY
		if i < last {
			y, dy = m.activations[i+1], m.gradients[i+1]
		}
		var dx *tensor.Matrix[T]
		if i > 0 {
			m.gradients[i] = resize(m.gradients[i], n, m.Layers[i].Inputs())
			dx = m.gradients[i]
		}
		m.Layers[i].Backpropagate(dx, x, y, dy)
	}
}

// Optimize updates the parameters of all layers with learning rate eta.
func (m *MLP[T]) Optimize(eta T) {
	for _, layer := range m.Layers {
		layer.Optimize(eta)
	}
}

// Clip sets parameter entries with 0 < |x| < epsilon to zero in all layers.
func (m *MLP[T]) Clip(epsilon T) int {
	n := 0
	for _, layer := range m.Layers {
		n += layer.Clip(epsilon)
	}
	return n
}

// SetOptimizer binds a new optimizer created by f to every parameter of every layer.
func (m *MLP[T]) SetOptimizer(f optim.Factory[T]) {
	for _, layer := range m.Layers {
		layer.SetOptimizer(f)
	}
}

// SetTraining switches all layers between training and evaluation mode.
func (m *MLP[T]) SetTraining(training bool) {
	for _, layer := range m.Layers {
		layer.SetTraining(training)
	}
}

// Parameters returns the parameters of all layers, named "<layer>.<name>"
// with 1-based layer numbers, e.g. "1.W" and "1.b".
func (m *MLP[T]) Parameters() []Parameter[T] {
	var params []Parameter[T]
	for i, layer := range m.Layers {
		for _, p := range layer.Parameters() {
			p.Name = fmt.Sprintf("%d.%s", i+1, p.Name)
			params = append(params, p)
		}
	}
	return params
}

// Activation returns the interior buffer holding the input of layer i (i >= 1)
// after the last Feedforward call.
func (m *MLP[T]) Activation(i int) *tensor.Matrix[T] { return m.activations[i] }

// Info returns a multi-line description of the network and its parameters.
func (m *MLP[T]) Info(name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "==================================\n")
	fmt.Fprintf(&sb, "%s\n", name)
	fmt.Fprintf(&sb, "==================================\n")
	for i, layer := range m.Layers {
		fmt.Fprintf(&sb, "layer %d: %s\n", i+1, layer)
		switch l := layer.(type) {
		case *Linear[T]:
			sb.WriteString(tensor.Format(fmt.Sprintf("W%d", i+1), l.Weights().Dense()))
			sb.WriteString("\n")
			sb.WriteString(tensor.Format(fmt.Sprintf("b%d", i+1), l.Bias()))
			sb.WriteString("\n")
		case *BatchNorm[T]:
			sb.WriteString(tensor.Format(fmt.Sprintf("gamma%d", i+1), l.Gamma()))
			sb.WriteString("\n")
			sb.WriteString(tensor.Format(fmt.Sprintf("beta%d", i+1), l.Beta()))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// String returns one line per layer.
func (m *MLP[T]) String() string {
	var sb strings.Builder
	sb.WriteString("MultilayerPerceptron(\n")
	for _, layer := range m.Layers {
		fmt.Fprintf(&sb, "  %s,\n", layer)
	}
	sb.WriteString(")")
	return sb.String()
}
