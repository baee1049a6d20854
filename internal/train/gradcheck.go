package train

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// GradientCheck compares analytic gradients with central finite differences.
//
// Entries pass when |analytic - numeric| <= Tolerance * max(1, |numeric|).
type GradientCheck struct {
	Step      float64
	Tolerance float64
}

func (g GradientCheck) settings() *fd.Settings {
	return &fd.Settings{Formula: fd.Central, Step: g.Step}
}

func (g GradientCheck) compare(name string, i int, analytic, numeric float64) error {
	if math.Abs(analytic-numeric) > g.Tolerance*math.Max(1, math.Abs(numeric)) {
		return &GradientError{Name: name, Index: i, Analytic: analytic, Numeric: numeric}
	}
	return nil
}

// check perturbs every entry of values through f and compares the resulting
// derivative with grad. values is restored afterwards.
func check[T tensor.Float](g GradientCheck, name string, values, grad []T, f func() float64) error {
	settings := g.settings()
	for i := range values {
		orig := values[i]
		numeric := fd.Derivative(func(x float64) float64 {
			values[i] = T(x)
			return f()
		}, float64(orig), settings)
		values[i] = orig
		if err := g.compare(name, i, float64(grad[i]), numeric); err != nil {
			return err
		}
	}
	return nil
}

// CheckOutputGradient compares DY with the derivative of scale * loss(Y, targets)
// with respect to Y.
func CheckOutputGradient[T tensor.Float](g GradientCheck, loss nn.Loss[T], Y, DY, targets *tensor.Matrix[T], scale float64) error {
	return check(g, "DY", Y.Data(), DY.Data(), func() float64 {
		return scale * float64(loss.Value(Y, targets))
	})
}

// CheckParameterGradients compares the gradient of every parameter of model, as left
// by the last Backpropagate call, with the derivative of
// scale * loss(model(X), targets). Layers with running statistics are
// updated by the extra feedforward passes.
func CheckParameterGradients[T tensor.Float](g GradientCheck, model *nn.MLP[T], loss nn.Loss[T], X, targets *tensor.Matrix[T], scale float64) error {
	Y := tensor.NewMatrix[T](X.Rows(), model.Outputs())
	f := func() float64 {
		model.Feedforward(X, Y)
		return scale * float64(loss.Value(Y, targets))
	}
	for _, p := range model.Parameters() {
		if err := check(g, p.Name, p.Value, p.Grad, f); err != nil {
			return err
		}
	}
	return nil
}
