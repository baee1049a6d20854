package train_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/train"
)

func TestParsePruneStrategy(t *testing.T) {
	s, f, err := train.ParsePruneStrategy("Magnitude(0.2)")
	require.NoError(t, err)
	assert.Equal(t, train.PruneMagnitude, s)
	assert.Equal(t, 0.2, f)

	s, f, err = train.ParsePruneStrategy("PositiveNegative(0.1)")
	require.NoError(t, err)
	assert.Equal(t, train.PrunePositiveNegative, s)
	assert.Equal(t, "PositiveNegative", s.String())
	assert.Equal(t, 0.1, f)

	for _, text := range []string{"Random(0.1)", "Magnitude", "Magnitude(1.5)", "Magnitude(x)"} {
		_, _, err := train.ParsePruneStrategy(text)
		assert.ErrorIs(t, err, train.ErrUnknownPruneStrategy, "text %q", text)
	}
}

func sparseLayer(t *testing.T, model *nn.MLP[float64], i int) *nn.Linear[float64] {
	t.Helper()
	l, ok := model.Layers[i].(*nn.Linear[float64])
	require.True(t, ok)
	return l
}

func TestPruneHookMagnitude(t *testing.T) {
	model := build(t, nn.Architecture{Layers: "ReLU;Linear", Sizes: []int{10, 10, 2}, Densities: []float64{0.5, 1}}, 1)
	layer := sparseLayer(t, model, 0)
	require.Equal(t, 50, len(layer.Weights().Values()))

	hook := &train.PruneHook[float64]{Model: model, Strategy: train.PruneMagnitude, Fraction: 0.2}
	require.NoError(t, hook.OnEndEpoch(0))
	assert.Equal(t, 40, len(layer.Weights().Values()))
	assert.Len(t, layer.Weights().GradValues(), 40)

	// the dense output layer is not selected by default
	assert.Equal(t, 1.0, sparseLayer(t, model, 1).Weights().Density())
}

func TestPruneHookPositiveNegative(t *testing.T) {
	model := build(t, nn.Architecture{Layers: "Linear", Sizes: []int{20, 20}, Densities: []float64{1}, Init: nn.Uniform}, 2)
	layer := sparseLayer(t, model, 0)
	values := layer.Weights().Values()
	positive, negative := 0, 0
	for _, x := range values {
		if x > 0 {
			positive++
		} else if x < 0 {
			negative++
		}
	}

	hook := &train.PruneHook[float64]{Model: model, Strategy: train.PrunePositiveNegative, Fraction: 0.5, Layers: []int{1}}
	n := hook.PruneLayer(layer)
	assert.Equal(t, (positive+1)/2+(negative+1)/2, n)

	zeros := 0
	for _, x := range layer.Weights().Values() {
		if x == 0 {
			zeros++
		}
	}
	assert.Equal(t, n, zeros, "dense weights are pruned to zero")
}

func TestPruneHookRegrowKeepsDensity(t *testing.T) {
	data := checkerboard(t, 100, 1)
	model := build(t, nn.Architecture{
		Layers:    "ReLU;ReLU;Linear",
		Sizes:     []int{2, 12, 12, 2},
		Densities: []float64{0.5, 0.5, 1},
		Optimizer: "Momentum(0.9)",
	}, 3)
	rng := rand.New(rand.NewSource(4))
	hook := &train.PruneHook[float64]{
		Model:    model,
		Strategy: train.PruneMagnitude,
		Fraction: 0.25,
		Grow:     true,
		Init:     nn.Xavier,
		Rng:      rng,
	}
	before := []float64{sparseLayer(t, model, 0).Weights().Density(), sparseLayer(t, model, 1).Weights().Density()}

	tr, err := train.New(model, nn.SoftmaxCrossEntropy[float64]{}, data, train.Config{
		Epochs:    3,
		BatchSize: 10,
		Shuffle:   true,
		Rng:       rng,
		Hooks:     []train.Hooks{hook},
	})
	require.NoError(t, err)
	_, err = tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before[0], sparseLayer(t, model, 0).Weights().Density())
	assert.Equal(t, before[1], sparseLayer(t, model, 1).Weights().Density())
}

func TestPruneHookInvalidLayer(t *testing.T) {
	model := build(t, nn.Architecture{Layers: "BatchNorm;Linear", Sizes: []int{2, 2}}, 1)
	hook := &train.PruneHook[float64]{Model: model, Fraction: 0.1, Layers: []int{1}}
	assert.Error(t, hook.OnEndEpoch(0))
	hook.Layers = []int{3}
	assert.Error(t, hook.OnEndEpoch(0))
}
