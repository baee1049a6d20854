package train_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sparsenet/internal/dataset"
	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
	"github.com/born-ml/sparsenet/internal/train"
)

func checkerboard(t *testing.T, n int, seed int64) *dataset.Dataset[float64] {
	t.Helper()
	d, err := dataset.Generate[float64]("checkerboard", n, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return d
}

func build(t *testing.T, arch nn.Architecture, seed int64) *nn.MLP[float64] {
	t.Helper()
	m, err := nn.Build[float64](arch, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return m
}

// hookFunc runs start and end around every batch.
type hookFunc struct {
	train.NopHooks
	start func(epoch, batch int) error
	end   func(epoch, batch int) error
}

func (h hookFunc) OnStartBatch(epoch, batch int) error {
	if h.start == nil {
		return nil
	}
	return h.start(epoch, batch)
}

func (h hookFunc) OnEndBatch(epoch, batch int) error {
	if h.end == nil {
		return nil
	}
	return h.end(epoch, batch)
}

func TestRunReportsEveryEpoch(t *testing.T) {
	data := checkerboard(t, 200, 1)
	model := build(t, nn.Architecture{Layers: "ReLU;ReLU;Linear", Sizes: []int{2, 16, 16, 2}, Densities: []float64{1, 0.5, 1}}, 2)

	var reported []train.EpochStats
	tr, err := train.New(model, nn.SoftmaxCrossEntropy[float64]{}, data, train.Config{
		Epochs:     3,
		BatchSize:  20,
		Shuffle:    true,
		Scheduler:  train.ConstantScheduler{LR: 0.05},
		Statistics: true,
		Rng:        rand.New(rand.NewSource(3)),
		Reporter:   train.ReporterFunc(func(s train.EpochStats) { reported = append(reported, s) }),
	})
	require.NoError(t, err)

	result, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Epochs, 4)
	assert.Equal(t, result.Epochs, reported)
	assert.False(t, result.Interrupted)

	for i, s := range result.Epochs {
		assert.Equal(t, i, s.Epoch)
		assert.Equal(t, 0.05, s.LearningRate)
		assert.True(t, s.Loss > 0 && !math.IsNaN(s.Loss))
		assert.True(t, s.TrainAccuracy >= 0 && s.TrainAccuracy <= 1)
		assert.True(t, s.TestAccuracy >= 0 && s.TestAccuracy <= 1)
	}
	assert.True(t, strings.HasPrefix(result.Epochs[1].String(), "epoch   1 lr: 0.05000000  loss: "))
}

func TestNewValidates(t *testing.T) {
	data := checkerboard(t, 20, 1)
	model := build(t, nn.Architecture{Layers: "Linear", Sizes: []int{2, 3}}, 1)
	_, err := train.New(model, nn.SquaredError[float64]{}, data, train.Config{Epochs: 1, BatchSize: 5})
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	model = build(t, nn.Architecture{Layers: "Linear", Sizes: []int{2, 2}}, 1)
	_, err = train.New(model, nn.SquaredError[float64]{}, data, train.Config{Epochs: 1, BatchSize: 0})
	assert.Error(t, err)
}

func TestNaNInActivationsIsFatal(t *testing.T) {
	data := checkerboard(t, 40, 1)
	model := build(t, nn.Architecture{Layers: "Linear;Sigmoid;Linear", Sizes: []int{2, 4, 4, 2}}, 1)

	hook := hookFunc{start: func(epoch, batch int) error {
		if epoch == 0 && batch == 2 {
			model.Layers[1].Parameters()[0].Value[0] = math.NaN()
		}
		return nil
	}}
	batches := 0
	counter := hookFunc{end: func(int, int) error { batches++; return nil }}

	tr, err := train.New(model, nn.SquaredError[float64]{}, data, train.Config{
		Epochs:    2,
		BatchSize: 10,
		Hooks:     []train.Hooks{hook, counter},
	})
	require.NoError(t, err)

	_, err = tr.Run(context.Background())
	require.ErrorIs(t, err, train.ErrNumericalCorruption)
	var corruption *train.CorruptionError
	require.True(t, errors.As(err, &corruption))
	assert.Equal(t, 0, corruption.Epoch)
	assert.Equal(t, 2, corruption.Batch)
	assert.Equal(t, 2, corruption.Layer)
	assert.Contains(t, corruption.Dump, "layer 2")
	assert.Contains(t, corruption.Dump, "NaN")
	assert.Equal(t, 2, batches, "the corrupted batch must not complete")
}

func TestNaNInDataIsFatal(t *testing.T) {
	data := checkerboard(t, 20, 1)
	data.Xtrain.Set(0, 0, math.Inf(1))
	model := build(t, nn.Architecture{Layers: "Linear", Sizes: []int{2, 2}}, 1)
	tr, err := train.New(model, nn.SquaredError[float64]{}, data, train.Config{Epochs: 1, BatchSize: 10})
	require.NoError(t, err)

	_, err = tr.Run(context.Background())
	var corruption *train.CorruptionError
	require.ErrorAs(t, err, &corruption)
	assert.Equal(t, "Y", corruption.What)
	assert.Equal(t, 1, corruption.Layer)
}

func TestInterruptionReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	data := checkerboard(t, 100, 1)
	model := build(t, nn.Architecture{Layers: "ReLU;Linear", Sizes: []int{2, 8, 2}}, 1)
	stop := hookFunc{end: func(epoch, batch int) error {
		if epoch == 1 && batch == 0 {
			cancel()
		}
		return nil
	}}
	tr, err := train.New(model, nn.SoftmaxCrossEntropy[float64]{}, data, train.Config{
		Epochs:     5,
		BatchSize:  10,
		Statistics: true,
		Hooks:      []train.Hooks{stop},
	})
	require.NoError(t, err)

	result, err := tr.Run(ctx)
	require.ErrorIs(t, err, train.ErrInterrupted)
	require.NotNil(t, result)
	assert.True(t, result.Interrupted)
	require.Len(t, result.Epochs, 2)
	assert.Equal(t, 1, result.Epochs[1].Epoch)
	assert.Positive(t, result.TrainingTime)
}

func TestGradientCheckPasses(t *testing.T) {
	data := checkerboard(t, 20, 4)
	model := build(t, nn.Architecture{
		Layers:    "Sigmoid;BatchNorm;HyperbolicTangent;Linear",
		Sizes:     []int{2, 6, 5, 2},
		Densities: []float64{0.6, 1, 1},
		Init:      nn.Uniform,
		Optimizer: "Momentum(0.9)",
	}, 5)
	tr, err := train.New(model, nn.SoftmaxCrossEntropy[float64]{}, data, train.Config{
		Epochs:            2,
		BatchSize:         5,
		Shuffle:           true,
		Scheduler:         train.ConstantScheduler{LR: 0.1},
		GradientStep:      1e-6,
		GradientTolerance: 1e-5,
		Rng:               rand.New(rand.NewSource(6)),
	})
	require.NoError(t, err)
	_, err = tr.Run(context.Background())
	require.NoError(t, err)
}

// doubledLoss returns a gradient that is twice the derivative of its value.
type doubledLoss struct {
	nn.SquaredError[float64]
}

func (l doubledLoss) Gradient(DY, Y, targets *tensor.Matrix[float64]) {
	l.SquaredError.Gradient(DY, Y, targets)
	DY.Scale(2)
}

func TestGradientCheckDetectsMismatch(t *testing.T) {
	data := checkerboard(t, 20, 1)
	model := build(t, nn.Architecture{Layers: "Linear", Sizes: []int{2, 2}}, 1)
	tr, err := train.New[float64](model, doubledLoss{}, data, train.Config{Epochs: 1, BatchSize: 5, GradientStep: 1e-6})
	require.NoError(t, err)

	_, err = tr.Run(context.Background())
	require.ErrorIs(t, err, train.ErrGradientMismatch)
	var mismatch *train.GradientError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "DY", mismatch.Name)
	assert.InDelta(t, 2*mismatch.Numeric, mismatch.Analytic, 1e-6)
}

func TestCheckParameterGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	model := build(t, nn.Architecture{Layers: "ReLU;LeakyReLU(0.2);Linear", Sizes: []int{3, 4, 4, 2}, Densities: []float64{0.5, 0.8, 1}, Init: nn.Uniform}, 9)
	X := tensor.RandomMatrix[float64](6, 3, -1, 1, rng)
	T := tensor.RandomTarget[float64](6, 2, rng)
	Y, DY := tensor.NewMatrix[float64](6, 2), tensor.NewMatrix[float64](6, 2)
	loss := nn.LogisticCrossEntropy[float64]{}

	model.Feedforward(X, Y)
	loss.Gradient(DY, Y, T)
	DY.Scale(1.0 / 6)
	model.Backpropagate(Y, DY)

	gc := train.GradientCheck{Step: 1e-6, Tolerance: 1e-5}
	require.NoError(t, train.CheckOutputGradient(gc, nn.Loss[float64](loss), Y, DY, T, 1.0/6))
	require.NoError(t, train.CheckParameterGradients(gc, model, nn.Loss[float64](loss), X, T, 1.0/6))

	DW := model.Layers[2].Parameters()[0].Grad
	DW[1] += 0.5
	err := train.CheckParameterGradients(gc, model, nn.Loss[float64](loss), X, T, 1.0/6)
	var mismatch *train.GradientError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "3.W", mismatch.Name)
	assert.Equal(t, 1, mismatch.Index)
}

func TestEvaluateSkipsRemainder(t *testing.T) {
	model := build(t, nn.Architecture{Layers: "Linear", Sizes: []int{1, 2}, Init: nn.Zero}, 1)
	model.Layers[0].Parameters()[1].Value[1] = 1 // every output predicts class 1

	X := tensor.NewMatrix[float64](7, 1)
	targets, err := dataset.OneHot[float64]([]int{1, 1, 0, 1, 1, 0, 0}, 2)
	require.NoError(t, err)

	_, accuracy := train.Evaluate[float64](model, nn.SquaredError[float64]{}, X, targets, 5)
	assert.InDelta(t, 0.8, accuracy, 1e-12)
}

func TestNewWarnsWhenTestSetHasNoFullBatch(t *testing.T) {
	data := checkerboard(t, 50, 1) // 10 test examples
	model := build(t, nn.Architecture{Layers: "ReLU;Linear", Sizes: []int{2, 4, 2}}, 1)

	var logs bytes.Buffer
	tr, err := train.New(model, nn.SoftmaxCrossEntropy[float64]{}, data, train.Config{
		Epochs:    1,
		BatchSize: 20,
		Logger:    slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "no full batch to evaluate")
	assert.Contains(t, logs.String(), "split=test")
	assert.NotContains(t, logs.String(), "split=train")

	result, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.TestAccuracy)
}

// endToEndNetworks builds the {4,2,3,2} network twice with the same initial
// weights, once with dense and once with CSR weights in layers 1 and 2.
func endToEndNetworks(t *testing.T) (*nn.MLP[float64], *nn.MLP[float64]) {
	t.Helper()
	rng := rand.New(rand.NewSource(12))
	sizes := []int{4, 2, 3, 2}
	var dense, csr []nn.Layer[float64]
	for i := 0; i < 3; i++ {
		act := nn.ReLU
		if i == 2 {
			act = nn.Identity
		}
		W := tensor.RandomMatrix[float64](sizes[i+1], sizes[i], -1, 1, rng)
		b := tensor.RandomMatrix[float64](1, sizes[i+1], -1, 1, rng)

		d := nn.NewLinear[float64](act, &nn.DenseWeights[float64]{W: W.Clone(), DW: tensor.NewMatrix[float64](W.Rows(), W.Cols())})
		d.Bias().CopyFrom(b)
		dense = append(dense, d)

		var w nn.Weights[float64] = &nn.DenseWeights[float64]{W: W.Clone(), DW: tensor.NewMatrix[float64](W.Rows(), W.Cols())}
		if i < 2 {
			w = nn.NewSparseWeights(sparse.FromDenseAll(W))
		}
		s := nn.NewLinear[float64](act, w)
		s.Bias().CopyFrom(b)
		csr = append(csr, s)
	}
	m1, err := nn.NewMLP(dense...)
	require.NoError(t, err)
	m2, err := nn.NewMLP(csr...)
	require.NoError(t, err)
	return m1, m2
}

func TestEndToEndDenseAndSparseAgree(t *testing.T) {
	X := tensor.MustFromRows([][]float64{
		{0.1, -0.4, 0.7, 0.2},
		{-0.3, 0.5, 0.1, -0.9},
		{0.8, 0.2, -0.6, 0.4},
		{-0.1, -0.7, 0.3, 0.6},
		{0.5, 0.9, -0.2, -0.3},
	})
	T := tensor.MustFromRows([][]float64{{1, 0}, {0, 1}, {0, 1}, {1, 0}, {1, 0}})
	data := &dataset.Dataset[float64]{Xtrain: X, Ttrain: T, Xtest: X, Ttest: T}

	dense, csr := endToEndNetworks(t)
	var outputs []*tensor.Matrix[float64]
	for _, model := range []*nn.MLP[float64]{dense, csr} {
		tr, err := train.New(model, nn.SoftmaxCrossEntropy[float64]{}, data, train.Config{
			Epochs:    1,
			BatchSize: 5,
			Scheduler: train.ConstantScheduler{LR: 0.01},
		})
		require.NoError(t, err)
		_, err = tr.Run(context.Background())
		require.NoError(t, err)

		Y := tensor.NewMatrix[float64](5, 2)
		model.Feedforward(X, Y)
		outputs = append(outputs, Y)
	}
	assert.LessOrEqual(t, tensor.SquaredDistance(outputs[0], outputs[1]), 1e-7)
}
