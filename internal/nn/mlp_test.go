package nn_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
	"github.com/stretchr/testify/require"
)

// twinNetworks builds two networks with identical content: the first uses
// dense weights everywhere, the second stores every layer except the last
// in CSR format with a fully dense support.
func twinNetworks(t *testing.T, sizes []int, rng *rand.Rand) (*nn.MLP[float64], *nn.MLP[float64]) {
	t.Helper()
	n := len(sizes) - 1
	var denseLayers, sparseLayers []nn.Layer[float64]
	for i := 0; i < n; i++ {
		act := nn.ReLU
		if i == n-1 {
			act = nn.Identity
		}
		W := tensor.RandomMatrix[float64](sizes[i+1], sizes[i], -1, 1, rng)
		b := tensor.RandomMatrix[float64](1, sizes[i+1], -1, 1, rng)

		d := nn.NewLinear[float64](act, &nn.DenseWeights[float64]{W: W.Clone(), DW: tensor.NewMatrix[float64](W.Rows(), W.Cols())})
		d.Bias().CopyFrom(b)
		denseLayers = append(denseLayers, d)

		var w nn.Weights[float64] = &nn.DenseWeights[float64]{W: W.Clone(), DW: tensor.NewMatrix[float64](W.Rows(), W.Cols())}
		if i < n-1 {
			w = nn.NewSparseWeights(sparse.FromDenseAll(W))
		}
		s := nn.NewLinear[float64](act, w)
		s.Bias().CopyFrom(b)
		sparseLayers = append(sparseLayers, s)
	}
	dense, err := nn.NewMLP(denseLayers...)
	require.NoError(t, err)
	sp, err := nn.NewMLP(sparseLayers...)
	require.NoError(t, err)
	return dense, sp
}

func trainStep(mlp *nn.MLP[float64], loss nn.Loss[float64], X, T, Y, DY *tensor.Matrix[float64], lr float64) {
	mlp.Feedforward(X, Y)
	loss.Gradient(DY, Y, T)
	DY.Scale(1 / float64(X.Rows()))
	mlp.Backpropagate(Y, DY)
	mlp.Optimize(lr)
}

func TestMLP_DenseSparseEquivalence(t *testing.T) {
	tests := []struct {
		sizes []int
		n     int
	}{
		{[]int{4, 2, 3, 2}, 5},
		{[]int{6, 5, 7, 3}, 10},
	}

	for _, tt := range tests {
		for _, lossName := range []string{"SquaredError", "SoftmaxCrossEntropy", "LogisticCrossEntropy"} {
			t.Run(fmt.Sprintf("%v/%s", tt.sizes, lossName), func(t *testing.T) {
				rng := rand.New(rand.NewSource(99))
				dense, sp := twinNetworks(t, tt.sizes, rng)
				loss, err := nn.ParseLoss[float64](lossName)
				require.NoError(t, err)

				k := tt.sizes[len(tt.sizes)-1]
				X := tensor.RandomMatrix[float64](tt.n, tt.sizes[0], -1, 1, rng)
				T := tensor.RandomTarget[float64](tt.n, k, rng)
				Yd, DYd := tensor.NewMatrix[float64](tt.n, k), tensor.NewMatrix[float64](tt.n, k)
				Ys, DYs := tensor.NewMatrix[float64](tt.n, k), tensor.NewMatrix[float64](tt.n, k)

				for step := 0; step < 3; step++ {
					trainStep(dense, loss, X, T, Yd, DYd, 0.01)
					trainStep(sp, loss, X, T, Ys, DYs, 0.01)
					checkEqualMatrices(t, fmt.Sprintf("Y step %d", step), Yd, Ys, 1e-7)
					checkEqualMatrices(t, fmt.Sprintf("DY step %d", step), DYd, DYs, 1e-7)
				}

				dense.Feedforward(X, Yd)
				sp.Feedforward(X, Ys)
				checkEqualMatrices(t, "Y", Yd, Ys, 1e-7)
				for i := range dense.Layers {
					wd := dense.Layers[i].(*nn.Linear[float64]).Weights().Dense()
					ws := sp.Layers[i].(*nn.Linear[float64]).Weights().Dense()
					checkEqualMatrices(t, fmt.Sprintf("W%d", i+1), wd, ws, 1e-7)
				}
			})
		}
	}
}

func TestMLP_FeedforwardShapePanics(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	dense, _ := twinNetworks(t, []int{3, 2}, rng)
	require.Panics(t, func() {
		dense.Feedforward(tensor.NewMatrix[float64](4, 2), tensor.NewMatrix[float64](4, 2))
	})
	require.Panics(t, func() {
		dense.Backpropagate(tensor.NewMatrix[float64](4, 2), tensor.NewMatrix[float64](4, 2))
	})
}

func TestMLP_Info(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	dense, _ := twinNetworks(t, []int{3, 2, 2}, rng)
	info := dense.Info("M")
	require.Contains(t, info, "layer 1: Dense(input_size=3, output_size=2")
	require.Contains(t, info, "W2 (2, 2) =")
}
