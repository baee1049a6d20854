package prune_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/born-ml/sparsenet/internal/prune"
	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectKth(t *testing.T) {
	values := []float64{5, 0, -3, 1, 3, 0, 2, -3}

	v, m := prune.SelectKth(values, 0, prune.Nonzero[float64], prune.LessMagnitude[float64])
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 0, m)

	// Sorted by magnitude: 1, 2, {-3, 3, -3}, 5
	v, m = prune.SelectKth(values, 4, prune.Nonzero[float64], prune.LessMagnitude[float64])
	assert.Equal(t, 3.0, abs(v))
	assert.Equal(t, 2, m)

	v, m = prune.SelectKth(values, 2, prune.Nonzero[float64], prune.LessMagnitude[float64])
	assert.Equal(t, 3.0, abs(v))
	assert.Equal(t, 0, m)

	assert.Equal(t, []float64{5, 0, -3, 1, 3, 0, 2, -3}, values, "input must not be reordered")
	assert.Panics(t, func() { prune.SelectKth(values, 6, prune.Nonzero[float64], prune.LessMagnitude[float64]) })
}

func TestSelectKth_MatchesSort(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	less := func(a, b float32) bool { return a < b }

	for trial := 0; trial < 50; trial++ {
		values := make([]float32, 1+rng.Intn(40))
		for i := range values {
			values[i] = float32(rng.Intn(7) - 3)
		}
		accepted := []float32{}
		for _, x := range values {
			if prune.Positive(x) {
				accepted = append(accepted, x)
			}
		}
		if len(accepted) == 0 {
			continue
		}
		sort.Slice(accepted, func(i, j int) bool { return accepted[i] < accepted[j] })
		k := rng.Intn(len(accepted))

		v, m := prune.SelectKth(values, k, prune.Positive[float32], less)
		require.Equal(t, accepted[k], v)
		ties := 0
		for _, x := range accepted[:k] {
			if x == v {
				ties++
			}
		}
		require.Equal(t, ties, m)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestMagnitude_ExactCount(t *testing.T) {
	w := []float64{0.5, -0.1, 0, 0.3, -0.2}
	n := prune.Magnitude(w, 2, 0)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float64{0.5, 0, 0, 0.3, 0}, w)
}

func TestMagnitude_Ties(t *testing.T) {
	w := []float64{1, -1, 2, 1, -1, 3}
	n := prune.Magnitude(w, 3, 0)
	assert.Equal(t, 3, n)
	// Four entries share the threshold magnitude; the first three in buffer order go.
	assert.Equal(t, []float64{0, 0, 2, 0, -1, 3}, w)
}

func TestMagnitude_CountExceedsAccepted(t *testing.T) {
	w := []float32{0, 1, 0, -2}
	n := prune.Magnitude(w, 10, 0)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{0, 0, 0, 0}, w)

	assert.Equal(t, 0, prune.Magnitude(w, 3, 0))
	assert.Equal(t, 0, prune.Magnitude([]float32{1, 2}, 0, 0))
}

func TestMagnitude_RemovesSmallest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := make([]float64, 200)
	for i := range w {
		w[i] = rng.NormFloat64()
	}
	original := append([]float64(nil), w...)

	n := prune.Magnitude(w, 50, 0)
	require.Equal(t, 50, n)

	maxPruned, minKept := 0.0, 1e9
	for i, x := range w {
		if x == 0 {
			maxPruned = max(maxPruned, abs(original[i]))
		} else {
			assert.Equal(t, original[i], x, "kept entries are unchanged")
			minKept = min(minKept, abs(x))
		}
	}
	assert.LessOrEqual(t, maxPruned, minKept)
}

func TestMagnitude_Idempotent(t *testing.T) {
	w := []float64{4, -3, 2, -1, 0.5, 6}
	prune.Magnitude(w, 2, 0)
	first := append([]float64(nil), w...)

	n := prune.Magnitude(w, 2, 0)
	assert.Equal(t, 2, n)
	for i, x := range first {
		if x == 0 {
			assert.Equal(t, 0.0, w[i], "pruned entries stay pruned")
		}
	}
	assert.Equal(t, []float64{4, 0, 0, 0, 0, 6}, w)
}

func TestPositiveNegativeWeights(t *testing.T) {
	w := []float64{0.4, -0.4, 0.1, -0.1, 0.2, -0.3}

	n := prune.PositiveWeights(w, 2, 0)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float64{0.4, -0.4, 0, -0.1, 0, -0.3}, w)

	n = prune.NegativeWeights(w, 1, 0)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float64{0.4, -0.4, 0, 0, 0, -0.3}, w)
}

func TestMagnitude_CustomReplacement(t *testing.T) {
	w := []float64{3, 1, 2}
	n := prune.Magnitude(w, 1, -7)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float64{3, -7, 2}, w)
}

func TestPrune(t *testing.T) {
	w := []float64{1, -2, 3}
	n := prune.Prune(w, prune.Negative[float64], 0)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float64{1, 0, 3}, w)
}

func TestMagnitude_DenseAndSparseAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	dense := tensor.RandomMatrix[float64](6, 8, -1, 1, rng)
	for i := range dense.Data() {
		if rng.Intn(3) == 0 {
			dense.Data()[i] = 0
		}
	}
	csr := sparse.FromDense(dense, nil)

	nd := prune.Magnitude(dense.Data(), 7, 0)
	ns := prune.Magnitude(csr.Values(), 7, 0)
	assert.Equal(t, nd, ns)
	assert.True(t, dense.Equal(csr.ToDense()))
}
