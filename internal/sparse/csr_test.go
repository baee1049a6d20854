package sparse_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/sparsenet/internal/parallel"
	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Valid(t *testing.T) {
	a, err := sparse.New(2, 3, []int{0, 2, 3}, []int{0, 2, 1}, []float64{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, 3, a.NNZ())
	assert.Equal(t, 2.0, a.At(0, 2))
	assert.Equal(t, 0.0, a.At(1, 0))
	assert.True(t, a.Has(1, 1))
	assert.InDelta(t, 0.5, a.Density(), 1e-12)
}

func TestNew_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		offsets []int
		columns []int
		values  []float64
		field   string
	}{
		{"offsets length", []int{0, 1}, []int{0}, []float64{1}, "offsets"},
		{"values length", []int{0, 1, 2}, []int{0, 1}, []float64{1}, "values"},
		{"first offset", []int{1, 1, 2}, []int{0, 1}, []float64{1, 2}, "offsets"},
		{"last offset", []int{0, 1, 1}, []int{0, 1}, []float64{1, 2}, "offsets"},
		{"decreasing offsets", []int{0, 2, 1, 2}, []int{0, 1}, []float64{1, 2}, "offsets"},
		{"offset past nnz", []int{0, 5, 2}, []int{0, 1}, []float64{1, 2}, "offsets"},
		{"negative offset", []int{0, -1, 2}, []int{0, 1}, []float64{1, 2}, "offsets"},
		{"column out of range", []int{0, 1, 2}, []int{0, 3}, []float64{1, 2}, "columns"},
		{"negative column", []int{0, 1, 2}, []int{-1, 0}, []float64{1, 2}, "columns"},
		{"unsorted columns", []int{0, 2, 2}, []int{2, 1}, []float64{1, 2}, "columns"},
		{"duplicate columns", []int{0, 2, 2}, []int{1, 1}, []float64{1, 2}, "columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := len(tt.offsets) - 1
			if tt.name == "offsets length" {
				rows = 2
			}
			_, err := sparse.New(rows, 3, tt.offsets, tt.columns, tt.values)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sparse.ErrMalformed))

			var serr *sparse.StructureError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.field, serr.Field)
		})
	}
}

func TestDenseRoundTrip(t *testing.T) {
	m := tensor.MustFromRows([][]float64{
		{0, 1.5, 0, -2},
		{0, 0, 0, 0},
		{3, 0, 0.25, 0},
	})

	a := sparse.FromDense(m, nil)
	require.NoError(t, a.Validate())
	assert.Equal(t, 4, a.NNZ())
	assert.Equal(t, []int{0, 2, 2, 4}, a.Offsets())
	assert.Equal(t, []int{1, 3, 0, 2}, a.Columns())
	assert.Equal(t, []float64{1.5, -2, 3, 0.25}, a.Values())

	assert.True(t, m.Equal(a.ToDense()))
}

func TestFromDense_Predicate(t *testing.T) {
	m := tensor.MustFromRows([][]float32{{1, -1}, {2, -3}})

	a := sparse.FromDense(m, func(x float32) bool { return x > 0 })
	assert.Equal(t, []float32{1, 2}, a.Values())

	full := sparse.FromDenseAll(tensor.NewMatrix[float32](2, 2))
	assert.Equal(t, 4, full.NNZ())
	assert.Equal(t, float32(0), full.Values()[3])
}

func TestAssignAndScale(t *testing.T) {
	a := sparse.FromDense(tensor.MustFromRows([][]float64{{1, -2}, {3, -4}}), nil)

	n := a.Assign(func(x float64) bool { return x < 0 }, 0)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, a.NNZ(), "assigned zeros stay in the support")

	a.ScaleValues(2)
	assert.Equal(t, []float64{2, 0, 6, 0}, a.Values())
}

func TestReductions(t *testing.T) {
	m := tensor.MustFromRows([][]float64{{1, 0, 2}, {0, 3, 4}})
	a := sparse.FromDense(m, nil)

	rs := tensor.NewMatrix[float64](2, 1)
	a.RowSums(rs)
	assert.Equal(t, []float64{3, 7}, rs.Data())

	cs := tensor.NewMatrix[float64](1, 3)
	a.ColSums(cs)
	assert.Equal(t, []float64{1, 3, 6}, cs.Data())
}

func randomSparse(rows, cols int, density float64, rng *rand.Rand) *sparse.CSR[float64] {
	a, err := sparse.RandomSupport[float64](rows, cols, density, rng)
	if err != nil {
		panic(err)
	}
	for i := range a.Values() {
		a.Values()[i] = rng.Float64()*2 - 1
	}
	return a
}

func assertClose(t *testing.T, expected, actual *tensor.Matrix[float64]) {
	t.Helper()
	require.True(t, expected.SameShape(actual), "shape %v vs %v", expected.Shape(), actual.Shape())
	assert.LessOrEqual(t, tensor.SquaredDistance(expected, actual), 1e-20)
}

func TestProduct_MatchesDense(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := randomSparse(7, 5, 0.4, rng)
	ad := a.ToDense()

	for _, transA := range []bool{false, true} {
		for _, transB := range []bool{false, true} {
			inner := 5
			if transA {
				inner = 7
			}
			var b *tensor.Matrix[float64]
			if transB {
				b = tensor.RandomMatrix[float64](3, inner, -1, 1, rng)
			} else {
				b = tensor.RandomMatrix[float64](inner, 3, -1, 1, rng)
			}

			expected := tensor.Mul(ad, b, transA, transB)
			actual := tensor.NewMatrix[float64](expected.Rows(), expected.Cols())
			sparse.Product(actual, a, b, transA, transB)
			assertClose(t, expected, actual)
		}
	}
}

func TestProductRight_MatchesDense(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := randomSparse(6, 4, 0.5, rng)
	ad := a.ToDense()

	for _, transB := range []bool{false, true} {
		for _, transA := range []bool{false, true} {
			inner := 6
			if transA {
				inner = 4
			}
			var b *tensor.Matrix[float64]
			if transB {
				b = tensor.RandomMatrix[float64](inner, 5, -1, 1, rng)
			} else {
				b = tensor.RandomMatrix[float64](5, inner, -1, 1, rng)
			}

			expected := tensor.Mul(b, ad, transB, transA)
			actual := tensor.NewMatrix[float64](expected.Rows(), expected.Cols())
			sparse.ProductRight(actual, b, a, transB, transA)
			assertClose(t, expected, actual)
		}
	}
}

func TestProductRight_Parallel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := randomSparse(40, 30, 0.3, rng)
	x := tensor.RandomMatrix[float64](200, 30, -1, 1, rng)

	seq := tensor.NewMatrix[float64](200, 40)
	a.SetParallel(parallel.Sequential())
	sparse.ProductRight(seq, x, a, false, true)

	par := tensor.NewMatrix[float64](200, 40)
	a.SetParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8})
	sparse.ProductRight(par, x, a, false, true)

	assert.True(t, seq.Equal(par), "parallel execution must not change the result")
}

func TestSampledProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	w := randomSparse(4, 6, 0.5, rng)
	dy := tensor.RandomMatrix[float64](5, 4, -1, 1, rng)
	x := tensor.RandomMatrix[float64](5, 6, -1, 1, rng)

	dw := w.ZeroClone()
	sparse.SampledProduct(dw, dy, x, true, false)
	require.True(t, dw.SameSupport(w))

	full := tensor.Mul(dy, x, true, false)
	for r := 0; r < 4; r++ {
		for c := 0; c < 6; c++ {
			if w.Has(r, c) {
				assert.InDelta(t, full.At(r, c), dw.At(r, c), 1e-12)
			} else {
				assert.Equal(t, 0.0, dw.At(r, c))
			}
		}
	}
}

func TestRandomSupport(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a, err := sparse.RandomSupport[float32](10, 20, 0.25, rng)
	require.NoError(t, err)
	require.NoError(t, a.Validate())
	assert.Equal(t, 50, a.NNZ())

	_, err = sparse.RandomSupport[float32](2, 2, 1.5, rng)
	assert.Error(t, err)
}

func TestCompact(t *testing.T) {
	nan := math.NaN()
	a := sparse.FromDense(tensor.MustFromRows([][]float64{{1, 2, 3}, {4, 5, 6}}), nil)
	a.Values()[1] = nan
	a.Values()[3] = nan
	a.Values()[5] = nan

	removed := a.Compact(math.IsNaN)
	assert.Equal(t, 3, removed)
	require.NoError(t, a.Validate())
	assert.Equal(t, []int{0, 2, 3}, a.Offsets())
	assert.Equal(t, []int{0, 2, 1}, a.Columns())
	assert.Equal(t, []float64{1, 3, 5}, a.Values())
}

func TestGrow(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a, err := sparse.RandomSupport[float64](8, 8, 0.25, rng)
	require.NoError(t, err)
	for i := range a.Values() {
		a.Values()[i] = float64(i + 1)
	}
	before := a.Clone()

	require.NoError(t, a.Grow(10, rng, func() float64 { return -1 }))
	require.NoError(t, a.Validate())
	assert.Equal(t, before.NNZ()+10, a.NNZ())

	grown := 0
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if before.Has(r, c) {
				assert.Equal(t, before.At(r, c), a.At(r, c), "existing entries keep their values")
			} else if a.Has(r, c) {
				assert.Equal(t, -1.0, a.At(r, c))
				grown++
			}
		}
	}
	assert.Equal(t, 10, grown)

	// Dense regime: fill the remaining positions.
	require.NoError(t, a.Grow(64-a.NNZ(), rng, func() float64 { return 0 }))
	assert.Equal(t, 64, a.NNZ())
	err = a.Grow(1, rng, func() float64 { return 0 })
	assert.ErrorIs(t, err, sparse.ErrSupportFull)
}

func TestSameSupport(t *testing.T) {
	a, err := sparse.New(2, 3, []int{0, 1, 2}, []int{0, 2}, []float64{1, 2})
	require.NoError(t, err)

	assert.True(t, a.SameSupport(a.ZeroClone()))

	moved, err := sparse.New(2, 3, []int{0, 1, 2}, []int{1, 2}, []float64{1, 2})
	require.NoError(t, err)
	assert.False(t, a.SameSupport(moved))

	wider, err := sparse.New(2, 4, []int{0, 1, 2}, []int{0, 2}, []float64{1, 2})
	require.NoError(t, err)
	assert.False(t, a.SameSupport(wider))
}
