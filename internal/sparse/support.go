package sparse

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/born-ml/sparsenet/internal/parallel"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// ErrSupportFull is returned by Grow when there are not enough unstored positions.
var ErrSupportFull = errors.New("not enough free positions to grow")

// RandomSupport creates a rows x cols matrix storing round(density * rows * cols)
// positions chosen uniformly at random. All stored values are zero.
func RandomSupport[T tensor.Float](rows, cols int, density float64, rng *rand.Rand) (*CSR[T], error) {
	if density < 0 || density > 1 {
		return nil, fmt.Errorf("density %g outside [0, 1]", density)
	}
	total := rows * cols
	nnz := int(math.Round(density * float64(total)))
	positions := rng.Perm(total)[:nnz]
	sort.Ints(positions)
	return fromPositions[T](rows, cols, positions), nil
}

// fromPositions builds a zero-valued CSR matrix from sorted flat positions r*cols+c.
func fromPositions[T tensor.Float](rows, cols int, positions []int) *CSR[T] {
	a := &CSR[T]{
		rows:    rows,
		cols:    cols,
		offsets: make([]int, rows+1),
		columns: make([]int, len(positions)),
		values:  make([]T, len(positions)),
		par:     parallel.DefaultConfig(),
	}
	for k, p := range positions {
		a.offsets[p/cols+1]++
		a.columns[k] = p % cols
	}
	for r := 0; r < rows; r++ {
		a.offsets[r+1] += a.offsets[r]
	}
	return a
}

// Compact removes every stored entry whose value satisfies drop and returns the
// number of removed entries. It changes the support of the matrix.
func (a *CSR[T]) Compact(drop func(T) bool) int {
	w := 0
	start := 0
	for r := 0; r < a.rows; r++ {
		end := a.offsets[r+1]
		for k := start; k < end; k++ {
			if drop(a.values[k]) {
				continue
			}
			a.columns[w] = a.columns[k]
			a.values[w] = a.values[k]
			w++
		}
		start = end
		a.offsets[r+1] = w
	}
	removed := len(a.values) - w
	a.columns = a.columns[:w]
	a.values = a.values[:w]
	return removed
}

// Grow adds count new positions chosen uniformly among the unstored positions
// and initializes them with init. Existing entries keep their values.
func (a *CSR[T]) Grow(count int, rng *rand.Rand, init func() T) error {
	if count <= 0 {
		return nil
	}
	total := a.rows * a.cols
	free := total - a.NNZ()
	if count > free {
		return fmt.Errorf("%w: requested %d, available %d", ErrSupportFull, count, free)
	}

	stored := func(p int) bool { return a.find(p/a.cols, p%a.cols) >= 0 }

	var added []int
	if 2*count > free {
		// Dense regime: enumerate the complement and sample from it.
		candidates := make([]int, 0, free)
		for p := 0; p < total; p++ {
			if !stored(p) {
				candidates = append(candidates, p)
			}
		}
		rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
		added = candidates[:count]
	} else {
		seen := make(map[int]struct{}, count)
		for len(added) < count {
			p := rng.Intn(total)
			if _, dup := seen[p]; dup || stored(p) {
				continue
			}
			seen[p] = struct{}{}
			added = append(added, p)
		}
	}
	sort.Ints(added)

	nnz := a.NNZ() + count
	offsets := make([]int, a.rows+1)
	columns := make([]int, 0, nnz)
	values := make([]T, 0, nnz)
	next := 0
	for r := 0; r < a.rows; r++ {
		k := a.offsets[r]
		end := a.offsets[r+1]
		for k < end || (next < len(added) && added[next]/a.cols == r) {
			takeNew := next < len(added) && added[next]/a.cols == r &&
				(k == end || added[next]%a.cols < a.columns[k])
			if takeNew {
				columns = append(columns, added[next]%a.cols)
				values = append(values, init())
				next++
				continue
			}
			columns = append(columns, a.columns[k])
			values = append(values, a.values[k])
			k++
		}
		offsets[r+1] = len(columns)
	}
	a.offsets, a.columns, a.values = offsets, columns, values
	return nil
}
