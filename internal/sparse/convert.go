package sparse

import (
	"fmt"

	"github.com/born-ml/sparsenet/internal/parallel"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Nonzero is the default acceptance predicate for conversions: x != 0.
func Nonzero[T tensor.Float](x T) bool {
	return x != 0
}

// FromDense converts a dense matrix into CSR form, storing only the entries
// for which accept returns true. A nil accept keeps the nonzero entries.
func FromDense[T tensor.Float](m *tensor.Matrix[T], accept func(T) bool) *CSR[T] {
	if accept == nil {
		accept = Nonzero[T]
	}
	rows, cols := m.Rows(), m.Cols()
	a := &CSR[T]{
		rows:    rows,
		cols:    cols,
		offsets: make([]int, rows+1),
		par:     parallel.DefaultConfig(),
	}
	for i := 0; i < rows; i++ {
		for j, v := range m.Row(i) {
			if accept(v) {
				a.columns = append(a.columns, j)
				a.values = append(a.values, v)
			}
		}
		a.offsets[i+1] = len(a.columns)
	}
	return a
}

// FromDenseAll converts a dense matrix into a CSR matrix whose support is every position.
func FromDenseAll[T tensor.Float](m *tensor.Matrix[T]) *CSR[T] {
	return FromDense(m, func(T) bool { return true })
}

// ToDense converts a into a dense matrix; unstored positions become zero.
func (a *CSR[T]) ToDense() *tensor.Matrix[T] {
	m := tensor.NewMatrix[T](a.rows, a.cols)
	a.ToDenseInto(m)
	return m
}

// ToDenseInto writes the dense representation of a into m.
func (a *CSR[T]) ToDenseInto(m *tensor.Matrix[T]) {
	if m.Rows() != a.rows || m.Cols() != a.cols {
		panic(fmt.Sprintf("ToDenseInto: destination %v, expected %v", m.Shape(), a.Shape()))
	}
	m.Zero()
	for r := 0; r < a.rows; r++ {
		row := m.Row(r)
		for k := a.offsets[r]; k < a.offsets[r+1]; k++ {
			row[a.columns[k]] = a.values[k]
		}
	}
}

// SetValuesFromDense copies m[r, c] into every stored position (r, c).
// Entries of m outside the support are ignored.
func (a *CSR[T]) SetValuesFromDense(m *tensor.Matrix[T]) {
	if m.Rows() != a.rows || m.Cols() != a.cols {
		panic(fmt.Sprintf("SetValuesFromDense: source %v, expected %v", m.Shape(), a.Shape()))
	}
	for r := 0; r < a.rows; r++ {
		row := m.Row(r)
		for k := a.offsets[r]; k < a.offsets[r+1]; k++ {
			a.values[k] = row[a.columns[k]]
		}
	}
}
