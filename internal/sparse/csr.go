// Package sparse implements the compressed sparse row (CSR) matrix kernel.
//
// A CSR matrix stores, for every row r, the half-open range
// offsets[r]..offsets[r+1] into the parallel columns and values sequences.
// Column indices are strictly increasing within a row. The set of stored
// positions is the support of the matrix; a stored entry whose value is zero
// is still part of the support until it is removed by Compact.
//
// Products iterate every stored entry once per output row or column, so their
// cost is O(nnz * width) and never O(rows * cols).
package sparse

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/sparsenet/internal/parallel"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// ErrMalformed is returned for CSR structures that violate the storage invariants.
var ErrMalformed = errors.New("malformed CSR matrix")

// StructureError provides detailed information about a CSR validation failure.
type StructureError struct {
	Field   string // "offsets", "columns" or "values"
	Index   int    // Position in Field where the problem was found, -1 if not applicable
	Details string
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %s[%d]: %s", ErrMalformed, e.Field, e.Index, e.Details)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformed, e.Field, e.Details)
}

// Unwrap makes errors.Is(err, ErrMalformed) work.
func (e *StructureError) Unwrap() error {
	return ErrMalformed
}

// CSR is a sparse matrix in compressed sparse row format.
type CSR[T tensor.Float] struct {
	rows    int
	cols    int
	offsets []int
	columns []int
	values  []T
	par     parallel.Config
}

// New creates a CSR matrix from its three sequences after validating them.
// The matrix takes ownership of the slices.
func New[T tensor.Float](rows, cols int, offsets, columns []int, values []T) (*CSR[T], error) {
	a := &CSR[T]{
		rows:    rows,
		cols:    cols,
		offsets: offsets,
		columns: columns,
		values:  values,
		par:     parallel.DefaultConfig(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Empty creates a rows x cols CSR matrix without stored entries.
func Empty[T tensor.Float](rows, cols int) *CSR[T] {
	return &CSR[T]{
		rows:    rows,
		cols:    cols,
		offsets: make([]int, rows+1),
		par:     parallel.DefaultConfig(),
	}
}

// Validate checks the CSR storage invariants.
func (a *CSR[T]) Validate() error {
	if a.rows < 0 || a.cols < 0 {
		return &StructureError{Field: "shape", Index: -1, Details: fmt.Sprintf("negative dimensions (%d, %d)", a.rows, a.cols)}
	}
	if len(a.offsets) != a.rows+1 {
		return &StructureError{Field: "offsets", Index: -1, Details: fmt.Sprintf("length %d, expected rows+1 = %d", len(a.offsets), a.rows+1)}
	}
	if len(a.columns) != len(a.values) {
		return &StructureError{Field: "values", Index: -1, Details: fmt.Sprintf("length %d does not match %d column indices", len(a.values), len(a.columns))}
	}
	if a.offsets[0] != 0 {
		return &StructureError{Field: "offsets", Index: 0, Details: fmt.Sprintf("is %d, expected 0", a.offsets[0])}
	}
	if a.offsets[a.rows] != len(a.columns) {
		return &StructureError{Field: "offsets", Index: a.rows, Details: fmt.Sprintf("is %d, expected nnz = %d", a.offsets[a.rows], len(a.columns))}
	}
	nnz := len(a.columns)
	for r := 0; r < a.rows; r++ {
		if a.offsets[r+1] < a.offsets[r] {
			return &StructureError{Field: "offsets", Index: r + 1, Details: "offsets must be non-decreasing"}
		}
		if a.offsets[r+1] > nnz {
			return &StructureError{Field: "offsets", Index: r + 1, Details: fmt.Sprintf("is %d, exceeds nnz = %d", a.offsets[r+1], nnz)}
		}
	}
	for r := 0; r < a.rows; r++ {
		for k := a.offsets[r]; k < a.offsets[r+1]; k++ {
			c := a.columns[k]
			if c < 0 || c >= a.cols {
				return &StructureError{Field: "columns", Index: k, Details: fmt.Sprintf("column %d out of range [0, %d)", c, a.cols)}
			}
			if k > a.offsets[r] && c <= a.columns[k-1] {
				return &StructureError{Field: "columns", Index: k, Details: fmt.Sprintf("column %d not strictly increasing in row %d", c, r)}
			}
		}
	}
	return nil
}

// Rows returns the number of rows.
func (a *CSR[T]) Rows() int { return a.rows }

// Cols returns the number of columns.
func (a *CSR[T]) Cols() int { return a.cols }

// Shape returns the matrix shape.
func (a *CSR[T]) Shape() tensor.Shape { return tensor.Shape{a.rows, a.cols} }

// NNZ returns the number of stored entries.
func (a *CSR[T]) NNZ() int { return len(a.values) }

// Density returns the fraction of stored positions.
func (a *CSR[T]) Density() float64 {
	if a.rows == 0 || a.cols == 0 {
		return 0
	}
	return float64(len(a.values)) / float64(a.rows*a.cols)
}

// Offsets returns the row offsets (read-only view).
func (a *CSR[T]) Offsets() []int { return a.offsets }

// Columns returns the column indices (read-only view).
func (a *CSR[T]) Columns() []int { return a.columns }

// Values returns the stored values.
// The slice is the backing buffer; writing to it changes the matrix.
func (a *CSR[T]) Values() []T { return a.values }

// SetParallel sets the parallel execution policy of the product kernels.
func (a *CSR[T]) SetParallel(cfg parallel.Config) { a.par = cfg }

// Clone creates a deep copy of the matrix, support included.
func (a *CSR[T]) Clone() *CSR[T] {
	return &CSR[T]{
		rows:    a.rows,
		cols:    a.cols,
		offsets: append([]int(nil), a.offsets...),
		columns: append([]int(nil), a.columns...),
		values:  append([]T(nil), a.values...),
		par:     a.par,
	}
}

// ZeroClone returns a matrix with the same support and all values zero.
// It is used to allocate gradients that share the support of the weights.
func (a *CSR[T]) ZeroClone() *CSR[T] {
	c := a.Clone()
	clear(c.values)
	return c
}

// SameSupport reports whether a and b store exactly the same positions.
func (a *CSR[T]) SameSupport(b *CSR[T]) bool {
	if !a.Shape().Equal(b.Shape()) || len(a.columns) != len(b.columns) {
		return false
	}
	for i, v := range a.offsets {
		if b.offsets[i] != v {
			return false
		}
	}
	for i, c := range a.columns {
		if b.columns[i] != c {
			return false
		}
	}
	return true
}

// find returns the storage index of (i, j) or -1.
func (a *CSR[T]) find(i, j int) int {
	lo, hi := a.offsets[i], a.offsets[i+1]
	k := lo + sort.SearchInts(a.columns[lo:hi], j)
	if k < hi && a.columns[k] == j {
		return k
	}
	return -1
}

// At returns the value at (i, j), zero for positions outside the support.
func (a *CSR[T]) At(i, j int) T {
	if i < 0 || i >= a.rows || j < 0 || j >= a.cols {
		panic(fmt.Sprintf("index (%d, %d) out of bounds for shape %v", i, j, a.Shape()))
	}
	if k := a.find(i, j); k >= 0 {
		return a.values[k]
	}
	return 0
}

// Has reports whether (i, j) belongs to the support.
func (a *CSR[T]) Has(i, j int) bool {
	return a.find(i, j) >= 0
}

// ScaleValues multiplies every stored value by factor.
func (a *CSR[T]) ScaleValues(factor T) {
	tensor.Scal(factor, a.values)
}

// Assign overwrites every stored value x with accept(x) by value and returns the count.
func (a *CSR[T]) Assign(accept func(T) bool, value T) int {
	n := 0
	for i, x := range a.values {
		if accept(x) {
			a.values[i] = value
			n++
		}
	}
	return n
}

// RowSums writes the sum of the stored values of every row into the rows x 1 matrix dst.
func (a *CSR[T]) RowSums(dst *tensor.Matrix[T]) {
	if dst.Rows() != a.rows || dst.Cols() != 1 {
		panic(fmt.Sprintf("RowSums: expected (%d, 1), got %v", a.rows, dst.Shape()))
	}
	d := dst.Data()
	for r := 0; r < a.rows; r++ {
		var sum T
		for k := a.offsets[r]; k < a.offsets[r+1]; k++ {
			sum += a.values[k]
		}
		d[r] = sum
	}
}

// ColSums writes the sum of the stored values of every column into the 1 x cols matrix dst.
func (a *CSR[T]) ColSums(dst *tensor.Matrix[T]) {
	if dst.Rows() != 1 || dst.Cols() != a.cols {
		panic(fmt.Sprintf("ColSums: expected (1, %d), got %v", a.cols, dst.Shape()))
	}
	dst.Zero()
	d := dst.Data()
	for k, c := range a.columns {
		d[c] += a.values[k]
	}
}

// String returns a short description followed by the dense representation.
func (a *CSR[T]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CSR%v nnz=%d density=%.4f\n", a.Shape(), a.NNZ(), a.Density())
	sb.WriteString(a.ToDense().String())
	return sb.String()
}
