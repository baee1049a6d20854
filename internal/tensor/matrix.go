package tensor

import (
	"fmt"
	"math"
	"strings"
)

// Matrix is a dense two-dimensional matrix stored in a contiguous row-major buffer.
//
// A Matrix is mutable in place and owned by exactly one structure: a layer's
// weights, biases and gradients, or a batch buffer of the training loop.
//
// Example:
//
//	X := tensor.NewMatrix[float32](5, 4)  // batch of 5 examples with 4 features
//	W := tensor.NewMatrix[float32](2, 4)  // layer with 4 inputs and 2 outputs
//	Y := tensor.NewMatrix[float32](5, 2)
//	tensor.Product(Y, X, W, false, true)  // Y = X * W^T
type Matrix[T Float] struct {
	rows int
	cols int
	data []T
}

// NewMatrix creates a zero-filled rows x cols matrix.
func NewMatrix[T Float](rows, cols int) *Matrix[T] {
	if err := (Shape{rows, cols}).Validate(); err != nil {
		panic(fmt.Sprintf("NewMatrix: %v", err))
	}
	return &Matrix[T]{rows: rows, cols: cols, data: make([]T, rows*cols)}
}

// FromSlice creates a matrix from row-major data.
// The slice is copied into the matrix.
func FromSlice[T Float](data []T, rows, cols int) (*Matrix[T], error) {
	shape := Shape{rows, cols}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if n := shape.NumElements(); len(data) != n {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, n, len(data))
	}
	m := NewMatrix[T](rows, cols)
	copy(m.data, data)
	return m, nil
}

// FromRows creates a matrix from a slice of equally sized rows.
func FromRows[T Float](rows [][]T) (*Matrix[T], error) {
	if len(rows) == 0 {
		return NewMatrix[T](0, 0), nil
	}
	cols := len(rows[0])
	m := NewMatrix[T](len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d elements, expected %d", i, len(row), cols)
		}
		copy(m.data[i*cols:(i+1)*cols], row)
	}
	return m, nil
}

// MustFromRows is like FromRows but panics on ragged input.
func MustFromRows[T Float](rows [][]T) *Matrix[T] {
	m, err := FromRows(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Full creates a rows x cols matrix with every element set to value.
func Full[T Float](rows, cols int, value T) *Matrix[T] {
	m := NewMatrix[T](rows, cols)
	m.Fill(value)
	return m
}

// Rows returns the number of rows.
func (m *Matrix[T]) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix[T]) Cols() int { return m.cols }

// Shape returns the matrix shape.
func (m *Matrix[T]) Shape() Shape { return Shape{m.rows, m.cols} }

// Len returns the number of elements.
func (m *Matrix[T]) Len() int { return len(m.data) }

// Data returns the row-major backing buffer (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the matrix.
func (m *Matrix[T]) Data() []T { return m.data }

// Row returns a view of row i.
func (m *Matrix[T]) Row(i int) []T {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// At returns the element at (i, j).
// Panics if indices are out of bounds.
func (m *Matrix[T]) At(i, j int) T {
	m.checkIndex(i, j)
	return m.data[i*m.cols+j]
}

// Set sets the element at (i, j).
func (m *Matrix[T]) Set(i, j int, value T) {
	m.checkIndex(i, j)
	m.data[i*m.cols+j] = value
}

func (m *Matrix[T]) checkIndex(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("index (%d, %d) out of bounds for shape %v", i, j, m.Shape()))
	}
}

// SameShape reports whether m and other have identical dimensions.
func (m *Matrix[T]) SameShape(other *Matrix[T]) bool {
	return m.rows == other.rows && m.cols == other.cols
}

// Clone creates a deep copy of the matrix.
func (m *Matrix[T]) Clone() *Matrix[T] {
	c := &Matrix[T]{rows: m.rows, cols: m.cols, data: make([]T, len(m.data))}
	copy(c.data, m.data)
	return c
}

// CopyFrom overwrites m with the contents of src.
// Panics if the shapes differ.
func (m *Matrix[T]) CopyFrom(src *Matrix[T]) {
	mustSameShape("CopyFrom", m, src)
	copy(m.data, src.data)
}

// Resize changes the dimensions of m, reusing the buffer when it is large enough.
// The contents are unspecified afterwards.
func (m *Matrix[T]) Resize(rows, cols int) {
	n := rows * cols
	if cap(m.data) < n {
		m.data = make([]T, n)
	}
	m.data = m.data[:n]
	m.rows, m.cols = rows, cols
}

// Fill sets every element to value.
func (m *Matrix[T]) Fill(value T) {
	for i := range m.data {
		m.data[i] = value
	}
}

// Zero sets every element to zero.
func (m *Matrix[T]) Zero() {
	clear(m.data)
}

// Transpose returns a new matrix holding m^T.
func (m *Matrix[T]) Transpose() *Matrix[T] {
	t := NewMatrix[T](m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			t.data[j*m.rows+i] = m.data[i*m.cols+j]
		}
	}
	return t
}

// Equal reports whether m and other have the same shape and identical elements.
func (m *Matrix[T]) Equal(other *Matrix[T]) bool {
	if !m.SameShape(other) {
		return false
	}
	for i, v := range m.data {
		if v != other.data[i] {
			return false
		}
	}
	return true
}

// HasNaN reports whether m contains NaN or infinite values.
func (m *Matrix[T]) HasNaN() bool {
	for _, v := range m.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// String returns a numpy-like representation of the matrix.
func (m *Matrix[T]) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			sb.WriteString(",\n ")
		}
		sb.WriteString("[")
		for j, v := range m.Row(i) {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%.8f", float64(v))
		}
		sb.WriteString("]")
	}
	sb.WriteString("]")
	return sb.String()
}

// Format prints the matrix with a name, in the style of numpy.
func Format[T Float](name string, m *Matrix[T]) string {
	return fmt.Sprintf("%s %v =\n%s", name, m.Shape(), m.String())
}

func mustSameShape[T Float](op string, a, b *Matrix[T]) {
	if !a.SameShape(b) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", op, a.Shape(), b.Shape()))
	}
}
