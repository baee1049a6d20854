package tensor

import (
	"fmt"
	"math"
)

// Product computes dst = op(a) * op(b), where op transposes its argument
// when the corresponding flag is set. dst must already have the result shape.
//
// Example:
//
//	tensor.Product(Y, X, W, false, true)   // Y = X * W^T
//	tensor.Product(DW, DY, X, true, false) // DW = DY^T * X
func Product[T Float](dst, a, b *Matrix[T], transA, transB bool) {
	m, k := a.rows, a.cols
	if transA {
		m, k = k, m
	}
	kb, n := b.rows, b.cols
	if transB {
		kb, n = n, kb
	}
	if k != kb {
		panic(fmt.Sprintf("Product: shape mismatch %v (trans=%v) * %v (trans=%v)", a.Shape(), transA, b.Shape(), transB))
	}
	if dst.rows != m || dst.cols != n {
		panic(fmt.Sprintf("Product: destination has shape %v, expected (%d, %d)", dst.Shape(), m, n))
	}
	gemm(transA, transB, 1, a.data, a.rows, a.cols, b.data, b.rows, b.cols, 0, dst.data, m, n)
}

// Mul returns op(a) * op(b) as a new matrix.
func Mul[T Float](a, b *Matrix[T], transA, transB bool) *Matrix[T] {
	m := a.rows
	if transA {
		m = a.cols
	}
	n := b.cols
	if transB {
		n = b.rows
	}
	dst := NewMatrix[T](m, n)
	Product(dst, a, b, transA, transB)
	return dst
}

// Hadamard computes the element-wise product dst = a ⊙ b.
// dst may alias a or b.
func Hadamard[T Float](dst, a, b *Matrix[T]) {
	mustSameShape("Hadamard", a, b)
	mustSameShape("Hadamard", dst, a)
	for i := range dst.data {
		dst.data[i] = a.data[i] * b.data[i]
	}
}

// Add computes m += other.
func (m *Matrix[T]) Add(other *Matrix[T]) {
	mustSameShape("Add", m, other)
	Axpy(1, other.data, m.data)
}

// Sub computes m -= other.
func (m *Matrix[T]) Sub(other *Matrix[T]) {
	mustSameShape("Sub", m, other)
	Axpy(-1, other.data, m.data)
}

// AddScaled computes m += alpha * other.
func (m *Matrix[T]) AddScaled(alpha T, other *Matrix[T]) {
	mustSameShape("AddScaled", m, other)
	Axpy(alpha, other.data, m.data)
}

// Scale computes m *= alpha.
func (m *Matrix[T]) Scale(alpha T) {
	Scal(alpha, m.data)
}

// Apply replaces every element x by f(x).
func (m *Matrix[T]) Apply(f func(T) T) {
	for i, v := range m.data {
		m.data[i] = f(v)
	}
}

// AddRowVector adds the 1 x cols vector b to every row of m.
func (m *Matrix[T]) AddRowVector(b *Matrix[T]) {
	if b.rows != 1 || b.cols != m.cols {
		panic(fmt.Sprintf("AddRowVector: expected (1, %d), got %v", m.cols, b.Shape()))
	}
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		for j, v := range b.data {
			row[j] += v
		}
	}
}

// ColSums writes the sum of every column of m into the 1 x cols matrix dst.
func ColSums[T Float](dst, m *Matrix[T]) {
	if dst.rows != 1 || dst.cols != m.cols {
		panic(fmt.Sprintf("ColSums: expected (1, %d), got %v", m.cols, dst.Shape()))
	}
	dst.Zero()
	for i := 0; i < m.rows; i++ {
		for j, v := range m.Row(i) {
			dst.data[j] += v
		}
	}
}

// RowSums writes the sum of every row of m into the rows x 1 matrix dst.
func RowSums[T Float](dst, m *Matrix[T]) {
	if dst.cols != 1 || dst.rows != m.rows {
		panic(fmt.Sprintf("RowSums: expected (%d, 1), got %v", m.rows, dst.Shape()))
	}
	for i := 0; i < m.rows; i++ {
		var sum T
		for _, v := range m.Row(i) {
			sum += v
		}
		dst.data[i] = sum
	}
}

// RowMax writes the maximum of every row of m into the rows x 1 matrix dst.
func RowMax[T Float](dst, m *Matrix[T]) {
	if dst.cols != 1 || dst.rows != m.rows {
		panic(fmt.Sprintf("RowMax: expected (%d, 1), got %v", m.rows, dst.Shape()))
	}
	for i := 0; i < m.rows; i++ {
		best := T(math.Inf(-1))
		for _, v := range m.Row(i) {
			best = max(best, v)
		}
		dst.data[i] = best
	}
}

// RowRepeat returns the n x cols matrix whose rows all equal the 1 x cols matrix m.
func RowRepeat[T Float](m *Matrix[T], n int) *Matrix[T] {
	if m.rows != 1 {
		panic(fmt.Sprintf("RowRepeat: expected a row vector, got %v", m.Shape()))
	}
	r := NewMatrix[T](n, m.cols)
	for i := 0; i < n; i++ {
		copy(r.Row(i), m.data)
	}
	return r
}

// ColRepeat returns the rows x n matrix whose columns all equal the rows x 1 matrix m.
func ColRepeat[T Float](m *Matrix[T], n int) *Matrix[T] {
	if m.cols != 1 {
		panic(fmt.Sprintf("ColRepeat: expected a column vector, got %v", m.Shape()))
	}
	r := NewMatrix[T](m.rows, n)
	for i := 0; i < m.rows; i++ {
		row := r.Row(i)
		for j := range row {
			row[j] = m.data[i]
		}
	}
	return r
}

// SelectRows copies the rows of src listed in idx into dst.
// dst must have len(idx) rows and the same number of columns as src.
func SelectRows[T Float](dst, src *Matrix[T], idx []int) {
	if dst.rows != len(idx) || dst.cols != src.cols {
		panic(fmt.Sprintf("SelectRows: destination %v cannot hold %d rows of %v", dst.Shape(), len(idx), src.Shape()))
	}
	for i, r := range idx {
		copy(dst.Row(i), src.Row(r))
	}
}

// Sum returns the sum of all elements.
func (m *Matrix[T]) Sum() T {
	var sum T
	for _, v := range m.data {
		sum += v
	}
	return sum
}

// SquaredNorm returns the sum of the squares of all elements.
func (m *Matrix[T]) SquaredNorm() T {
	return Dot(m.data, m.data)
}

// SquaredDistance returns the squared Frobenius norm of a - b.
func SquaredDistance[T Float](a, b *Matrix[T]) T {
	mustSameShape("SquaredDistance", a, b)
	var sum T
	for i, v := range a.data {
		d := v - b.data[i]
		sum += d * d
	}
	return sum
}

// Clip sets elements x with 0 < |x| < epsilon to zero and returns how many were changed.
func (m *Matrix[T]) Clip(epsilon T) int {
	return ClipValues(m.data, epsilon)
}

// ClipValues sets elements x with 0 < |x| < epsilon to zero and returns how many were changed.
// It operates on any scalar buffer, dense data or sparse values alike.
func ClipValues[T Float](values []T, epsilon T) int {
	n := 0
	for i, v := range values {
		if v != 0 && v < epsilon && v > -epsilon {
			values[i] = 0
			n++
		}
	}
	return n
}
