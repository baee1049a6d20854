// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public matrix types of the sparsenet framework.
//
// The package exposes two storage kernels behind one scalar type parameter:
//   - Matrix[T]: dense row-major matrix with BLAS backed products
//   - CSR[T]: compressed sparse row matrix whose products only visit stored entries
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	W, _ := tensor.RandomSupport[float32](128, 784, 0.05, rng)
//	X := tensor.RandomMatrix[float32](100, 784, -1, 1, rng)
//	Z := tensor.NewMatrix[float32](100, 128)
//	tensor.ProductRight(Z, X, W, false, true) // Z = X * W^T
package tensor

import (
	"math/rand"

	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// Float is the constraint for the supported scalar types, float32 and float64.
type Float = tensor.Float

// DataType represents runtime type information for matrices.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int64   DataType = tensor.Int64
)

// Shape holds the number of rows and columns of a matrix.
type Shape = tensor.Shape

// Matrix is a dense row-major matrix.
type Matrix[T Float] = tensor.Matrix[T]

// CSR is a sparse matrix in compressed sparse row format.
type CSR[T Float] = sparse.CSR[T]

// ErrMalformed is returned for CSR structures that violate the storage invariants.
var ErrMalformed = sparse.ErrMalformed

// NewMatrix allocates a zero rows x cols matrix.
func NewMatrix[T Float](rows, cols int) *Matrix[T] {
	return tensor.NewMatrix[T](rows, cols)
}

// FromSlice creates a matrix from a copy of row-major data.
func FromSlice[T Float](data []T, rows, cols int) (*Matrix[T], error) {
	return tensor.FromSlice(data, rows, cols)
}

// FromRows creates a matrix from equally sized rows.
func FromRows[T Float](rows [][]T) (*Matrix[T], error) {
	return tensor.FromRows(rows)
}

// RandomMatrix fills a new matrix with values drawn from U(low, high).
func RandomMatrix[T Float](rows, cols int, low, high T, rng *rand.Rand) *Matrix[T] {
	return tensor.RandomMatrix(rows, cols, low, high, rng)
}

// Product computes dst = op(a) * op(b).
func Product[T Float](dst, a, b *Matrix[T], transA, transB bool) {
	tensor.Product(dst, a, b, transA, transB)
}

// NewCSR creates a CSR matrix from validated offsets, columns and values.
func NewCSR[T Float](rows, cols int, offsets, columns []int, values []T) (*CSR[T], error) {
	return sparse.New(rows, cols, offsets, columns, values)
}

// ToCSR converts a dense matrix, keeping its nonzero entries.
func ToCSR[T Float](m *Matrix[T]) *CSR[T] {
	return sparse.FromDense(m, sparse.Nonzero[T])
}

// RandomSupport creates a CSR matrix with round(density*rows*cols) zero
// entries at uniformly chosen positions.
func RandomSupport[T Float](rows, cols int, density float64, rng *rand.Rand) (*CSR[T], error) {
	return sparse.RandomSupport[T](rows, cols, density, rng)
}

// ProductRight computes dst = op(b) * op(a) for a dense b and a sparse a.
func ProductRight[T Float](dst, b *Matrix[T], a *CSR[T], transB, transA bool) {
	sparse.ProductRight(dst, b, a, transB, transA)
}

// SampledProduct computes op(a) * op(b) at the stored positions of dst only.
func SampledProduct[T Float](dst *CSR[T], a, b *Matrix[T], transA, transB bool) {
	sparse.SampledProduct(dst, a, b, transA, transB)
}
