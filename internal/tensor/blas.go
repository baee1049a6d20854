package tensor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// Level 1 and level 3 BLAS dispatch for the two scalar types.
// gonum provides blas32 for float32 and blas64 for float64; the generic
// wrappers below pick the right one with a type switch on the buffer.

func transposeFlag(trans bool) blas.Transpose {
	if trans {
		return blas.Trans
	}
	return blas.NoTrans
}

// gemm computes c = alpha * op(a) * op(b) + beta * c on row-major buffers.
// a is stored as ar x ac, b as br x bc, c as m x n.
func gemm[T Float](transA, transB bool, alpha T, a []T, ar, ac int, b []T, br, bc int, beta T, c []T, m, n int) {
	if m == 0 || n == 0 {
		return
	}
	k := ac
	if transA {
		k = ar
	}
	if k == 0 {
		scal(beta, c)
		return
	}
	switch cd := any(c).(type) {
	case []float32:
		blas32.Gemm(transposeFlag(transA), transposeFlag(transB), float32(alpha),
			blas32.General{Rows: ar, Cols: ac, Stride: max(ac, 1), Data: any(a).([]float32)},
			blas32.General{Rows: br, Cols: bc, Stride: max(bc, 1), Data: any(b).([]float32)},
			float32(beta),
			blas32.General{Rows: m, Cols: n, Stride: max(n, 1), Data: cd})
	case []float64:
		blas64.Gemm(transposeFlag(transA), transposeFlag(transB), float64(alpha),
			blas64.General{Rows: ar, Cols: ac, Stride: max(ac, 1), Data: any(a).([]float64)},
			blas64.General{Rows: br, Cols: bc, Stride: max(bc, 1), Data: any(b).([]float64)},
			float64(beta),
			blas64.General{Rows: m, Cols: n, Stride: max(n, 1), Data: cd})
	}
}

// Axpy computes y += alpha * x.
func Axpy[T Float](alpha T, x, y []T) {
	if len(x) != len(y) {
		panic("Axpy: length mismatch")
	}
	if len(x) == 0 {
		return
	}
	switch yd := any(y).(type) {
	case []float32:
		blas32.Axpy(float32(alpha), blas32.Vector{N: len(x), Data: any(x).([]float32), Inc: 1}, blas32.Vector{N: len(yd), Data: yd, Inc: 1})
	case []float64:
		blas64.Axpy(float64(alpha), blas64.Vector{N: len(x), Data: any(x).([]float64), Inc: 1}, blas64.Vector{N: len(yd), Data: yd, Inc: 1})
	}
}

// Dot returns the inner product of x and y.
func Dot[T Float](x, y []T) T {
	if len(x) != len(y) {
		panic("Dot: length mismatch")
	}
	if len(x) == 0 {
		return 0
	}
	switch yd := any(y).(type) {
	case []float32:
		return T(blas32.Dot(blas32.Vector{N: len(x), Data: any(x).([]float32), Inc: 1}, blas32.Vector{N: len(yd), Data: yd, Inc: 1}))
	case []float64:
		return T(blas64.Dot(blas64.Vector{N: len(x), Data: any(x).([]float64), Inc: 1}, blas64.Vector{N: len(yd), Data: yd, Inc: 1}))
	}
	return 0
}

func scal[T Float](alpha T, x []T) {
	if len(x) == 0 {
		return
	}
	if alpha == 0 {
		// A zero alpha clears the buffer, NaN included.
		clear(x)
		return
	}
	switch xd := any(x).(type) {
	case []float32:
		blas32.Scal(float32(alpha), blas32.Vector{N: len(xd), Data: xd, Inc: 1})
	case []float64:
		blas64.Scal(float64(alpha), blas64.Vector{N: len(xd), Data: xd, Inc: 1})
	}
}

// Scal computes x *= alpha.
func Scal[T Float](alpha T, x []T) {
	scal(alpha, x)
}
