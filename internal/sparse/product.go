package sparse

import (
	"fmt"

	"github.com/born-ml/sparsenet/internal/parallel"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// opShape returns the shape of op(m).
func opShape[T tensor.Float](m *tensor.Matrix[T], trans bool) (int, int) {
	if trans {
		return m.Cols(), m.Rows()
	}
	return m.Rows(), m.Cols()
}

func checkDst[T tensor.Float](op string, dst *tensor.Matrix[T], rows, cols int) {
	if dst.Rows() != rows || dst.Cols() != cols {
		panic(fmt.Sprintf("%s: destination has shape %v, expected (%d, %d)", op, dst.Shape(), rows, cols))
	}
}

// Product computes dst = op(A) * op(B) for a sparse A and a dense B.
//
// Without transA every output row is computed from one row of A, and rows are
// processed in parallel. With transA the stored entries are scattered into the
// output sequentially in storage order.
func Product[T tensor.Float](dst *tensor.Matrix[T], a *CSR[T], b *tensor.Matrix[T], transA, transB bool) {
	ar, ac := a.rows, a.cols
	if transA {
		ar, ac = ac, ar
	}
	br, bc := opShape(b, transB)
	if ac != br {
		panic(fmt.Sprintf("sparse.Product: shape mismatch %v (trans=%v) * %v (trans=%v)", a.Shape(), transA, b.Shape(), transB))
	}
	checkDst("sparse.Product", dst, ar, bc)

	bd, bcols := b.Data(), b.Cols()
	out, n := dst.Data(), bc

	if !transA {
		parallel.For(a.rows, func(r int) {
			row := out[r*n : (r+1)*n]
			clear(row)
			for k := a.offsets[r]; k < a.offsets[r+1]; k++ {
				c, v := a.columns[k], a.values[k]
				if transB {
					// op(B)[c, j] = B[j, c]
					for j := range row {
						row[j] += v * bd[j*bcols+c]
					}
				} else {
					brow := bd[c*bcols : (c+1)*bcols]
					for j, x := range brow {
						row[j] += v * x
					}
				}
			}
		}, a.par)
		return
	}

	// op(A)[c, r] = A[r, c]: entry (r, c) contributes v * op(B)[r, :] to output row c.
	dst.Zero()
	for r := 0; r < a.rows; r++ {
		for k := a.offsets[r]; k < a.offsets[r+1]; k++ {
			c, v := a.columns[k], a.values[k]
			row := out[c*n : (c+1)*n]
			if transB {
				for j := range row {
					row[j] += v * bd[j*bcols+r]
				}
			} else {
				brow := bd[r*bcols : (r+1)*bcols]
				for j, x := range brow {
					row[j] += v * x
				}
			}
		}
	}
}

// ProductRight computes dst = op(B) * op(A) for a dense B and a sparse A.
//
// Every output row depends on one row of op(B) only, so rows are processed in
// parallel and each is accumulated in storage order.
//
// Example:
//
//	sparse.ProductRight(Y, X, W, false, true)   // Y = X * W^T (layer feedforward)
//	sparse.ProductRight(DX, DY, W, false, false) // DX = DY * W (input gradient)
func ProductRight[T tensor.Float](dst, b *tensor.Matrix[T], a *CSR[T], transB, transA bool) {
	br, bc := opShape(b, transB)
	ar, ac := a.rows, a.cols
	if transA {
		ar, ac = ac, ar
	}
	if bc != ar {
		panic(fmt.Sprintf("sparse.ProductRight: shape mismatch %v (trans=%v) * %v (trans=%v)", b.Shape(), transB, a.Shape(), transA))
	}
	checkDst("sparse.ProductRight", dst, br, ac)

	bd, bcols := b.Data(), b.Cols()
	out, n := dst.Data(), ac

	// opB returns op(B)[i, t].
	opB := func(i, t int) T {
		if transB {
			return bd[t*bcols+i]
		}
		return bd[i*bcols+t]
	}

	parallel.For(br, func(i int) {
		row := out[i*n : (i+1)*n]
		if transA {
			// op(A)[c, r] = A[r, c]; output column r gathers row r of A.
			for r := 0; r < a.rows; r++ {
				var sum T
				for k := a.offsets[r]; k < a.offsets[r+1]; k++ {
					sum += opB(i, a.columns[k]) * a.values[k]
				}
				row[r] = sum
			}
			return
		}
		clear(row)
		for r := 0; r < a.rows; r++ {
			x := opB(i, r)
			for k := a.offsets[r]; k < a.offsets[r+1]; k++ {
				row[a.columns[k]] += x * a.values[k]
			}
		}
	}, a.par)
}

// SampledProduct overwrites the stored values of dst with the matching entries
// of op(A) * op(B): for every stored (r, c), dst[r, c] = sum_t op(A)[r, t] * op(B)[t, c].
// Positions outside the support of dst are never computed.
//
// Example:
//
//	sparse.SampledProduct(DW, DY, X, true, false) // DW = DY^T * X restricted to the support of W
func SampledProduct[T tensor.Float](dst *CSR[T], a, b *tensor.Matrix[T], transA, transB bool) {
	ar, ac := opShape(a, transA)
	br, bc := opShape(b, transB)
	if ac != br {
		panic(fmt.Sprintf("sparse.SampledProduct: shape mismatch %v (trans=%v) * %v (trans=%v)", a.Shape(), transA, b.Shape(), transB))
	}
	if dst.rows != ar || dst.cols != bc {
		panic(fmt.Sprintf("sparse.SampledProduct: destination has shape %v, expected (%d, %d)", dst.Shape(), ar, bc))
	}

	ad, acols := a.Data(), a.Cols()
	bd, bcols := b.Data(), b.Cols()
	inner := ac

	parallel.For(dst.rows, func(r int) {
		for k := dst.offsets[r]; k < dst.offsets[r+1]; k++ {
			c := dst.columns[k]
			var sum T
			for t := 0; t < inner; t++ {
				var x, y T
				if transA {
					x = ad[t*acols+r]
				} else {
					x = ad[r*acols+t]
				}
				if transB {
					y = bd[c*bcols+t]
				} else {
					y = bd[t*bcols+c]
				}
				sum += x * y
			}
			dst.values[k] = sum
		}
	}, dst.par)
}
