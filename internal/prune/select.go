// Package prune implements magnitude-based pruning of parameter buffers.
//
// All functions operate on a flat []T, which is either the row-major buffer of
// a dense matrix or the values of a CSR matrix, so dense and sparse weights are
// pruned by the same code.
package prune

import (
	"fmt"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// Accept decides which elements take part in a selection or pruning step.
type Accept[T tensor.Float] func(x T) bool

// Nonzero accepts every element that is not zero. NaN is accepted.
func Nonzero[T tensor.Float](x T) bool { return x != 0 }

// Positive accepts strictly positive elements.
func Positive[T tensor.Float](x T) bool { return x > 0 }

// Negative accepts strictly negative elements.
func Negative[T tensor.Float](x T) bool { return x < 0 }

// All accepts every element.
func All[T tensor.Float](T) bool { return true }

// LessMagnitude orders elements by absolute value.
func LessMagnitude[T tensor.Float](a, b T) bool { return abs(a) < abs(b) }

func abs[T tensor.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// Count returns the number of accepted elements.
func Count[T tensor.Float](values []T, accept Accept[T]) int {
	n := 0
	for _, x := range values {
		if accept(x) {
			n++
		}
	}
	return n
}

// SelectKth returns the element that would be at position k if the accepted
// elements of values were sorted with less, together with the number of
// accepted elements at positions 0..k-1 of that order that are equal to it.
//
// values is not modified. Panics if k is not in [0, Count(values, accept)).
//
// Example:
//
//	v, m := prune.SelectKth([]float64{3, 0, -1, 1, 2}, 1, prune.Nonzero, prune.LessMagnitude)
//	// v = 1 (or -1), m = 1
func SelectKth[T tensor.Float](values []T, k int, accept Accept[T], less func(a, b T) bool) (T, int) {
	buf := make([]T, 0, len(values))
	for _, x := range values {
		if accept(x) {
			buf = append(buf, x)
		}
	}
	if k < 0 || k >= len(buf) {
		panic(fmt.Sprintf("SelectKth: index %d out of range for %d accepted elements", k, len(buf)))
	}

	quickselect(buf, k, less)
	value := buf[k]

	// After selection every element before k is not greater than value.
	ties := 0
	for _, x := range buf[:k] {
		if !less(x, value) {
			ties++
		}
	}
	return value, ties
}

// quickselect partially sorts buf so that buf[k] holds the k-th element in
// the order given by less, buf[:k] holds no greater and buf[k+1:] no smaller elements.
func quickselect[T tensor.Float](buf []T, k int, less func(a, b T) bool) {
	lo, hi := 0, len(buf)-1
	for lo < hi {
		pivot := medianOfThree(buf, lo, lo+(hi-lo)/2, hi, less)

		// Three-way partition: [lo, lt) < pivot, [lt, gt] == pivot, (gt, hi] > pivot.
		lt, i, gt := lo, lo, hi
		for i <= gt {
			switch {
			case less(buf[i], pivot):
				buf[lt], buf[i] = buf[i], buf[lt]
				lt++
				i++
			case less(pivot, buf[i]):
				buf[i], buf[gt] = buf[gt], buf[i]
				gt--
			default:
				i++
			}
		}

		switch {
		case k < lt:
			hi = lt - 1
		case k > gt:
			lo = gt + 1
		default:
			return
		}
	}
}

func medianOfThree[T tensor.Float](buf []T, a, b, c int, less func(x, y T) bool) T {
	x, y, z := buf[a], buf[b], buf[c]
	if less(y, x) {
		x, y = y, x
	}
	if less(z, y) {
		y = z
		if less(y, x) {
			y = x
		}
	}
	return y
}
