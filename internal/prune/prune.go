package prune

import "github.com/born-ml/sparsenet/internal/tensor"

// Prune overwrites every accepted element with value and returns the number of
// overwritten elements.
func Prune[T tensor.Float](values []T, accept Accept[T], value T) int {
	n := 0
	for i, x := range values {
		if accept(x) {
			values[i] = value
			n++
		}
	}
	return n
}

// MagnitudeWithThreshold replaces the count accepted elements with the smallest
// absolute value by value. Exactly min(count, Count(values, accept)) elements
// are replaced; among elements tied at the threshold magnitude the ones that
// come first in values are taken. Elements that are not accepted are never
// touched. It returns the number of replaced elements.
func MagnitudeWithThreshold[T tensor.Float](values []T, count int, accept Accept[T], value T) int {
	n := min(count, Count(values, accept))
	if n <= 0 {
		return 0
	}

	threshold, ties := SelectKth(values, n-1, accept, LessMagnitude[T])
	threshold = abs(threshold)

	// Everything strictly below the threshold goes, plus ties+1 elements at it.
	remaining := ties + 1
	pruned := 0
	for i, x := range values {
		if !accept(x) {
			continue
		}
		switch m := abs(x); {
		case m < threshold:
		case m == threshold && remaining > 0:
			remaining--
		default:
			continue
		}
		values[i] = value
		pruned++
	}
	return pruned
}

// Magnitude replaces the count nonzero elements with the smallest absolute value by value.
//
// Example:
//
//	w := []float64{0.5, -0.1, 0, 0.3, -0.2}
//	prune.Magnitude(w, 2, 0) // w = [0.5, 0, 0, 0.3, 0]
func Magnitude[T tensor.Float](values []T, count int, value T) int {
	return MagnitudeWithThreshold(values, count, Nonzero[T], value)
}

// PositiveWeights replaces the count smallest strictly positive elements by value.
func PositiveWeights[T tensor.Float](values []T, count int, value T) int {
	return MagnitudeWithThreshold(values, count, Positive[T], value)
}

// NegativeWeights replaces the count strictly negative elements with the
// smallest absolute value by value.
func NegativeWeights[T tensor.Float](values []T, count int, value T) int {
	return MagnitudeWithThreshold(values, count, Negative[T], value)
}
