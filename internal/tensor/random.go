package tensor

import "math/rand"

// RandomMatrix creates a rows x cols matrix with values drawn uniformly from [low, high).
//
//nolint:gosec // Using math/rand for weight initialization (not security-critical)
func RandomMatrix[T Float](rows, cols int, low, high T, rng *rand.Rand) *Matrix[T] {
	m := NewMatrix[T](rows, cols)
	for i := range m.data {
		m.data[i] = low + (high-low)*T(rng.Float64())
	}
	return m
}

// RandomTarget creates a rows x cols one-hot matrix with one random class per row.
func RandomTarget[T Float](rows, cols int, rng *rand.Rand) *Matrix[T] {
	m := NewMatrix[T](rows, cols)
	for i := 0; i < rows; i++ {
		m.data[i*cols+rng.Intn(cols)] = 1
	}
	return m
}
