package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// checkerboardSize is the number of squares along each side of the board.
const checkerboardSize = 8

// Checkerboard samples n points uniformly from the unit square, scaled to
// [-1, 1]^2. The label is 0 on dark squares of an 8x8 board and 1 on light ones.
func Checkerboard(n int, rng *rand.Rand) ([][]float64, []int) {
	X := make([][]float64, n)
	labels := make([]int, n)
	for i := range X {
		x, y := rng.Float64(), rng.Float64()
		col := int(math.Floor(x * checkerboardSize))
		row := int(math.Floor(y * checkerboardSize))
		X[i] = []float64{2*x - 1, 2*y - 1}
		if (row+col)%2 != 0 {
			labels[i] = 1
		}
	}
	return X, labels
}

// Mini samples n examples with three integer features in [0, 10] and a
// random binary label. It has no structure to learn and serves as a smoke test.
func Mini(n int, rng *rand.Rand) ([][]float64, []int) {
	X := make([][]float64, n)
	labels := make([]int, n)
	for i := range X {
		X[i] = []float64{float64(rng.Intn(11)), float64(rng.Intn(11)), float64(rng.Intn(11))}
		if rng.Intn(2) == 0 {
			labels[i] = 1
		}
	}
	return X, labels
}

var generators = map[string]func(int, *rand.Rand) ([][]float64, []int){
	"checkerboard": Checkerboard,
	"mini":         Mini,
}

// Generate creates a synthetic dataset with n training and n/5 test examples.
func Generate[T tensor.Float](name string, n int, rng *rand.Rand) (*Dataset[T], error) {
	gen, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	if n <= 0 {
		return nil, fmt.Errorf("dataset: size must be positive, got %d", n)
	}
	Xtrain, Ltrain := gen(n, rng)
	Xtest, Ltest := gen(n/5, rng)
	cols := len(Xtrain[0])
	return newFromRows[T](Xtrain, Ltrain, Xtest, Ltest, cols)
}

func newFromRows[T tensor.Float](Xtrain [][]float64, Ltrain []int, Xtest [][]float64, Ltest []int, cols int) (*Dataset[T], error) {
	return New(fromRows[T](Xtrain, cols), Ltrain, fromRows[T](Xtest, cols), Ltest)
}
