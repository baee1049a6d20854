package dataset

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// Load creates a dataset from a source description:
//
//	checkerboard         synthetic, n training examples
//	mini                 synthetic, n training examples
//	csv:<train>,<test>   two CSV files
//	mnist:<dir>          MNIST IDX files in dir
func Load[T tensor.Float](source string, n int, rng *rand.Rand) (*Dataset[T], error) {
	kind, arg, _ := strings.Cut(source, ":")
	switch kind {
	case "csv":
		train, test, ok := strings.Cut(arg, ",")
		if !ok || train == "" || test == "" {
			return nil, fmt.Errorf("%w: %q, expected csv:<train>,<test>", ErrUnknownDataset, source)
		}
		return LoadCSV[T](train, test)
	case "mnist":
		if arg == "" {
			return nil, fmt.Errorf("%w: %q, expected mnist:<dir>", ErrUnknownDataset, source)
		}
		return LoadMNIST[T](arg)
	default:
		return Generate[T](source, n, rng)
	}
}
