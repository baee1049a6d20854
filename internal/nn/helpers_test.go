package nn_test

import (
	"testing"

	"github.com/born-ml/sparsenet/internal/tensor"
	"github.com/stretchr/testify/assert"
)

// checkEqualMatrices asserts that the squared difference of two matrices is at most epsilon.
func checkEqualMatrices[T tensor.Float](t *testing.T, name string, expected, actual *tensor.Matrix[T], epsilon float64) {
	t.Helper()
	if !assert.True(t, expected.SameShape(actual), "%s: shape %v vs %v", name, expected.Shape(), actual.Shape()) {
		return
	}
	err := float64(tensor.SquaredDistance(expected, actual))
	if !assert.LessOrEqual(t, err, epsilon, name) {
		t.Logf("%s\n%s", tensor.Format("expected", expected), tensor.Format("actual", actual))
	}
}
