// Package dataset provides the training and test matrices consumed by the
// training loop, together with synthetic generators and file loaders.
//
// Features are stored one example per row. Targets are one-hot encoded rows;
// the number of classes is one plus the largest training label.
package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// ErrUnknownDataset is returned for dataset names that are not recognized.
var ErrUnknownDataset = errors.New("unknown dataset")

// ErrInvalidLabel is returned for labels that cannot be one-hot encoded.
var ErrInvalidLabel = errors.New("invalid label")

// Dataset holds the train and test features and one-hot targets.
type Dataset[T tensor.Float] struct {
	Xtrain, Ttrain *tensor.Matrix[T]
	Xtest, Ttest   *tensor.Matrix[T]
}

// New creates a dataset from feature matrices and integer labels.
// The number of classes is inferred from the training labels.
func New[T tensor.Float](Xtrain *tensor.Matrix[T], trainLabels []int, Xtest *tensor.Matrix[T], testLabels []int) (*Dataset[T], error) {
	if Xtrain.Rows() != len(trainLabels) {
		return nil, fmt.Errorf("dataset: %d training examples but %d labels", Xtrain.Rows(), len(trainLabels))
	}
	if Xtest.Rows() != len(testLabels) {
		return nil, fmt.Errorf("dataset: %d test examples but %d labels", Xtest.Rows(), len(testLabels))
	}
	if Xtrain.Cols() != Xtest.Cols() {
		return nil, fmt.Errorf("dataset: train has %d features, test has %d", Xtrain.Cols(), Xtest.Cols())
	}
	classes := Classes(trainLabels)
	Ttrain, err := OneHot[T](trainLabels, classes)
	if err != nil {
		return nil, fmt.Errorf("training targets: %w", err)
	}
	Ttest, err := OneHot[T](testLabels, classes)
	if err != nil {
		return nil, fmt.Errorf("test targets: %w", err)
	}
	return &Dataset[T]{Xtrain: Xtrain, Ttrain: Ttrain, Xtest: Xtest, Ttest: Ttest}, nil
}

// Classes returns one plus the largest label, or 0 for no labels.
func Classes(labels []int) int {
	classes := 0
	for _, l := range labels {
		if l+1 > classes {
			classes = l + 1
		}
	}
	return classes
}

// OneHot encodes labels as the rows of a len(labels) x classes matrix.
func OneHot[T tensor.Float](labels []int, classes int) (*tensor.Matrix[T], error) {
	targets := tensor.NewMatrix[T](len(labels), classes)
	for i, l := range labels {
		if l < 0 || l >= classes {
			return nil, fmt.Errorf("%w: label %d of example %d is outside [0, %d)", ErrInvalidLabel, l, i, classes)
		}
		targets.Set(i, l, 1)
	}
	return targets, nil
}

// Labels decodes one-hot rows back into labels, taking the index of the
// largest entry of every row.
func Labels[T tensor.Float](targets *tensor.Matrix[T]) []int {
	labels := make([]int, targets.Rows())
	for i := range labels {
		labels[i] = argmax(targets.Row(i))
	}
	return labels
}

func argmax[T tensor.Float](row []T) int {
	best := 0
	for j, x := range row {
		if x > row[best] {
			best = j
		}
	}
	return best
}

// Features returns the number of input features.
func (d *Dataset[T]) Features() int { return d.Xtrain.Cols() }

// Classes returns the number of target classes.
func (d *Dataset[T]) Classes() int { return d.Ttrain.Cols() }

// Validate checks that all four matrices agree on their shapes.
func (d *Dataset[T]) Validate() error {
	switch {
	case d.Xtrain == nil || d.Ttrain == nil || d.Xtest == nil || d.Ttest == nil:
		return errors.New("dataset: missing matrix")
	case d.Xtrain.Rows() != d.Ttrain.Rows():
		return fmt.Errorf("dataset: Xtrain has %d rows, Ttrain has %d", d.Xtrain.Rows(), d.Ttrain.Rows())
	case d.Xtest.Rows() != d.Ttest.Rows():
		return fmt.Errorf("dataset: Xtest has %d rows, Ttest has %d", d.Xtest.Rows(), d.Ttest.Rows())
	case d.Xtrain.Cols() != d.Xtest.Cols():
		return fmt.Errorf("dataset: Xtrain has %d columns, Xtest has %d", d.Xtrain.Cols(), d.Xtest.Cols())
	case d.Ttrain.Cols() != d.Ttest.Cols():
		return fmt.Errorf("dataset: Ttrain has %d columns, Ttest has %d", d.Ttrain.Cols(), d.Ttest.Cols())
	}
	return nil
}

// Info returns the shapes of the four matrices.
func (d *Dataset[T]) Info() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Xtrain %v\n", d.Xtrain.Shape())
	fmt.Fprintf(&sb, "Ttrain %v\n", d.Ttrain.Shape())
	fmt.Fprintf(&sb, "Xtest  %v\n", d.Xtest.Shape())
	fmt.Fprintf(&sb, "Ttest  %v", d.Ttest.Shape())
	return sb.String()
}

// fromRows converts float64 feature rows into a matrix.
func fromRows[T tensor.Float](rows [][]float64, cols int) *tensor.Matrix[T] {
	m := tensor.NewMatrix[T](len(rows), cols)
	for i, row := range rows {
		dst := m.Row(i)
		for j, x := range row {
			dst[j] = T(x)
		}
	}
	return m
}
