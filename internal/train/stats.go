package train

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// EpochStats are the statistics reported after every epoch. Epoch 0 describes
// the model before training.
type EpochStats struct {
	Epoch         int
	LearningRate  float64
	Statistics    bool // Loss and the accuracies are only set when true
	Loss          float64
	TrainAccuracy float64
	TestAccuracy  float64
	Elapsed       time.Duration
}

// String formats the statistics in a single line.
func (s EpochStats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "epoch %3d", s.Epoch)
	if s.Statistics {
		fmt.Fprintf(&sb, " lr: %.8f  loss: %.8f  train accuracy: %.8f  test accuracy: %.8f",
			s.LearningRate, s.Loss, s.TrainAccuracy, s.TestAccuracy)
	}
	fmt.Fprintf(&sb, " time: %.8fs", s.Elapsed.Seconds())
	return sb.String()
}

// Result summarizes a training run. After an interruption it holds the
// epochs completed so far.
type Result struct {
	Epochs       []EpochStats
	TestAccuracy float64
	TrainingTime time.Duration
	Interrupted  bool
}

// Reporter receives the statistics of every epoch.
type Reporter interface {
	Report(EpochStats)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(EpochStats)

func (f ReporterFunc) Report(s EpochStats) { f(s) }

// evaluator runs the model over full batches of a dataset in evaluation mode.
type evaluator[T tensor.Float] struct {
	model      *nn.MLP[T]
	batch      int
	idx        []int
	Xb, Tb, Yb *tensor.Matrix[T]
	row        []float64
}

func newEvaluator[T tensor.Float](model *nn.MLP[T], batch int) *evaluator[T] {
	return &evaluator[T]{
		model: model,
		batch: batch,
		idx:   make([]int, batch),
		Xb:    tensor.NewMatrix[T](batch, model.Inputs()),
		Tb:    tensor.NewMatrix[T](batch, model.Outputs()),
		Yb:    tensor.NewMatrix[T](batch, model.Outputs()),
		row:   make([]float64, model.Outputs()),
	}
}

// each feeds every full batch of X through the model. The remaining examples
// are not visited. It returns the number of examples visited.
func (e *evaluator[T]) each(X, targets *tensor.Matrix[T], f func()) int {
	e.model.SetTraining(false)
	defer e.model.SetTraining(true)

	K := X.Rows() / e.batch
	for k := 0; k < K; k++ {
		for i := range e.idx {
			e.idx[i] = k*e.batch + i
		}
		tensor.SelectRows(e.Xb, X, e.idx)
		tensor.SelectRows(e.Tb, targets, e.idx)
		e.model.Feedforward(e.Xb, e.Yb)
		f()
	}
	return K * e.batch
}

// Loss returns the average loss per visited example.
func (e *evaluator[T]) Loss(loss nn.Loss[T], X, targets *tensor.Matrix[T]) float64 {
	var values []float64
	n := e.each(X, targets, func() {
		values = append(values, float64(loss.Value(e.Yb, e.Tb)))
	})
	if n == 0 {
		return 0
	}
	return floats.Sum(values) / float64(n)
}

// Accuracy returns the fraction of visited examples whose largest output is
// at the position of the target class.
func (e *evaluator[T]) Accuracy(X, targets *tensor.Matrix[T]) float64 {
	correct := 0
	n := e.each(X, targets, func() {
		for i := 0; i < e.batch; i++ {
			for j, y := range e.Yb.Row(i) {
				e.row[j] = float64(y)
			}
			if e.Tb.At(i, floats.MaxIdx(e.row)) == 1 {
				correct++
			}
		}
	})
	if n == 0 {
		return 0
	}
	return float64(correct) / float64(n)
}

// Evaluate returns the average loss and the accuracy of the model on the
// full batches of X.
func Evaluate[T tensor.Float](model *nn.MLP[T], loss nn.Loss[T], X, targets *tensor.Matrix[T], batch int) (lossValue, accuracy float64) {
	e := newEvaluator(model, batch)
	return e.Loss(loss, X, targets), e.Accuracy(X, targets)
}
