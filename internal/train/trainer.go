// Package train implements the epoch and mini-batch driver of the sparsenet
// framework.
//
// Every batch runs feedforward, loss gradient, an optional numerical gradient
// check, backpropagate and optimize, in that order. NaN or Inf values in the
// outputs, gradients or parameters abort the run with a *CorruptionError.
// Cancelling the context stops training at the next batch boundary and
// returns the partial result with ErrInterrupted.
//
// Example:
//
//	t, err := train.New(model, nn.SoftmaxCrossEntropy[float32]{}, data, train.Config{
//	    Epochs:     10,
//	    BatchSize:  100,
//	    Shuffle:    true,
//	    Scheduler:  train.ConstantScheduler{LR: 0.01},
//	    Statistics: true,
//	    Rng:        rand.New(rand.NewSource(1)),
//	})
//	result, err := t.Run(ctx)
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/born-ml/sparsenet/internal/dataset"
	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// DefaultGradientTolerance is used when a gradient step is set without a tolerance.
const DefaultGradientTolerance = 1e-4

// Config holds the options of a training run.
type Config struct {
	Epochs    int
	BatchSize int
	Shuffle   bool

	// Scheduler gives the learning rate per epoch. Nil means Constant(0.01).
	Scheduler Scheduler

	// Clip sets weights with 0 < |x| < Clip to zero after every optimize step.
	Clip float64

	// GradientStep enables the numerical gradient check of every batch when positive.
	GradientStep      float64
	GradientTolerance float64

	// Statistics computes loss and accuracies after every epoch.
	Statistics bool

	// Debug logs the model and the batch buffers of every batch.
	Debug bool

	Rng      *rand.Rand
	Logger   *slog.Logger
	Reporter Reporter
	Hooks    []Hooks
}

// Trainer trains a model on a dataset with stochastic gradient descent.
type Trainer[T tensor.Float] struct {
	model *nn.MLP[T]
	loss  nn.Loss[T]
	data  *dataset.Dataset[T]
	cfg   Config
	log   *slog.Logger
	hooks hookList

	indices   []int
	X, Tb     *tensor.Matrix[T]
	Y, DY     *tensor.Matrix[T]
	evaluator *evaluator[T]
}

// New validates the configuration against the model and the dataset.
func New[T tensor.Float](model *nn.MLP[T], loss nn.Loss[T], data *dataset.Dataset[T], cfg Config) (*Trainer[T], error) {
	if cfg.Epochs < 0 {
		return nil, fmt.Errorf("train: epochs must not be negative, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("train: batch size must be positive, got %d", cfg.BatchSize)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if model.Inputs() != data.Features() || model.Outputs() != data.Classes() {
		return nil, fmt.Errorf("%w: model maps %d inputs to %d outputs, dataset has %d features and %d classes",
			nn.ErrShapeMismatch, model.Inputs(), model.Outputs(), data.Features(), data.Classes())
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = ConstantScheduler{LR: 0.01}
	}
	if cfg.GradientStep > 0 && cfg.GradientTolerance <= 0 {
		cfg.GradientTolerance = DefaultGradientTolerance
	}
	if cfg.Rng == nil {
		cfg.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, split := range []struct {
		name string
		rows int
	}{{"train", data.Xtrain.Rows()}, {"test", data.Xtest.Rows()}} {
		if split.rows < cfg.BatchSize {
			logger.Warn("no full batch to evaluate, accuracy is reported as 0",
				"split", split.name, "examples", split.rows, "batch_size", cfg.BatchSize)
		}
	}

	n := data.Xtrain.Rows()
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	Q, L := cfg.BatchSize, model.Outputs()
	return &Trainer[T]{
		model:     model,
		loss:      loss,
		data:      data,
		cfg:       cfg,
		log:       logger,
		hooks:     hookList(cfg.Hooks),
		indices:   indices,
		X:         tensor.NewMatrix[T](Q, model.Inputs()),
		Tb:        tensor.NewMatrix[T](Q, L),
		Y:         tensor.NewMatrix[T](Q, L),
		DY:        tensor.NewMatrix[T](Q, L),
		evaluator: newEvaluator(model, Q),
	}, nil
}

// Run trains for the configured number of epochs.
//
// The returned result is never nil. When ctx is cancelled the error is
// ErrInterrupted and the result holds the completed epochs.
func (t *Trainer[T]) Run(ctx context.Context) (*Result, error) {
	result := &Result{}
	t.model.SetTraining(true)

	if err := t.hooks.each(func(h Hooks) error { return h.OnStartTraining() }); err != nil {
		return result, err
	}
	t.report(result, t.statistics(0, t.cfg.Scheduler.LearningRate(0), 0))

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return t.interrupt(result)
		}
		if err := t.hooks.each(func(h Hooks) error { return h.OnStartEpoch(epoch) }); err != nil {
			return result, err
		}

		lr := t.cfg.Scheduler.LearningRate(epoch)
		start := time.Now()
		err := t.epoch(ctx, epoch, T(lr))
		elapsed := time.Since(start)
		result.TrainingTime += elapsed
		if errors.Is(err, ErrInterrupted) {
			return t.interrupt(result)
		}
		if err != nil {
			return result, err
		}

		if err := t.hooks.each(func(h Hooks) error { return h.OnEndEpoch(epoch) }); err != nil {
			return result, err
		}
		t.report(result, t.statistics(epoch+1, lr, elapsed))
	}

	result.TestAccuracy = t.evaluator.Accuracy(t.data.Xtest, t.data.Ttest)
	t.log.Info("training finished", "epochs", t.cfg.Epochs, "seconds", result.TrainingTime.Seconds(),
		"test_accuracy", result.TestAccuracy)

	if err := t.hooks.each(func(h Hooks) error { return h.OnEndTraining() }); err != nil {
		return result, err
	}
	return result, nil
}

func (t *Trainer[T]) interrupt(result *Result) (*Result, error) {
	result.Interrupted = true
	result.TestAccuracy = t.evaluator.Accuracy(t.data.Xtest, t.data.Ttest)
	t.log.Warn("training interrupted", "epochs", len(result.Epochs)-1)
	return result, ErrInterrupted
}

func (t *Trainer[T]) report(result *Result, s EpochStats) {
	result.Epochs = append(result.Epochs, s)
	if t.cfg.Reporter != nil {
		t.cfg.Reporter.Report(s)
	}
}

func (t *Trainer[T]) statistics(epoch int, lr float64, elapsed time.Duration) EpochStats {
	s := EpochStats{Epoch: epoch, LearningRate: lr, Elapsed: elapsed, Statistics: t.cfg.Statistics}
	if t.cfg.Statistics {
		s.Loss = t.evaluator.Loss(t.loss, t.data.Xtrain, t.data.Ttrain)
		s.TrainAccuracy = t.evaluator.Accuracy(t.data.Xtrain, t.data.Ttrain)
		s.TestAccuracy = t.evaluator.Accuracy(t.data.Xtest, t.data.Ttest)
	}
	return s
}

// epoch runs the K = N / BatchSize full batches of one epoch. The remaining
// examples are not visited.
func (t *Trainer[T]) epoch(ctx context.Context, epoch int, lr T) error {
	if t.cfg.Shuffle {
		t.cfg.Rng.Shuffle(len(t.indices), func(i, j int) {
			t.indices[i], t.indices[j] = t.indices[j], t.indices[i]
		})
	}

	Q := t.cfg.BatchSize
	K := len(t.indices) / Q
	for k := 0; k < K; k++ {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		if err := t.hooks.each(func(h Hooks) error { return h.OnStartBatch(epoch, k) }); err != nil {
			return err
		}
		if err := t.batch(epoch, k, t.indices[k*Q:(k+1)*Q], lr); err != nil {
			return err
		}
		if err := t.hooks.each(func(h Hooks) error { return h.OnEndBatch(epoch, k) }); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer[T]) batch(epoch, k int, idx []int, lr T) error {
	tensor.SelectRows(t.X, t.data.Xtrain, idx)
	tensor.SelectRows(t.Tb, t.data.Ttrain, idx)
	scale := 1 / float64(len(idx))

	t.model.Feedforward(t.X, t.Y)
	if err := t.checkActivations(epoch, k); err != nil {
		return err
	}

	t.loss.Gradient(t.DY, t.Y, t.Tb)
	t.DY.Scale(T(scale))
	if t.cfg.Debug {
		t.log.Debug("batch", "epoch", epoch, "batch", k,
			"model", t.model.Info("model"),
			"X", tensor.Format("X", t.X), "Y", tensor.Format("Y", t.Y), "DY", tensor.Format("DY", t.DY))
	}
	if t.DY.HasNaN() {
		return t.corruption(epoch, k, 0, "DY", t.DY)
	}

	gc := GradientCheck{Step: t.cfg.GradientStep, Tolerance: t.cfg.GradientTolerance}
	if gc.Step > 0 {
		if err := CheckOutputGradient(gc, t.loss, t.Y, t.DY, t.Tb, scale); err != nil {
			return fmt.Errorf("epoch %d, batch %d: %w", epoch, k, err)
		}
	}

	t.model.Backpropagate(t.Y, t.DY)
	if err := t.checkParameters(epoch, k, true); err != nil {
		return err
	}
	if gc.Step > 0 {
		if err := CheckParameterGradients(gc, t.model, t.loss, t.X, t.Tb, scale); err != nil {
			return fmt.Errorf("epoch %d, batch %d: %w", epoch, k, err)
		}
	}

	t.model.Optimize(lr)
	if t.cfg.Clip > 0 {
		t.model.Clip(T(t.cfg.Clip))
	}
	return t.checkParameters(epoch, k, false)
}

// checkActivations inspects the output of every layer after Feedforward.
func (t *Trainer[T]) checkActivations(epoch, k int) error {
	last := len(t.model.Layers)
	for i := 1; i < last; i++ {
		if a := t.model.Activation(i); a.HasNaN() {
			return t.corruption(epoch, k, i, "output", a)
		}
	}
	if t.Y.HasNaN() {
		return t.corruption(epoch, k, last, "Y", t.Y)
	}
	return nil
}

// checkParameters inspects the parameter gradients, or the parameter values
// when gradients is false.
func (t *Trainer[T]) checkParameters(epoch, k int, gradients bool) error {
	for i, layer := range t.model.Layers {
		for _, p := range layer.Parameters() {
			values, what := p.Value, p.Name
			if gradients {
				values, what = p.Grad, "D"+p.Name
			}
			if hasNaN(values) {
				m, _ := tensor.FromSlice(values, 1, len(values))
				return t.corruption(epoch, k, i+1, what, m)
			}
		}
	}
	return nil
}

func hasNaN[T tensor.Float](values []T) bool {
	for _, x := range values {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return true
		}
	}
	return false
}

var dumpConfig = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}

func (t *Trainer[T]) corruption(epoch, k, layer int, what string, m *tensor.Matrix[T]) error {
	err := &CorruptionError{
		Epoch: epoch,
		Batch: k,
		Layer: layer,
		What:  what,
		Dump:  t.model.Info("model") + "\n" + dumpConfig.Sdump(m),
	}
	t.log.Error("numerical corruption", "epoch", epoch, "batch", k, "layer", layer, "what", what)
	return err
}
