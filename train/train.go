// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train provides the training engine, datasets and checkpoints of the
// sparsenet framework.
//
// Example:
//
//	data, err := train.LoadDataset[float32]("checkerboard", 50000, rng)
//	t, err := train.New(model, nn.SoftmaxCrossEntropy[float32]{}, data, train.Config{
//	    Epochs:     10,
//	    BatchSize:  100,
//	    Shuffle:    true,
//	    Scheduler:  train.ConstantScheduler{LR: 0.01},
//	    Statistics: true,
//	    Reporter:   train.ReporterFunc(func(s train.EpochStats) { fmt.Println(s) }),
//	})
//	result, err := t.Run(ctx)
//	_, err = train.Save("model.snet", model, train.CheckpointMeta{})
package train

import (
	"math/rand"

	"github.com/born-ml/sparsenet/internal/dataset"
	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/serialization"
	"github.com/born-ml/sparsenet/internal/tensor"
	"github.com/born-ml/sparsenet/internal/train"
)

// Config holds the options of a training run.
type Config = train.Config

// Trainer trains a model on a dataset with stochastic gradient descent.
type Trainer[T tensor.Float] = train.Trainer[T]

// Result and statistics.
type (
	Result       = train.Result
	EpochStats   = train.EpochStats
	Reporter     = train.Reporter
	ReporterFunc = train.ReporterFunc
)

// Hooks are called around training, epochs and batches.
type Hooks = train.Hooks

// NopHooks implements Hooks with no-ops and is meant for embedding.
type NopHooks = train.NopHooks

// Learning rate schedulers.
type (
	Scheduler            = train.Scheduler
	ConstantScheduler    = train.ConstantScheduler
	TimeBasedScheduler   = train.TimeBasedScheduler
	StepBasedScheduler   = train.StepBasedScheduler
	MultiStepScheduler   = train.MultiStepScheduler
	ExponentialScheduler = train.ExponentialScheduler
)

// Pruning.
type (
	PruneStrategy             = train.PruneStrategy
	PruneHook[T tensor.Float] = train.PruneHook[T]
)

// Prune strategies.
const (
	PruneMagnitude        = train.PruneMagnitude
	PrunePositiveNegative = train.PrunePositiveNegative
)

// Errors.
type (
	CorruptionError = train.CorruptionError
	GradientError   = train.GradientError
)

// Sentinel errors.
var (
	ErrNumericalCorruption  = train.ErrNumericalCorruption
	ErrGradientMismatch     = train.ErrGradientMismatch
	ErrInterrupted          = train.ErrInterrupted
	ErrUnknownScheduler     = train.ErrUnknownScheduler
	ErrUnknownPruneStrategy = train.ErrUnknownPruneStrategy
)

// New validates the configuration against the model and the dataset.
func New[T tensor.Float](model *nn.MLP[T], loss nn.Loss[T], data *Dataset[T], cfg Config) (*Trainer[T], error) {
	return train.New(model, loss, data, cfg)
}

// Evaluate returns the average loss and the accuracy of model over the full
// batches of X.
func Evaluate[T tensor.Float](model *nn.MLP[T], loss nn.Loss[T], X, targets *tensor.Matrix[T], batch int) (float64, float64) {
	return train.Evaluate(model, loss, X, targets, batch)
}

// ParseScheduler parses scheduler text such as "MultiStepLR(0.1;50,75;0.1)".
func ParseScheduler(text string) (Scheduler, error) {
	return train.ParseScheduler(text)
}

// ParsePruneStrategy parses "Magnitude(fraction)" or "PositiveNegative(fraction)".
func ParsePruneStrategy(text string) (PruneStrategy, float64, error) {
	return train.ParsePruneStrategy(text)
}

// Dataset holds one-hot encoded training and test data.
type Dataset[T tensor.Float] = dataset.Dataset[T]

// LoadDataset creates a dataset from "checkerboard", "mini",
// "csv:<train>,<test>" or "mnist:<dir>".
func LoadDataset[T tensor.Float](source string, n int, rng *rand.Rand) (*Dataset[T], error) {
	return dataset.Load[T](source, n, rng)
}

// Checkpoint types.
type (
	CheckpointHeader = serialization.Header
	CheckpointMeta   = serialization.Meta
)

// Save writes model to a .snet checkpoint.
func Save[T tensor.Float](path string, model *nn.MLP[T], meta CheckpointMeta) (*CheckpointHeader, error) {
	return serialization.Save(path, model, meta)
}

// Load builds a network from a .snet checkpoint.
func Load[T tensor.Float](path string) (*nn.MLP[T], *CheckpointHeader, error) {
	return serialization.Load[T](path)
}

// LoadInto loads a .snet checkpoint into an existing network.
func LoadInto[T tensor.Float](path string, model *nn.MLP[T]) (*CheckpointHeader, error) {
	return serialization.LoadInto(path, model)
}
