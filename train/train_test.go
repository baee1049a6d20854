// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package train_test

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/sparsenet/nn"
	"github.com/born-ml/sparsenet/train"
)

func TestTrainSaveLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data, err := train.LoadDataset[float64]("checkerboard", 400, rng)
	require.NoError(t, err)

	model, err := nn.Build[float64](nn.Architecture{
		Layers:    "ReLU;BatchNorm;ReLU;Linear",
		Sizes:     []int{2, 32, 32, 2},
		Densities: []float64{0.5, 0.5, 1},
		Optimizer: "Momentum(0.9)",
	}, rng)
	require.NoError(t, err)

	var stats []train.EpochStats
	tr, err := train.New(model, nn.SoftmaxCrossEntropy[float64]{}, data, train.Config{
		Epochs:     3,
		BatchSize:  20,
		Shuffle:    true,
		Scheduler:  train.ConstantScheduler{LR: 0.05},
		Statistics: true,
		Rng:        rng,
		Reporter:   train.ReporterFunc(func(s train.EpochStats) { stats = append(stats, s) }),
		Hooks: []train.Hooks{&train.PruneHook[float64]{
			Model:    model,
			Strategy: train.PruneMagnitude,
			Fraction: 0.1,
			Grow:     true,
			Init:     nn.Xavier,
			Rng:      rng,
		}},
	})
	require.NoError(t, err)
	result, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.Equal(t, stats, result.Epochs)

	first := model.Layers[0].(*nn.Linear[float64])
	assert.InDelta(t, 0.5, first.Weights().Density(), 1e-9, "regrowth keeps the density")

	path := filepath.Join(t.TempDir(), "checkerboard.snet")
	_, err = train.Save(path, model, train.CheckpointMeta{Metadata: map[string]string{"dataset": "checkerboard"}})
	require.NoError(t, err)
	loaded, header, err := train.Load[float64](path)
	require.NoError(t, err)
	assert.Equal(t, "checkerboard", header.Metadata["dataset"])

	loss := nn.SoftmaxCrossEntropy[float64]{}
	wantLoss, wantAcc := train.Evaluate(model, loss, data.Xtest, data.Ttest, 20)
	gotLoss, gotAcc := train.Evaluate(loaded, loss, data.Xtest, data.Ttest, 20)
	assert.Equal(t, wantAcc, gotAcc)
	assert.InDelta(t, wantLoss, gotLoss, 1e-12)
	assert.Equal(t, result.TestAccuracy, gotAcc)
}
