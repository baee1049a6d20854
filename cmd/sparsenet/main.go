// Package main provides the sparsenet command: it trains a dense or sparse
// multilayer perceptron described by flags and an optional YAML file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/sparsenet/internal/config"
	"github.com/born-ml/sparsenet/internal/dataset"
	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/optim"
	"github.com/born-ml/sparsenet/internal/parallel"
	"github.com/born-ml/sparsenet/internal/serialization"
	"github.com/born-ml/sparsenet/internal/tensor"
	"github.com/born-ml/sparsenet/internal/train"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("sparsenet %s\n", version)
		return
	}
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	parallel.SetDefaultWorkers(cfg.Threads)
	name, cores := parallel.CPUName()
	fmt.Printf("sparsenet %s on %s (%d physical cores), precision float%d\n", version, name, cores, cfg.Precision)

	if cfg.Precision == 64 {
		return trainModel[float64](ctx, cfg, logger)
	}
	return trainModel[float32](ctx, cfg, logger)
}

func trainModel[T tensor.Float](ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	runID := uuid.New()
	if cfg.RunID != "" {
		runID = uuid.MustParse(cfg.RunID)
	}
	fmt.Printf("run %s, seed %d\n", runID, seed)

	data, err := dataset.Load[T](cfg.Dataset, cfg.DatasetSize, rng)
	if err != nil {
		return err
	}
	fmt.Println(data.Info())

	model, err := buildModel[T](cfg, rng)
	if err != nil {
		return err
	}
	fmt.Println(model)

	loss, err := nn.ParseLoss[T](cfg.Loss)
	if err != nil {
		return err
	}
	tc, err := cfg.Training()
	if err != nil {
		return err
	}
	tc.Rng = rng
	tc.Logger = logger
	tc.Reporter = train.ReporterFunc(func(s train.EpochStats) { fmt.Println(s) })
	hook, err := config.NewPruneHook(cfg, model, rng, logger)
	if err != nil {
		return err
	}
	if hook != nil {
		tc.Hooks = append(tc.Hooks, hook)
	}

	trainer, err := train.New(model, loss, data, tc)
	if err != nil {
		return err
	}
	result, err := trainer.Run(ctx)
	switch {
	case errors.Is(err, train.ErrInterrupted):
		fmt.Printf("interrupted after %d epochs\n", len(result.Epochs)-1)
	case err != nil:
		return err
	}
	fmt.Printf("test accuracy: %.8f  total training time: %.8fs\n", result.TestAccuracy, result.TrainingTime.Seconds())

	if cfg.Save == "" {
		return nil
	}
	header, err := serialization.Save(cfg.Save, model, serialization.Meta{
		RunID: runID,
		Metadata: map[string]string{
			"dataset":       cfg.Dataset,
			"layers":        cfg.Layers,
			"loss":          cfg.Loss,
			"optimizer":     cfg.Optimizer,
			"learning_rate": cfg.LearningRate,
			"epochs":        fmt.Sprint(len(result.Epochs) - 1),
			"test_accuracy": fmt.Sprintf("%.8f", result.TestAccuracy),
		},
	})
	if err != nil {
		return err
	}
	fmt.Printf("saved %s (%d tensors)\n", cfg.Save, len(header.Tensors))
	return nil
}

// buildModel creates the network from the configuration, or from the
// checkpoint named by cfg.Load with the configured optimizer.
func buildModel[T tensor.Float](cfg config.Config, rng *rand.Rand) (*nn.MLP[T], error) {
	if cfg.Load == "" {
		arch, err := cfg.Architecture()
		if err != nil {
			return nil, err
		}
		return nn.Build[T](arch, rng)
	}
	model, header, err := serialization.Load[T](cfg.Load)
	if err != nil {
		return nil, err
	}
	factory, err := optim.Parse[T](cfg.Optimizer)
	if err != nil {
		return nil, err
	}
	model.SetOptimizer(factory)
	fmt.Printf("loaded %s (run %s, saved %s)\n", cfg.Load, header.RunID, header.CreatedAt.Format(time.RFC3339))
	return model, nil
}
