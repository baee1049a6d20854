// Package config holds the run configuration of the sparsenet command.
//
// A configuration is read from YAML, starts from Default and is validated as
// a whole, so every problem in a file is reported at once:
//
//	precision: 32
//	layers: ReLU;ReLU;Linear
//	sizes: [2, 64, 64, 2]
//	overall_density: 0.1
//	optimizer: Momentum(0.9)
//	loss: SoftmaxCrossEntropy
//	learning_rate: MultiStepLR(0.1;50,75;0.1)
//	prune: Magnitude(0.2)
//	grow: Random
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/optim"
	"github.com/born-ml/sparsenet/internal/tensor"
	"github.com/born-ml/sparsenet/internal/train"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// GrowRandom regrows pruned weights at uniformly chosen free positions.
const GrowRandom = "Random"

// Config is a complete training run.
type Config struct {
	Precision int `yaml:"precision"` // 32 or 64

	Layers         string    `yaml:"layers"`
	Sizes          []int     `yaml:"sizes"`
	Densities      []float64 `yaml:"densities,omitempty"`
	OverallDensity float64   `yaml:"overall_density,omitempty"` // Erdős–Rényi allocation when Densities is empty
	Init           string    `yaml:"init"`
	Optimizer      string    `yaml:"optimizer"`
	Loss           string    `yaml:"loss"`
	LearningRate   string    `yaml:"learning_rate"` // scheduler text

	Epochs            int     `yaml:"epochs"`
	BatchSize         int     `yaml:"batch_size"`
	Shuffle           bool    `yaml:"shuffle"`
	Seed              int64   `yaml:"seed"` // 0 seeds from the clock
	Clip              float64 `yaml:"clip,omitempty"`
	GradientStep      float64 `yaml:"gradient_step,omitempty"`
	GradientTolerance float64 `yaml:"gradient_tolerance,omitempty"`
	Statistics        bool    `yaml:"statistics"`
	Debug             bool    `yaml:"debug,omitempty"`
	Threads           int     `yaml:"threads,omitempty"` // 0 uses every physical core

	Dataset     string `yaml:"dataset"`
	DatasetSize int    `yaml:"dataset_size"`

	Prune      string `yaml:"prune,omitempty"`       // e.g. Magnitude(0.2)
	Grow       string `yaml:"grow,omitempty"`        // "" or Random
	PruneLayer []int  `yaml:"prune_layer,omitempty"` // 1-based; empty selects every sparse layer

	Save  string `yaml:"save,omitempty"`
	Load  string `yaml:"load,omitempty"`
	RunID string `yaml:"run_id,omitempty"`
}

// Default returns the configuration used for fields a file leaves out.
func Default() Config {
	return Config{
		Precision:    32,
		Layers:       "ReLU;ReLU;Linear",
		Sizes:        []int{2, 64, 64, 2},
		Init:         nn.Xavier.String(),
		Optimizer:    "GradientDescent",
		Loss:         "SoftmaxCrossEntropy",
		LearningRate: "Constant(0.01)",
		Epochs:       100,
		BatchSize:    100,
		Shuffle:      true,
		Statistics:   true,
		Dataset:      "checkerboard",
		DatasetSize:  50000,
	}
}

// Parse decodes YAML on top of Default. Unknown keys are errors.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// Load reads a YAML configuration file.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: configuration path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every field and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	if c.Precision != 32 && c.Precision != 64 {
		fail("precision must be 32 or 64, got %d", c.Precision)
	}
	if _, err := c.Architecture(); err != nil {
		errs = append(errs, err)
	}
	_, err := nn.ParseLoss[float64](c.Loss)
	check("loss", err)
	_, err = train.ParseScheduler(c.LearningRate)
	check("learning_rate", err)

	if c.Epochs < 0 {
		fail("epochs must not be negative, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		fail("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Clip < 0 || c.GradientStep < 0 || c.GradientTolerance < 0 {
		fail("clip, gradient_step and gradient_tolerance must not be negative")
	}
	if c.Threads < 0 {
		fail("threads must not be negative, got %d", c.Threads)
	}
	if c.Dataset == "" {
		fail("dataset is empty")
	}
	if c.DatasetSize < 0 {
		fail("dataset_size must not be negative, got %d", c.DatasetSize)
	}

	if c.Prune != "" {
		_, _, err := train.ParsePruneStrategy(c.Prune)
		check("prune", err)
	}
	switch c.Grow {
	case "", GrowRandom:
	default:
		fail("grow must be empty or %s, got %q", GrowRandom, c.Grow)
	}
	if c.Grow != "" && c.Prune == "" {
		fail("grow requires prune")
	}
	if specs, err := nn.ParseLayers(c.Layers); err == nil {
		for _, i := range c.PruneLayer {
			if i < 1 || i > len(specs) || specs[i-1].BatchNorm {
				fail("prune_layer %d is not a layer with weights", i)
			}
		}
	}
	if c.RunID != "" {
		_, err := uuid.Parse(c.RunID)
		check("run_id", err)
	}
	return errors.Join(errs...)
}

// Architecture returns the network description. Densities are taken as given
// or derived from OverallDensity with the Erdős–Rényi allocation.
func (c Config) Architecture() (nn.Architecture, error) {
	init, err := nn.ParseInitializer(c.Init)
	if err != nil {
		return nn.Architecture{}, fmt.Errorf("init: %w", err)
	}
	if _, err := optim.Parse[float64](c.Optimizer); err != nil {
		return nn.Architecture{}, fmt.Errorf("optimizer: %w", err)
	}
	specs, err := nn.ParseLayers(c.Layers)
	if err != nil {
		return nn.Architecture{}, fmt.Errorf("layers: %w", err)
	}
	if n := nn.LinearCount(specs); len(c.Sizes) != n+1 {
		return nn.Architecture{}, fmt.Errorf("%w: %d layers with weights need %d sizes, got %v", ErrInvalid, n, n+1, c.Sizes)
	}
	for _, s := range c.Sizes {
		if s <= 0 {
			return nn.Architecture{}, fmt.Errorf("%w: sizes must be positive, got %v", ErrInvalid, c.Sizes)
		}
	}

	densities := c.Densities
	switch {
	case len(densities) > 0 && c.OverallDensity != 0:
		return nn.Architecture{}, fmt.Errorf("%w: densities and overall_density are exclusive", ErrInvalid)
	case len(densities) > 0:
		if len(densities) != len(c.Sizes)-1 {
			return nn.Architecture{}, fmt.Errorf("%w: %d layers with weights need %d densities, got %d",
				ErrInvalid, len(c.Sizes)-1, len(c.Sizes)-1, len(densities))
		}
		for _, d := range densities {
			if d <= 0 || d > 1 {
				return nn.Architecture{}, fmt.Errorf("%w: density %g outside (0, 1]", ErrInvalid, d)
			}
		}
	case c.OverallDensity != 0:
		densities, err = nn.ErdosRenyiDensities(c.OverallDensity, c.Sizes)
		if err != nil {
			return nn.Architecture{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}

	return nn.Architecture{
		Layers:    c.Layers,
		Sizes:     c.Sizes,
		Densities: densities,
		Init:      init,
		Optimizer: c.Optimizer,
	}, nil
}

// Training returns the trainer options of the run. Rng, Logger, Reporter and
// Hooks are left for the caller.
func (c Config) Training() (train.Config, error) {
	scheduler, err := train.ParseScheduler(c.LearningRate)
	if err != nil {
		return train.Config{}, err
	}
	return train.Config{
		Epochs:            c.Epochs,
		BatchSize:         c.BatchSize,
		Shuffle:           c.Shuffle,
		Scheduler:         scheduler,
		Clip:              c.Clip,
		GradientStep:      c.GradientStep,
		GradientTolerance: c.GradientTolerance,
		Statistics:        c.Statistics,
		Debug:             c.Debug,
	}, nil
}

// NewPruneHook returns the prune hook of the run, or nil when pruning is off.
func NewPruneHook[T tensor.Float](c Config, m *nn.MLP[T], rng *rand.Rand, logger *slog.Logger) (*train.PruneHook[T], error) {
	if c.Prune == "" {
		return nil, nil
	}
	strategy, fraction, err := train.ParsePruneStrategy(c.Prune)
	if err != nil {
		return nil, err
	}
	init, err := nn.ParseInitializer(c.Init)
	if err != nil {
		return nil, err
	}
	return &train.PruneHook[T]{
		Model:    m,
		Strategy: strategy,
		Fraction: fraction,
		Layers:   c.PruneLayer,
		Grow:     c.Grow == GrowRandom,
		Init:     init,
		Rng:      rng,
		Logger:   logger,
	}, nil
}
