package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/sparsenet/internal/config"
)

// option is a command line flag that overrides one configuration field.
type option struct {
	name, usage string
	boolean     bool
	apply       func(c *config.Config, value string) error
}

func stringOption(name, usage string, field func(*config.Config) *string) option {
	return option{name: name, usage: usage, apply: func(c *config.Config, v string) error {
		*field(c) = v
		return nil
	}}
}

func intOption(name, usage string, field func(*config.Config) *int) option {
	return option{name: name, usage: usage, apply: func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}}
}

func floatOption(name, usage string, field func(*config.Config) *float64) option {
	return option{name: name, usage: usage, apply: func(c *config.Config, v string) error {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = x
		return nil
	}}
}

func boolOption(name, usage string, field func(*config.Config) *bool) option {
	return option{name: name, usage: usage, boolean: true, apply: func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}}
}

// splitList parses "a,b,c" or "a;b;c".
func splitList[E any](v string, parse func(string) (E, error)) ([]E, error) {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' })
	values := make([]E, 0, len(fields))
	for _, f := range fields {
		x, err := parse(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		values = append(values, x)
	}
	return values, nil
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

var options = []option{
	intOption("precision", "scalar precision, 32 or 64", func(c *config.Config) *int { return &c.Precision }),
	stringOption("layers", "layer description, e.g. ReLU;BatchNorm;ReLU;Linear", func(c *config.Config) *string { return &c.Layers }),
	{name: "sizes", usage: "input size followed by the output size of every linear layer, e.g. 2,64,64,2", apply: func(c *config.Config, v string) (err error) {
		c.Sizes, err = splitList(v, strconv.Atoi)
		return err
	}},
	{name: "densities", usage: "weight density of every linear layer, e.g. 0.1,0.1,1", apply: func(c *config.Config, v string) (err error) {
		c.Densities, err = splitList(v, parseFloat)
		return err
	}},
	floatOption("overall-density", "overall weight density distributed with the Erdős–Rényi scheme", func(c *config.Config) *float64 { return &c.OverallDensity }),
	stringOption("init", "weight initialization: Xavier, XavierNormalized, He, Uniform, PyTorch, Zero or None", func(c *config.Config) *string { return &c.Init }),
	stringOption("optimizer", "GradientDescent, Momentum(mu), Nesterov(mu) or Adam(beta1;beta2;eps)", func(c *config.Config) *string { return &c.Optimizer }),
	stringOption("loss", "loss function, e.g. SoftmaxCrossEntropy", func(c *config.Config) *string { return &c.Loss }),
	stringOption("learning-rate", "scheduler, e.g. Constant(0.01) or MultiStepLR(0.1;50,75;0.1)", func(c *config.Config) *string { return &c.LearningRate }),
	intOption("epochs", "number of epochs", func(c *config.Config) *int { return &c.Epochs }),
	intOption("batch-size", "mini-batch size", func(c *config.Config) *int { return &c.BatchSize }),
	boolOption("shuffle", "shuffle the training data every epoch", func(c *config.Config) *bool { return &c.Shuffle }),
	{name: "seed", usage: "random seed, 0 seeds from the clock", apply: func(c *config.Config, v string) (err error) {
		c.Seed, err = strconv.ParseInt(v, 10, 64)
		return err
	}},
	floatOption("clip", "set weights with |w| below this value to zero after every update", func(c *config.Config) *float64 { return &c.Clip }),
	floatOption("gradient-step", "finite difference step of the gradient check, 0 disables it", func(c *config.Config) *float64 { return &c.GradientStep }),
	floatOption("gradient-tolerance", "relative tolerance of the gradient check", func(c *config.Config) *float64 { return &c.GradientTolerance }),
	boolOption("statistics", "compute loss and accuracy after every epoch", func(c *config.Config) *bool { return &c.Statistics }),
	boolOption("debug", "log the model and batch buffers of every batch", func(c *config.Config) *bool { return &c.Debug }),
	intOption("threads", "worker goroutines of the sparse kernels, 0 uses every physical core", func(c *config.Config) *int { return &c.Threads }),
	stringOption("dataset", "checkerboard, mini, csv:<train>,<test> or mnist:<dir>", func(c *config.Config) *string { return &c.Dataset }),
	intOption("dataset-size", "number of generated training examples", func(c *config.Config) *int { return &c.DatasetSize }),
	stringOption("prune", "prune strategy applied after every epoch, e.g. Magnitude(0.2)", func(c *config.Config) *string { return &c.Prune }),
	stringOption("grow", "regrow pruned weights: Random", func(c *config.Config) *string { return &c.Grow }),
	{name: "prune-layer", usage: "1-based layers to prune, default every sparse layer", apply: func(c *config.Config, v string) (err error) {
		c.PruneLayer, err = splitList(v, strconv.Atoi)
		return err
	}},
	stringOption("save", "write the trained network to this .snet file", func(c *config.Config) *string { return &c.Save }),
	stringOption("load", "start from the network in this .snet file", func(c *config.Config) *string { return &c.Load }),
	stringOption("run-id", "run identifier (UUID) stored in the checkpoint", func(c *config.Config) *string { return &c.RunID }),
}

// parseArgs builds the configuration: defaults, then the file given by
// -config, then every flag set on the command line.
func parseArgs(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("sparsenet", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	for _, o := range options {
		if o.boolean {
			fs.Bool(o.name, false, o.usage)
		} else {
			fs.String(o.name, "", o.usage)
		}
	}
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if fs.NArg() > 0 {
		return config.Config{}, fmt.Errorf("unexpected arguments %v", fs.Args())
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return config.Config{}, err
		}
	}

	byName := make(map[string]option, len(options))
	for _, o := range options {
		byName[o.name] = o
	}
	var err error
	fs.Visit(func(f *flag.Flag) {
		o, ok := byName[f.Name]
		if !ok || err != nil {
			return
		}
		if aerr := o.apply(&cfg, f.Value.String()); aerr != nil {
			err = fmt.Errorf("-%s: %w", f.Name, aerr)
		}
	})
	return cfg, err
}
