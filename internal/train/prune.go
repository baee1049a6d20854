package train

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/born-ml/sparsenet/internal/funcall"
	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/prune"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// ErrUnknownPruneStrategy is returned by ParsePruneStrategy for unsupported text.
var ErrUnknownPruneStrategy = errors.New("unknown prune strategy")

// PruneStrategy selects which weights are removed.
type PruneStrategy int

const (
	// PruneMagnitude removes a fraction of the stored weights with the
	// smallest absolute value.
	PruneMagnitude PruneStrategy = iota

	// PrunePositiveNegative removes a fraction of the positive and,
	// separately, of the negative weights, each with the smallest absolute value.
	PrunePositiveNegative
)

func (s PruneStrategy) String() string {
	if s == PrunePositiveNegative {
		return "PositiveNegative"
	}
	return "Magnitude"
}

// ParsePruneStrategy parses "Magnitude(fraction)" or "PositiveNegative(fraction)".
func ParsePruneStrategy(text string) (PruneStrategy, float64, error) {
	c, err := funcall.Parse(text)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrUnknownPruneStrategy, err)
	}
	var s PruneStrategy
	switch c.Name {
	case "Magnitude":
		s = PruneMagnitude
	case "PositiveNegative":
		s = PrunePositiveNegative
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownPruneStrategy, text)
	}
	if err := c.Arity(1, 1); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrUnknownPruneStrategy, err)
	}
	fraction, err := c.Float(0, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrUnknownPruneStrategy, err)
	}
	if fraction < 0 || fraction > 1 {
		return 0, 0, fmt.Errorf("%w: fraction %g is outside [0, 1]", ErrUnknownPruneStrategy, fraction)
	}
	return s, fraction, nil
}

// PruneHook prunes weights at the end of every epoch and optionally regrows
// the same number of positions at random, which keeps the density of sparse
// layers constant (dynamic sparse training).
//
// Dense layers are pruned by setting weights to zero; they cannot grow.
type PruneHook[T tensor.Float] struct {
	NopHooks

	Model    *nn.MLP[T]
	Strategy PruneStrategy
	Fraction float64
	Layers   []int // 1-based; nil selects every sparse linear layer
	Grow     bool
	Init     nn.Initializer // distribution of regrown weights
	Rng      *rand.Rand
	Logger   *slog.Logger
}

func (h *PruneHook[T]) targets() ([]int, []*nn.Linear[T], error) {
	var indices []int
	var layers []*nn.Linear[T]
	if h.Layers == nil {
		for i, layer := range h.Model.Layers {
			if l, ok := layer.(*nn.Linear[T]); ok && l.Weights().Sparse() {
				indices = append(indices, i+1)
				layers = append(layers, l)
			}
		}
		return indices, layers, nil
	}
	for _, i := range h.Layers {
		if i < 1 || i > len(h.Model.Layers) {
			return nil, nil, fmt.Errorf("prune: layer %d does not exist", i)
		}
		l, ok := h.Model.Layers[i-1].(*nn.Linear[T])
		if !ok {
			return nil, nil, fmt.Errorf("prune: layer %d has no weights", i)
		}
		indices = append(indices, i)
		layers = append(layers, l)
	}
	return indices, layers, nil
}

func fractionOf(n int, fraction float64) int {
	return int(math.Round(fraction * float64(n)))
}

// PruneLayer prunes one layer according to the strategy and returns the
// number of removed weights.
func (h *PruneHook[T]) PruneLayer(l *nn.Linear[T]) int {
	values := l.Weights().Values()
	switch h.Strategy {
	case PrunePositiveNegative:
		positive := fractionOf(prune.Count(values, prune.Positive[T]), h.Fraction)
		negative := fractionOf(prune.Count(values, prune.Negative[T]), h.Fraction)
		return l.Prune(func(w []T, v T) int {
			return prune.PositiveWeights(w, positive, v) + prune.NegativeWeights(w, negative, v)
		})
	default:
		count := fractionOf(prune.Count(values, prune.Nonzero[T]), h.Fraction)
		return l.Prune(func(w []T, v T) int {
			return prune.Magnitude(w, count, v)
		})
	}
}

// OnEndEpoch implements Hooks.
func (h *PruneHook[T]) OnEndEpoch(epoch int) error {
	indices, layers, err := h.targets()
	if err != nil {
		return err
	}
	for k, l := range layers {
		n := h.PruneLayer(l)
		grown := 0
		if h.Grow && n > 0 && l.Weights().Sparse() {
			init := nn.Sampler[T](h.Init, l.Inputs(), l.Outputs(), h.Rng)
			if err := l.Grow(n, h.Rng, init); err != nil {
				return fmt.Errorf("layer %d: %w", indices[k], err)
			}
			grown = n
		}
		if h.Logger != nil {
			h.Logger.Debug("prune", "epoch", epoch, "layer", indices[k], "pruned", n, "grown", grown,
				"density", l.Weights().Density())
		}
	}
	return nil
}
