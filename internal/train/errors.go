package train

import (
	"errors"
	"fmt"
)

var (
	// ErrNumericalCorruption is returned when NaN or Inf values appear in the
	// outputs or gradients of the network.
	ErrNumericalCorruption = errors.New("numerical corruption")

	// ErrGradientMismatch is returned when an analytic gradient disagrees with
	// its finite difference approximation.
	ErrGradientMismatch = errors.New("gradient mismatch")

	// ErrInterrupted is returned together with the partial result when the
	// context of Run is cancelled.
	ErrInterrupted = errors.New("training interrupted")

	// ErrUnknownScheduler is returned by ParseScheduler for unsupported text.
	ErrUnknownScheduler = errors.New("unknown learning rate scheduler")
)

// CorruptionError describes where NaN or Inf values were found.
type CorruptionError struct {
	Epoch int    // 0-based epoch
	Batch int    // 0-based batch within the epoch
	Layer int    // 1-based layer, 0 if the value is not owned by a layer
	What  string // name of the corrupted buffer, e.g. "Y", "DY" or "2.W"
	Dump  string // model state at the time of detection
}

func (e *CorruptionError) Error() string {
	if e.Layer > 0 {
		return fmt.Sprintf("%s: %s of layer %d contains NaN or Inf values (epoch %d, batch %d)",
			ErrNumericalCorruption, e.What, e.Layer, e.Epoch, e.Batch)
	}
	return fmt.Sprintf("%s: %s contains NaN or Inf values (epoch %d, batch %d)",
		ErrNumericalCorruption, e.What, e.Epoch, e.Batch)
}

func (e *CorruptionError) Unwrap() error { return ErrNumericalCorruption }

// GradientError describes the first gradient entry that failed the check.
type GradientError struct {
	Name     string // "DY" or a parameter name such as "1.W"
	Index    int    // flat index into the gradient buffer
	Analytic float64
	Numeric  float64
}

func (e *GradientError) Error() string {
	return fmt.Sprintf("%s: %s[%d]: analytic %g, numeric %g", ErrGradientMismatch, e.Name, e.Index, e.Analytic, e.Numeric)
}

func (e *GradientError) Unwrap() error { return ErrGradientMismatch }
