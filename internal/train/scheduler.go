package train

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/born-ml/sparsenet/internal/funcall"
)

// Scheduler returns the learning rate used during an epoch.
type Scheduler interface {
	// LearningRate returns the learning rate for the 0-based epoch.
	LearningRate(epoch int) float64

	// String returns the textual form accepted by ParseScheduler.
	String() string
}

// ConstantScheduler keeps the learning rate fixed.
type ConstantScheduler struct {
	LR float64
}

func (s ConstantScheduler) LearningRate(int) float64 { return s.LR }

func (s ConstantScheduler) String() string { return fmt.Sprintf("Constant(%g)", s.LR) }

// TimeBasedScheduler divides the previous learning rate by 1 + decay*epoch:
//
//	lr(0) = LR
//	lr(e) = lr(e-1) / (1 + Decay*e)
type TimeBasedScheduler struct {
	LR    float64
	Decay float64
}

func (s TimeBasedScheduler) LearningRate(epoch int) float64 {
	lr := s.LR
	for e := 1; e <= epoch; e++ {
		lr /= 1 + s.Decay*float64(e)
	}
	return lr
}

func (s TimeBasedScheduler) String() string { return fmt.Sprintf("TimeBased(%g;%g)", s.LR, s.Decay) }

// StepBasedScheduler multiplies the learning rate by DropRate every ChangeRate epochs:
//
//	lr(e) = LR * DropRate^floor((1+e) / ChangeRate)
type StepBasedScheduler struct {
	LR         float64
	DropRate   float64
	ChangeRate float64
}

func (s StepBasedScheduler) LearningRate(epoch int) float64 {
	return s.LR * math.Pow(s.DropRate, math.Floor(float64(1+epoch)/s.ChangeRate))
}

func (s StepBasedScheduler) String() string {
	return fmt.Sprintf("StepBased(%g;%g;%g)", s.LR, s.DropRate, s.ChangeRate)
}

// MultiStepScheduler multiplies the learning rate by Gamma at every milestone epoch.
type MultiStepScheduler struct {
	LR         float64
	Milestones []int // sorted
	Gamma      float64
}

func (s MultiStepScheduler) LearningRate(epoch int) float64 {
	passed := sort.SearchInts(s.Milestones, epoch+1)
	return s.LR * math.Pow(s.Gamma, float64(passed))
}

func (s MultiStepScheduler) String() string {
	milestones := ""
	for i, m := range s.Milestones {
		if i > 0 {
			milestones += ","
		}
		milestones += fmt.Sprint(m)
	}
	return fmt.Sprintf("MultiStepLR(%g;%s;%g)", s.LR, milestones, s.Gamma)
}

// ExponentialScheduler decays the learning rate as LR * exp(-ChangeRate*epoch).
type ExponentialScheduler struct {
	LR         float64
	ChangeRate float64
}

func (s ExponentialScheduler) LearningRate(epoch int) float64 {
	return s.LR * math.Exp(-s.ChangeRate*float64(epoch))
}

func (s ExponentialScheduler) String() string {
	return fmt.Sprintf("Exponential(%g;%g)", s.LR, s.ChangeRate)
}

// ParseScheduler parses a learning rate schedule. A bare number is a constant
// learning rate.
//
// Supported values:
//
//	Constant(lr)
//	TimeBased(lr;decay)
//	StepBased(lr;drop_rate;change_rate)
//	MultiStepLR(lr;m1,m2,...;gamma)
//	Exponential(lr;change_rate)
func ParseScheduler(text string) (Scheduler, error) {
	c, err := funcall.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownScheduler, err)
	}
	if len(c.Args) == 0 {
		if _, err := strconv.ParseFloat(c.Name, 64); err == nil {
			c = funcall.Call{Name: "Constant", Args: []string{c.Name}}
		}
	}

	var arity int
	switch c.Name {
	case "Constant":
		arity = 1
	case "TimeBased", "Exponential":
		arity = 2
	case "StepBased", "MultiStepLR":
		arity = 3
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheduler, text)
	}
	if err := c.Arity(arity, arity); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownScheduler, err)
	}

	lr, err := c.Float(0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownScheduler, err)
	}
	var a, b float64
	if c.Name != "MultiStepLR" {
		a, err = c.Float(1, 0)
		if err == nil {
			b, err = c.Float(2, 0)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownScheduler, err)
		}
	}

	switch c.Name {
	case "Constant":
		return ConstantScheduler{LR: lr}, nil
	case "TimeBased":
		return TimeBasedScheduler{LR: lr, Decay: a}, nil
	case "Exponential":
		return ExponentialScheduler{LR: lr, ChangeRate: a}, nil
	case "StepBased":
		if b <= 0 {
			return nil, fmt.Errorf("%w: StepBased change rate must be positive, got %g", ErrUnknownScheduler, b)
		}
		return StepBasedScheduler{LR: lr, DropRate: a, ChangeRate: b}, nil
	default:
		milestones, err := c.Ints(1)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownScheduler, err)
		}
		gamma, err := c.Float(2, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnknownScheduler, err)
		}
		sort.Ints(milestones)
		return MultiStepScheduler{LR: lr, Milestones: milestones, Gamma: gamma}, nil
	}
}
