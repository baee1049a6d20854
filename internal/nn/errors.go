package nn

import "errors"

// Configuration errors. They are returned at construction time and are never retried.
var (
	// ErrUnknownLayer is returned for unsupported layer text.
	ErrUnknownLayer = errors.New("unknown layer")

	// ErrUnknownLoss is returned for unsupported loss function names.
	ErrUnknownLoss = errors.New("unknown loss function")

	// ErrUnknownInit is returned for unsupported weight initialization names.
	ErrUnknownInit = errors.New("unknown weight initialization")

	// ErrShapeMismatch is returned when matrix dimensions do not fit a layer.
	ErrShapeMismatch = errors.New("shape mismatch")
)
