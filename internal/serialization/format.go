package serialization

import (
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "SNET"
	FormatVersion   = 1
	HeaderAlignment = 64   // tensor data starts at a multiple of 64 bytes
	FixedHeaderSize = 64   // magic, version, flags, sizes, checksum
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // checksum position in the fixed header
)

// Data type names used in the header.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeInt64   = "int64"
)

// Flags of the fixed header.
const (
	FlagHasSparse   uint32 = 1 << 0 // at least one layer stores CSR weights
	FlagHasMetadata uint32 = 1 << 1 // custom metadata included
)

// Header is the JSON header of a .snet file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	RunID         uuid.UUID         `json:"run_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Precision     string            `json:"precision"` // dtype of the parameters when saved
	Layers        []LayerMeta       `json:"layers"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// LayerMeta describes one layer of the saved network.
type LayerMeta struct {
	Kind    string `json:"kind"` // layer text accepted by nn.ParseLayers, e.g. "ReLU" or "BatchNorm"
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
	Sparse  bool   `json:"sparse,omitempty"`
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "1.W", "1.W.offsets", "2.gamma"
	DType  string `json:"dtype"`  // "float32", "float64" or "int64"
	Shape  []int  `json:"shape"`  // rows, cols
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// Meta holds the caller supplied fields of a header.
type Meta struct {
	RunID    uuid.UUID // a new random id is used when zero
	Metadata map[string]string
}

// dtypeSize returns the size in bytes of one element, or 0 for unknown types.
func dtypeSize(dtype string) int {
	switch dtype {
	case DTypeFloat32:
		return 4
	case DTypeFloat64, DTypeInt64:
		return 8
	default:
		return 0
	}
}

// dtypeOf returns the header name of T.
func dtypeOf[T tensor.Float]() string {
	if tensor.TypeOf[T]() == tensor.Float32 {
		return DTypeFloat32
	}
	return DTypeFloat64
}
