package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/sparse"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// ReadOptions configures how a checkpoint is parsed.
type ReadOptions struct {
	SkipChecksumValidation bool
	ValidationLevel        ValidationLevel
}

// Checkpoint is a parsed .snet file.
type Checkpoint struct {
	Header Header
	Flags  uint32

	data  []byte // data section
	index map[string]TensorMeta
}

// Parse parses a complete .snet file held in memory.
func Parse(b []byte, opts ReadOptions) (*Checkpoint, error) {
	if len(b) < FixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, fixed header needs %d", ErrTruncated, len(b), FixedHeaderSize)
	}
	if string(b[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(b[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	c := &Checkpoint{Flags: binary.LittleEndian.Uint32(b[8:12])}

	headerSize := binary.LittleEndian.Uint64(b[16:24])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	dataSize := binary.LittleEndian.Uint64(b[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], b[ChecksumOffset:ChecksumOffset+ChecksumSize])

	end := FixedHeaderSize + int(headerSize)
	if end > len(b) {
		return nil, fmt.Errorf("%w: header ends at %d, file has %d bytes", ErrTruncated, end, len(b))
	}
	if err := json.Unmarshal(b[FixedHeaderSize:end], &c.Header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	start := end + padding(end)
	if start > len(b) || uint64(len(b)-start) < dataSize {
		return nil, fmt.Errorf("%w: data section of %d bytes", ErrTruncated, dataSize)
	}
	c.data = b[start : start+int(dataSize)]

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(c.data), stored); err != nil {
			return nil, err
		}
	}
	if err := ValidateHeader(&c.Header, int64(len(c.data)), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	c.index = make(map[string]TensorMeta, len(c.Header.Tensors))
	for _, t := range c.Header.Tensors {
		c.index[t.Name] = t
	}
	return c, nil
}

// ReadCheckpoint reads and parses a checkpoint from r.
func ReadCheckpoint(r io.Reader, opts ReadOptions) (*Checkpoint, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return Parse(b, opts)
}

// Open reads and parses the checkpoint file at path.
func Open(path string, opts ReadOptions) (*Checkpoint, error) {
	//nolint:gosec // G304: checkpoint path comes from the command line
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	return Parse(b, opts)
}

// TensorNames returns the tensor names in file order.
func (c *Checkpoint) TensorNames() []string {
	names := make([]string, len(c.Header.Tensors))
	for i, t := range c.Header.Tensors {
		names[i] = t.Name
	}
	return names
}

// raw returns the bytes of a tensor after checking its dtype class and element count.
// A negative count accepts any number of elements.
func (c *Checkpoint) raw(name string, float bool, count int) (TensorMeta, []byte, error) {
	t, ok := c.index[name]
	if !ok {
		return t, nil, fmt.Errorf("%w: %q", ErrMissingTensor, name)
	}
	size := dtypeSize(t.DType)
	isFloat := t.DType == DTypeFloat32 || t.DType == DTypeFloat64
	if size == 0 || isFloat != float {
		return t, nil, &ValidationError{Type: "bad_dtype", Tensor: name, Details: fmt.Sprintf("unexpected dtype %q", t.DType)}
	}
	if t.Offset < 0 || t.Size < 0 || t.Offset+t.Size > int64(len(c.data)) || t.Size%int64(size) != 0 {
		return t, nil, &ValidationError{Type: "out_of_bounds", Tensor: name, Details: fmt.Sprintf("offset %d, size %d", t.Offset, t.Size)}
	}
	if n := int(t.Size) / size; count >= 0 && n != count {
		return t, nil, fmt.Errorf("%w: tensor %q has %d elements, expected %d", ErrArchitecture, name, n, count)
	}
	return t, c.data[t.Offset : t.Offset+t.Size], nil
}

// floats decodes a float tensor into the precision T.
func floats[T tensor.Float](c *Checkpoint, name string, count int) ([]T, error) {
	t, b, err := c.raw(name, true, count)
	if err != nil {
		return nil, err
	}
	if t.DType == DTypeFloat32 {
		values := make([]T, len(b)/4)
		for i := range values {
			values[i] = T(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
		}
		return values, nil
	}
	values := make([]T, len(b)/8)
	for i := range values {
		values[i] = T(math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:])))
	}
	return values, nil
}

func (c *Checkpoint) ints(name string, count int) ([]int, error) {
	_, b, err := c.raw(name, false, count)
	if err != nil {
		return nil, err
	}
	values := make([]int, len(b)/8)
	for i := range values {
		values[i] = int(int64(binary.LittleEndian.Uint64(b[8*i:])))
	}
	return values, nil
}

// loadVector copies a float tensor into dst.
func loadVector[T tensor.Float](c *Checkpoint, name string, dst []T) error {
	values, err := floats[T](c, name, len(dst))
	if err != nil {
		return err
	}
	copy(dst, values)
	return nil
}

// weights rebuilds the weight kernel of the 1-based layer i.
func weights[T tensor.Float](c *Checkpoint, i int, lm LayerMeta) (nn.Weights[T], error) {
	if !lm.Sparse {
		values, err := floats[T](c, tensorName(i, "W"), lm.Outputs*lm.Inputs)
		if err != nil {
			return nil, err
		}
		W, err := tensor.FromSlice(values, lm.Outputs, lm.Inputs)
		if err != nil {
			return nil, err
		}
		return &nn.DenseWeights[T]{W: W, DW: tensor.NewMatrix[T](lm.Outputs, lm.Inputs)}, nil
	}

	offsets, err := c.ints(tensorName(i, "W.offsets"), lm.Outputs+1)
	if err != nil {
		return nil, err
	}
	columns, err := c.ints(tensorName(i, "W.columns"), -1)
	if err != nil {
		return nil, err
	}
	values, err := floats[T](c, tensorName(i, "W.values"), len(columns))
	if err != nil {
		return nil, err
	}
	csr, err := sparse.New(lm.Outputs, lm.Inputs, offsets, columns, values)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", i, err)
	}
	return nn.NewSparseWeights(csr), nil
}

func loadBatchNorm[T tensor.Float](c *Checkpoint, i int, l *nn.BatchNorm[T]) error {
	for _, v := range []struct {
		name string
		dst  []T
	}{
		{"gamma", l.Gamma().Data()},
		{"beta", l.Beta().Data()},
		{"running_mean", l.RunningMean.Data()},
		{"running_var", l.RunningVar.Data()},
	} {
		if err := loadVector(c, tensorName(i, v.name), v.dst); err != nil {
			return err
		}
	}
	return nil
}

// Build creates a new network from the checkpoint in precision T. All layers
// use gradient descent until the caller sets another optimizer.
func Build[T tensor.Float](c *Checkpoint) (*nn.MLP[T], error) {
	layers := make([]nn.Layer[T], 0, len(c.Header.Layers))
	for k, lm := range c.Header.Layers {
		i := k + 1
		if lm.Kind == batchNormKind {
			if lm.Inputs != lm.Outputs {
				return nil, fmt.Errorf("%w: batch norm layer %d maps %d to %d", ErrArchitecture, i, lm.Inputs, lm.Outputs)
			}
			bn := nn.NewBatchNorm[T](lm.Inputs)
			if err := loadBatchNorm(c, i, bn); err != nil {
				return nil, err
			}
			layers = append(layers, bn)
			continue
		}

		specs, err := nn.ParseLayers(lm.Kind)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if len(specs) != 1 || specs[0].BatchNorm {
			return nil, fmt.Errorf("%w: layer %d has kind %q", ErrArchitecture, i, lm.Kind)
		}
		w, err := weights[T](c, i, lm)
		if err != nil {
			return nil, err
		}
		l := nn.NewLinear(specs[0].Activation, w)
		if specs[0].Activation == nn.LeakyReLU {
			l.SetAlpha(T(specs[0].Alpha))
		}
		if err := loadVector(c, tensorName(i, "b"), l.Bias().Data()); err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return nn.NewMLP(layers...)
}

// Apply loads the checkpoint parameters into an existing network with the
// same layer kinds and sizes. Sparse weights take the support stored in the
// checkpoint and the optimizer state of the weights starts from zero.
func Apply[T tensor.Float](c *Checkpoint, m *nn.MLP[T]) error {
	if len(c.Header.Layers) != len(m.Layers) {
		return fmt.Errorf("%w: checkpoint has %d layers, model has %d", ErrArchitecture, len(c.Header.Layers), len(m.Layers))
	}
	for k, lm := range c.Header.Layers {
		i := k + 1
		layer := m.Layers[k]
		if layer.Inputs() != lm.Inputs || layer.Outputs() != lm.Outputs {
			return fmt.Errorf("%w: layer %d is (%d, %d), checkpoint has (%d, %d)",
				ErrArchitecture, i, layer.Inputs(), layer.Outputs(), lm.Inputs, lm.Outputs)
		}
		switch l := layer.(type) {
		case *nn.Linear[T]:
			if l.Kind() != lm.Kind {
				return fmt.Errorf("%w: layer %d is %s, checkpoint has %s", ErrArchitecture, i, l.Kind(), lm.Kind)
			}
			w, err := weights[T](c, i, lm)
			if err != nil {
				return err
			}
			if err := l.SetWeights(w); err != nil {
				return err
			}
			if err := loadVector(c, tensorName(i, "b"), l.Bias().Data()); err != nil {
				return err
			}
		case *nn.BatchNorm[T]:
			if lm.Kind != batchNormKind {
				return fmt.Errorf("%w: layer %d is BatchNorm, checkpoint has %s", ErrArchitecture, i, lm.Kind)
			}
			if err := loadBatchNorm(c, i, l); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: layer %d has unsupported type %T", ErrArchitecture, i, layer)
		}
	}
	return nil
}

var defaultReadOptions = ReadOptions{ValidationLevel: ValidationStrict}

// Read reads a checkpoint from r with strict validation and builds a network from it.
func Read[T tensor.Float](r io.Reader) (*nn.MLP[T], *Header, error) {
	c, err := ReadCheckpoint(r, defaultReadOptions)
	if err != nil {
		return nil, nil, err
	}
	m, err := Build[T](c)
	if err != nil {
		return nil, nil, err
	}
	return m, &c.Header, nil
}

// Load reads the checkpoint file at path and builds a network from it.
func Load[T tensor.Float](path string) (*nn.MLP[T], *Header, error) {
	c, err := Open(path, defaultReadOptions)
	if err != nil {
		return nil, nil, err
	}
	m, err := Build[T](c)
	if err != nil {
		return nil, nil, err
	}
	return m, &c.Header, nil
}

// LoadInto reads the checkpoint file at path into m.
func LoadInto[T tensor.Float](path string, m *nn.MLP[T]) (*Header, error) {
	c, err := Open(path, defaultReadOptions)
	if err != nil {
		return nil, err
	}
	if err := Apply(c, m); err != nil {
		return nil, err
	}
	return &c.Header, nil
}
