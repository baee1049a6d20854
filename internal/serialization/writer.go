package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/sparsenet/internal/nn"
	"github.com/born-ml/sparsenet/internal/tensor"
)

// section collects the tensors of the data section in write order.
type section struct {
	tensors []TensorMeta
	chunks  [][]byte
	size    int64
}

func (s *section) add(name, dtype string, shape []int, data []byte) {
	s.tensors = append(s.tensors, TensorMeta{
		Name:   name,
		DType:  dtype,
		Shape:  shape,
		Offset: s.size,
		Size:   int64(len(data)),
	})
	s.chunks = append(s.chunks, data)
	s.size += int64(len(data))
}

func (s *section) bytes() []byte {
	data := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	return data
}

// tensorName returns the name of a tensor of the 1-based layer i.
func tensorName(i int, name string) string {
	return strconv.Itoa(i) + "." + name
}

func encodeFloats[T tensor.Float](values []T) []byte {
	switch v := any(values).(type) {
	case []float32:
		b := make([]byte, 4*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(x))
		}
		return b
	case []float64:
		b := make([]byte, 8*len(v))
		for i, x := range v {
			binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
		}
		return b
	}
	panic("unsupported type")
}

func encodeInts(values []int) []byte {
	b := make([]byte, 8*len(values))
	for i, x := range values {
		binary.LittleEndian.PutUint64(b[8*i:], uint64(int64(x)))
	}
	return b
}

// describe lays out the layers and parameters of m.
func describe[T tensor.Float](m *nn.MLP[T]) ([]LayerMeta, *section, bool, error) {
	dtype := dtypeOf[T]()
	layers := make([]LayerMeta, 0, len(m.Layers))
	s := &section{}
	hasSparse := false

	for k, layer := range m.Layers {
		i := k + 1
		switch l := layer.(type) {
		case *nn.Linear[T]:
			w := l.Weights()
			layers = append(layers, LayerMeta{Kind: l.Kind(), Inputs: l.Inputs(), Outputs: l.Outputs(), Sparse: w.Sparse()})
			if sw, ok := w.(*nn.SparseWeights[T]); ok {
				hasSparse = true
				csr := sw.W
				s.add(tensorName(i, "W.offsets"), DTypeInt64, []int{len(csr.Offsets())}, encodeInts(csr.Offsets()))
				s.add(tensorName(i, "W.columns"), DTypeInt64, []int{csr.NNZ()}, encodeInts(csr.Columns()))
				s.add(tensorName(i, "W.values"), dtype, []int{csr.NNZ()}, encodeFloats(csr.Values()))
			} else {
				s.add(tensorName(i, "W"), dtype, []int{l.Outputs(), l.Inputs()}, encodeFloats(w.Values()))
			}
			s.add(tensorName(i, "b"), dtype, []int{1, l.Outputs()}, encodeFloats(l.Bias().Data()))

		case *nn.BatchNorm[T]:
			n := l.Inputs()
			layers = append(layers, LayerMeta{Kind: batchNormKind, Inputs: n, Outputs: n})
			s.add(tensorName(i, "gamma"), dtype, []int{1, n}, encodeFloats(l.Gamma().Data()))
			s.add(tensorName(i, "beta"), dtype, []int{1, n}, encodeFloats(l.Beta().Data()))
			s.add(tensorName(i, "running_mean"), dtype, []int{1, n}, encodeFloats(l.RunningMean.Data()))
			s.add(tensorName(i, "running_var"), dtype, []int{1, n}, encodeFloats(l.RunningVar.Data()))

		default:
			return nil, nil, false, fmt.Errorf("%w: layer %d has unsupported type %T", ErrArchitecture, i, layer)
		}
	}
	return layers, s, hasSparse, nil
}

const batchNormKind = "BatchNorm"

// Write writes m in .snet format and returns the header that was written.
func Write[T tensor.Float](w io.Writer, m *nn.MLP[T], meta Meta) (*Header, error) {
	layers, s, hasSparse, err := describe(m)
	if err != nil {
		return nil, err
	}
	runID := meta.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	header := &Header{
		FormatVersion: FormatVersion,
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Precision:     dtypeOf[T](),
		Layers:        layers,
		Tensors:       s.tensors,
		Metadata:      meta.Metadata,
	}

	data := s.bytes()
	checksum := ComputeChecksum(data)
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}

	// 0x00-0x03 magic, 0x04-0x07 version, 0x08-0x0B flags, 0x0C-0x0F reserved,
	// 0x10-0x17 header size, 0x18-0x1F data size, 0x20-0x3F checksum.
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	var flags uint32
	if hasSparse {
		flags |= FlagHasSparse
	}
	if len(meta.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(fixed); err != nil {
		return nil, fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return nil, fmt.Errorf("failed to write header JSON: %w", err)
	}
	if _, err := bw.Write(make([]byte, padding(FixedHeaderSize+len(headerJSON)))); err != nil {
		return nil, fmt.Errorf("failed to write padding: %w", err)
	}
	if _, err := bw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write tensor data: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write tensor data: %w", err)
	}
	return header, nil
}

// padding returns the number of zero bytes that align pos to HeaderAlignment.
func padding(pos int) int {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}

// Save writes m to a .snet file at path.
func Save[T tensor.Float](path string, m *nn.MLP[T], meta Meta) (header *Header, err error) {
	//nolint:gosec // G304: checkpoint path comes from the command line
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close checkpoint: %w", cerr)
		}
	}()
	return Write(f, m, meta)
}
