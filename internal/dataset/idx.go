package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/sparsenet/internal/tensor"
)

const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// ReadIDXImages reads images in IDX format.
//
// IDX format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
func ReadIDXImages(r io.Reader) ([][]byte, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != idxImagesMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", header[0], idxImagesMagic)
	}

	imageSize := int(header[2] * header[3])
	images := make([][]byte, header[1])
	for i := range images {
		images[i] = make([]byte, imageSize)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, fmt.Errorf("failed to read image %d: %w", i, err)
		}
	}
	return images, nil
}

// ReadIDXLabels reads labels in IDX format.
//
// IDX format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func ReadIDXLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", header[0], idxLabelsMagic)
	}

	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

func readIDXFile[R any](filename string, read func(io.Reader) (R, error)) (R, error) {
	file, err := os.Open(filename)
	if err != nil {
		var zero R
		return zero, err
	}
	defer file.Close()
	return read(file)
}

// NormalizePixels maps byte pixels from [0, 255] to [-1, 1].
func NormalizePixels(pixels []byte) []float64 {
	x := make([]float64, len(pixels))
	for i, p := range pixels {
		x[i] = float64(p)
	}
	floats.Scale(2.0/255, x)
	floats.AddConst(-1, x)
	return x
}

func loadIDXPair(dir, prefix string) ([][]float64, []int, error) {
	images, err := readIDXFile(filepath.Join(dir, prefix+"-images-idx3-ubyte"), ReadIDXImages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load images: %w", err)
	}
	rawLabels, err := readIDXFile(filepath.Join(dir, prefix+"-labels-idx1-ubyte"), ReadIDXLabels)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load labels: %w", err)
	}
	if len(images) != len(rawLabels) {
		return nil, nil, fmt.Errorf("image count (%d) != label count (%d)", len(images), len(rawLabels))
	}
	if len(images) == 0 {
		return nil, nil, fmt.Errorf("%s: no images", prefix)
	}

	X := make([][]float64, len(images))
	labels := make([]int, len(images))
	for i, img := range images {
		X[i] = NormalizePixels(img)
		labels[i] = int(rawLabels[i])
	}
	return X, labels, nil
}

// LoadMNIST loads the MNIST dataset from the four IDX files in dir:
// train-images-idx3-ubyte, train-labels-idx1-ubyte, t10k-images-idx3-ubyte
// and t10k-labels-idx1-ubyte. Pixels are normalized to [-1, 1].
func LoadMNIST[T tensor.Float](dir string) (*Dataset[T], error) {
	Xtrain, Ltrain, err := loadIDXPair(dir, "train")
	if err != nil {
		return nil, err
	}
	Xtest, Ltest, err := loadIDXPair(dir, "t10k")
	if err != nil {
		return nil, err
	}
	return newFromRows[T](Xtrain, Ltrain, Xtest, Ltest, len(Xtrain[0]))
}
