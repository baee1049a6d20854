package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/born-ml/sparsenet/internal/tensor"
)

// ReadCSV reads labelled examples from r.
//
// CSV format:
//
//	label,x0,x1,...,xn
//	1,0.5,0.25,...,0.0
//
// A first row whose label field is not an integer is treated as a header.
// All rows must have the same number of fields.
func ReadCSV(r io.Reader) ([][]float64, []int, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) > 0 {
		if _, err := strconv.Atoi(records[0][0]); err != nil {
			records = records[1:]
		}
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("CSV file has no examples")
	}
	if len(records[0]) < 2 {
		return nil, nil, fmt.Errorf("CSV rows need a label and at least one feature")
	}

	X := make([][]float64, len(records))
	labels := make([]int, len(records))
	for i, record := range records {
		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid label at row %d: %w", i+1, err)
		}
		if label < 0 {
			return nil, nil, fmt.Errorf("%w: negative label at row %d: %d", ErrInvalidLabel, i+1, label)
		}
		labels[i] = label
		X[i] = make([]float64, len(record)-1)
		for j, field := range record[1:] {
			x, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid value at row %d, column %d: %w", i+1, j+2, err)
			}
			X[i][j] = x
		}
	}
	return X, labels, nil
}

func readCSVFile(filename string) ([][]float64, []int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	X, labels, err := ReadCSV(file)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filename, err)
	}
	return X, labels, nil
}

// LoadCSV loads a dataset from a training and a test CSV file.
func LoadCSV[T tensor.Float](trainFile, testFile string) (*Dataset[T], error) {
	Xtrain, Ltrain, err := readCSVFile(trainFile)
	if err != nil {
		return nil, err
	}
	Xtest, Ltest, err := readCSVFile(testFile)
	if err != nil {
		return nil, err
	}
	return newFromRows[T](Xtrain, Ltrain, Xtest, Ltest, len(Xtrain[0]))
}
