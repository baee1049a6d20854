package serialization

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantType string // empty means valid
	}{
		{
			name: "adjacent",
			tensors: []TensorMeta{
				{Name: "1.W", Offset: 0, Size: 96},
				{Name: "1.b", Offset: 96, Size: 32},
			},
			dataSize: 128,
		},
		{
			name: "overlap by one byte",
			tensors: []TensorMeta{
				{Name: "1.W", Offset: 0, Size: 96},
				{Name: "1.b", Offset: 95, Size: 32},
			},
			dataSize: 128,
			wantType: "offset_overlap",
		},
		{
			name: "unsorted overlap",
			tensors: []TensorMeta{
				{Name: "2.gamma", Offset: 40, Size: 16},
				{Name: "2.beta", Offset: 32, Size: 16},
			},
			dataSize: 128,
			wantType: "offset_overlap",
		},
		{
			name:     "past the end",
			tensors:  []TensorMeta{{Name: "1.W.values", Offset: 64, Size: 65}},
			dataSize: 128,
			wantType: "out_of_bounds",
		},
		{
			name:     "negative offset",
			tensors:  []TensorMeta{{Name: "1.W.columns", Offset: -8, Size: 8}},
			dataSize: 128,
			wantType: "negative_offset",
		},
		{
			name:     "negative size",
			tensors:  []TensorMeta{{Name: "1.W.offsets", Offset: 0, Size: -8}},
			dataSize: 128,
			wantType: "negative_offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantType == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Type != tt.wantType {
				t.Errorf("expected %s, got %s", tt.wantType, verr.Type)
			}
		})
	}
}

func TestValidateTensorOffsets_TooManyTensors(t *testing.T) {
	tensors := make([]TensorMeta, MaxTensorCount+1)
	if err := ValidateTensorOffsets(tensors, 0); err == nil {
		t.Error("expected error for too many tensors")
	}
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{"1.W", "1.W.offsets", "12.running_var"} {
		if err := ValidateTensorName(name); err != nil {
			t.Errorf("%q: unexpected error %v", name, err)
		}
	}
	for _, name := range []string{"", "../1.W", "1/W", "1\\W", "1.W\x00", strings.Repeat("w", MaxTensorNameLen+1)} {
		if err := ValidateTensorName(name); err == nil {
			t.Errorf("%q: expected error", name)
		}
	}
}

func TestValidateTensorMeta(t *testing.T) {
	good := []TensorMeta{
		{Name: "1.W", DType: DTypeFloat32, Shape: []int{3, 4}, Size: 48},
		{Name: "1.W.columns", DType: DTypeInt64, Shape: []int{5}, Size: 40},
		{Name: "1.b", DType: DTypeFloat64, Shape: []int{1, 3}, Size: 24},
	}
	for _, m := range good {
		if err := ValidateTensorMeta(m); err != nil {
			t.Errorf("%s: unexpected error %v", m.Name, err)
		}
	}
	bad := []TensorMeta{
		{Name: "1.W", DType: "int8", Shape: []int{3, 4}, Size: 12},
		{Name: "1.W", DType: DTypeFloat32, Shape: []int{3, 4}, Size: 96},
		{Name: "1.W", DType: DTypeFloat32, Shape: []int{-3, 4}, Size: 48},
	}
	for _, m := range bad {
		if err := ValidateTensorMeta(m); err == nil {
			t.Errorf("%+v: expected error", m)
		}
	}
}

func TestValidateHeader_Levels(t *testing.T) {
	header := Header{
		FormatVersion: FormatVersion,
		Tensors: []TensorMeta{
			{Name: "1.W", DType: DTypeFloat32, Shape: []int{2, 2}, Offset: 0, Size: 16},
			{Name: "1.b", DType: DTypeFloat32, Shape: []int{1, 2}, Offset: 8, Size: 8},
		},
	}
	if err := ValidateHeader(&header, 32, ValidationStrict); err == nil {
		t.Error("strict validation should detect the overlap")
	}
	if err := ValidateHeader(&header, 32, ValidationNormal); err != nil {
		t.Errorf("normal validation should skip region checks, got %v", err)
	}

	header.Tensors = append(header.Tensors, TensorMeta{Name: "1.b", DType: DTypeFloat32, Shape: []int{1, 2}, Offset: 24, Size: 8})
	if err := ValidateHeader(&header, 32, ValidationNormal); err == nil {
		t.Error("duplicate tensor names should be rejected")
	}

	header.FormatVersion = 7
	if err := ValidateHeader(&header, 32, ValidationNormal); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
	if err := ValidateHeader(&header, 32, ValidationNone); err != nil {
		t.Errorf("ValidationNone should skip all checks, got %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		err      *ValidationError
		expected string
	}{
		{
			&ValidationError{Type: "out_of_bounds", Tensor: "1.W", Details: "offset 100 + size 200 > data_size 250"},
			`out_of_bounds: tensor "1.W": offset 100 + size 200 > data_size 250`,
		},
		{
			&ValidationError{Type: "offset_overlap", Tensor: "1.W", Tensor2: "1.b", Details: "regions [0-100] and [50-150] overlap"},
			`offset_overlap: tensors "1.W" and "1.b": regions [0-100] and [50-150] overlap`,
		},
		{
			&ValidationError{Type: "too_many_tensors", Details: "got 100001, max 100000"},
			"too_many_tensors: got 100001, max 100000",
		},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}

func FuzzValidateTensorName(f *testing.F) {
	f.Add("1.W.values")
	f.Add("../1.W")
	f.Add("\x00")
	f.Fuzz(func(_ *testing.T, name string) {
		_ = ValidateTensorName(name)
	})
}

func FuzzParse(f *testing.F) {
	f.Add([]byte(MagicBytes))
	f.Add(make([]byte, FixedHeaderSize))
	f.Fuzz(func(_ *testing.T, b []byte) {
		_, _ = Parse(b, ReadOptions{SkipChecksumValidation: true})
	})
}
