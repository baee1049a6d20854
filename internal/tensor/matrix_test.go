package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix(t *testing.T) {
	m := NewMatrix[float32](2, 3)
	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, Shape{2, 3}, m.Shape())
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, m.Data())

	empty := NewMatrix[float64](0, 4)
	assert.Equal(t, 0, empty.Len())

	assert.Panics(t, func() { NewMatrix[float64](-1, 2) })
}

func TestFromSlice(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	m, err := FromSlice(data, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6.0, m.At(1, 2))

	data[0] = 100
	assert.Equal(t, 1.0, m.At(0, 0), "FromSlice must copy")

	_, err = FromSlice(data, 4, 2)
	assert.Error(t, err)
}

func TestFromRows(t *testing.T) {
	m, err := FromRows([][]float32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, m.Shape())
	assert.Equal(t, []float32{3, 4}, m.Row(1))

	_, err = FromRows([][]float32{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestMatrix_SetAt(t *testing.T) {
	m := NewMatrix[float64](2, 2)
	m.Set(1, 0, 7)
	assert.Equal(t, 7.0, m.At(1, 0))
	assert.Panics(t, func() { m.At(2, 0) })
	assert.Panics(t, func() { m.Set(0, -1, 1) })
}

func TestMatrix_CloneAndCopy(t *testing.T) {
	m := MustFromRows([][]float64{{1, 2}, {3, 4}})
	c := m.Clone()
	c.Set(0, 0, 9)
	assert.Equal(t, 1.0, m.At(0, 0))

	m.CopyFrom(c)
	assert.True(t, m.Equal(c))
	assert.Panics(t, func() { m.CopyFrom(NewMatrix[float64](1, 2)) })
}

func TestMatrix_Resize(t *testing.T) {
	m := NewMatrix[float32](4, 4)
	m.Resize(2, 3)
	assert.Equal(t, Shape{2, 3}, m.Shape())
	assert.Len(t, m.Data(), 6)

	m.Resize(5, 5)
	assert.Len(t, m.Data(), 25)
}

func TestMatrix_Transpose(t *testing.T) {
	m := MustFromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	expected := MustFromRows([][]float64{{1, 4}, {2, 5}, {3, 6}})
	assert.True(t, expected.Equal(m.Transpose()))
}

func TestMatrix_HasNaN(t *testing.T) {
	m := MustFromRows([][]float64{{1, 2}})
	assert.False(t, m.HasNaN())
	m.Set(0, 1, math.NaN())
	assert.True(t, m.HasNaN())
	m.Set(0, 1, math.Inf(-1))
	assert.True(t, m.HasNaN())
}

func TestMatrix_String(t *testing.T) {
	m := MustFromRows([][]float64{{1, 2}, {3, 4}})
	assert.Equal(t, "[[1.00000000, 2.00000000],\n [3.00000000, 4.00000000]]", m.String())
	assert.Contains(t, Format("W", m), "W (2, 2) =")
}

func TestRandomTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	target := RandomTarget[float32](10, 4, rng)

	sums := NewMatrix[float32](10, 1)
	RowSums(sums, target)
	for _, s := range sums.Data() {
		assert.Equal(t, float32(1), s)
	}
}

func TestParseDataType(t *testing.T) {
	dt, ok := ParseDataType("float32")
	assert.True(t, ok)
	assert.Equal(t, Float32, dt)

	dt, ok = ParseDataType("64")
	assert.True(t, ok)
	assert.Equal(t, Float64, dt)
	assert.Equal(t, 8, dt.Size())

	_, ok = ParseDataType("bfloat16")
	assert.False(t, ok)

	assert.Equal(t, Float32, TypeOf[float32]())
	assert.Equal(t, "float64", TypeOf[float64]().String())
}

func TestShape(t *testing.T) {
	s := Shape{3, 4}
	assert.Equal(t, 12, s.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 0, Shape{0, 5}.NumElements())

	assert.True(t, s.Equal(Shape{3, 4}))
	assert.False(t, s.Equal(Shape{4, 3}))
	assert.False(t, s.Equal(Shape{3, 4, 1}))

	assert.NoError(t, s.Validate())
	assert.Error(t, Shape{2, -1}.Validate())
	assert.Equal(t, "(3, 4)", s.String())

	_, err := FromSlice([]float64{1, 2, 3}, 2, 2)
	assert.ErrorContains(t, err, "(2, 2) requires 4 elements")
}
