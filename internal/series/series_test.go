package series

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesCreation(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("string series", func(t *testing.T) {
		s := New("names", []string{"a", "b", "c"}, mem)
		defer s.Release()

		assert.Equal(t, "names", s.Name())
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, arrow.BinaryTypes.String, s.DataType())
		assert.Equal(t, []string{"a", "b", "c"}, s.Values())
	})

	t.Run("int64 series", func(t *testing.T) {
		s := New("ids", []int64{1, 2, 3}, mem)
		defer s.Release()

		assert.Equal(t, arrow.PrimitiveTypes.Int64, s.DataType())
		assert.Equal(t, int64(2), s.Value(1))
	})

	t.Run("float64 series", func(t *testing.T) {
		s := New("v", []float64{1.5, -0.25}, mem)
		defer s.Release()

		assert.Equal(t, []float64{1.5, -0.25}, s.Values())
		assert.Equal(t, "Series[float64]: v (len=2)", s.String())
	})

	t.Run("bool series", func(t *testing.T) {
		s := New("flags", []bool{true, false}, mem)
		defer s.Release()

		assert.True(t, s.Value(0))
		assert.False(t, s.Value(1))
	})

	t.Run("empty series", func(t *testing.T) {
		s := New("empty", []float64{}, mem)
		defer s.Release()

		assert.Equal(t, 0, s.Len())
		assert.Empty(t, s.Values())
	})
}

func TestNewSafeUnsupportedType(t *testing.T) {
	_, err := NewSafe("u", []uint8{1}, memory.NewGoAllocator())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	assert.Panics(t, func() {
		New("u", []complex128{1}, memory.NewGoAllocator())
	})
}

func TestNewNullable(t *testing.T) {
	mem := memory.NewGoAllocator()

	s, err := NewNullable("v", []float64{1, 0, 3}, []bool{true, false, true}, mem)
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, 1, s.NullN())
	assert.True(t, s.IsNull(1))
	assert.Equal(t, float64(0), s.Value(1))
	assert.Equal(t, "", s.GetAsString(1))
	assert.Equal(t, "3", s.GetAsString(2))

	_, err = NewNullable("v", []float64{1}, []bool{true, false}, mem)
	assert.Error(t, err)
}

func TestFromArrowAndRename(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := New("a", []int64{7, 8}, mem)
	arr := s.Array()
	s.Release()

	wrapped := FromArrow[int64]("b", arr)
	arr.Release()
	defer wrapped.Release()

	renamed := wrapped.Rename("c")
	defer renamed.Release()

	assert.Equal(t, "c", renamed.Name())
	assert.Equal(t, []int64{7, 8}, renamed.Values())
}

func TestValueOutOfRange(t *testing.T) {
	s := New("v", []int64{1}, memory.NewGoAllocator())
	defer s.Release()

	assert.Equal(t, int64(0), s.Value(-1))
	assert.Equal(t, int64(0), s.Value(5))
	assert.Equal(t, "", s.GetAsString(5))
}

func TestNumericAccessor(t *testing.T) {
	mem := memory.NewGoAllocator()

	s, err := NewNullable("v", []int32{4, 0}, []bool{true, false}, mem)
	require.NoError(t, err)
	defer s.Release()

	arr := s.Array()
	defer arr.Release()

	get, ok := NumericAccessor(arr)
	require.True(t, ok)

	v, present := get(0)
	assert.True(t, present)
	assert.Equal(t, 4.0, v)

	_, present = get(1)
	assert.False(t, present)

	str := New("s", []string{"x"}, mem)
	defer str.Release()
	strArr := str.Array()
	defer strArr.Release()

	_, ok = NumericAccessor(strArr)
	assert.False(t, ok)
	assert.False(t, IsNumeric(strArr.DataType()))
	assert.True(t, IsNumeric(arrow.PrimitiveTypes.Float32))
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		valid  []bool
		want   float64
		wantOK bool
	}{
		{"all present", []float64{0.5, 0.7}, nil, 0.6, true},
		{"skips nulls", []float64{1, 100, 3}, []bool{true, false, true}, 2, true},
		{"all null", []float64{1, 2}, []bool{false, false}, 0, false},
		{"empty", nil, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Mean(tt.values, tt.valid)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	got, ok := Mean([]float64{math.NaN(), 1}, nil)
	assert.True(t, ok, "NaN is skipped like a null")
	assert.InDelta(t, 1, got, 1e-12)

	_, ok = Mean([]float64{math.NaN()}, nil)
	assert.False(t, ok)
}
