package expr

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestColumns(t *testing.T, mem memory.Allocator) map[string]arrow.Array {
	t.Helper()

	intBuilder := array.NewInt64Builder(mem)
	defer intBuilder.Release()
	intBuilder.AppendValues([]int64{10, 20, 30, 40}, nil)

	floatBuilder := array.NewFloat64Builder(mem)
	defer floatBuilder.Release()
	floatBuilder.AppendValues([]float64{0.5, 0, 0.3, math.NaN()}, []bool{true, false, true, true})

	stringBuilder := array.NewStringBuilder(mem)
	defer stringBuilder.Release()
	stringBuilder.AppendValues([]string{"a", "b", "c", "d"}, nil)

	boolBuilder := array.NewBooleanBuilder(mem)
	defer boolBuilder.Release()
	boolBuilder.AppendValues([]bool{true, false, true, false}, nil)

	columns := map[string]arrow.Array{
		"age":    intBuilder.NewArray(),
		"score":  floatBuilder.NewArray(),
		"name":   stringBuilder.NewArray(),
		"active": boolBuilder.NewArray(),
	}
	t.Cleanup(func() {
		for _, arr := range columns {
			arr.Release()
		}
	})
	return columns
}

func boolValues(t *testing.T, arr arrow.Array) ([]bool, []bool) {
	t.Helper()
	b, ok := arr.(*array.Boolean)
	require.True(t, ok)
	values := make([]bool, b.Len())
	valid := make([]bool, b.Len())
	for i := range values {
		valid[i] = b.IsValid(i)
		values[i] = valid[i] && b.Value(i)
	}
	return values, valid
}

func TestNewEvaluator(t *testing.T) {
	mem := memory.NewGoAllocator()

	eval := NewEvaluator(mem)
	assert.Equal(t, mem, eval.mem)

	assert.NotNil(t, NewEvaluator(nil).mem)
}

func TestEvaluateComparison(t *testing.T) {
	mem := memory.NewGoAllocator()
	columns := createTestColumns(t, mem)
	eval := NewEvaluator(mem)

	t.Run("int column against literal", func(t *testing.T) {
		result, err := eval.EvaluateBoolean(Col("age").Gt(Lit(25)), columns)
		require.NoError(t, err)
		defer result.Release()

		values, valid := boolValues(t, result)
		assert.Equal(t, []bool{false, false, true, true}, values)
		assert.Equal(t, []bool{true, true, true, true}, valid)
	})

	t.Run("null and NaN are never greater", func(t *testing.T) {
		result, err := eval.EvaluateBoolean(Col("score").Gt(Lit(0.4)), columns)
		require.NoError(t, err)
		defer result.Release()

		values, valid := boolValues(t, result)
		assert.Equal(t, []bool{true, false, false, false}, values)
		assert.Equal(t, []bool{true, false, true, true}, valid)
	})

	t.Run("string equality", func(t *testing.T) {
		result, err := eval.EvaluateBoolean(Col("name").Eq(Lit("c")), columns)
		require.NoError(t, err)
		defer result.Release()

		values, _ := boolValues(t, result)
		assert.Equal(t, []bool{false, false, true, false}, values)
	})

	t.Run("arithmetic operand", func(t *testing.T) {
		for _, e := range []Expr{
			Col("age").Div(Lit(10)).Ge(Lit(3)),
			Col("age").Sub(Lit(5)).Gt(Lit(20)),
			Col("age").Mul(Lit(2)).Ge(Lit(60)),
			Col("age").Add(Lit(1)).Gt(Lit(30)),
		} {
			result, err := eval.EvaluateBoolean(e, columns)
			require.NoError(t, err, e.String())

			values, _ := boolValues(t, result)
			assert.Equal(t, []bool{false, false, true, true}, values, e.String())
			result.Release()
		}
	})
}

func TestEvaluateLogical(t *testing.T) {
	mem := memory.NewGoAllocator()
	columns := createTestColumns(t, mem)
	eval := NewEvaluator(mem)

	t.Run("false and null is false", func(t *testing.T) {
		e := Col("age").Gt(Lit(100)).And(Col("score").Gt(Lit(0)))
		result, err := eval.EvaluateBoolean(e, columns)
		require.NoError(t, err)
		defer result.Release()

		_, valid := boolValues(t, result)
		assert.Equal(t, []bool{true, true, true, true}, valid)
	})

	t.Run("true or null is true", func(t *testing.T) {
		e := Col("age").Gt(Lit(0)).Or(Col("score").Gt(Lit(0)))
		result, err := eval.EvaluateBoolean(e, columns)
		require.NoError(t, err)
		defer result.Release()

		values, valid := boolValues(t, result)
		assert.Equal(t, []bool{true, true, true, true}, values)
		assert.Equal(t, []bool{true, true, true, true}, valid)
	})

	t.Run("not keeps nulls", func(t *testing.T) {
		result, err := eval.EvaluateBoolean(Not(Col("score").Gt(Lit(0.4))), columns)
		require.NoError(t, err)
		defer result.Release()

		values, valid := boolValues(t, result)
		assert.False(t, valid[1])
		assert.Equal(t, []bool{false, false, true, true}, values)
	})

	t.Run("boolean column", func(t *testing.T) {
		indices, err := eval.Selection(Col("active"), columns)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, indices)
	})
}

func TestEvaluateAny(t *testing.T) {
	mem := memory.NewGoAllocator()
	columns := createTestColumns(t, mem)
	eval := NewEvaluator(mem)

	pred := Any(Col("score").Gt(Lit(0.4)), Col("age").Ge(Lit(40)))
	indices, err := eval.Selection(pred, columns)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, indices)

	all := All(Col("age").Gt(Lit(5)), Col("active"))
	indices, err = eval.Selection(all, columns)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, indices)

	indices, err = eval.Selection(Any(), columns)
	require.NoError(t, err)
	assert.Empty(t, indices)
}

func TestEvaluateErrors(t *testing.T) {
	mem := memory.NewGoAllocator()
	columns := createTestColumns(t, mem)
	eval := NewEvaluator(mem)

	tests := []struct {
		name string
		expr Expr
		msg  string
	}{
		{"missing column", Col("missing").Gt(Lit(1)), "column not found"},
		{"string against number", Col("name").Gt(Lit(1)), "cannot compare"},
		{"non-boolean column", Col("age"), "not boolean"},
		{"arithmetic predicate", Col("age").Add(Lit(1)), "not a predicate"},
		{"invalid", Invalid("bad"), "invalid expression: bad"},
		{"unknown function", NewFunction("median", Col("age")), "unsupported function"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval.EvaluateBoolean(tt.expr, columns)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
