package expr

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/groupbench/internal/series"
)

// Evaluator evaluates expressions against Arrow arrays
type Evaluator struct {
	mem memory.Allocator
}

// NewEvaluator creates a new expression evaluator
func NewEvaluator(mem memory.Allocator) *Evaluator {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Evaluator{mem: mem}
}

// mask is a three-valued boolean column: valid[i] == false means null.
type mask struct {
	values []bool
	valid  []bool
}

func newMask(n int) mask {
	return mask{values: make([]bool, n), valid: make([]bool, n)}
}

// EvaluateBoolean evaluates a predicate to a boolean array of the same length
// as the input columns. Comparisons involving a null operand yield null.
func (e *Evaluator) EvaluateBoolean(expr Expr, columns map[string]arrow.Array) (arrow.Array, error) {
	m, err := e.evalMask(expr, columns, getArrayLength(columns))
	if err != nil {
		return nil, err
	}

	builder := array.NewBooleanBuilder(e.mem)
	defer builder.Release()
	builder.AppendValues(m.values, m.valid)
	return builder.NewArray(), nil
}

// Selection returns the row indices where expr is true. Null rows are dropped.
func (e *Evaluator) Selection(expr Expr, columns map[string]arrow.Array) ([]int, error) {
	m, err := e.evalMask(expr, columns, getArrayLength(columns))
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(m.values))
	for i, v := range m.values {
		if v && m.valid[i] {
			indices = append(indices, i)
		}
	}
	return indices, nil
}

func (e *Evaluator) evalMask(expr Expr, columns map[string]arrow.Array, n int) (mask, error) {
	switch ex := expr.(type) {
	case *ColumnExpr:
		return e.columnMask(ex, columns)
	case *LiteralExpr:
		b, ok := ex.value.(bool)
		if !ok {
			return mask{}, fmt.Errorf("literal %v is not a boolean", ex.value)
		}
		m := newMask(n)
		for i := range m.values {
			m.values[i] = b
			m.valid[i] = true
		}
		return m, nil
	case *BinaryExpr:
		switch {
		case ex.op.IsComparison():
			return e.evaluateComparison(ex, columns, n)
		case ex.op.IsLogical():
			return e.evaluateLogical(ex, columns, n)
		default:
			return mask{}, fmt.Errorf("arithmetic expression %s is not a predicate", ex)
		}
	case *UnaryExpr:
		if ex.op != UnaryNot {
			return mask{}, fmt.Errorf("negation %s is not a predicate", ex)
		}
		m, err := e.evalMask(ex.operand, columns, n)
		if err != nil {
			return mask{}, err
		}
		for i := range m.values {
			m.values[i] = !m.values[i]
		}
		return m, nil
	case *FunctionExpr:
		return e.evaluateFunction(ex, columns, n)
	case *InvalidExpr:
		return mask{}, fmt.Errorf("invalid expression: %s", ex.Message())
	default:
		return mask{}, fmt.Errorf("unsupported expression type for boolean evaluation: %T", expr)
	}
}

func (e *Evaluator) columnMask(expr *ColumnExpr, columns map[string]arrow.Array) (mask, error) {
	arr, exists := columns[expr.name]
	if !exists {
		return mask{}, fmt.Errorf("column not found: %s", expr.name)
	}
	b, ok := arr.(*array.Boolean)
	if !ok {
		return mask{}, fmt.Errorf("column %s is %s, not boolean", expr.name, arr.DataType())
	}

	m := newMask(b.Len())
	for i := range m.values {
		if b.IsValid(i) {
			m.valid[i] = true
			m.values[i] = b.Value(i)
		}
	}
	return m, nil
}

func (e *Evaluator) evaluateComparison(expr *BinaryExpr, columns map[string]arrow.Array, n int) (mask, error) {
	if e.isStringOperand(expr.left, columns) || e.isStringOperand(expr.right, columns) {
		return e.evaluateStringComparison(expr, columns, n)
	}

	left, err := e.numericOperand(expr.left, columns)
	if err != nil {
		return mask{}, err
	}
	right, err := e.numericOperand(expr.right, columns)
	if err != nil {
		return mask{}, err
	}

	cmp := float64Comparator(expr.op)
	m := newMask(n)
	for i := 0; i < n; i++ {
		l, lok := left(i)
		r, rok := right(i)
		if !lok || !rok {
			continue
		}
		m.valid[i] = true
		m.values[i] = cmp(l, r)
	}
	return m, nil
}

// float64Comparator follows IEEE semantics: any ordered comparison with NaN is false.
func float64Comparator(op BinaryOp) func(l, r float64) bool {
	switch op {
	case OpEq:
		return func(l, r float64) bool { return l == r }
	case OpNe:
		return func(l, r float64) bool { return l != r }
	case OpLt:
		return func(l, r float64) bool { return l < r }
	case OpLe:
		return func(l, r float64) bool { return l <= r }
	case OpGt:
		return func(l, r float64) bool { return l > r }
	default:
		return func(l, r float64) bool { return l >= r }
	}
}

func (e *Evaluator) isStringOperand(expr Expr, columns map[string]arrow.Array) bool {
	switch ex := expr.(type) {
	case *LiteralExpr:
		_, ok := ex.value.(string)
		return ok
	case *ColumnExpr:
		arr, ok := columns[ex.name]
		return ok && arr.DataType().ID() == arrow.STRING
	default:
		return false
	}
}

func (e *Evaluator) stringOperand(expr Expr, columns map[string]arrow.Array) (func(int) (string, bool), error) {
	switch ex := expr.(type) {
	case *LiteralExpr:
		s, ok := ex.value.(string)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %v", ex.value)
		}
		return func(int) (string, bool) { return s, true }, nil
	case *ColumnExpr:
		arr, exists := columns[ex.name]
		if !exists {
			return nil, fmt.Errorf("column not found: %s", ex.name)
		}
		str, ok := arr.(*array.String)
		if !ok {
			return nil, fmt.Errorf("cannot compare %s column %s with a string", arr.DataType(), ex.name)
		}
		return func(i int) (string, bool) {
			if str.IsNull(i) {
				return "", false
			}
			return str.Value(i), true
		}, nil
	default:
		return nil, fmt.Errorf("unsupported string operand: %s", expr)
	}
}

func (e *Evaluator) evaluateStringComparison(expr *BinaryExpr, columns map[string]arrow.Array, n int) (mask, error) {
	left, err := e.stringOperand(expr.left, columns)
	if err != nil {
		return mask{}, err
	}
	right, err := e.stringOperand(expr.right, columns)
	if err != nil {
		return mask{}, err
	}

	m := newMask(n)
	for i := 0; i < n; i++ {
		l, lok := left(i)
		r, rok := right(i)
		if !lok || !rok {
			continue
		}
		m.valid[i] = true
		switch expr.op {
		case OpEq:
			m.values[i] = l == r
		case OpNe:
			m.values[i] = l != r
		case OpLt:
			m.values[i] = l < r
		case OpLe:
			m.values[i] = l <= r
		case OpGt:
			m.values[i] = l > r
		case OpGe:
			m.values[i] = l >= r
		}
	}
	return m, nil
}

func (e *Evaluator) numericOperand(expr Expr, columns map[string]arrow.Array) (series.Accessor, error) {
	switch ex := expr.(type) {
	case *ColumnExpr:
		arr, exists := columns[ex.name]
		if !exists {
			return nil, fmt.Errorf("column not found: %s", ex.name)
		}
		get, ok := series.NumericAccessor(arr)
		if !ok {
			return nil, fmt.Errorf("column %s has non-numeric type %s", ex.name, arr.DataType())
		}
		return get, nil
	case *LiteralExpr:
		v, ok := toFloat64(ex.value)
		if !ok {
			return nil, fmt.Errorf("literal %v is not numeric", ex.value)
		}
		return func(int) (float64, bool) { return v, true }, nil
	case *UnaryExpr:
		if ex.op != UnaryNeg {
			return nil, fmt.Errorf("%s is not numeric", ex)
		}
		inner, err := e.numericOperand(ex.operand, columns)
		if err != nil {
			return nil, err
		}
		return func(i int) (float64, bool) {
			v, ok := inner(i)
			return -v, ok
		}, nil
	case *BinaryExpr:
		return e.evaluateArithmetic(ex, columns)
	default:
		return nil, fmt.Errorf("unsupported numeric operand: %s", expr)
	}
}

func (e *Evaluator) evaluateArithmetic(expr *BinaryExpr, columns map[string]arrow.Array) (series.Accessor, error) {
	if expr.op > OpDiv {
		return nil, fmt.Errorf("%s is not numeric", expr)
	}
	left, err := e.numericOperand(expr.left, columns)
	if err != nil {
		return nil, err
	}
	right, err := e.numericOperand(expr.right, columns)
	if err != nil {
		return nil, err
	}

	op := expr.op
	return func(i int) (float64, bool) {
		l, lok := left(i)
		r, rok := right(i)
		if !lok || !rok {
			return 0, false
		}
		switch op {
		case OpAdd:
			return l + r, true
		case OpSub:
			return l - r, true
		case OpMul:
			return l * r, true
		default:
			if r == 0 {
				return math.NaN(), true
			}
			return l / r, true
		}
	}, nil
}

// evaluateLogical applies Kleene logic: false AND null is false, true OR null is true.
func (e *Evaluator) evaluateLogical(expr *BinaryExpr, columns map[string]arrow.Array, n int) (mask, error) {
	left, err := e.evalMask(expr.left, columns, n)
	if err != nil {
		return mask{}, err
	}
	right, err := e.evalMask(expr.right, columns, n)
	if err != nil {
		return mask{}, err
	}

	m := newMask(n)
	for i := 0; i < n; i++ {
		lv, lok := left.values[i], left.valid[i]
		rv, rok := right.values[i], right.valid[i]
		if expr.op == OpAnd {
			switch {
			case (lok && !lv) || (rok && !rv):
				m.valid[i] = true
			case lok && rok:
				m.valid[i] = true
				m.values[i] = true
			}
		} else {
			switch {
			case (lok && lv) || (rok && rv):
				m.valid[i] = true
				m.values[i] = true
			case lok && rok:
				m.valid[i] = true
			}
		}
	}
	return m, nil
}

// evaluateFunction handles any/all. Their results are never null: a row is
// selected by any() only when some predicate is definitely true there.
func (e *Evaluator) evaluateFunction(expr *FunctionExpr, columns map[string]arrow.Array, n int) (mask, error) {
	if expr.name != FuncAny && expr.name != FuncAll {
		return mask{}, fmt.Errorf("unsupported function: %s", expr.name)
	}

	m := newMask(n)
	for i := range m.values {
		m.valid[i] = true
		m.values[i] = expr.name == FuncAll
	}

	for _, arg := range expr.args {
		child, err := e.evalMask(arg, columns, n)
		if err != nil {
			return mask{}, err
		}
		for i := 0; i < n; i++ {
			truth := child.valid[i] && child.values[i]
			if expr.name == FuncAny {
				m.values[i] = m.values[i] || truth
			} else {
				m.values[i] = m.values[i] && truth
			}
		}
	}
	return m, nil
}

func getArrayLength(columns map[string]arrow.Array) int {
	for _, arr := range columns {
		return arr.Len()
	}
	return 0
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}
