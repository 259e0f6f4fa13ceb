// Package expr provides expression evaluation for DataFrame operations
package expr

import (
	"fmt"
	"strings"
)

// ExprType represents the type of expression
type ExprType int

const (
	ExprColumn ExprType = iota
	ExprLiteral
	ExprBinary
	ExprUnary
	ExprFunction
	ExprAggregation
	ExprInvalid
)

// Expr represents an expression that can be evaluated lazily
type Expr interface {
	Type() ExprType
	String() string
}

// ColumnExpr represents a column reference
type ColumnExpr struct {
	name string
}

func (c *ColumnExpr) Type() ExprType {
	return ExprColumn
}

func (c *ColumnExpr) String() string {
	return fmt.Sprintf("col(%s)", c.name)
}

func (c *ColumnExpr) Name() string {
	return c.name
}

// LiteralExpr represents a literal value
type LiteralExpr struct {
	value interface{}
}

func (l *LiteralExpr) Type() ExprType {
	return ExprLiteral
}

func (l *LiteralExpr) String() string {
	return fmt.Sprintf("lit(%v)", l.value)
}

func (l *LiteralExpr) Value() interface{} {
	return l.value
}

// BinaryOp represents binary operations
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binaryOpSymbols = map[BinaryOp]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAnd: "&&",
	OpOr:  "||",
}

func (op BinaryOp) String() string {
	return binaryOpSymbols[op]
}

// IsComparison reports whether op yields a boolean from two values.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsLogical reports whether op combines two booleans.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// BinaryExpr represents a binary operation
type BinaryExpr struct {
	left  Expr
	op    BinaryOp
	right Expr
}

func (b *BinaryExpr) Type() ExprType {
	return ExprBinary
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left.String(), b.op, b.right.String())
}

func (b *BinaryExpr) Left() Expr {
	return b.left
}

func (b *BinaryExpr) Op() BinaryOp {
	return b.op
}

func (b *BinaryExpr) Right() Expr {
	return b.right
}

// UnaryOp represents unary operations
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

// UnaryExpr represents a unary operation
type UnaryExpr struct {
	op      UnaryOp
	operand Expr
}

func (u *UnaryExpr) Type() ExprType {
	return ExprUnary
}

func (u *UnaryExpr) String() string {
	opStr := "-"
	if u.op == UnaryNot {
		opStr = "!"
	}
	return fmt.Sprintf("(%s%s)", opStr, u.operand.String())
}

func (u *UnaryExpr) Op() UnaryOp {
	return u.op
}

func (u *UnaryExpr) Operand() Expr {
	return u.operand
}

// InvalidExpr represents an invalid expression with an error message
type InvalidExpr struct {
	message string
}

func (i *InvalidExpr) Type() ExprType {
	return ExprInvalid
}

func (i *InvalidExpr) String() string {
	return fmt.Sprintf("invalid(%s)", i.message)
}

func (i *InvalidExpr) Message() string {
	return i.message
}

// Function names understood by the evaluator
const (
	FuncAny = "any"
	FuncAll = "all"
)

// FunctionExpr represents a function call expression
type FunctionExpr struct {
	name string
	args []Expr
}

func (f *FunctionExpr) Type() ExprType {
	return ExprFunction
}

func (f *FunctionExpr) String() string {
	argStrs := make([]string, len(f.args))
	for i, arg := range f.args {
		argStrs[i] = arg.String()
	}
	return f.name + "(" + strings.Join(argStrs, ", ") + ")"
}

func (f *FunctionExpr) Name() string {
	return f.name
}

func (f *FunctionExpr) Args() []Expr {
	return f.args
}

// AggregationType represents the type of aggregation function
type AggregationType int

const (
	AggSum AggregationType = iota
	AggCount
	AggMean
	AggMin
	AggMax
)

// Aggregation function name constants
const (
	AggNameSum   = "sum"
	AggNameCount = "count"
	AggNameMean  = "mean"
	AggNameMin   = "min"
	AggNameMax   = "max"
)

func (a AggregationType) String() string {
	switch a {
	case AggSum:
		return AggNameSum
	case AggCount:
		return AggNameCount
	case AggMean:
		return AggNameMean
	case AggMin:
		return AggNameMin
	case AggMax:
		return AggNameMax
	default:
		return "unknown"
	}
}

// AggregationExpr represents an aggregation function over a column
type AggregationExpr struct {
	column  Expr
	aggType AggregationType
	alias   string
}

func (a *AggregationExpr) Type() ExprType {
	return ExprAggregation
}

func (a *AggregationExpr) String() string {
	s := fmt.Sprintf("%s(%s)", a.aggType, a.column.String())
	if a.alias != "" {
		s += " as " + a.alias
	}
	return s
}

func (a *AggregationExpr) Column() Expr {
	return a.column
}

func (a *AggregationExpr) AggType() AggregationType {
	return a.aggType
}

func (a *AggregationExpr) Alias() string {
	return a.alias
}

// OutputName is the alias, or "<agg>_<column>" when no alias was set.
func (a *AggregationExpr) OutputName() string {
	if a.alias != "" {
		return a.alias
	}
	if col, ok := a.column.(*ColumnExpr); ok {
		return a.aggType.String() + "_" + col.Name()
	}
	return a.aggType.String()
}

// Constructor functions

// Col creates a column expression
func Col(name string) *ColumnExpr {
	return &ColumnExpr{name: name}
}

// Lit creates a literal expression
func Lit(value interface{}) *LiteralExpr {
	return &LiteralExpr{value: value}
}

// Invalid creates an invalid expression with an error message
func Invalid(message string) *InvalidExpr {
	return &InvalidExpr{message: message}
}

// NewFunction creates a function expression
func NewFunction(name string, args ...Expr) *FunctionExpr {
	return &FunctionExpr{name: name, args: args}
}

// Any is true for a row when at least one predicate is true there. Null and
// false predicates never make it true.
func Any(predicates ...Expr) *FunctionExpr {
	return NewFunction(FuncAny, predicates...)
}

// All is true for a row when every predicate is true there.
func All(predicates ...Expr) *FunctionExpr {
	return NewFunction(FuncAll, predicates...)
}

// And combines two predicates with logical AND.
func And(left, right Expr) *BinaryExpr {
	return &BinaryExpr{left: left, op: OpAnd, right: right}
}

// Or combines two predicates with logical OR.
func Or(left, right Expr) *BinaryExpr {
	return &BinaryExpr{left: left, op: OpOr, right: right}
}

// Not negates a boolean expression.
func Not(e Expr) *UnaryExpr {
	return &UnaryExpr{op: UnaryNot, operand: e}
}

// Binary operations on column expressions

// Add creates an addition expression
func (c *ColumnExpr) Add(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpAdd, right: other}
}

// Sub creates a subtraction expression
func (c *ColumnExpr) Sub(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpSub, right: other}
}

// Mul creates a multiplication expression
func (c *ColumnExpr) Mul(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpMul, right: other}
}

// Div creates a division expression
func (c *ColumnExpr) Div(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpDiv, right: other}
}

// Eq creates an equality expression
func (c *ColumnExpr) Eq(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpEq, right: other}
}

// Ne creates a not-equal expression
func (c *ColumnExpr) Ne(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpNe, right: other}
}

// Lt creates a less-than expression
func (c *ColumnExpr) Lt(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpLt, right: other}
}

// Le creates a less-than-or-equal expression
func (c *ColumnExpr) Le(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpLe, right: other}
}

// Gt creates a greater-than expression
func (c *ColumnExpr) Gt(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpGt, right: other}
}

// Ge creates a greater-than-or-equal expression
func (c *ColumnExpr) Ge(other Expr) *BinaryExpr {
	return &BinaryExpr{left: c, op: OpGe, right: other}
}

// Binary operations on binary expressions (for chaining)

// Gt creates a greater-than expression
func (b *BinaryExpr) Gt(other Expr) *BinaryExpr {
	return &BinaryExpr{left: b, op: OpGt, right: other}
}

// Lt creates a less-than expression
func (b *BinaryExpr) Lt(other Expr) *BinaryExpr {
	return &BinaryExpr{left: b, op: OpLt, right: other}
}

// Ge creates a greater-than-or-equal expression
func (b *BinaryExpr) Ge(other Expr) *BinaryExpr {
	return &BinaryExpr{left: b, op: OpGe, right: other}
}

// And creates a logical AND expression
func (b *BinaryExpr) And(other Expr) *BinaryExpr {
	return &BinaryExpr{left: b, op: OpAnd, right: other}
}

// Or creates a logical OR expression
func (b *BinaryExpr) Or(other Expr) *BinaryExpr {
	return &BinaryExpr{left: b, op: OpOr, right: other}
}

// And creates a logical AND expression
func (f *FunctionExpr) And(other Expr) *BinaryExpr {
	return &BinaryExpr{left: f, op: OpAnd, right: other}
}

// Aggregation constructor functions

// Sum creates a sum aggregation expression
func Sum(column Expr) *AggregationExpr {
	return &AggregationExpr{column: column, aggType: AggSum}
}

// Count creates a count aggregation expression
func Count(column Expr) *AggregationExpr {
	return &AggregationExpr{column: column, aggType: AggCount}
}

// Mean creates a mean aggregation expression
func Mean(column Expr) *AggregationExpr {
	return &AggregationExpr{column: column, aggType: AggMean}
}

// Min creates a min aggregation expression
func Min(column Expr) *AggregationExpr {
	return &AggregationExpr{column: column, aggType: AggMin}
}

// Max creates a max aggregation expression
func Max(column Expr) *AggregationExpr {
	return &AggregationExpr{column: column, aggType: AggMax}
}

// Mean creates a mean aggregation of this column
func (c *ColumnExpr) Mean() *AggregationExpr {
	return Mean(c)
}

// Sum creates a sum aggregation of this column
func (c *ColumnExpr) Sum() *AggregationExpr {
	return Sum(c)
}

// Count creates a count aggregation of this column
func (c *ColumnExpr) Count() *AggregationExpr {
	return Count(c)
}

// As sets an alias for the aggregation expression
func (a *AggregationExpr) As(alias string) *AggregationExpr {
	return &AggregationExpr{
		column:  a.column,
		aggType: a.aggType,
		alias:   alias,
	}
}

// Columns lists the distinct column names referenced by e, in first-seen order.
func Columns(e Expr) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch ex := e.(type) {
		case *ColumnExpr:
			if !seen[ex.name] {
				seen[ex.name] = true
				out = append(out, ex.name)
			}
		case *BinaryExpr:
			walk(ex.left)
			walk(ex.right)
		case *UnaryExpr:
			walk(ex.operand)
		case *FunctionExpr:
			for _, arg := range ex.args {
				walk(arg)
			}
		case *AggregationExpr:
			walk(ex.column)
		}
	}
	walk(e)
	return out
}
