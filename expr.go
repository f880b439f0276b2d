package pktgen

import (
	"fmt"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// Expr represents a scalar bitvector expression.
//
// Expressions are the condition payload carried on edges and the constraint
// currency between the exploration core and the solver. The core never
// evaluates them.
type Expr interface {
	expr()
	String() string
}

func (*BinaryExpr) expr()   {}
func (*ConstantExpr) expr() {}
func (*NotExpr) expr()      {}
func (*VarExpr) expr()      {}

// ExprWidth returns the bit width of the expression.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *VarExpr:
		return expr.Width
	case *NotExpr:
		return ExprWidth(expr.Expr)
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return WidthBool
		}
		return ExprWidth(expr.LHS)
	default:
		panic("unreachable")
	}
}

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	AND
	OR
	XOR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	SLT
	SLE
	compare_op_end
)

var binaryOps = [...]string{
	ADD: "add",
	SUB: "sub",
	AND: "and",
	OR:  "or",
	XOR: "xor",
	EQ:  "eq",
	NE:  "ne",
	ULT: "ult",
	ULE: "ule",
	SLT: "slt",
	SLE: "sle",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a new instance of BinaryExpr.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(ExprWidth(lhs) == ExprWidth(rhs), "binary expr width mismatch: op=%s %d != %d", op, ExprWidth(lhs), ExprWidth(rhs))
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// ConstantExpr represents a fixed-width constant value.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	return &ConstantExpr{Value: value, Width: width}
}

// NewBoolConstantExpr returns a 1-bit constant expression.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return NewConstantExpr(1, WidthBool)
	}
	return NewConstantExpr(0, WidthBool)
}

// IsTrue returns true if the expression is a non-zero boolean.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value != 0
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	return fmt.Sprintf("(const %d w%d)", e.Value, e.Width)
}

// VarExpr represents a named symbolic bitvector variable.
type VarExpr struct {
	Name  string
	Width uint
}

// NewVarExpr returns a new instance of VarExpr.
func NewVarExpr(name string, width uint) *VarExpr {
	return &VarExpr{Name: name, Width: width}
}

// String returns the string representation of the expression.
func (e *VarExpr) String() string {
	return fmt.Sprintf("(var %s w%d)", e.Name, e.Width)
}

// NotExpr represents the negation of an expression.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns a new instance of NotExpr.
func NewNotExpr(expr Expr) Expr {
	return &NotExpr{Expr: expr}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// NewEqExpr returns an equality comparison between two expressions.
func NewEqExpr(lhs, rhs Expr) Expr { return NewBinaryExpr(EQ, lhs, rhs) }

// NewNeExpr returns an inequality comparison between two expressions.
func NewNeExpr(lhs, rhs Expr) Expr { return NewBinaryExpr(NE, lhs, rhs) }

// FindVars returns all distinct variables referenced by the expressions,
// in first-reference order.
func FindVars(exprs ...Expr) []*VarExpr {
	var a []*VarExpr
	seen := make(map[string]struct{})

	var visit func(Expr)
	visit = func(expr Expr) {
		switch expr := expr.(type) {
		case *VarExpr:
			if _, ok := seen[expr.Name]; !ok {
				seen[expr.Name] = struct{}{}
				a = append(a, expr)
			}
		case *NotExpr:
			visit(expr.Expr)
		case *BinaryExpr:
			visit(expr.LHS)
			visit(expr.RHS)
		}
	}
	for _, expr := range exprs {
		if expr != nil {
			visit(expr)
		}
	}
	return a
}
