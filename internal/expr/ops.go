package expr

import (
	"fmt"

	"github.com/lumen-ml/lumen/internal/array"
)

// ViewOf wraps an array view as a leaf node.
func ViewOf(v array.View) *Node {
	return &Node{
		kind:   KindView,
		dtype:  v.DType(),
		n:      v.NumElements(),
		scalar: false,
		view:   v,
	}
}

// Const wraps a scalar constant as a leaf node. The literal adopts the
// numeric type of whatever expression it is combined into.
func Const(v float64) *Node {
	return &Node{kind: KindLiteral, dtype: untyped, n: 1, scalar: true, lit: v}
}

// Add builds a + b.
func Add(a, b *Node) (*Node, error) { return binary(OpAdd, a, b) }

// Sub builds a - b.
func Sub(a, b *Node) (*Node, error) { return binary(OpSub, a, b) }

// Mul builds a * b.
func Mul(a, b *Node) (*Node, error) { return binary(OpMul, a, b) }

// Div builds a / b.
func Div(a, b *Node) (*Node, error) { return binary(OpDiv, a, b) }

// Maximum builds the elementwise max of a and b.
func Maximum(a, b *Node) (*Node, error) { return binary(OpMax, a, b) }

// Minimum builds the elementwise min of a and b.
func Minimum(a, b *Node) (*Node, error) { return binary(OpMin, a, b) }

// Exp builds elementwise exp(a). Defined for floating-point operands only.
func Exp(a *Node) (*Node, error) {
	if a.dtype != untyped && !a.dtype.IsFloat() {
		return nil, &Error{Op: "exp", Msg: fmt.Sprintf("requires a floating-point operand, got %s", a.dtype)}
	}
	return unary(OpExp, a), nil
}

// Abs builds elementwise |a|.
func Abs(a *Node) (*Node, error) {
	return unary(OpAbs, a), nil
}

// Neg builds elementwise -a.
func Neg(a *Node) (*Node, error) {
	return unary(OpNeg, a), nil
}

// Sum reduces an array-valued operand to Σ a_i (seed 0).
func Sum(a *Node) (*Node, error) { return reduce(OpAdd, a, "sum") }

// Dot reduces two equally shaped operands to Σ x_i*y_i. The elementwise
// multiply is part of the reduction's unit pass, so the two-pass combine
// preserves dot semantics.
func Dot(x, y *Node) (*Node, error) {
	prod, err := Mul(x, y)
	if err != nil {
		return nil, &Error{Op: "dot", Msg: err.Error()}
	}
	return reduce(OpAdd, prod, "dot")
}

// Asum reduces an array-valued operand to Σ |a_i|.
func Asum(a *Node) (*Node, error) {
	abs, err := Abs(a)
	if err != nil {
		return nil, err
	}
	return reduce(OpAdd, abs, "asum")
}

// Max reduces an array-valued operand to its maximum (seed -inf).
func Max(a *Node) (*Node, error) { return reduce(OpMax, a, "max") }

// Min reduces an array-valued operand to its minimum (seed +inf).
func Min(a *Node) (*Node, error) { return reduce(OpMin, a, "min") }

func unary(op Op, a *Node) *Node {
	return &Node{
		kind:   KindUnary,
		op:     op,
		dtype:  a.dtype,
		n:      a.n,
		scalar: a.scalar,
		args:   []*Node{a},
	}
}

func binary(op Op, a, b *Node) (*Node, error) {
	dtype, err := unifyDTypes(op, a, b)
	if err != nil {
		return nil, err
	}

	// Shapes must agree unless one side is scalar-valued, which broadcasts.
	n := a.n
	scalar := a.scalar && b.scalar
	switch {
	case a.scalar && !b.scalar:
		n = b.n
	case !a.scalar && b.scalar:
		n = a.n
	case !a.scalar && !b.scalar && a.n != b.n:
		return nil, &Error{
			Op:  op.String(),
			Msg: fmt.Sprintf("operand element counts differ: %d vs %d", a.n, b.n),
		}
	}

	return &Node{
		kind:   KindBinary,
		op:     op,
		dtype:  dtype,
		n:      n,
		scalar: scalar,
		args:   []*Node{a, b},
	}, nil
}

func reduce(op Op, a *Node, name string) (*Node, error) {
	if a.scalar {
		return nil, &Error{Op: name, Msg: "operand is scalar-valued; reductions need an array operand"}
	}
	return &Node{
		kind:   KindReduce,
		op:     op,
		dtype:  a.dtype,
		n:      1,
		scalar: true,
		args:   []*Node{a},
	}, nil
}

// unifyDTypes resolves the result type of a binary combination. Untyped
// literals adopt the typed side; two typed operands must match exactly.
func unifyDTypes(op Op, a, b *Node) (array.DataType, error) {
	switch {
	case a.dtype == untyped && b.dtype == untyped:
		return untyped, nil
	case a.dtype == untyped:
		return b.dtype, nil
	case b.dtype == untyped:
		return a.dtype, nil
	case a.dtype != b.dtype:
		return 0, &Error{
			Op:  op.String(),
			Msg: fmt.Sprintf("numeric type mismatch: %s vs %s", a.dtype, b.dtype),
		}
	default:
		return a.dtype, nil
	}
}
