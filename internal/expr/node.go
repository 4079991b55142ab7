// Package expr builds lazy expression trees over device array views.
// Nodes are immutable: operator composition always allocates a new node
// referencing its operands, and no device work happens until a result is
// observed through the executor.
package expr

import (
	"github.com/lumen-ml/lumen/internal/array"
)

// Kind discriminates the closed set of node variants.
type Kind int

const (
	// KindView is a leaf referencing a device array view.
	KindView Kind = iota
	// KindLiteral is a scalar constant leaf.
	KindLiteral
	// KindUnary applies an elementwise unary operator.
	KindUnary
	// KindBinary applies an elementwise binary operator; a scalar operand
	// broadcasts against an array operand.
	KindBinary
	// KindReduce collapses an array-valued operand to a scalar with an
	// associative combining operator. The operand is the unit-pass map
	// expression (for dot, the elementwise multiply is already inside).
	KindReduce
)

// Op identifies an operator. Reduce nodes use OpAdd/OpMax/OpMin as their
// combining operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMax
	OpMin
	OpExp
	OpAbs
	OpNeg
)

// String returns the operator's mnemonic, used in kernel signatures.
func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpMax:
		return "max"
	case OpMin:
		return "min"
	case OpExp:
		return "exp"
	case OpAbs:
		return "abs"
	case OpNeg:
		return "neg"
	default:
		return "unknown"
	}
}

// untyped marks literal nodes that adopt the peer operand's numeric type.
const untyped = array.DataType(-1)

// Node is one immutable expression tree node.
type Node struct {
	kind   Kind
	op     Op
	dtype  array.DataType
	n      int  // logical element count of the node's value
	scalar bool // true for scalar-valued nodes

	view array.View // KindView
	lit  float64    // KindLiteral
	args []*Node
}

// Kind returns the node variant.
func (nd *Node) Kind() Kind { return nd.kind }

// Op returns the node operator; meaningful for unary/binary/reduce nodes.
func (nd *Node) Op() Op { return nd.op }

// DType returns the node's numeric type. Untyped literals report the type
// of the expression they were combined into once combined; a bare literal
// reports an invalid type.
func (nd *Node) DType() array.DataType { return nd.dtype }

// NumElements returns the logical element count of the node's value.
func (nd *Node) NumElements() int { return nd.n }

// IsScalar reports whether the node is scalar-valued.
func (nd *Node) IsScalar() bool { return nd.scalar }

// Args returns the operand nodes.
func (nd *Node) Args() []*Node { return nd.args }

// View returns the array view of a KindView leaf.
func (nd *Node) View() array.View { return nd.view }

// Literal returns the constant of a KindLiteral leaf.
func (nd *Node) Literal() float64 { return nd.lit }
