package expr

import (
	"sync"

	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/device"
)

// Runner evaluates a scalar-valued expression on a queue: compile or reuse
// the kernel, bind, enqueue, synchronize and copy one element back. The
// executor implements it; the indirection keeps expr free of the
// compiler/executor packages.
type Runner interface {
	EvalScalar(n *Node, q *device.Queue) (float64, error)
}

// Scalar is a deferred device scalar with two states: Unresolved, holding
// the expression that will produce it, and Resolved, holding the host value.
// Composing an unresolved Scalar into another expression inlines its tree
// without synchronizing; only Force blocks.
type Scalar struct {
	mu       sync.Mutex
	node     *Node
	dtype    array.DataType
	resolved bool
	val      float64
	run      Runner
	queue    *device.Queue
}

// NewScalar wraps a scalar-valued node. Array-valued nodes are rejected.
func NewScalar(n *Node, run Runner, q *device.Queue) (*Scalar, error) {
	if !n.IsScalar() {
		return nil, &Error{Op: "scalar", Msg: "expression is array-valued"}
	}
	return &Scalar{node: n, dtype: n.DType(), run: run, queue: q}, nil
}

// Force resolves the scalar: on first call it compiles (or reuses) the
// kernel, executes, synchronizes the queue and reads one element back.
// Subsequent calls return the cached value. Safe for concurrent use.
func (s *Scalar) Force() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return s.val, nil
	}
	v, err := s.run.EvalScalar(s.node, s.queue)
	if err != nil {
		return 0, err
	}
	s.val = v
	s.resolved = true
	s.node = nil
	return v, nil
}

// Resolved reports whether Force has completed.
func (s *Scalar) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// DType returns the scalar's numeric type.
func (s *Scalar) DType() array.DataType {
	return s.dtype
}

// Node returns the scalar as an expression leaf: the original tree while
// unresolved, a literal once resolved. Either way no synchronization
// happens, so deferred scalars compose freely.
func (s *Scalar) Node() *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		lit := Const(s.val)
		lit.dtype = s.dtype
		return lit
	}
	return s.node
}
