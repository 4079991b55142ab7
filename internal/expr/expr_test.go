package expr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/device"
)

func leaf(n int, dt array.DataType) *Node {
	return ViewOf(array.Wrap(nil, array.Shape{n}, dt).View())
}

func TestBinaryShapeMismatch(t *testing.T) {
	_, err := Add(leaf(10, array.Float32), leaf(7, array.Float32))
	require.Error(t, err)

	var ee *Error
	assert.True(t, errors.As(err, &ee))
}

func TestBinaryScalarBroadcast(t *testing.T) {
	d, err := Sum(leaf(10, array.Float32))
	require.NoError(t, err)

	n, err := Add(Const(1), d)
	require.NoError(t, err)
	assert.True(t, n.IsScalar())
	assert.Equal(t, array.Float32, n.DType())

	n, err = Mul(Const(2), leaf(10, array.Float32))
	require.NoError(t, err)
	assert.False(t, n.IsScalar())
	assert.Equal(t, 10, n.NumElements())
}

func TestDTypeMismatchFailsFast(t *testing.T) {
	_, err := Add(leaf(10, array.Float32), leaf(10, array.Int32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestUntypedLiteralAdoptsPeer(t *testing.T) {
	n, err := Add(Const(1), leaf(4, array.Int32))
	require.NoError(t, err)
	assert.Equal(t, array.Int32, n.DType())

	// Two literals stay untyped until a typed operand joins.
	n, err = Mul(Const(2), Const(3))
	require.NoError(t, err)
	assert.Equal(t, array.DataType(-1), n.DType())
}

func TestExpRejectsIntegers(t *testing.T) {
	_, err := Exp(leaf(4, array.Int32))
	require.Error(t, err)

	_, err = Exp(leaf(4, array.Float32))
	assert.NoError(t, err)
}

func TestReduceRejectsScalarOperand(t *testing.T) {
	d, err := Sum(leaf(10, array.Float32))
	require.NoError(t, err)

	_, err = Sum(d)
	require.Error(t, err)
	_, err = Max(Const(3))
	require.Error(t, err)
}

func TestDotBuildsMulReduction(t *testing.T) {
	d, err := Dot(leaf(8, array.Float32), leaf(8, array.Float32))
	require.NoError(t, err)

	assert.Equal(t, KindReduce, d.Kind())
	assert.Equal(t, OpAdd, d.Op())
	assert.True(t, d.IsScalar())

	inner := d.Args()[0]
	assert.Equal(t, KindBinary, inner.Kind())
	assert.Equal(t, OpMul, inner.Op())
}

// stubRunner resolves every expression to a fixed value and counts calls.
type stubRunner struct {
	val   float64
	err   error
	calls int
}

func (r *stubRunner) EvalScalar(n *Node, q *device.Queue) (float64, error) {
	r.calls++
	return r.val, r.err
}

func TestScalarRejectsArrayValued(t *testing.T) {
	_, err := NewScalar(leaf(10, array.Float32), &stubRunner{}, nil)
	require.Error(t, err)
}

func TestScalarForceOnce(t *testing.T) {
	d, err := Sum(leaf(10, array.Float32))
	require.NoError(t, err)

	run := &stubRunner{val: 42}
	s, err := NewScalar(d, run, nil)
	require.NoError(t, err)
	assert.False(t, s.Resolved())
	assert.Zero(t, run.calls)

	v, err := s.Force()
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
	assert.True(t, s.Resolved())

	v, err = s.Force()
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
	assert.Equal(t, 1, run.calls, "second Force must reuse the cached value")
}

func TestScalarForceErrorIsRetryable(t *testing.T) {
	d, err := Sum(leaf(10, array.Float32))
	require.NoError(t, err)

	run := &stubRunner{err: fmt.Errorf("device lost")}
	s, err := NewScalar(d, run, nil)
	require.NoError(t, err)

	_, err = s.Force()
	require.Error(t, err)
	assert.False(t, s.Resolved())

	run.err = nil
	run.val = 7
	v, err := s.Force()
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestScalarNodeInlinesWithoutSync(t *testing.T) {
	d, err := Sum(leaf(10, array.Float32))
	require.NoError(t, err)

	run := &stubRunner{val: 3}
	s, err := NewScalar(d, run, nil)
	require.NoError(t, err)

	// Unresolved: the original tree, no evaluation triggered.
	n := s.Node()
	assert.Equal(t, KindReduce, n.Kind())
	assert.Zero(t, run.calls)

	_, err = s.Force()
	require.NoError(t, err)

	// Resolved: a typed literal carrying the value.
	n = s.Node()
	assert.Equal(t, KindLiteral, n.Kind())
	assert.Equal(t, 3.0, n.Literal())
	assert.Equal(t, array.Float32, n.DType())
	assert.Equal(t, 1, run.calls)
}
