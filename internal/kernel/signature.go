// Package kernel turns expression trees into executable WGSL compute
// kernels: a structural signature for cache lookup, generated shader source
// for elementwise and two-pass reduction evaluation, and a process-wide
// single-flight compilation cache.
package kernel

import (
	"strings"

	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/expr"
)

// SignatureOf derives the canonical structural signature of an expression
// tree. The signature captures operator identities, leaf numeric types and
// each view leaf's layout class (contiguous or strided) but is independent
// of concrete extents, strides and literal values: structurally identical
// trees over different array sizes share one signature and one compiled
// kernel.
func SignatureOf(n *expr.Node) string {
	var sb strings.Builder
	writeSignature(&sb, n)
	return sb.String()
}

func writeSignature(sb *strings.Builder, n *expr.Node) {
	switch n.Kind() {
	case expr.KindView:
		sb.WriteByte('v')
		sb.WriteString(dtypeTag(n.DType()))
		if n.View().Contiguous() {
			sb.WriteByte('c')
		} else {
			sb.WriteByte('s')
		}
	case expr.KindLiteral:
		sb.WriteByte('l')
	case expr.KindUnary:
		sb.WriteString(n.Op().String())
		sb.WriteByte('(')
		writeSignature(sb, n.Args()[0])
		sb.WriteByte(')')
	case expr.KindBinary:
		sb.WriteString(n.Op().String())
		sb.WriteByte('(')
		writeSignature(sb, n.Args()[0])
		sb.WriteByte(',')
		writeSignature(sb, n.Args()[1])
		sb.WriteByte(')')
	case expr.KindReduce:
		sb.WriteByte('r')
		sb.WriteString(n.Op().String())
		sb.WriteByte('(')
		writeSignature(sb, n.Args()[0])
		sb.WriteByte(')')
	}
}

func dtypeTag(dt array.DataType) string {
	switch dt {
	case array.Float32:
		return "f32"
	case array.Float64:
		return "f64"
	case array.Float16:
		return "f16"
	case array.Int32:
		return "i32"
	case array.Int64:
		return "i64"
	default:
		return "untyped"
	}
}
