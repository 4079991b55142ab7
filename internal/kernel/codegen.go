package kernel

import (
	"fmt"
	"strings"

	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/expr"
)

// WorkgroupSize is the number of threads per workgroup. Pass-1 reduction
// kernels produce one partial result per workgroup of this size.
const WorkgroupSize = 256

// Generated kernels carry fixed-capacity uniform blocks; expressions that
// need more slots than this fail compilation rather than execution.
const (
	maxLeavesPerKernel = 8
	maxLitsPerKernel   = 8
	maxReductions      = 4
)

// Reduction describes one two-pass reduction inside a plan: the combining
// operator, which global operand slots its unit-pass kernel binds, and the
// generated pass-1 source.
type Reduction struct {
	Combine expr.Op
	Leaves  []int // global leaf indices in local binding order
	Lits    []int // global literal indices in local order
	Src     string
}

// Elementwise describes the single-pass kernel of an array-valued plan.
type Elementwise struct {
	Leaves []int
	Lits   []int
	Src    string
}

// Plan is the compiled form of one structural signature: generated WGSL for
// every pass plus the binding layout the executor needs. Scratch sizing is
// a function of the bound element counts, not part of the plan.
type Plan struct {
	Sig        string
	DType      array.DataType
	ScalarRoot bool

	NumLeaves int
	NumLits   int

	Reductions []Reduction
	FinalLits  []int  // global literal indices used by the combine/epilogue pass
	FinalSrc   string // scalar roots only

	Elem *Elementwise // array roots only
}

// WorkgroupsFor returns the pass-1 dispatch width for n elements, which is
// also the number of partial results written to scratch.
func WorkgroupsFor(n int) int {
	return (n + WorkgroupSize - 1) / WorkgroupSize
}

// ScratchElems returns the total scratch element count for the given
// per-reduction element counts.
func (p *Plan) ScratchElems(redN []int) int {
	total := 0
	for _, n := range redN {
		total += WorkgroupsFor(n)
	}
	return total
}

// BuildPlan derives a plan from an expression tree. Unsupported shapes
// (nested reductions, reductions inside elementwise evaluation, too many
// operands, non-executable numeric types) return CompileError.
func BuildPlan(root *expr.Node) (*Plan, error) {
	sig := SignatureOf(root)

	dt := root.DType()
	switch dt {
	case array.Float32, array.Int32:
	case array.DataType(-1):
		return nil, &CompileError{Sig: sig, Msg: "expression has no typed leaf"}
	default:
		return nil, &CompileError{Sig: sig, Msg: fmt.Sprintf("numeric type %s is not executable on this device", dt)}
	}

	b := &planBuilder{
		plan: &Plan{Sig: sig, DType: dt, ScalarRoot: root.IsScalar()},
		st:   scalarTypeName(dt),
	}

	if root.IsScalar() {
		if err := b.buildScalar(root); err != nil {
			return nil, err
		}
	} else {
		if err := b.buildElementwise(root); err != nil {
			return nil, err
		}
	}
	return b.plan, nil
}

// planBuilder assigns global operand slots in depth-first traversal order;
// the executor repeats the same traversal over the concrete tree to bind
// them.
type planBuilder struct {
	plan *Plan
	st   string // WGSL scalar type: f32 or i32
}

// kernelCtx accumulates the local binding layout of one generated kernel.
type kernelCtx struct {
	leaves  []int
	classes []byte // 'c' or 's' per local leaf
	lits    []int
}

func (b *planBuilder) buildScalar(root *expr.Node) error {
	final := &kernelCtx{}
	epilogue, err := b.genScalarExpr(root, final)
	if err != nil {
		return err
	}
	b.plan.FinalLits = final.lits
	b.plan.FinalSrc = b.finalSource(epilogue)
	return nil
}

func (b *planBuilder) buildElementwise(root *expr.Node) error {
	ctx := &kernelCtx{}
	body, err := b.genElemExpr(root, ctx)
	if err != nil {
		return err
	}
	b.plan.Elem = &Elementwise{
		Leaves: ctx.leaves,
		Lits:   ctx.lits,
		Src:    b.elementwiseSource(ctx, body),
	}
	return nil
}

// genScalarExpr generates the epilogue expression of a scalar root. Reduce
// nodes become the local variables r0..r3 computed by the combine pass;
// everything else is plain scalar math over those and the literals.
func (b *planBuilder) genScalarExpr(n *expr.Node, ctx *kernelCtx) (string, error) {
	switch n.Kind() {
	case expr.KindReduce:
		idx := len(b.plan.Reductions)
		if idx >= maxReductions {
			return "", &CompileError{Sig: b.plan.Sig, Msg: fmt.Sprintf("more than %d reductions in one expression", maxReductions)}
		}
		// Reserve the slot before descending so reduction order matches
		// the operand traversal order.
		b.plan.Reductions = append(b.plan.Reductions, Reduction{Combine: n.Op()})

		mctx := &kernelCtx{}
		mapExpr, err := b.genElemExpr(n.Args()[0], mctx)
		if err != nil {
			return "", err
		}
		b.plan.Reductions[idx].Leaves = mctx.leaves
		b.plan.Reductions[idx].Lits = mctx.lits
		b.plan.Reductions[idx].Src = b.partialSource(mctx, n.Op(), mapExpr)
		return fmt.Sprintf("r%d", idx), nil

	case expr.KindLiteral:
		return b.litRef(ctx)

	case expr.KindUnary:
		arg, err := b.genScalarExpr(n.Args()[0], ctx)
		if err != nil {
			return "", err
		}
		return unaryWGSL(n.Op(), arg), nil

	case expr.KindBinary:
		lhs, err := b.genScalarExpr(n.Args()[0], ctx)
		if err != nil {
			return "", err
		}
		rhs, err := b.genScalarExpr(n.Args()[1], ctx)
		if err != nil {
			return "", err
		}
		return binaryWGSL(n.Op(), lhs, rhs), nil

	default:
		return "", &CompileError{Sig: b.plan.Sig, Msg: "array leaf outside a reduction in a scalar expression"}
	}
}

// genElemExpr generates the per-element expression of a map or elementwise
// kernel, assigning local bindings as leaves are encountered.
func (b *planBuilder) genElemExpr(n *expr.Node, ctx *kernelCtx) (string, error) {
	switch n.Kind() {
	case expr.KindView:
		if len(ctx.leaves) >= maxLeavesPerKernel {
			return "", &CompileError{Sig: b.plan.Sig, Msg: fmt.Sprintf("more than %d array operands in one kernel", maxLeavesPerKernel)}
		}
		loc := len(ctx.leaves)
		ctx.leaves = append(ctx.leaves, b.plan.NumLeaves)
		b.plan.NumLeaves++
		if n.View().Contiguous() {
			ctx.classes = append(ctx.classes, 'c')
			return fmt.Sprintf("a%d[i]", loc), nil
		}
		ctx.classes = append(ctx.classes, 's')
		return fmt.Sprintf("a%d[u32(params.meta[%d].x + i32(i) * params.meta[%d].y)]", loc, loc, loc), nil

	case expr.KindLiteral:
		return b.litRef(ctx)

	case expr.KindUnary:
		arg, err := b.genElemExpr(n.Args()[0], ctx)
		if err != nil {
			return "", err
		}
		return unaryWGSL(n.Op(), arg), nil

	case expr.KindBinary:
		lhs, err := b.genElemExpr(n.Args()[0], ctx)
		if err != nil {
			return "", err
		}
		rhs, err := b.genElemExpr(n.Args()[1], ctx)
		if err != nil {
			return "", err
		}
		return binaryWGSL(n.Op(), lhs, rhs), nil

	case expr.KindReduce:
		if b.plan.ScalarRoot {
			return "", &CompileError{Sig: b.plan.Sig, Msg: "reduction nested inside another reduction's unit pass"}
		}
		return "", &CompileError{Sig: b.plan.Sig, Msg: "reduction inside elementwise evaluation; force the scalar first"}

	default:
		return "", &CompileError{Sig: b.plan.Sig, Msg: "unsupported node kind"}
	}
}

func (b *planBuilder) litRef(ctx *kernelCtx) (string, error) {
	if len(ctx.lits) >= maxLitsPerKernel {
		return "", &CompileError{Sig: b.plan.Sig, Msg: fmt.Sprintf("more than %d literals in one kernel", maxLitsPerKernel)}
	}
	loc := len(ctx.lits)
	ctx.lits = append(ctx.lits, b.plan.NumLits)
	b.plan.NumLits++
	return fmt.Sprintf("params.lits[%d].%c", loc/4, "xyzw"[loc%4]), nil
}

func unaryWGSL(op expr.Op, arg string) string {
	switch op {
	case expr.OpExp:
		return "exp(" + arg + ")"
	case expr.OpAbs:
		return "abs(" + arg + ")"
	case expr.OpNeg:
		return "(-(" + arg + "))"
	default:
		return "/*unsupported*/"
	}
}

func binaryWGSL(op expr.Op, lhs, rhs string) string {
	switch op {
	case expr.OpAdd:
		return "(" + lhs + " + " + rhs + ")"
	case expr.OpSub:
		return "(" + lhs + " - " + rhs + ")"
	case expr.OpMul:
		return "(" + lhs + " * " + rhs + ")"
	case expr.OpDiv:
		return "(" + lhs + " / " + rhs + ")"
	case expr.OpMax:
		return "max(" + lhs + ", " + rhs + ")"
	case expr.OpMin:
		return "min(" + lhs + ", " + rhs + ")"
	default:
		return "/*unsupported*/"
	}
}

// seedWGSL is the reduction identity. WGSL has no infinity literals, so the
// float max/min seeds are bitcast from the IEEE -inf/+inf bit patterns;
// inputs containing infinities must still reduce to them.
func seedWGSL(op expr.Op, st string) string {
	if st == "i32" {
		switch op {
		case expr.OpMax:
			return "i32(-2147483648)"
		case expr.OpMin:
			return "i32(2147483647)"
		default:
			return "0"
		}
	}
	switch op {
	case expr.OpMax:
		return "bitcast<f32>(0xff800000u)"
	case expr.OpMin:
		return "bitcast<f32>(0x7f800000u)"
	default:
		return "0.0"
	}
}

func combineWGSL(op expr.Op, lhs, rhs string) string {
	switch op {
	case expr.OpMax:
		return "max(" + lhs + ", " + rhs + ")"
	case expr.OpMin:
		return "min(" + lhs + ", " + rhs + ")"
	default:
		return lhs + " + " + rhs
	}
}

func scalarTypeName(dt array.DataType) string {
	if dt == array.Int32 {
		return "i32"
	}
	return "f32"
}

func (b *planBuilder) leafBindings(ctx *kernelCtx) string {
	var sb strings.Builder
	for loc := range ctx.leaves {
		fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read> a%d: array<%s>;\n", loc, loc, b.st)
	}
	return sb.String()
}

// paramsStruct is the uniform block of pass-1 and elementwise kernels:
// element count, scratch base, per-leaf offset/stride metadata and the
// literal values. Literals ride in the uniform rather than the source text
// so that kernels stay reusable across literal values.
func (b *planBuilder) paramsStruct() string {
	litType := "f32"
	if b.st == "i32" {
		litType = "i32"
	}
	return fmt.Sprintf(`struct Params {
    n: u32,
    base: u32,
    _pad2: u32,
    _pad3: u32,
    meta: array<vec4<i32>, %d>,
    lits: array<vec4<%s>, %d>,
}
`, maxLeavesPerKernel, litType, maxLitsPerKernel/4)
}

// partialSource generates the unit pass of one reduction: every thread maps
// its logical element, the workgroup tree-reduces in shared memory with the
// reduction's own combining operator, and lane 0 writes the workgroup's
// partial into its scratch slot.
func (b *planBuilder) partialSource(ctx *kernelCtx, op expr.Op, mapExpr string) string {
	var sb strings.Builder
	sb.WriteString(b.leafBindings(ctx))
	m := len(ctx.leaves)
	fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read_write> scratch: array<%s>;\n", m, b.st)
	sb.WriteString(b.paramsStruct())
	fmt.Fprintf(&sb, "@group(0) @binding(%d) var<uniform> params: Params;\n", m+1)
	fmt.Fprintf(&sb, "var<workgroup> sdata: array<%s, %d>;\n", b.st, WorkgroupSize)
	fmt.Fprintf(&sb, `@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) gid: vec3<u32>,
        @builtin(local_invocation_id) lid: vec3<u32>,
        @builtin(workgroup_id) wid: vec3<u32>) {
    let i = gid.x;
    var v: %s = %s;
    if (i < params.n) {
        v = %s;
    }
    sdata[lid.x] = v;
    workgroupBarrier();
    var s: u32 = %du;
    loop {
        if (s == 0u) { break; }
        if (lid.x < s) {
            sdata[lid.x] = %s;
        }
        workgroupBarrier();
        s = s >> 1u;
    }
    if (lid.x == 0u) {
        scratch[params.base + wid.x] = sdata[0u];
    }
}
`, WorkgroupSize, b.st, seedWGSL(op, b.st), mapExpr, WorkgroupSize/2,
		combineWGSL(op, "sdata[lid.x]", "sdata[lid.x + s]"))
	return sb.String()
}

// finalSource generates the combine pass of a scalar root: one thread folds
// each reduction's partials with that reduction's operator, then evaluates
// the scalar epilogue over the folded values and the literals.
func (b *planBuilder) finalSource(epilogue string) string {
	litType := "f32"
	if b.st == "i32" {
		litType = "i32"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "@group(0) @binding(0) var<storage, read> scratch: array<%s>;\n", b.st)
	fmt.Fprintf(&sb, "@group(0) @binding(1) var<storage, read_write> out: array<%s>;\n", b.st)
	fmt.Fprintf(&sb, `struct Params {
    segs: array<vec4<u32>, %d>,
    lits: array<vec4<%s>, %d>,
}
@group(0) @binding(2) var<uniform> params: Params;
@compute @workgroup_size(1)
fn main() {
`, maxReductions, litType, maxLitsPerKernel/4)
	for idx, red := range b.plan.Reductions {
		fmt.Fprintf(&sb, "    var r%d: %s = %s;\n", idx, b.st, seedWGSL(red.Combine, b.st))
		fmt.Fprintf(&sb, `    for (var j: u32 = 0u; j < params.segs[%d].y; j = j + 1u) {
        r%d = %s;
    }
`, idx, idx, combineWGSL(red.Combine, fmt.Sprintf("r%d", idx), fmt.Sprintf("scratch[params.segs[%d].x + j]", idx)))
	}
	fmt.Fprintf(&sb, "    out[0] = %s;\n}\n", epilogue)
	return sb.String()
}

// elementwiseSource generates the single-pass kernel of an array root.
func (b *planBuilder) elementwiseSource(ctx *kernelCtx, body string) string {
	var sb strings.Builder
	sb.WriteString(b.leafBindings(ctx))
	m := len(ctx.leaves)
	fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read_write> out: array<%s>;\n", m, b.st)
	sb.WriteString(b.paramsStruct())
	fmt.Fprintf(&sb, "@group(0) @binding(%d) var<uniform> params: Params;\n", m+1)
	fmt.Fprintf(&sb, `@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i < params.n) {
        out[i] = %s;
    }
}
`, WorkgroupSize, body)
	return sb.String()
}
