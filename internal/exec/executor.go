// Package exec turns compiled expression plans into command submissions on
// a device queue. Submissions are asynchronous: nothing waits on the device
// until a handle is forced or an array is read back.
package exec

import (
	"encoding/binary"
	"math"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/device"
	"github.com/lumen-ml/lumen/internal/expr"
	"github.com/lumen-ml/lumen/internal/kernel"
)

// Executor owns the kernel cache of one device and encodes expression
// evaluations onto its queues.
type Executor struct {
	dev  *device.Device
	comp *kernel.Compiler
}

// New returns an executor for the device.
func New(dev *device.Device) *Executor {
	return &Executor{dev: dev, comp: kernel.NewCompiler(dev)}
}

// Compiler exposes the kernel cache, mainly for inspection in tests and
// diagnostics.
func (e *Executor) Compiler() *kernel.Compiler {
	return e.comp
}

// RunScalar compiles and enqueues a scalar-valued expression on q and
// returns a handle to the pending result. The caller sees no device work
// until Handle.Wait or Handle.Scalar.
func (e *Executor) RunScalar(root *expr.Node, q *device.Queue) (*Handle, error) {
	if !root.IsScalar() {
		return nil, &kernel.CompileError{Sig: kernel.SignatureOf(root), Msg: "expression is array-valued, not scalar"}
	}
	k, err := e.comp.CompileOrGet(root)
	if err != nil {
		return nil, err
	}
	ops, err := kernel.CollectOperands(root)
	if err != nil {
		return nil, err
	}
	plan := k.Plan

	scratchBytes := uint64(plan.ScratchElems(ops.RedN)) * 4
	if scratchBytes < 4 {
		scratchBytes = 4
	}
	scratch := e.dev.Pool().Acquire(scratchBytes)
	out := e.dev.NewBuffer(4)

	// Uniform blocks can be released once encoded; the command buffer keeps
	// them alive until execution.
	var uniforms []*wgpu.Buffer
	encoder := e.dev.Handle().CreateCommandEncoder(nil)

	base := 0
	bases := make([]int, len(plan.Reductions))
	for idx, red := range plan.Reductions {
		bases[idx] = base
		n := ops.RedN[idx]

		params := e.dev.NewUniformBuffer(packPassParams(plan, red.Leaves, red.Lits, ops, n, base))
		uniforms = append(uniforms, params)

		entries := make([]wgpu.BindGroupEntry, 0, len(red.Leaves)+2)
		for loc, g := range red.Leaves {
			buf := ops.Views[g].Array().Buffer()
			entries = append(entries, wgpu.BufferBindingEntry(uint32(loc), buf.Handle(), 0, buf.Size()))
		}
		m := len(red.Leaves)
		entries = append(entries,
			wgpu.BufferBindingEntry(uint32(m), scratch.Handle(), 0, scratch.Size()),
			wgpu.BufferBindingEntry(uint32(m+1), params, 0, uint64(pass1ParamsSize)))

		pipeline := k.Partials[idx]
		bindGroup := e.dev.Handle().CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), entries)

		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, bindGroup, nil)
		pass.DispatchWorkgroups(uint32(kernel.WorkgroupsFor(n)), 1, 1)
		pass.End()
		bindGroup.Release()

		base += kernel.WorkgroupsFor(n)
	}

	finalParams := e.dev.NewUniformBuffer(packFinalParams(plan, ops, bases))
	uniforms = append(uniforms, finalParams)
	bindGroup := e.dev.Handle().CreateBindGroupSimple(k.Final.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, scratch.Handle(), 0, scratch.Size()),
		wgpu.BufferBindingEntry(1, out.Handle(), 0, out.Size()),
		wgpu.BufferBindingEntry(2, finalParams, 0, uint64(finalParamsSize)),
	})
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.Final)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(1, 1, 1)
	pass.End()
	bindGroup.Release()

	cmd := encoder.Finish(nil)
	encoder.Release()
	q.Enqueue(cmd)
	for _, u := range uniforms {
		u.Release()
	}

	return &Handle{q: q, out: out, scratch: scratch, dtype: plan.DType}, nil
}

// EvalScalar runs the expression to completion and returns its value. It
// satisfies expr.Runner, so deferred scalars force through the executor.
func (e *Executor) EvalScalar(root *expr.Node, q *device.Queue) (float64, error) {
	h, err := e.RunScalar(root, q)
	if err != nil {
		return 0, err
	}
	defer h.Release()
	return h.Scalar()
}

// Eval compiles and enqueues an array-valued expression and returns the
// result array. The array's contents are defined only after queue order
// reaches this submission; reading it back synchronizes as usual.
func (e *Executor) Eval(root *expr.Node, q *device.Queue) (*array.Array, error) {
	if root.IsScalar() {
		return nil, &kernel.CompileError{Sig: kernel.SignatureOf(root), Msg: "expression is scalar-valued, not array"}
	}
	k, err := e.comp.CompileOrGet(root)
	if err != nil {
		return nil, err
	}
	ops, err := kernel.CollectOperands(root)
	if err != nil {
		return nil, err
	}
	plan := k.Plan

	n := ops.N
	out := e.dev.NewBuffer(uint64(n) * uint64(plan.DType.Size()))
	params := e.dev.NewUniformBuffer(packPassParams(plan, plan.Elem.Leaves, plan.Elem.Lits, ops, n, 0))

	entries := make([]wgpu.BindGroupEntry, 0, len(plan.Elem.Leaves)+2)
	for loc, g := range plan.Elem.Leaves {
		buf := ops.Views[g].Array().Buffer()
		entries = append(entries, wgpu.BufferBindingEntry(uint32(loc), buf.Handle(), 0, buf.Size()))
	}
	m := len(plan.Elem.Leaves)
	entries = append(entries,
		wgpu.BufferBindingEntry(uint32(m), out.Handle(), 0, out.Size()),
		wgpu.BufferBindingEntry(uint32(m+1), params, 0, uint64(pass1ParamsSize)))

	encoder := e.dev.Handle().CreateCommandEncoder(nil)
	bindGroup := e.dev.Handle().CreateBindGroupSimple(k.Elementwise.GetBindGroupLayout(0), entries)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.Elementwise)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32(kernel.WorkgroupsFor(n)), 1, 1)
	pass.End()
	bindGroup.Release()

	cmd := encoder.Finish(nil)
	encoder.Release()
	q.Enqueue(cmd)
	params.Release()

	return array.Wrap(out, array.Shape{n}, plan.DType), nil
}

// Uniform block sizes, matching the generated WGSL struct layouts.
const (
	pass1ParamsSize = 16 + 16*8 + 16*2 // n/base header, meta, lits
	finalParamsSize = 16*4 + 16*2      // segs, lits
)

// packPassParams lays out the pass-1/elementwise uniform block: element
// count, scratch base, per-leaf offset and stride, literal values.
func packPassParams(plan *kernel.Plan, leaves, lits []int, ops *kernel.Operands, n, base int) []byte {
	buf := make([]byte, pass1ParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(n))
	binary.LittleEndian.PutUint32(buf[4:], uint32(base))
	for loc, g := range leaves {
		v := ops.Views[g]
		off := 16 + loc*16
		binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v.Offset())))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(int32(v.LinearStride())))
	}
	packLits(buf[16+16*8:], plan, lits, ops)
	return buf
}

// packFinalParams lays out the combine-pass uniform block: per-reduction
// scratch segment (base, count) and the epilogue's literal values.
func packFinalParams(plan *kernel.Plan, ops *kernel.Operands, bases []int) []byte {
	buf := make([]byte, finalParamsSize)
	for idx := range plan.Reductions {
		off := idx * 16
		binary.LittleEndian.PutUint32(buf[off:], uint32(bases[idx]))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(kernel.WorkgroupsFor(ops.RedN[idx])))
	}
	packLits(buf[16*4:], plan, plan.FinalLits, ops)
	return buf
}

func packLits(dst []byte, plan *kernel.Plan, lits []int, ops *kernel.Operands) {
	for loc, g := range lits {
		v := ops.Lits[g]
		var bits uint32
		if plan.DType == array.Int32 {
			bits = uint32(int32(v))
		} else {
			bits = math.Float32bits(float32(v))
		}
		binary.LittleEndian.PutUint32(dst[loc*4:], bits)
	}
}
