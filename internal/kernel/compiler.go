package kernel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"golang.org/x/sync/singleflight"

	"github.com/lumen-ml/lumen/internal/device"
	"github.com/lumen-ml/lumen/internal/expr"
)

// Compiled is one cache entry: the plan plus a pipeline per generated pass.
type Compiled struct {
	Plan        *Plan
	Partials    []*wgpu.ComputePipeline // one per reduction, plan order
	Final       *wgpu.ComputePipeline   // scalar roots
	Elementwise *wgpu.ComputePipeline   // array roots
}

// Compiler compiles expression signatures to pipelines and caches the
// result for the lifetime of the device. Entries are never evicted; the
// cache is bounded by the number of distinct expression structures a
// program builds, not by data sizes. Concurrent requests for the same
// signature share one compilation; failures are returned to every waiter
// and never cached, so a later request retries from scratch.
type Compiler struct {
	dev *device.Device

	mu      sync.RWMutex
	kernels map[string]*Compiled
	group   singleflight.Group

	build func(*Plan) (*Compiled, error)
}

// NewCompiler returns a compiler bound to one device.
func NewCompiler(dev *device.Device) *Compiler {
	c := &Compiler{
		dev:     dev,
		kernels: make(map[string]*Compiled),
	}
	c.build = c.buildPipelines
	return c
}

// CompileOrGet returns the compiled kernels for the tree's signature,
// compiling on first use.
func (c *Compiler) CompileOrGet(root *expr.Node) (*Compiled, error) {
	sig := SignatureOf(root)

	c.mu.RLock()
	if k, ok := c.kernels[sig]; ok {
		c.mu.RUnlock()
		return k, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(sig, func() (any, error) {
		c.mu.RLock()
		k, ok := c.kernels[sig]
		c.mu.RUnlock()
		if ok {
			return k, nil
		}

		plan, err := BuildPlan(root)
		if err != nil {
			return nil, err
		}
		k, err = c.build(plan)
		if err != nil {
			return nil, err
		}
		slog.Debug("compiled kernel", "sig", sig, "reductions", len(plan.Reductions))

		c.mu.Lock()
		c.kernels[sig] = k
		c.mu.Unlock()
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Compiled), nil
}

// Size reports the number of cached signatures.
func (c *Compiler) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kernels)
}

func (c *Compiler) buildPipelines(plan *Plan) (k *Compiled, err error) {
	// The native shader compiler reports malformed WGSL by panicking.
	defer func() {
		if r := recover(); r != nil {
			k = nil
			err = &CompileError{Sig: plan.Sig, Msg: fmt.Sprintf("shader compilation failed: %v", r)}
		}
	}()

	dev := c.dev.Handle()
	k = &Compiled{Plan: plan}
	for _, red := range plan.Reductions {
		shader := dev.CreateShaderModuleWGSL(red.Src)
		k.Partials = append(k.Partials, dev.CreateComputePipelineSimple(nil, shader, "main"))
	}
	if plan.ScalarRoot {
		shader := dev.CreateShaderModuleWGSL(plan.FinalSrc)
		k.Final = dev.CreateComputePipelineSimple(nil, shader, "main")
	} else {
		shader := dev.CreateShaderModuleWGSL(plan.Elem.Src)
		k.Elementwise = dev.CreateComputePipelineSimple(nil, shader, "main")
	}
	return k, nil
}
