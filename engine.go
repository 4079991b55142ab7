// Copyright 2025 Lumen ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lumen

import (
	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/exec"
	"github.com/lumen-ml/lumen/internal/expr"
)

// Engine binds one device to an executor and its kernel cache. Arrays
// created through an engine live on that device; expressions built over
// them run on its queue in submission order.
type Engine struct {
	dev *Device
	ex  *exec.Executor
}

// NewEngine returns an engine for the device.
func NewEngine(dev *Device) *Engine {
	return &Engine{dev: dev, ex: exec.New(dev)}
}

// Device returns the engine's device.
func (e *Engine) Device() *Device { return e.dev }

// NewArray allocates a zero-initialized device array.
func (e *Engine) NewArray(shape Shape, dtype DataType) (*Array, error) {
	return array.New(e.dev, shape, dtype)
}

// FromFloat32 uploads host data into a new rank-1 Float32 array.
func (e *Engine) FromFloat32(data []float32) (*Array, error) {
	return array.FromFloat32(e.dev, data)
}

// FromInt32 uploads host data into a new rank-1 Int32 array.
func (e *Engine) FromInt32(data []int32) (*Array, error) {
	return array.FromInt32(e.dev, data)
}

// FromFloat16Bits widens IEEE binary16 host data to a Float32 device array.
// Half precision is a storage format here; kernels compute in f32.
func (e *Engine) FromFloat16Bits(bits []uint16) (*Array, error) {
	return array.FromFloat16Bits(e.dev, bits)
}

// Defer enqueues nothing and returns an unresolved scalar bound to the
// engine's queue. The device runs only when the scalar is forced.
func (e *Engine) Defer(n *Node) (*Scalar, error) {
	return expr.NewScalar(n, e.ex, e.dev.Queue())
}

// Eval compiles and enqueues an array-valued expression, returning the
// result array without waiting for the device.
func (e *Engine) Eval(n *Node) (*Array, error) {
	return e.ex.Eval(n, e.dev.Queue())
}

// Float32s reads an array back to the host, synchronizing the queue.
func (e *Engine) Float32s(a *Array) ([]float32, error) {
	return a.Float32s(e.dev.Queue())
}

// Int32s reads an array back to the host, synchronizing the queue.
func (e *Engine) Int32s(a *Array) ([]int32, error) {
	return a.Int32s(e.dev.Queue())
}

// Sync flushes pending submissions and blocks until the device is idle.
func (e *Engine) Sync() error {
	return e.dev.Queue().Sync()
}

// KernelCount reports how many distinct kernel signatures the engine has
// compiled so far.
func (e *Engine) KernelCount() int {
	return e.ex.Compiler().Size()
}
