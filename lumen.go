// Copyright 2025 Lumen ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package lumen provides the public API of the Lumen expression engine:
// lazy arithmetic over GPU-resident strided array views, with reductions
// compiled to WGSL compute kernels on first use and cached by structure.
//
// Example:
//
//	ctx, _ := lumen.NewContext()
//	defer ctx.Release()
//	eng := lumen.NewEngine(ctx.Devices()[0])
//	x := eng.FromFloat32(data)
//	d, _ := lumen.Dot(lumen.ViewOf(x.View()), lumen.ViewOf(x.View()))
//	s, _ := eng.Defer(d)
//	v, _ := s.Force() // first device round-trip happens here
package lumen

import (
	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/device"
	"github.com/lumen-ml/lumen/internal/expr"
	"github.com/lumen-ml/lumen/internal/kernel"
)

// DataType identifies the element type of an array.
type DataType = array.DataType

// Data type constants.
const (
	Float32 DataType = array.Float32
	Float64 DataType = array.Float64
	Float16 DataType = array.Float16
	Int32   DataType = array.Int32
	Int64   DataType = array.Int64
)

// Shape is the extent of an array per dimension.
type Shape = array.Shape

// Array is a device-resident dense array.
type Array = array.Array

// View is a strided window over an array's buffer.
type View = array.View

// Node is one vertex of a lazy expression tree.
type Node = expr.Node

// Scalar is a deferred scalar result: unresolved until Force.
type Scalar = expr.Scalar

// Context enumerates and owns the available devices.
type Context = device.Context

// Device is one enumerated adapter with its queue and scratch pool.
type Device = device.Device

// Info describes a device.
type Info = device.Info

// Error types surfaced by the engine.
type (
	BoundsError  = array.BoundsError
	ExprError    = expr.Error
	CompileError = kernel.CompileError
	DeviceError  = device.Error
)

// NewContext enumerates devices. It fails when no adapter is available.
func NewContext() (*Context, error) { return device.NewContext() }

// IsAvailable reports whether a GPU adapter can be acquired at all.
func IsAvailable() bool { return device.IsAvailable() }

// ViewOf lifts a view into an expression leaf.
func ViewOf(v View) *Node { return expr.ViewOf(v) }

// Const lifts a literal into an expression leaf. Literals are untyped until
// combined with a typed operand.
func Const(v float64) *Node { return expr.Const(v) }

// Float16Bits narrows host float32 data to IEEE binary16 bits, the storage
// format Engine.FromFloat16Bits accepts.
func Float16Bits(data []float32) []uint16 { return array.Float16Bits(data) }

// Elementwise operators.

func Add(a, b *Node) (*Node, error)     { return expr.Add(a, b) }
func Sub(a, b *Node) (*Node, error)     { return expr.Sub(a, b) }
func Mul(a, b *Node) (*Node, error)     { return expr.Mul(a, b) }
func Div(a, b *Node) (*Node, error)     { return expr.Div(a, b) }
func Maximum(a, b *Node) (*Node, error) { return expr.Maximum(a, b) }
func Minimum(a, b *Node) (*Node, error) { return expr.Minimum(a, b) }
func Exp(a *Node) (*Node, error)        { return expr.Exp(a) }
func Abs(a *Node) (*Node, error)        { return expr.Abs(a) }
func Neg(a *Node) (*Node, error)        { return expr.Neg(a) }

// Reductions.

func Sum(a *Node) (*Node, error)    { return expr.Sum(a) }
func Dot(x, y *Node) (*Node, error) { return expr.Dot(x, y) }
func Asum(x *Node) (*Node, error)   { return expr.Asum(x) }
func Max(a *Node) (*Node, error)    { return expr.Max(a) }
func Min(a *Node) (*Node, error)    { return expr.Min(a) }
