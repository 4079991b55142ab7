// Package device wraps the WebGPU collaborator: adapter/device enumeration,
// per-device command queues, buffer management and host<->device transfer.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package device

import (
	"fmt"
	"log/slog"

	"github.com/go-webgpu/webgpu/wgpu"
)

// Info describes a compute device.
type Info struct {
	Name   string
	Vendor string
	// SupportsFloat64 reports whether the device can execute f64 kernels.
	// WGSL has no 64-bit float type, so this is false for every WebGPU
	// device; callers gate double-precision work on it the same way they
	// would on any other backend.
	SupportsFloat64 bool
}

// Device is a single compute device with one command queue.
type Device struct {
	adapter *wgpu.Adapter
	dev     *wgpu.Device
	queue   *Queue
	pool    *BufferPool
	info    Info
}

// Context owns the WebGPU instance and the set of enumerated devices.
type Context struct {
	instance *wgpu.Instance
	devices  []*Device
}

// NewContext creates a WebGPU instance and enumerates the available devices.
// WebGPU exposes a single default adapter per instance, so the returned
// context holds one device; the slice shape keeps multi-device callers
// uniform.
func NewContext() (ctx *Context, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("device: native library not available: %v", r)
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return nil, fmt.Errorf("device: failed to create instance: %w", instErr)
	}

	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("device: failed to request adapter: %w", adapterErr)
	}

	adapterInfo, infoErr := adapter.GetInfo()
	if infoErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("device: failed to get adapter info: %w", infoErr)
	}

	dev, devErr := adapter.RequestDevice(nil)
	if devErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("device: failed to request device: %w", devErr)
	}

	q := dev.GetQueue()
	if q == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("device: failed to get queue")
	}

	d := &Device{
		adapter: adapter,
		dev:     dev,
		info: Info{
			Name:            adapterInfo.Device,
			Vendor:          adapterInfo.Vendor,
			SupportsFloat64: false,
		},
	}
	d.queue = newQueue(d, q)
	d.pool = NewBufferPool(dev)

	slog.Debug("device enumerated", "name", d.info.Name, "vendor", d.info.Vendor)

	return &Context{
		instance: instance,
		devices:  []*Device{d},
	}, nil
}

// Devices returns the enumerated devices.
func (c *Context) Devices() []*Device {
	return c.devices
}

// Release releases every device and the underlying instance.
func (c *Context) Release() {
	for _, d := range c.devices {
		d.release()
	}
	c.devices = nil
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}

// IsAvailable reports whether a WebGPU adapter can be acquired on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Info returns the device's identification metadata.
func (d *Device) Info() Info {
	return d.info
}

// Queue returns the device's command queue.
func (d *Device) Queue() *Queue {
	return d.queue
}

// Pool returns the device's scratch buffer pool.
func (d *Device) Pool() *BufferPool {
	return d.pool
}

// Handle exposes the raw wgpu device for kernel compilation and dispatch.
func (d *Device) Handle() *wgpu.Device {
	return d.dev
}

func (d *Device) release() {
	if d.pool != nil {
		d.pool.Clear()
		d.pool = nil
	}
	if d.queue != nil {
		d.queue.release()
		d.queue = nil
	}
	if d.dev != nil {
		d.dev.Release()
		d.dev = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
}
