package device

import (
	"sync/atomic"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
)

// Buffer is a reference-counted device buffer. Views share ownership of the
// buffer: the device memory is released when the last reference goes away.
type Buffer struct {
	dev  *Device
	buf  *wgpu.Buffer
	size uint64
	refs atomic.Int32
}

// NewBuffer allocates a zero-initialized storage buffer of size bytes.
// Sizes are rounded up to the 4-byte copy alignment WebGPU requires.
func (d *Device) NewBuffer(size uint64) *Buffer {
	aligned := alignSize(size)
	buf := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  aligned,
	})
	b := &Buffer{dev: d, buf: buf, size: aligned}
	b.refs.Store(1)
	return b
}

// NewBufferFrom allocates a storage buffer and uploads data into it through
// a mapped-at-creation write.
func (d *Device) NewBufferFrom(data []byte) *Buffer {
	aligned := alignSize(uint64(len(data)))
	buf := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:             aligned,
		MappedAtCreation: wgpu.True,
	})
	mappedPtr := buf.GetMappedRange(0, aligned)
	mapped := unsafe.Slice((*byte)(mappedPtr), aligned)
	copy(mapped, data)
	buf.Unmap()

	b := &Buffer{dev: d, buf: buf, size: aligned}
	b.refs.Store(1)
	return b
}

// NewUniformBuffer creates a uniform buffer with the 16-byte alignment
// uniform struct fields require. The caller owns the raw buffer.
func (d *Device) NewUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	aligned := (size + 15) &^ 15
	buf := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             aligned,
		MappedAtCreation: wgpu.True,
	})
	mappedPtr := buf.GetMappedRange(0, aligned)
	mapped := unsafe.Slice((*byte)(mappedPtr), aligned)
	copy(mapped, data)
	buf.Unmap()
	return buf
}

// Retain increments the reference count and returns the buffer.
func (b *Buffer) Retain() *Buffer {
	b.refs.Add(1)
	return b
}

// Release decrements the reference count; the device memory is freed when it
// reaches zero.
func (b *Buffer) Release() {
	if b.refs.Add(-1) == 0 && b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Size returns the buffer size in bytes (after alignment).
func (b *Buffer) Size() uint64 {
	return b.size
}

// Device returns the owning device.
func (b *Buffer) Device() *Device {
	return b.dev
}

// Handle exposes the raw wgpu buffer for binding.
func (b *Buffer) Handle() *wgpu.Buffer {
	return b.buf
}

func alignSize(size uint64) uint64 {
	if size < 4 {
		size = 4
	}
	return (size + 3) &^ 3
}
