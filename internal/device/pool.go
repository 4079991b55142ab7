package device

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// sizeClass categorizes buffers for pooling.
type sizeClass int

const (
	smallBuffer sizeClass = iota
	mediumBuffer
	largeBuffer
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPoolSize     = 64          // max buffers per class
)

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// BufferPool reuses storage buffers to cut allocation overhead for the
// scratch buffers multi-pass reductions need. Buffers are storage-usage
// only and categorized by size.
type BufferPool struct {
	device *wgpu.Device

	mu     sync.Mutex
	small  []*pooledBuffer
	medium []*pooledBuffer
	large  []*pooledBuffer

	hits   uint64
	misses uint64
}

// NewBufferPool creates a pool allocating from the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{device: device}
}

// Acquire returns a storage buffer of at least size bytes, reusing a pooled
// one when possible.
func (p *BufferPool) Acquire(size uint64) *Scratch {
	size = alignSize(size)

	p.mu.Lock()
	pool := p.classPool(p.classify(size))
	for i, pb := range *pool {
		if pb.size >= size {
			*pool = append((*pool)[:i], (*pool)[i+1:]...)
			p.hits++
			p.mu.Unlock()
			return &Scratch{pool: p, buffer: pb.buffer, size: pb.size}
		}
	}
	p.misses++
	p.mu.Unlock()

	buf := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	return &Scratch{pool: p, buffer: buf, size: size}
}

// Clear releases every pooled buffer. Called when the device is released.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pool := range []*[]*pooledBuffer{&p.small, &p.medium, &p.large} {
		for _, pb := range *pool {
			pb.buffer.Release()
		}
		*pool = (*pool)[:0]
	}
}

// Stats returns pool hit/miss counters.
func (p *BufferPool) Stats() (hits, misses uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses, len(p.small) + len(p.medium) + len(p.large)
}

func (p *BufferPool) put(buf *wgpu.Buffer, size uint64) {
	p.mu.Lock()
	pool := p.classPool(p.classify(size))
	if len(*pool) >= maxPoolSize {
		p.mu.Unlock()
		buf.Release()
		return
	}
	*pool = append(*pool, &pooledBuffer{buffer: buf, size: size})
	p.mu.Unlock()
}

func (p *BufferPool) classify(size uint64) sizeClass {
	if size < smallThreshold {
		return smallBuffer
	}
	if size < mediumThreshold {
		return mediumBuffer
	}
	return largeBuffer
}

func (p *BufferPool) classPool(c sizeClass) *[]*pooledBuffer {
	switch c {
	case smallBuffer:
		return &p.small
	case mediumBuffer:
		return &p.medium
	default:
		return &p.large
	}
}

// Scratch is a pooled storage buffer checked out of a BufferPool.
type Scratch struct {
	pool   *BufferPool
	buffer *wgpu.Buffer
	size   uint64
}

// Handle exposes the raw wgpu buffer for binding.
func (s *Scratch) Handle() *wgpu.Buffer {
	return s.buffer
}

// Size returns the buffer size in bytes.
func (s *Scratch) Size() uint64 {
	return s.size
}

// Release returns the buffer to its pool. The caller must not release a
// scratch buffer while work reading it is still in flight.
func (s *Scratch) Release() {
	if s.buffer != nil {
		s.pool.put(s.buffer, s.size)
		s.buffer = nil
	}
}
