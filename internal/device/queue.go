package device

import (
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
)

// Queue is a single device command queue. Enqueued command buffers execute
// in FIFO order relative to each other; nothing is ordered across queues.
// Commands are accumulated and submitted together to reduce per-submit
// overhead; any read or explicit Sync flushes the pending batch first.
type Queue struct {
	dev *Device
	q   *wgpu.Queue

	mu      sync.Mutex
	pending []*wgpu.CommandBuffer
}

func newQueue(d *Device, q *wgpu.Queue) *Queue {
	return &Queue{dev: d, q: q}
}

// Enqueue appends a command buffer to the pending batch.
func (q *Queue) Enqueue(cmd *wgpu.CommandBuffer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, cmd)
}

// Flush submits all pending command buffers to the device.
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushLocked()
}

func (q *Queue) flushLocked() {
	if len(q.pending) == 0 {
		return
	}
	q.q.Submit(q.pending...)
	q.pending = q.pending[:0]
}

// Sync blocks until every command submitted to this queue so far has
// completed. Storage buffers cannot be mapped directly, so completion is
// observed by mapping a small staging buffer copied behind the pending work.
func (q *Queue) Sync() error {
	_, err := q.readRaw(nil, 0, 4)
	if err != nil {
		return &Error{Op: "sync", Err: err}
	}
	return nil
}

// Read flushes pending work and copies size bytes starting at offset from
// the buffer back to the host. It blocks until the copy (and, FIFO order
// being what it is, everything enqueued before it) completes.
func (q *Queue) Read(b *Buffer, offset, size uint64) ([]byte, error) {
	data, err := q.readRaw(b.buf, offset, size)
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}
	return data, nil
}

// readRaw copies from src (or from a throwaway 4-byte buffer when src is
// nil, which turns the call into a pure fence) into a MapRead staging buffer
// and maps it. MapAsync resolves only after previously submitted work on
// this queue has finished.
func (q *Queue) readRaw(src *wgpu.Buffer, offset, size uint64) ([]byte, error) {
	staging := q.dev.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	var fence *wgpu.Buffer
	if src == nil {
		fence = q.dev.dev.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageCopySrc,
			Size:  size,
		})
		defer fence.Release()
		src = fence
		offset = 0
	}

	encoder := q.dev.dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, offset, staging, 0, size)
	cmd := encoder.Finish(nil)

	q.mu.Lock()
	q.pending = append(q.pending, cmd)
	q.flushLocked()
	q.mu.Unlock()

	if err := staging.MapAsync(q.dev.dev, wgpu.MapModeRead, 0, size); err != nil {
		return nil, err
	}
	mappedPtr := staging.GetMappedRange(0, size)
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	out := make([]byte, size)
	copy(out, mapped)
	staging.Unmap()

	return out, nil
}

// Device returns the queue's owning device.
func (q *Queue) Device() *Device {
	return q.dev
}

func (q *Queue) release() {
	q.Flush()
	if q.q != nil {
		q.q.Release()
		q.q = nil
	}
}
