package exec

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/lumen-ml/lumen/internal/array"
	"github.com/lumen-ml/lumen/internal/device"
)

// Handle is a pending scalar result. It pins the output buffer and the
// scratch allocation until the submission is known complete.
type Handle struct {
	q       *device.Queue
	out     *device.Buffer
	scratch *device.Scratch
	dtype   array.DataType

	mu   sync.Mutex
	done bool
	val  float64
	err  error
}

// Wait blocks until the submission completes and the result is read back.
// It is idempotent; later calls return the first outcome.
func (h *Handle) Wait() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return h.err
	}
	h.done = true

	raw, err := h.q.Read(h.out, 0, 4)
	if err != nil {
		h.err = err
	} else {
		bits := binary.LittleEndian.Uint32(raw)
		if h.dtype == array.Int32 {
			h.val = float64(int32(bits))
		} else {
			h.val = float64(math.Float32frombits(bits))
		}
	}
	if h.scratch != nil {
		h.scratch.Release()
		h.scratch = nil
	}
	return h.err
}

// Scalar waits for the result and returns it.
func (h *Handle) Scalar() (float64, error) {
	if err := h.Wait(); err != nil {
		return 0, err
	}
	return h.val, nil
}

// Release frees everything the handle pins. Releasing an unforced handle
// waits first so in-flight work never touches freed memory.
func (h *Handle) Release() {
	_ = h.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out != nil {
		h.out.Release()
		h.out = nil
	}
}
