package device

import (
	"encoding/binary"
	"testing"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	ctx, err := NewContext()
	if err != nil {
		t.Skipf("WebGPU not available: %v", err)
	}
	t.Cleanup(ctx.Release)
	return ctx.Devices()[0]
}

func TestBufferUploadReadback(t *testing.T) {
	dev := newTestDevice(t)

	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i * 3)
	}
	buf := dev.NewBufferFrom(data)
	defer buf.Release()

	got, err := dev.Queue().Read(buf, 0, 64)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], data[i])
		}
	}
}

func TestReadAtOffset(t *testing.T) {
	dev := newTestDevice(t)

	data := make([]byte, 32)
	binary.LittleEndian.PutUint32(data[8:], 0xdeadbeef)
	buf := dev.NewBufferFrom(data)
	defer buf.Release()

	got, err := dev.Queue().Read(buf, 8, 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v := binary.LittleEndian.Uint32(got); v != 0xdeadbeef {
		t.Fatalf("got %#x want 0xdeadbeef", v)
	}
}

func TestNewBufferIsZeroed(t *testing.T) {
	dev := newTestDevice(t)

	buf := dev.NewBuffer(128)
	defer buf.Release()

	got, err := dev.Queue().Read(buf, 0, 128)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d not zero: %d", i, b)
		}
	}
}

func TestSyncWithNothingPending(t *testing.T) {
	dev := newTestDevice(t)
	if err := dev.Queue().Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func TestBufferRefCounting(t *testing.T) {
	dev := newTestDevice(t)

	buf := dev.NewBuffer(16)
	buf.Retain()
	buf.Release()
	if buf.Handle() == nil {
		t.Fatal("buffer freed while a reference remained")
	}
	buf.Release()
	if buf.Handle() != nil {
		t.Fatal("buffer not freed at refcount zero")
	}
}

func TestBufferPoolReuse(t *testing.T) {
	dev := newTestDevice(t)
	pool := dev.Pool()
	pool.Clear()

	s1 := pool.Acquire(1024)
	first := s1.Handle()
	s1.Release()

	s2 := pool.Acquire(1024)
	defer s2.Release()
	if s2.Handle() != first {
		t.Error("pool did not reuse the released buffer")
	}

	hits, misses, _ := pool.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats: hits=%d misses=%d, want 1/1", hits, misses)
	}
}

func TestAlignSize(t *testing.T) {
	cases := map[uint64]uint64{0: 4, 1: 4, 4: 4, 5: 8, 17: 20}
	for in, want := range cases {
		if got := alignSize(in); got != want {
			t.Errorf("alignSize(%d) = %d, want %d", in, got, want)
		}
	}
}
