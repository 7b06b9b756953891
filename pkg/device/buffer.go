package device

import (
	"fmt"
	"sync"
	"unsafe"
)

// Device owns the emulated accelerator: a validated capability set plus the
// memory budget allocations are charged against.
type Device struct {
	caps Capabilities

	mu        sync.Mutex
	allocated int64
}

// New wraps a capability set in a Device. The capabilities are validated
// here; a Device handle always carries usable limits.
func New(caps Capabilities) (*Device, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	return &Device{caps: caps}, nil
}

// Open detects the host device and wraps it.
func Open() (*Device, error) {
	caps, err := Detect()
	if err != nil {
		return nil, err
	}
	return New(caps)
}

// Caps returns the device capabilities by value.
func (d *Device) Caps() Capabilities { return d.caps }

// Allocated returns the bytes currently charged against the budget.
func (d *Device) Allocated() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// Buffer is a device-resident allocation addressed as raw bytes. Typed
// access goes through View.
type Buffer struct {
	dev  *Device
	data []byte
}

// Alloc reserves n bytes against the device budget. Exhausting the budget
// is ErrAllocFailed: the caller must abandon the invocation, the device
// stays usable.
func (d *Device) Alloc(n int) (*Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrAllocFailed, n)
	}
	d.mu.Lock()
	if d.allocated+int64(n) > d.caps.MemoryBytes {
		free := d.caps.MemoryBytes - d.allocated
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %d bytes requested, %d free", ErrAllocFailed, n, free)
	}
	d.allocated += int64(n)
	d.mu.Unlock()
	return &Buffer{dev: d, data: make([]byte, n)}, nil
}

// AllocOf reserves space for n elements of T.
func AllocOf[T any](d *Device, n int) (*Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrAllocFailed, n)
	}
	return d.Alloc(n * int(unsafe.Sizeof(*new(T))))
}

// Free returns the buffer's bytes to the budget. Safe to call once.
func (b *Buffer) Free() {
	if b == nil || b.dev == nil {
		return
	}
	b.dev.mu.Lock()
	b.dev.allocated -= int64(len(b.data))
	b.dev.mu.Unlock()
	b.dev = nil
	b.data = nil
}

// Size returns the allocation size in bytes.
func (b *Buffer) Size() int { return len(b.data) }

// Bytes exposes the raw storage.
func (b *Buffer) Bytes() []byte { return b.data }

// View reinterprets a buffer as a typed device array of as many whole
// elements as fit. Go heap allocations satisfy the alignment of any
// element type used here.
func View[T any](b *Buffer) []T {
	return ViewBytes[T](b.data)
}

// ViewBytes reinterprets a byte slice as a typed array. Used for buffers
// and for per-block scratch slabs.
func ViewBytes[T any](data []byte) []T {
	size := int(unsafe.Sizeof(*new(T)))
	n := len(data) / size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
}
