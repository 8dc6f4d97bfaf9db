package compute

import (
	"fmt"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Buffer is a device memory object, owned by the Context it was created from.
type Buffer struct {
	nativeHandle
	context *Context
	flags   MemFlags
	size    int
}

// NewBuffer allocates an uninitialized buffer of size bytes, with the given flags (e.g. MemReadWrite).
//
// Use NewBufferFromHost to create a buffer initialized from host data.
func (c *Context) NewBuffer(flags MemFlags, size int) (*Buffer, error) {
	const op = "Context.NewBuffer"
	if err := c.checkValid(AllocationError, op); err != nil {
		return nil, err
	}
	if flags.Has(MemCopyHostPtr) || flags.Has(MemUseHostPtr) {
		return nil, newErrorf(AllocationError, op, "flags include a host pointer, use NewBufferFromHost instead")
	}
	return c.newBuffer(op, flags, size, nil)
}

// NewBufferFromHost allocates a buffer with the contents of data, which are copied before it returns: data can be
// modified afterward. MemCopyHostPtr is always added to flags, and MemUseHostPtr is not supported, since Go memory
// can't be owned by the device.
func (c *Context) NewBufferFromHost(flags MemFlags, data []float32) (*Buffer, error) {
	const op = "Context.NewBufferFromHost"
	if err := c.checkValid(AllocationError, op); err != nil {
		return nil, err
	}
	if flags.Has(MemUseHostPtr) {
		return nil, newErrorf(AllocationError, op, "MemUseHostPtr is not supported for Go memory, use MemCopyHostPtr")
	}
	if len(data) == 0 {
		return nil, newErrorf(AllocationError, op, "no data given to initialize buffer")
	}
	b, err := c.newBuffer(op, flags|MemCopyHostPtr, len(data)*4, hostBytes(data))
	runtime.KeepAlive(data)
	return b, err
}

func (c *Context) newBuffer(op string, flags MemFlags, size int, host []byte) (*Buffer, error) {
	if size <= 0 {
		return nil, newErrorf(AllocationError, op, "invalid buffer size %d", size)
	}
	h, err := c.rt.CreateBuffer(c.handle, flags, size, host)
	if err == nil && h == 0 {
		err = errors.New("runtime returned an invalid (zero) buffer handle")
	}
	if err != nil {
		return nil, newError(AllocationError, op, errors.WithMessagef(err, "allocating %s", humanize.Bytes(uint64(size))))
	}
	b := &Buffer{nativeHandle: newNativeHandle(c.rt, KindBuffer, h), context: c, flags: flags, size: size}
	c.dependents++
	klog.V(2).Infof("compute: allocated buffer of %s (flags=0x%x)", humanize.Bytes(uint64(size)), uint64(flags))
	runtime.SetFinalizer(b, func(b *Buffer) { destroyOrLog("Buffer", b) })
	return b, nil
}

// Context that owns the buffer.
func (b *Buffer) Context() *Context { return b.context }

// Size of the buffer in bytes.
func (b *Buffer) Size() int { return b.size }

// Len is the number of float32 elements that fit in the buffer.
func (b *Buffer) Len() int { return b.size / 4 }

// Flags used to create the buffer.
func (b *Buffer) Flags() MemFlags { return b.flags }

// IsValid returns whether the buffer has not been destroyed yet.
func (b *Buffer) IsValid() bool { return b.valid() }

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%s, flags=0x%x)", humanize.Bytes(uint64(b.size)), uint64(b.flags))
}

// Destroy the Buffer and release its native handle. It is a no-op if already destroyed.
// This is automatically called if Buffer is garbage collected.
func (b *Buffer) Destroy() error {
	if !b.valid() {
		return nil
	}
	defer runtime.KeepAlive(b)
	err := b.release()
	b.context.dependents--
	return err
}
