package compute

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

// Queue is an in-order command queue on the context's device: commands execute in the order they were enqueued.
type Queue struct {
	nativeHandle
	context *Context
}

// NewQueue creates an in-order command queue for the context's device.
func (c *Context) NewQueue() (*Queue, error) {
	const op = "Context.NewQueue"
	if err := c.checkValid(QueueCreationError, op); err != nil {
		return nil, err
	}
	h, err := c.rt.CreateQueue(c.handle, c.device.handle)
	if err == nil && h == 0 {
		err = errors.New("runtime returned an invalid (zero) queue handle")
	}
	if err != nil {
		return nil, newError(QueueCreationError, op, err)
	}
	q := &Queue{nativeHandle: newNativeHandle(c.rt, KindQueue, h), context: c}
	c.dependents++
	runtime.SetFinalizer(q, func(q *Queue) { destroyOrLog("Queue", q) })
	return q, nil
}

// Context that owns the queue.
func (q *Queue) Context() *Context { return q.context }

// Destroy the Queue and release its native handle. It is a no-op if already destroyed.
func (q *Queue) Destroy() error {
	if !q.valid() {
		return nil
	}
	defer runtime.KeepAlive(q)
	err := q.release()
	q.context.dependents--
	return err
}

// EnqueueKernel enqueues a 1-D launch of the kernel over global work-items, grouped in work-groups of local
// work-items. If local is 0 the runtime chooses the work-group size.
//
// All the kernel arguments must have been set. The launch executes asynchronously: use a blocking ReadBuffer or
// Finish to wait for it.
func (q *Queue) EnqueueKernel(k *Kernel, global, local int) error {
	op := fmt.Sprintf("EnqueueKernel(global=%d, local=%d)", global, local)
	if !q.valid() {
		return newErrorf(LaunchError, op, "queue is nil or has already been destroyed")
	}
	if k == nil || !k.valid() {
		return newErrorf(LaunchError, op, "kernel is nil or has already been destroyed")
	}
	if k.program.context != q.context {
		return newErrorf(LaunchError, op, "kernel %q was created on a different context than the queue", k.name)
	}
	if global < 1 {
		return newErrorf(LaunchError, op, "global work size must be at least 1")
	}
	if local < 0 {
		return newErrorf(LaunchError, op, "local work size must be non-negative")
	}
	if local > 0 && global%local != 0 {
		return newErrorf(LaunchError, op, "global work size %d is not divisible by the local work size %d", global, local)
	}
	for ii, arg := range k.args {
		if arg == nil || !arg.valid() {
			return newErrorf(LaunchError, op, "argument #%d of kernel %q is not set or its buffer was destroyed", ii, k.name)
		}
	}
	defer runtime.KeepAlive(k)
	if err := q.rt.EnqueueKernel(q.handle, k.handle, global, local); err != nil {
		return newError(LaunchError, op, errors.WithMessagef(err, "while launching kernel %q", k.name))
	}
	return nil
}

// ReadBuffer reads len(dst) float32 values from the start of the buffer into dst. It is blocking: it returns after
// all previously enqueued commands completed and the data is in dst.
func (q *Queue) ReadBuffer(b *Buffer, dst []float32) error {
	op := fmt.Sprintf("ReadBuffer(%d values)", len(dst))
	if !q.valid() {
		return newErrorf(ReadBackError, op, "queue is nil or has already been destroyed")
	}
	if b == nil || !b.valid() {
		return newErrorf(ReadBackError, op, "buffer is nil or has already been destroyed")
	}
	if b.context != q.context {
		return newErrorf(ReadBackError, op, "buffer was created on a different context than the queue")
	}
	if len(dst)*4 > b.size {
		return newErrorf(ReadBackError, op, "reading %d bytes from a buffer of %d bytes", len(dst)*4, b.size)
	}
	if len(dst) == 0 {
		return nil
	}
	defer runtime.KeepAlive(b)
	if err := q.rt.ReadBuffer(q.handle, b.handle, true, hostBytes(dst)); err != nil {
		return newError(ReadBackError, op, err)
	}
	return nil
}

// Finish blocks until all commands enqueued in the queue have completed.
func (q *Queue) Finish() error {
	if !q.valid() {
		return newErrorf(LaunchError, "Queue.Finish", "queue is nil or has already been destroyed")
	}
	if err := q.rt.Finish(q.handle); err != nil {
		return newError(LaunchError, "Queue.Finish", err)
	}
	return nil
}
