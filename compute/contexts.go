package compute

import (
	"runtime"

	"github.com/pkg/errors"
)

// Context is bound to exactly one Device, and owns the queues, buffers and programs created from it.
//
// It is not safe for concurrent use.
type Context struct {
	nativeHandle
	device *Device

	// dependents is the number of live queues, buffers and programs created from the context.
	dependents int
}

// NewContext creates a context on the device.
func (d *Device) NewContext() (*Context, error) {
	rt := d.platform.rt
	h, err := rt.CreateContext(d.handle)
	if err == nil && h == 0 {
		err = errors.New("runtime returned an invalid (zero) context handle")
	}
	if err != nil {
		return nil, newError(ContextCreationError, "CreateContext", err)
	}
	c := &Context{nativeHandle: newNativeHandle(rt, KindContext, h), device: d}
	runtime.SetFinalizer(c, func(c *Context) { destroyOrLog("Context", c) })
	return c, nil
}

// Device the context is bound to.
func (c *Context) Device() *Device { return c.device }

// IsValid returns whether the context has not been destroyed yet.
func (c *Context) IsValid() bool { return c.valid() }

// Destroy the Context and release its native handle. It is a no-op if already destroyed.
//
// It fails (with ReleaseError) without releasing anything if queues, buffers or programs created from it are still
// alive: destroy those first.
func (c *Context) Destroy() error {
	if !c.valid() {
		return nil
	}
	defer runtime.KeepAlive(c)
	if c.dependents > 0 {
		return newErrorf(ReleaseError, "Context.Destroy",
			"context still has %d live dependents (queues, buffers or programs), destroy them first", c.dependents)
	}
	return c.release()
}

// checkValid returns an error of the given kind if the context has been destroyed.
func (c *Context) checkValid(kind ErrorKind, op string) error {
	if c == nil || !c.valid() {
		return newErrorf(kind, op, "context is nil or has already been destroyed")
	}
	return nil
}
