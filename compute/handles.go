package compute

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"k8s.io/klog/v2"
)

var handlesAlive atomic.Int64

// HandlesAlive returns the number of native handles (contexts, queues, buffers, programs and kernels) created
// through this package and not yet released.
func HandlesAlive() int64 {
	return handlesAlive.Load()
}

// nativeHandle is embedded by the wrappers that own a native object that needs releasing.
type nativeHandle struct {
	rt     Runtime
	kind   HandleKind
	handle Handle
}

func newNativeHandle(rt Runtime, kind HandleKind, h Handle) nativeHandle {
	handlesAlive.Add(1)
	return nativeHandle{rt: rt, kind: kind, handle: h}
}

func (n *nativeHandle) valid() bool {
	return n != nil && n.rt != nil && n.handle != 0
}

// Handle returns the native handle, or 0 if it has already been released.
func (n *nativeHandle) Handle() Handle {
	if !n.valid() {
		return 0
	}
	return n.handle
}

// release the native object. The handle is invalidated even if the runtime fails to release it.
func (n *nativeHandle) release() error {
	if !n.valid() {
		// Already destroyed, no-op.
		return nil
	}
	rt, kind, h := n.rt, n.kind, n.handle
	n.rt = nil
	n.handle = 0
	handlesAlive.Add(-1)
	if err := rt.Release(kind, h); err != nil {
		return newError(ReleaseError, fmt.Sprintf("Release(%s)", kind), err)
	}
	return nil
}

// destroyer is implemented by every wrapper that owns a native handle.
type destroyer interface {
	Destroy() error
}

// destroyOrLog destroys obj and logs any errors. It is used by the finalizers.
func destroyOrLog(name string, obj destroyer) {
	if err := obj.Destroy(); err != nil {
		klog.Errorf("compute.%s.Destroy failed: %+v", name, err)
	}
}

// hostBytes returns a view of the float32 slice as bytes, without copying.
func hostBytes(values []float32) []byte {
	if len(values) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(values))), len(values)*4)
}
