// Package compute drives a native general-purpose GPU compute runtime (OpenCL, WebGPU, or the host emulator)
// from Go.
//
// It has two layers:
//
//   - An object model wrapping the native handles: Platform, Device, Context, Queue, Buffer, Program and Kernel.
//     The objects that own a native handle have a Destroy method, which can be called more than once. A Go
//     finalizer is set as a fallback so forgotten handles are eventually released, but users should call
//     Destroy explicitly, dependents (kernels, queues, buffers, programs) before the objects they were created
//     from.
//   - The Dispatcher, which runs the whole elementwise-add procedure: select platform and device, create the
//     context and an in-order queue, upload the inputs, build the kernel, launch it, read the result back and
//     release everything in reverse order.
//
// The native side is abstracted by the Runtime interface. Implementations live in the sub-packages
// compute/opencl, compute/webgpu and compute/emulator, and register themselves by name, see Register and New.
//
// Errors returned by the dispatcher and the object model are of type *Error, and they can be matched with
// errors.Is against one of the ErrorKind values:
//
//	c, err := dispatcher.Add(ctx, a, b)
//	if errors.Is(err, compute.BuildError) {
//		var cErr *compute.Error
//		errors.As(err, &cErr)
//		fmt.Println(cErr.BuildLog)
//	}
package compute
