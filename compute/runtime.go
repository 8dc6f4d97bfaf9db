package compute

import "fmt"

// Handle is an opaque identifier of a native object (platform, device, context, queue, memory object, program or
// kernel). What it encodes is up to the Runtime that issued it. The zero Handle is never valid.
type Handle uintptr

// HandleKind is the kind of native object a Handle refers to. Runtime.Release uses it to dispatch to the correct
// native release call.
type HandleKind int

const (
	KindInvalid HandleKind = iota
	KindContext
	KindQueue
	KindBuffer
	KindProgram
	KindKernel
)

// String implements fmt.Stringer.
func (k HandleKind) String() string {
	switch k {
	case KindContext:
		return "context"
	case KindQueue:
		return "queue"
	case KindBuffer:
		return "buffer"
	case KindProgram:
		return "program"
	case KindKernel:
		return "kernel"
	default:
		return fmt.Sprintf("HandleKind(%d)", int(k))
	}
}

// MemFlags are the flags used when creating a device buffer. The values match OpenCL's CL_MEM_* flags.
type MemFlags uint64

const (
	MemReadWrite    MemFlags = 1 << 0
	MemWriteOnly    MemFlags = 1 << 1
	MemReadOnly     MemFlags = 1 << 2
	MemUseHostPtr   MemFlags = 1 << 3
	MemAllocHostPtr MemFlags = 1 << 4
	MemCopyHostPtr  MemFlags = 1 << 5
)

// Has returns whether all bits of o are set in f.
func (f MemFlags) Has(o MemFlags) bool {
	return f&o == o
}

// KernelLanguage is the source language a Runtime compiles programs from.
type KernelLanguage int

const (
	OpenCLC KernelLanguage = iota
	WGSL
)

// String implements fmt.Stringer.
func (l KernelLanguage) String() string {
	switch l {
	case OpenCLC:
		return "OpenCL C"
	case WGSL:
		return "WGSL"
	default:
		return fmt.Sprintf("KernelLanguage(%d)", int(l))
	}
}

// PlatformInfo selects a string property of a platform.
type PlatformInfo int

const (
	PlatformName PlatformInfo = iota
	PlatformVendor
	PlatformVersion
)

// DeviceInfo selects a string property of a device.
type DeviceInfo int

const (
	DeviceName DeviceInfo = iota
	DeviceVendor
	DeviceVersion
	DriverVersion
)

// Runtime is the native compute runtime: it enumerates platforms and devices, manages the lifecycle of contexts,
// queues, buffers, programs and kernels, compiles kernels and executes them.
//
// Implementations only translate calls to the native API: validation of arguments, ownership and release
// ordering are handled by the wrappers in this package. Errors returned should carry the native status, they
// are classified (see ErrorKind) by the caller.
type Runtime interface {
	// Name of the runtime, e.g.: "opencl".
	Name() string

	// Language of the kernel sources accepted by BuildProgram.
	Language() KernelLanguage

	// Platforms returns the available platforms. An installation with no platforms returns an empty list, not an
	// error.
	Platforms() ([]Handle, error)

	// PlatformInfo returns a string property of the platform.
	PlatformInfo(platform Handle, param PlatformInfo) (string, error)

	// Devices returns the devices of the given class in the platform. No matching device returns an empty list.
	Devices(platform Handle, class DeviceClass) ([]Handle, error)

	// DeviceInfo returns a string property of the device.
	DeviceInfo(device Handle, param DeviceInfo) (string, error)

	// CreateContext creates a context bound to exactly one device.
	CreateContext(device Handle) (Handle, error)

	// CreateQueue creates an in-order command queue for the device in the context.
	CreateQueue(context, device Handle) (Handle, error)

	// CreateBuffer allocates size bytes on the device. If flags include MemCopyHostPtr, host holds the initial
	// contents (at least size bytes), copied before CreateBuffer returns.
	CreateBuffer(context Handle, flags MemFlags, size int, host []byte) (Handle, error)

	// BuildProgram compiles source for the device. On a failed build it returns the compiler log, along
	// with the error. The runtime releases partially created native objects of a failed build.
	BuildProgram(context, device Handle, source, options string) (program Handle, buildLog string, err error)

	// CreateKernel extracts the named entry point from a built program.
	CreateKernel(program Handle, name string) (Handle, error)

	// SetKernelArg binds a buffer to the kernel's positional argument index.
	SetKernelArg(kernel Handle, index int, buffer Handle) error

	// EnqueueKernel enqueues a 1-D launch of global work-items, in work-groups of local work-items. If local is 0
	// the runtime chooses it.
	EnqueueKernel(queue, kernel Handle, global, local int) error

	// ReadBuffer reads len(dst) bytes from the start of the buffer. If blocking it only returns after the data is
	// in dst.
	ReadBuffer(queue, buffer Handle, blocking bool, dst []byte) error

	// Finish blocks until all commands in the queue are completed.
	Finish(queue Handle) error

	// Release the native object of the given kind.
	Release(kind HandleKind, h Handle) error
}
