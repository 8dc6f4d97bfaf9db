//go:build cgo && (linux || darwin)

package opencl

/*
#include <stdlib.h>
#include "cl_api.h"
*/
import "C"

import (
	"unsafe"

	"github.com/gomlx/gocompute/compute"
	"github.com/gomlx/gocompute/internal/handles"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	platformKind = "platform"
	deviceKind   = "device"
)

// Runtime implements compute.Runtime with an OpenCL library.
type Runtime struct {
	lib     *library
	objects *handles.Table[unsafe.Pointer]
}

// Compile time check that Runtime implements compute.Runtime.
var _ compute.Runtime = (*Runtime)(nil)

// New loads the OpenCL library (see package documentation for how it is found) and returns a Runtime that uses it.
// The config is either empty or the path to the OpenCL library.
func New(config string) (*Runtime, error) {
	lib, err := loadLibrary(config)
	if err != nil {
		return nil, err
	}
	return &Runtime{lib: lib, objects: handles.New[unsafe.Pointer]()}, nil
}

func newRuntime(config string) (compute.Runtime, error) {
	rt, err := New(config)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// LibraryPath returns the path (or name, if resolved by the dynamic loader) of the OpenCL library in use.
func (r *Runtime) LibraryPath() string {
	return r.lib.path
}

// Name implements compute.Runtime.
func (r *Runtime) Name() string { return RuntimeName }

// Language implements compute.Runtime.
func (r *Runtime) Language() compute.KernelLanguage { return compute.OpenCLC }

// Platforms implements compute.Runtime.
func (r *Runtime) Platforms() ([]compute.Handle, error) {
	var num C.cl_uint
	status := Status(C.call_clGetPlatformIDs(r.lib.api, 0, nil, &num))
	if status == PlatformNotFoundKHR || (status == Success && num == 0) {
		return nil, nil
	}
	if err := checkStatus("clGetPlatformIDs", status); err != nil {
		return nil, err
	}
	ids := make([]C.cl_platform_id, num)
	status = Status(C.call_clGetPlatformIDs(r.lib.api, num, &ids[0], &num))
	if err := checkStatus("clGetPlatformIDs", status); err != nil {
		return nil, err
	}
	platforms := make([]compute.Handle, 0, num)
	for _, id := range ids[:num] {
		platforms = append(platforms, r.objects.Intern(platformKind, unsafe.Pointer(id)))
	}
	return platforms, nil
}

// PlatformInfo implements compute.Runtime.
func (r *Runtime) PlatformInfo(platform compute.Handle, param compute.PlatformInfo) (string, error) {
	p, err := r.objects.Get(platformKind, platform)
	if err != nil {
		return "", err
	}
	clParam, err := platformParam(param)
	if err != nil {
		return "", err
	}
	return queryString("clGetPlatformInfo", func(size C.size_t, value unsafe.Pointer, sizeRet *C.size_t) C.cl_int {
		return C.call_clGetPlatformInfo(r.lib.api, C.cl_platform_id(p), C.cl_platform_info(clParam), size, value, sizeRet)
	})
}

// Devices implements compute.Runtime. CL_DEVICE_NOT_FOUND is returned as an empty list.
func (r *Runtime) Devices(platform compute.Handle, class compute.DeviceClass) ([]compute.Handle, error) {
	p, err := r.objects.Get(platformKind, platform)
	if err != nil {
		return nil, err
	}
	clType, err := deviceType(class)
	if err != nil {
		return nil, err
	}
	var num C.cl_uint
	status := Status(C.call_clGetDeviceIDs(r.lib.api, C.cl_platform_id(p), C.cl_device_type(clType), 0, nil, &num))
	if status == DeviceNotFound || (status == Success && num == 0) {
		return nil, nil
	}
	if err := checkStatus("clGetDeviceIDs", status); err != nil {
		return nil, err
	}
	ids := make([]C.cl_device_id, num)
	status = Status(C.call_clGetDeviceIDs(r.lib.api, C.cl_platform_id(p), C.cl_device_type(clType), num, &ids[0], &num))
	if err := checkStatus("clGetDeviceIDs", status); err != nil {
		return nil, err
	}
	devices := make([]compute.Handle, 0, num)
	for _, id := range ids[:num] {
		devices = append(devices, r.objects.Intern(deviceKind, unsafe.Pointer(id)))
	}
	return devices, nil
}

// DeviceInfo implements compute.Runtime.
func (r *Runtime) DeviceInfo(device compute.Handle, param compute.DeviceInfo) (string, error) {
	d, err := r.objects.Get(deviceKind, device)
	if err != nil {
		return "", err
	}
	clParam, err := deviceParam(param)
	if err != nil {
		return "", err
	}
	return queryString("clGetDeviceInfo", func(size C.size_t, value unsafe.Pointer, sizeRet *C.size_t) C.cl_int {
		return C.call_clGetDeviceInfo(r.lib.api, C.cl_device_id(d), C.cl_device_info(clParam), size, value, sizeRet)
	})
}

// queryString runs a clGet*Info query twice: first for the size and then for the value.
func queryString(op string, query func(size C.size_t, value unsafe.Pointer, sizeRet *C.size_t) C.cl_int) (string, error) {
	var size C.size_t
	if err := checkStatus(op, Status(query(0, nil, &size))); err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, size)
	if err := checkStatus(op, Status(query(size, unsafe.Pointer(&buf[0]), nil))); err != nil {
		return "", err
	}
	return trimInfo(buf), nil
}

// CreateContext implements compute.Runtime.
func (r *Runtime) CreateContext(device compute.Handle) (compute.Handle, error) {
	d, err := r.objects.Get(deviceKind, device)
	if err != nil {
		return 0, err
	}
	var status C.cl_int
	ctx := C.call_clCreateContext(r.lib.api, C.cl_device_id(d), &status)
	if err := checkStatus("clCreateContext", Status(status)); err != nil {
		return 0, err
	}
	return r.objects.Add(compute.KindContext.String(), unsafe.Pointer(ctx)), nil
}

// CreateQueue implements compute.Runtime. Queues are in-order, without profiling.
func (r *Runtime) CreateQueue(context, device compute.Handle) (compute.Handle, error) {
	ctx, err := r.objects.Get(compute.KindContext.String(), context)
	if err != nil {
		return 0, err
	}
	d, err := r.objects.Get(deviceKind, device)
	if err != nil {
		return 0, err
	}
	var status C.cl_int
	queue := C.call_clCreateCommandQueue(r.lib.api, C.cl_context(ctx), C.cl_device_id(d), &status)
	if err := checkStatus("clCreateCommandQueue", Status(status)); err != nil {
		return 0, err
	}
	return r.objects.Add(compute.KindQueue.String(), unsafe.Pointer(queue)), nil
}

// CreateBuffer implements compute.Runtime. MemUseHostPtr is not supported, since the device can't keep
// references to Go memory.
func (r *Runtime) CreateBuffer(context compute.Handle, flags compute.MemFlags, size int, host []byte) (compute.Handle, error) {
	ctx, err := r.objects.Get(compute.KindContext.String(), context)
	if err != nil {
		return 0, err
	}
	if flags.Has(compute.MemUseHostPtr) {
		return 0, errors.New("opencl: MemUseHostPtr is not supported for buffers backed by Go memory")
	}
	var hostPtr unsafe.Pointer
	if flags.Has(compute.MemCopyHostPtr) {
		if len(host) < size {
			return 0, errors.Errorf("opencl: host data has %d bytes, but buffer size is %d", len(host), size)
		}
		hostPtr = unsafe.Pointer(&host[0])
	}
	var status C.cl_int
	mem := C.call_clCreateBuffer(r.lib.api, C.cl_context(ctx), C.cl_mem_flags(flags), C.size_t(size), hostPtr, &status)
	if err := checkStatus("clCreateBuffer", Status(status)); err != nil {
		return 0, err
	}
	return r.objects.Add(compute.KindBuffer.String(), unsafe.Pointer(mem)), nil
}

// BuildProgram implements compute.Runtime.
func (r *Runtime) BuildProgram(context, device compute.Handle, source, options string) (compute.Handle, string, error) {
	ctx, err := r.objects.Get(compute.KindContext.String(), context)
	if err != nil {
		return 0, "", err
	}
	d, err := r.objects.Get(deviceKind, device)
	if err != nil {
		return 0, "", err
	}

	sourceC := C.CString(source)
	defer C.free(unsafe.Pointer(sourceC))
	var status C.cl_int
	program := C.call_clCreateProgramWithSource(r.lib.api, C.cl_context(ctx), sourceC, &status)
	if err := checkStatus("clCreateProgramWithSource", Status(status)); err != nil {
		return 0, "", err
	}

	optionsC := C.CString(options)
	defer C.free(unsafe.Pointer(optionsC))
	buildStatus := Status(C.call_clBuildProgram(r.lib.api, program, C.cl_device_id(d), optionsC))
	buildLog, logErr := r.buildLog(program, C.cl_device_id(d))
	if logErr != nil {
		klog.Warningf("opencl: failed to retrieve the build log: %v", logErr)
	}
	if err := checkStatus("clBuildProgram", buildStatus); err != nil {
		if releaseErr := checkStatus("clReleaseProgram", Status(C.call_clRelease(r.lib.api, C.CL_FN_RELEASE_PROGRAM, unsafe.Pointer(program)))); releaseErr != nil {
			klog.Errorf("opencl: failed to release program of a failed build: %v", releaseErr)
		}
		return 0, buildLog, err
	}
	return r.objects.Add(compute.KindProgram.String(), unsafe.Pointer(program)), buildLog, nil
}

func (r *Runtime) buildLog(program C.cl_program, device C.cl_device_id) (string, error) {
	return queryString("clGetProgramBuildInfo", func(size C.size_t, value unsafe.Pointer, sizeRet *C.size_t) C.cl_int {
		return C.call_clGetProgramBuildInfo(r.lib.api, program, device, C.cl_program_build_info(clProgramBuildLog), size, value, sizeRet)
	})
}

// CreateKernel implements compute.Runtime.
func (r *Runtime) CreateKernel(program compute.Handle, name string) (compute.Handle, error) {
	p, err := r.objects.Get(compute.KindProgram.String(), program)
	if err != nil {
		return 0, err
	}
	nameC := C.CString(name)
	defer C.free(unsafe.Pointer(nameC))
	var status C.cl_int
	kernel := C.call_clCreateKernel(r.lib.api, C.cl_program(p), nameC, &status)
	if err := checkStatus("clCreateKernel", Status(status)); err != nil {
		return 0, err
	}
	return r.objects.Add(compute.KindKernel.String(), unsafe.Pointer(kernel)), nil
}

// SetKernelArg implements compute.Runtime.
func (r *Runtime) SetKernelArg(kernel compute.Handle, index int, buffer compute.Handle) error {
	k, err := r.objects.Get(compute.KindKernel.String(), kernel)
	if err != nil {
		return err
	}
	mem, err := r.objects.Get(compute.KindBuffer.String(), buffer)
	if err != nil {
		return err
	}
	return checkStatus("clSetKernelArg", Status(C.call_clSetKernelArgMem(r.lib.api, C.cl_kernel(k), C.cl_uint(index), C.cl_mem(mem))))
}

// EnqueueKernel implements compute.Runtime.
func (r *Runtime) EnqueueKernel(queue, kernel compute.Handle, global, local int) error {
	q, err := r.objects.Get(compute.KindQueue.String(), queue)
	if err != nil {
		return err
	}
	k, err := r.objects.Get(compute.KindKernel.String(), kernel)
	if err != nil {
		return err
	}
	status := C.call_clEnqueueNDRangeKernel(r.lib.api, C.cl_command_queue(q), C.cl_kernel(k), C.size_t(global), C.size_t(local))
	return checkStatus("clEnqueueNDRangeKernel", Status(status))
}

// ReadBuffer implements compute.Runtime. Only blocking reads are supported: the destination is Go memory, which
// can't be written by the device after the call returns.
func (r *Runtime) ReadBuffer(queue, buffer compute.Handle, blocking bool, dst []byte) error {
	if !blocking {
		return errors.New("opencl: non-blocking reads are not supported")
	}
	q, err := r.objects.Get(compute.KindQueue.String(), queue)
	if err != nil {
		return err
	}
	mem, err := r.objects.Get(compute.KindBuffer.String(), buffer)
	if err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	status := C.call_clEnqueueReadBuffer(r.lib.api, C.cl_command_queue(q), C.cl_mem(mem), 1, C.size_t(len(dst)), unsafe.Pointer(&dst[0]))
	return checkStatus("clEnqueueReadBuffer", Status(status))
}

// Finish implements compute.Runtime.
func (r *Runtime) Finish(queue compute.Handle) error {
	q, err := r.objects.Get(compute.KindQueue.String(), queue)
	if err != nil {
		return err
	}
	return checkStatus("clFinish", Status(C.call_clFinish(r.lib.api, C.cl_command_queue(q))))
}

// Release implements compute.Runtime.
func (r *Runtime) Release(kind compute.HandleKind, h compute.Handle) error {
	var (
		fn C.int
		op string
	)
	switch kind {
	case compute.KindContext:
		fn, op = C.CL_FN_RELEASE_CONTEXT, "clReleaseContext"
	case compute.KindQueue:
		fn, op = C.CL_FN_RELEASE_COMMAND_QUEUE, "clReleaseCommandQueue"
	case compute.KindBuffer:
		fn, op = C.CL_FN_RELEASE_MEM_OBJECT, "clReleaseMemObject"
	case compute.KindProgram:
		fn, op = C.CL_FN_RELEASE_PROGRAM, "clReleaseProgram"
	case compute.KindKernel:
		fn, op = C.CL_FN_RELEASE_KERNEL, "clReleaseKernel"
	default:
		return errors.Errorf("opencl: can't release objects of kind %s", kind)
	}
	object, err := r.objects.Remove(kind.String(), h)
	if err != nil {
		return err
	}
	return checkStatus(op, Status(C.call_clRelease(r.lib.api, fn, object)))
}
