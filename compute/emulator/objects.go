package emulator

import (
	"unsafe"

	"github.com/gomlx/gocompute/compute"
	"github.com/pkg/errors"
)

type platform struct {
	spec    PlatformSpec
	devices []compute.Handle
}

type device struct {
	spec      DeviceSpec
	platform  compute.Handle
	allocated int
}

type deviceContext struct {
	device     compute.Handle
	dependents int
}

type queue struct {
	context, device compute.Handle
}

type buffer struct {
	context compute.Handle
	flags   compute.MemFlags
	size    int

	// data holds the contents, rounded up to a multiple of 4 bytes.
	data []float32
}

// bytes returns a view of the buffer contents.
func (b *buffer) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(b.data))), len(b.data)*4)[:b.size]
}

type program struct {
	context compute.Handle
	source  string
	kernels int

	// entries are the kernel signatures found by the build: for OpenCL C the parameters, for WGSL the bindings of
	// group 0 (argument i is the i-th binding) and the workgroup size.
	entries map[string]*entry
}

type entry struct {
	name          string
	numArgs       int
	readOnly      []bool
	workgroupSize int // 0 for OpenCL C, where the local size is free.
}

type kernel struct {
	program compute.Handle
	entry   *entry
	args    []compute.Handle
}

// Platforms implements compute.Runtime.
func (r *Runtime) Platforms() ([]compute.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("Platforms", compute.KindInvalid, 0); err != nil {
		return nil, err
	}
	return append([]compute.Handle(nil), r.platformHandles...), nil
}

// PlatformInfo implements compute.Runtime.
func (r *Runtime) PlatformInfo(h compute.Handle, param compute.PlatformInfo) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("PlatformInfo", compute.KindInvalid, 0); err != nil {
		return "", err
	}
	p, found := r.platforms[h]
	if !found {
		return "", errors.Errorf("CL_INVALID_PLATFORM: unknown platform handle %d", h)
	}
	switch param {
	case compute.PlatformName:
		return p.spec.Name, nil
	case compute.PlatformVendor:
		return p.spec.Vendor, nil
	case compute.PlatformVersion:
		return p.spec.Version, nil
	}
	return "", errors.Errorf("CL_INVALID_VALUE: unknown platform info %d", param)
}

// Devices implements compute.Runtime.
func (r *Runtime) Devices(platformHandle compute.Handle, class compute.DeviceClass) ([]compute.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("Devices", compute.KindInvalid, 0); err != nil {
		return nil, err
	}
	p, found := r.platforms[platformHandle]
	if !found {
		return nil, errors.Errorf("CL_INVALID_PLATFORM: unknown platform handle %d", platformHandle)
	}
	var handles []compute.Handle
	for _, dh := range p.devices {
		deviceClass := r.devices[dh].spec.Class
		switch {
		case class == compute.DeviceAll, class == deviceClass:
			handles = append(handles, dh)
		case class == compute.DeviceDefault && len(handles) == 0:
			// The first device is the default one.
			handles = append(handles, dh)
		}
	}
	return handles, nil
}

// DeviceInfo implements compute.Runtime.
func (r *Runtime) DeviceInfo(h compute.Handle, param compute.DeviceInfo) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("DeviceInfo", compute.KindInvalid, 0); err != nil {
		return "", err
	}
	d, found := r.devices[h]
	if !found {
		return "", errors.Errorf("CL_INVALID_DEVICE: unknown device handle %d", h)
	}
	switch param {
	case compute.DeviceName:
		return d.spec.Name, nil
	case compute.DeviceVendor:
		return d.spec.Vendor, nil
	case compute.DeviceVersion:
		return d.spec.Version, nil
	case compute.DriverVersion:
		return "emulator", nil
	}
	return "", errors.Errorf("CL_INVALID_VALUE: unknown device info %d", param)
}

// CreateContext implements compute.Runtime.
func (r *Runtime) CreateContext(deviceHandle compute.Handle) (compute.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("CreateContext", compute.KindContext, 0); err != nil {
		return 0, err
	}
	if _, found := r.devices[deviceHandle]; !found {
		return 0, errors.Errorf("CL_INVALID_DEVICE: unknown device handle %d", deviceHandle)
	}
	h := r.newHandle()
	r.contexts[h] = &deviceContext{device: deviceHandle}
	r.setLastCallHandle(h)
	return h, nil
}

// CreateQueue implements compute.Runtime.
func (r *Runtime) CreateQueue(contextHandle, deviceHandle compute.Handle) (compute.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("CreateQueue", compute.KindQueue, 0); err != nil {
		return 0, err
	}
	c, found := r.contexts[contextHandle]
	if !found {
		return 0, errors.Errorf("CL_INVALID_CONTEXT: unknown context handle %d", contextHandle)
	}
	if c.device != deviceHandle {
		return 0, errors.Errorf("CL_INVALID_DEVICE: device %d is not associated with context %d", deviceHandle, contextHandle)
	}
	h := r.newHandle()
	r.queues[h] = &queue{context: contextHandle, device: deviceHandle}
	c.dependents++
	r.setLastCallHandle(h)
	return h, nil
}

// CreateBuffer implements compute.Runtime.
func (r *Runtime) CreateBuffer(contextHandle compute.Handle, flags compute.MemFlags, size int, host []byte) (compute.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("CreateBuffer", compute.KindBuffer, 0); err != nil {
		return 0, err
	}
	c, found := r.contexts[contextHandle]
	if !found {
		return 0, errors.Errorf("CL_INVALID_CONTEXT: unknown context handle %d", contextHandle)
	}
	if size <= 0 {
		return 0, errors.Errorf("CL_INVALID_BUFFER_SIZE: size %d", size)
	}
	access := flags & (compute.MemReadWrite | compute.MemReadOnly | compute.MemWriteOnly)
	if access != 0 && access != compute.MemReadWrite && access != compute.MemReadOnly && access != compute.MemWriteOnly {
		return 0, errors.Errorf("CL_INVALID_VALUE: conflicting access flags 0x%x", uint64(flags))
	}
	if flags.Has(compute.MemCopyHostPtr) != (host != nil) {
		return 0, errors.Errorf("CL_INVALID_HOST_PTR: host data must be given if and only if MemCopyHostPtr is set")
	}
	if host != nil && len(host) < size {
		return 0, errors.Errorf("CL_INVALID_HOST_PTR: host data has %d bytes, buffer needs %d", len(host), size)
	}
	d := r.devices[c.device]
	if d.spec.MemoryBytes > 0 && d.allocated+size > d.spec.MemoryBytes {
		return 0, errors.Errorf("CL_MEM_OBJECT_ALLOCATION_FAILURE: %d bytes requested, %d of %d bytes in use",
			size, d.allocated, d.spec.MemoryBytes)
	}
	b := &buffer{context: contextHandle, flags: flags, size: size, data: make([]float32, (size+3)/4)}
	if host != nil {
		copy(b.bytes(), host[:size])
	}
	d.allocated += size
	h := r.newHandle()
	r.buffers[h] = b
	c.dependents++
	r.setLastCallHandle(h)
	return h, nil
}

// BuildProgram implements compute.Runtime.
func (r *Runtime) BuildProgram(contextHandle, deviceHandle compute.Handle, source, options string) (compute.Handle, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("BuildProgram", compute.KindProgram, 0); err != nil {
		return 0, "", err
	}
	c, found := r.contexts[contextHandle]
	if !found {
		return 0, "", errors.Errorf("CL_INVALID_CONTEXT: unknown context handle %d", contextHandle)
	}
	if c.device != deviceHandle {
		return 0, "", errors.Errorf("CL_INVALID_DEVICE: device %d is not associated with context %d", deviceHandle, contextHandle)
	}
	if err := checkBuildOptions(options); err != nil {
		return 0, "", err
	}
	var entries map[string]*entry
	var buildLog string
	var err error
	if r.opts.Language == compute.WGSL {
		entries, buildLog, err = buildWGSL(source)
	} else {
		entries, buildLog, err = buildOpenCL(source)
	}
	if err != nil {
		return 0, buildLog, err
	}
	h := r.newHandle()
	r.programs[h] = &program{context: contextHandle, source: source, entries: entries}
	c.dependents++
	r.setLastCallHandle(h)
	return h, buildLog, nil
}

// CreateKernel implements compute.Runtime.
func (r *Runtime) CreateKernel(programHandle compute.Handle, name string) (compute.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("CreateKernel", compute.KindKernel, 0); err != nil {
		return 0, err
	}
	p, found := r.programs[programHandle]
	if !found {
		return 0, errors.Errorf("CL_INVALID_PROGRAM: unknown program handle %d", programHandle)
	}
	e, found := p.entries[name]
	if !found {
		return 0, errors.Errorf("CL_INVALID_KERNEL_NAME: no kernel named %q in program", name)
	}
	h := r.newHandle()
	r.kernels[h] = &kernel{program: programHandle, entry: e, args: make([]compute.Handle, e.numArgs)}
	p.kernels++
	r.setLastCallHandle(h)
	return h, nil
}

// SetKernelArg implements compute.Runtime.
func (r *Runtime) SetKernelArg(kernelHandle compute.Handle, index int, bufferHandle compute.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("SetKernelArg", compute.KindKernel, kernelHandle); err != nil {
		return err
	}
	k, found := r.kernels[kernelHandle]
	if !found {
		return errors.Errorf("CL_INVALID_KERNEL: unknown kernel handle %d", kernelHandle)
	}
	if index < 0 || index >= len(k.args) {
		return errors.Errorf("CL_INVALID_ARG_INDEX: kernel %q takes %d arguments, got index %d",
			k.entry.name, len(k.args), index)
	}
	b, found := r.buffers[bufferHandle]
	if !found {
		return errors.Errorf("CL_INVALID_MEM_OBJECT: unknown buffer handle %d", bufferHandle)
	}
	if b.context != r.programs[k.program].context {
		return errors.Errorf("CL_INVALID_MEM_OBJECT: buffer %d belongs to a different context", bufferHandle)
	}
	k.args[index] = bufferHandle
	return nil
}

// ReadBuffer implements compute.Runtime.
func (r *Runtime) ReadBuffer(queueHandle, bufferHandle compute.Handle, blocking bool, dst []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("ReadBuffer", compute.KindBuffer, bufferHandle); err != nil {
		return err
	}
	q, found := r.queues[queueHandle]
	if !found {
		return errors.Errorf("CL_INVALID_COMMAND_QUEUE: unknown queue handle %d", queueHandle)
	}
	b, found := r.buffers[bufferHandle]
	if !found {
		return errors.Errorf("CL_INVALID_MEM_OBJECT: unknown buffer handle %d", bufferHandle)
	}
	if b.context != q.context {
		return errors.Errorf("CL_INVALID_CONTEXT: buffer and queue belong to different contexts")
	}
	if len(dst) > b.size {
		return errors.Errorf("CL_INVALID_VALUE: reading %d bytes from a buffer of %d bytes", len(dst), b.size)
	}
	// Commands execute when enqueued, so blocking and non-blocking reads are the same.
	_ = blocking
	copy(dst, b.bytes())
	return nil
}

// Finish implements compute.Runtime.
func (r *Runtime) Finish(queueHandle compute.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("Finish", compute.KindQueue, queueHandle); err != nil {
		return err
	}
	if _, found := r.queues[queueHandle]; !found {
		return errors.Errorf("CL_INVALID_COMMAND_QUEUE: unknown queue handle %d", queueHandle)
	}
	return nil
}

// Release implements compute.Runtime. Releasing a context with live queues, buffers or programs, or a program
// with live kernels, fails.
func (r *Runtime) Release(kind compute.HandleKind, h compute.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("Release", kind, h); err != nil {
		return err
	}
	switch kind {
	case compute.KindKernel:
		k, found := r.kernels[h]
		if !found {
			return errors.Errorf("CL_INVALID_KERNEL: unknown kernel handle %d", h)
		}
		r.programs[k.program].kernels--
		delete(r.kernels, h)

	case compute.KindProgram:
		p, found := r.programs[h]
		if !found {
			return errors.Errorf("CL_INVALID_PROGRAM: unknown program handle %d", h)
		}
		if p.kernels > 0 {
			return errors.Errorf("CL_INVALID_PROGRAM: program %d still has %d live kernels", h, p.kernels)
		}
		r.contexts[p.context].dependents--
		delete(r.programs, h)

	case compute.KindBuffer:
		b, found := r.buffers[h]
		if !found {
			return errors.Errorf("CL_INVALID_MEM_OBJECT: unknown buffer handle %d", h)
		}
		c := r.contexts[b.context]
		r.devices[c.device].allocated -= b.size
		c.dependents--
		delete(r.buffers, h)

	case compute.KindQueue:
		q, found := r.queues[h]
		if !found {
			return errors.Errorf("CL_INVALID_COMMAND_QUEUE: unknown queue handle %d", h)
		}
		r.contexts[q.context].dependents--
		delete(r.queues, h)

	case compute.KindContext:
		c, found := r.contexts[h]
		if !found {
			return errors.Errorf("CL_INVALID_CONTEXT: unknown context handle %d", h)
		}
		if c.dependents > 0 {
			return errors.Errorf("CL_INVALID_CONTEXT: context %d still has %d live queues, buffers or programs", h, c.dependents)
		}
		delete(r.contexts, h)

	default:
		return errors.Errorf("CL_INVALID_VALUE: can't release handle %d of kind %s", h, kind)
	}
	return nil
}

// args returns the buffers bound to the kernel, or an error if some argument is not set.
func (r *Runtime) args(k *kernel) ([]*buffer, error) {
	buffers := make([]*buffer, len(k.args))
	for ii, h := range k.args {
		b, found := r.buffers[h]
		if !found {
			return nil, errors.Errorf("CL_INVALID_KERNEL_ARGS: argument #%d of kernel %q is not set (or was released)",
				ii, k.entry.name)
		}
		buffers[ii] = b
	}
	return buffers, nil
}
