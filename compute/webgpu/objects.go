package webgpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gomlx/gocompute/compute"
	"github.com/gomlx/gocompute/internal/kernelsrc"
	"github.com/openfluke/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// maxMapPolls is the maximum number of device polls waiting for a staging buffer to be mapped.
const maxMapPolls = 1000

type deviceContext struct {
	adapter *wgpu.Adapter
	device  *wgpu.Device
}

type queue struct {
	context *deviceContext
	queue   *wgpu.Queue
}

type buffer struct {
	context *deviceContext
	buffer  *wgpu.Buffer
	size    int
}

type program struct {
	context *deviceContext
	module  *wgpu.ShaderModule
	wgsl    *kernelsrc.Module
}

type kernel struct {
	program  *program
	entry    kernelsrc.EntryPoint
	bindings []kernelsrc.Binding
	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.ComputePipeline
	args     []*buffer
}

// CreateContext implements compute.Runtime: it requests a WebGPU device from the adapter.
func (r *Runtime) CreateContext(device compute.Handle) (compute.Handle, error) {
	adapter, err := getObject[*wgpu.Adapter](r, deviceKind, device)
	if err != nil {
		return 0, err
	}
	wgpuDevice, err := adapter.RequestDevice(nil)
	if err != nil {
		return 0, errors.Wrapf(err, "webgpu: RequestDevice failed")
	}
	if wgpuDevice == nil {
		return 0, errors.New("webgpu: RequestDevice returned no device")
	}
	return r.objects.Add(compute.KindContext.String(), &deviceContext{adapter: adapter, device: wgpuDevice}), nil
}

// CreateQueue implements compute.Runtime. The device parameter must be the adapter of the context.
func (r *Runtime) CreateQueue(context, device compute.Handle) (compute.Handle, error) {
	ctx, err := getObject[*deviceContext](r, compute.KindContext.String(), context)
	if err != nil {
		return 0, err
	}
	adapter, err := getObject[*wgpu.Adapter](r, deviceKind, device)
	if err != nil {
		return 0, err
	}
	if adapter != ctx.adapter {
		return 0, errors.New("webgpu: queue device is not the device of the context")
	}
	return r.objects.Add(compute.KindQueue.String(), &queue{context: ctx, queue: ctx.device.GetQueue()}), nil
}

// CreateBuffer implements compute.Runtime. All buffers are storage buffers that can be copied from, to be read
// back through a staging buffer.
func (r *Runtime) CreateBuffer(context compute.Handle, flags compute.MemFlags, size int, host []byte) (compute.Handle, error) {
	ctx, err := getObject[*deviceContext](r, compute.KindContext.String(), context)
	if err != nil {
		return 0, err
	}
	if flags.Has(compute.MemUseHostPtr) {
		return 0, errors.New("webgpu: MemUseHostPtr is not supported")
	}
	if size%4 != 0 {
		return 0, errors.Errorf("webgpu: buffer size must be a multiple of 4 bytes, got %d", size)
	}
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	var wgpuBuffer *wgpu.Buffer
	if flags.Has(compute.MemCopyHostPtr) {
		if len(host) < size {
			return 0, errors.Errorf("webgpu: host data has %d bytes, but buffer size is %d", len(host), size)
		}
		wgpuBuffer, err = ctx.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    "gocompute_buffer",
			Contents: host[:size],
			Usage:    usage,
		})
	} else {
		wgpuBuffer, err = ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "gocompute_buffer",
			Size:  uint64(size),
			Usage: usage,
		})
	}
	if err != nil {
		return 0, errors.Wrapf(err, "webgpu: failed to create buffer of %d bytes", size)
	}
	return r.objects.Add(compute.KindBuffer.String(), &buffer{context: ctx, buffer: wgpuBuffer, size: size}), nil
}

// BuildProgram implements compute.Runtime: it creates a shader module from the WGSL source. Build options are
// not supported.
func (r *Runtime) BuildProgram(context, device compute.Handle, source, options string) (compute.Handle, string, error) {
	ctx, err := getObject[*deviceContext](r, compute.KindContext.String(), context)
	if err != nil {
		return 0, "", err
	}
	if strings.TrimSpace(options) != "" {
		return 0, "", errors.Errorf("webgpu: build options are not supported, got %q", options)
	}

	wgsl, diags := kernelsrc.ScanWGSL(source)
	if n := diags.Errors(); n > 0 {
		return 0, diags.Log(source), errors.Errorf("webgpu: %d error(s) in WGSL source", n)
	}
	buildLog := diags.Log(source)

	module, err := ctx.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "gocompute_program",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		buildLog += strings.TrimSpace(err.Error()) + "\n"
		if _, nagaErr := naga.Compile(source); nagaErr != nil {
			buildLog += "naga: " + strings.TrimSpace(nagaErr.Error()) + "\n"
		}
		return 0, buildLog, errors.Wrap(err, "webgpu: CreateShaderModule failed")
	}
	return r.objects.Add(compute.KindProgram.String(), &program{context: ctx, module: module, wgsl: wgsl}), buildLog, nil
}

// CreateKernel implements compute.Runtime: it creates the compute pipeline for the entry point.
func (r *Runtime) CreateKernel(programHandle compute.Handle, name string) (compute.Handle, error) {
	p, err := getObject[*program](r, compute.KindProgram.String(), programHandle)
	if err != nil {
		return 0, err
	}
	entry, found := p.wgsl.EntryPoint(name)
	if !found {
		return 0, errors.Errorf("webgpu: compute entry point %q not found in shader module", name)
	}
	bindings := p.wgsl.GroupBindings(0)
	layoutEntries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	for _, b := range bindings {
		bindingType := wgpu.BufferBindingTypeStorage
		switch {
		case b.AddressSpace == "uniform":
			bindingType = wgpu.BufferBindingTypeUniform
		case b.ReadOnly():
			bindingType = wgpu.BufferBindingTypeReadOnlyStorage
		}
		layoutEntries = append(layoutEntries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(b.Binding),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: bindingType},
		})
	}

	device := p.context.device
	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   name + "_bgl",
		Entries: layoutEntries,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "webgpu: CreateBindGroupLayout for %q failed", name)
	}
	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            name + "_pl",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		layout.Release()
		return 0, errors.Wrapf(err, "webgpu: CreatePipelineLayout for %q failed", name)
	}
	defer pipelineLayout.Release()
	pipeline, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  name,
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     p.module,
			EntryPoint: name,
		},
	})
	if err != nil {
		layout.Release()
		return 0, errors.Wrapf(err, "webgpu: CreateComputePipeline for %q failed", name)
	}
	k := &kernel{
		program:  p,
		entry:    entry,
		bindings: bindings,
		layout:   layout,
		pipeline: pipeline,
		args:     make([]*buffer, len(bindings)),
	}
	return r.objects.Add(compute.KindKernel.String(), k), nil
}

// SetKernelArg implements compute.Runtime. The index is the position of the binding in group 0.
func (r *Runtime) SetKernelArg(kernelHandle compute.Handle, index int, bufferHandle compute.Handle) error {
	k, err := getObject[*kernel](r, compute.KindKernel.String(), kernelHandle)
	if err != nil {
		return err
	}
	b, err := getObject[*buffer](r, compute.KindBuffer.String(), bufferHandle)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(k.args) {
		return errors.Errorf("webgpu: kernel %q has %d bindings, can't set argument #%d", k.entry.Name, len(k.args), index)
	}
	k.args[index] = b
	return nil
}

// workgroupSize returns the number of invocations per workgroup declared by the entry point.
func (k *kernel) workgroupSize() int {
	return k.entry.WorkgroupSize[0] * k.entry.WorkgroupSize[1] * k.entry.WorkgroupSize[2]
}

// EnqueueKernel implements compute.Runtime. The local size must be the workgroup size declared in the shader
// (or 0 to use it), and it must divide global.
func (r *Runtime) EnqueueKernel(queueHandle, kernelHandle compute.Handle, global, local int) error {
	q, err := getObject[*queue](r, compute.KindQueue.String(), queueHandle)
	if err != nil {
		return err
	}
	k, err := getObject[*kernel](r, compute.KindKernel.String(), kernelHandle)
	if err != nil {
		return err
	}
	declared := k.workgroupSize()
	if local == 0 {
		local = declared
	}
	if local != declared {
		return errors.Errorf("webgpu: local work size %d doesn't match the @workgroup_size of %q (%d invocations)",
			local, k.entry.Name, declared)
	}
	if global < 1 || global%local != 0 {
		return errors.Errorf("webgpu: global work size %d is not a positive multiple of the local work size %d", global, local)
	}
	device := q.context.device
	workgroups, err := workgroupCount(global, local, device.GetLimits().Limits.MaxComputeWorkgroupsPerDimension)
	if err != nil {
		return err
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(k.args))
	for ii, arg := range k.args {
		if arg == nil {
			return errors.Errorf("webgpu: argument #%d of %q is not set", ii, k.entry.Name)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(k.bindings[ii].Binding),
			Buffer:  arg.buffer,
			Offset:  0,
			Size:    uint64(arg.size),
		})
	}

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.entry.Name + "_bg",
		Layout:  k.layout,
		Entries: entries,
	})
	if err != nil {
		return errors.Wrap(err, "webgpu: CreateBindGroup failed")
	}
	defer bindGroup.Release()

	encoder, err := device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: k.entry.Name + "_enc"})
	if err != nil {
		return errors.Wrap(err, "webgpu: CreateCommandEncoder failed")
	}
	defer encoder.Release()
	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: k.entry.Name + "_pass"})
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(workgroups, 1, 1)
	pass.End()
	pass.Release()
	commands, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "webgpu: CommandEncoder.Finish failed")
	}
	defer commands.Release()
	q.queue.Submit(commands)
	klog.V(2).Infof("webgpu: dispatched %q with %d workgroups of %d", k.entry.Name, workgroups, local)
	return nil
}

// ReadBuffer implements compute.Runtime, by copying the buffer to a staging buffer that is then mapped. Only
// blocking reads are supported.
func (r *Runtime) ReadBuffer(queueHandle, bufferHandle compute.Handle, blocking bool, dst []byte) error {
	if !blocking {
		return errors.New("webgpu: non-blocking reads are not supported")
	}
	q, err := getObject[*queue](r, compute.KindQueue.String(), queueHandle)
	if err != nil {
		return err
	}
	b, err := getObject[*buffer](r, compute.KindBuffer.String(), bufferHandle)
	if err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	if len(dst) > b.size || len(dst)%4 != 0 {
		return errors.Errorf("webgpu: can't read %d bytes from a buffer of %d bytes", len(dst), b.size)
	}

	device := q.context.device
	size := uint64(len(dst))
	staging, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "gocompute_staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return errors.Wrap(err, "webgpu: failed to create staging buffer")
	}
	defer staging.Release()

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "webgpu: CreateCommandEncoder failed")
	}
	defer encoder.Release()
	encoder.CopyBufferToBuffer(b.buffer, 0, staging, 0, size)
	commands, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "webgpu: CommandEncoder.Finish failed")
	}
	defer commands.Release()
	q.queue.Submit(commands)

	var (
		mapped    bool
		mapStatus wgpu.BufferMapAsyncStatus
	)
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
		mapped = true
	})
	for ii := 0; ii < maxMapPolls && !mapped; ii++ {
		device.Poll(true, nil)
	}
	if !mapped {
		return errors.Errorf("webgpu: staging buffer not mapped after %d device polls", maxMapPolls)
	}
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return errors.Errorf("webgpu: failed to map staging buffer, status %s", fmt.Sprint(mapStatus))
	}
	copy(dst, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return nil
}

// Finish implements compute.Runtime: it waits for the device to be idle.
func (r *Runtime) Finish(queueHandle compute.Handle) error {
	q, err := getObject[*queue](r, compute.KindQueue.String(), queueHandle)
	if err != nil {
		return err
	}
	q.context.device.Poll(true, nil)
	return nil
}

// Release implements compute.Runtime.
func (r *Runtime) Release(kind compute.HandleKind, h compute.Handle) error {
	object, err := r.objects.Remove(kind.String(), h)
	if err != nil {
		return errors.WithMessage(err, "webgpu")
	}
	switch o := object.(type) {
	case *deviceContext:
		o.device.Release()
	case *queue:
		o.queue.Release()
	case *buffer:
		o.buffer.Release()
	case *program:
		o.module.Release()
	case *kernel:
		o.pipeline.Release()
		o.layout.Release()
	default:
		return errors.Errorf("webgpu: can't release %s handle #%d holding a %T", kind, h, object)
	}
	return nil
}
