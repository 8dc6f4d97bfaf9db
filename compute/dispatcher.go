package compute

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Config of a Dispatcher: which device to use and which kernel to run.
type Config struct {
	// PlatformIndex is the index of the platform in the list returned by the runtime.
	PlatformIndex int

	// DeviceClass of the devices to enumerate on the platform.
	DeviceClass DeviceClass

	// DeviceIndex is the index of the device within the devices of DeviceClass.
	DeviceIndex int

	// KernelSource to build. If empty, DefaultKernelSource for the runtime's language is used.
	KernelSource string

	// KernelName of the entry point. If empty, DefaultKernelName is used.
	KernelName string

	// BuildOptions passed to the kernel compiler.
	BuildOptions string

	// LocalWorkSize is the number of work-items per work-group. If 0 the runtime chooses it.
	LocalWorkSize int
}

// DefaultConfig returns the configuration of the reference program: platform 0, first GPU device, the default
// elementwise-add kernel and work-groups of 1 work-item.
func DefaultConfig() Config {
	return Config{
		DeviceClass:   DeviceGPU,
		KernelName:    DefaultKernelName,
		LocalWorkSize: 1,
	}
}

// Dispatcher runs the elementwise addition c[i] = a[i] + b[i] on the configured device.
//
// It holds no native handles between calls: every Add creates and releases its own context, queue, buffers,
// program and kernel. So concurrent calls to Add are independent, as long as the Runtime supports it.
type Dispatcher struct {
	rt     Runtime
	config Config
}

// NewDispatcher creates a Dispatcher for the runtime with the given configuration.
func NewDispatcher(rt Runtime, config Config) *Dispatcher {
	if config.KernelName == "" {
		config.KernelName = DefaultKernelName
	}
	if config.KernelSource == "" && rt != nil {
		config.KernelSource = DefaultKernelSource(rt.Language())
	}
	return &Dispatcher{rt: rt, config: config}
}

// Runtime used by the dispatcher.
func (d *Dispatcher) Runtime() Runtime { return d.rt }

// Config returns the dispatcher configuration, with defaults filled in.
func (d *Dispatcher) Config() Config { return d.config }

// releaser holds the acquired handles, and releases them in reverse acquisition order.
type releaser struct {
	id    string
	names []string
	objs  []destroyer
}

func (r *releaser) push(name string, obj destroyer) {
	r.names = append(r.names, name)
	r.objs = append(r.objs, obj)
}

// releaseAll releases every handle in reverse acquisition order. Failures are logged, and don't stop the remaining
// releases.
func (r *releaser) releaseAll() {
	for ii := len(r.objs) - 1; ii >= 0; ii-- {
		if err := r.objs[ii].Destroy(); err != nil {
			klog.Errorf("dispatch %s: failed to release %s: %+v", r.id, r.names[ii], err)
		}
	}
	r.names, r.objs = nil, nil
}

// checkContext returns a CancelledError if ctx is done.
func checkContext(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return newError(CancelledError, step, err)
	}
	return nil
}

// SelectDevice enumerates the platforms and devices of the runtime and selects the one given by config.
func SelectDevice(rt Runtime, config Config) (*Device, error) {
	platforms, err := Platforms(rt)
	if err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		return nil, newErrorf(NoPlatformError, "Platforms", "runtime %q has no platforms", rt.Name())
	}
	if config.PlatformIndex < 0 || config.PlatformIndex >= len(platforms) {
		return nil, newErrorf(NoPlatformError, "Platforms", "platform index %d out of range, %d platform(s) available",
			config.PlatformIndex, len(platforms))
	}
	platform := platforms[config.PlatformIndex]
	devices, err := platform.Devices(config.DeviceClass)
	if err != nil {
		return nil, err
	}
	op := fmt.Sprintf("Devices(platform=%d, class=%s)", config.PlatformIndex, config.DeviceClass)
	if len(devices) == 0 {
		return nil, newErrorf(NoDeviceError, op, "platform %q has no device of class %s", platform.Name(), config.DeviceClass)
	}
	if config.DeviceIndex < 0 || config.DeviceIndex >= len(devices) {
		return nil, newErrorf(NoDeviceError, op, "device index %d out of range, %d %s device(s) available",
			config.DeviceIndex, len(devices), config.DeviceClass)
	}
	return devices[config.DeviceIndex], nil
}

// Add returns c with c[i] = a[i] + b[i], computed on the configured device.
//
// a and b must have the same length N >= 1. Each step of the procedure that fails returns an *Error with the
// ErrorKind of the step, and a nil result. All native handles acquired are released before Add returns, also in
// case of errors. ctx is checked between steps; the native calls themselves are not interrupted.
func (d *Dispatcher) Add(ctx context.Context, a, b []float32) ([]float32, error) {
	n := len(a)
	if n == 0 {
		return nil, newErrorf(InvalidInputError, "Add", "input arrays must have at least one element")
	}
	if len(b) != n {
		return nil, newErrorf(InvalidInputError, "Add", "input arrays have different lengths (%d and %d)", n, len(b))
	}
	if d.rt == nil {
		return nil, newErrorf(InvalidInputError, "Add", "Dispatcher has no Runtime")
	}
	if err := checkContext(ctx, "Add"); err != nil {
		return nil, err
	}

	r := &releaser{id: uuid.NewString()}
	defer r.releaseAll()

	// Platform and device.
	device, err := SelectDevice(d.rt, d.config)
	if err != nil {
		return nil, err
	}
	if klog.V(1).Enabled() {
		klog.Infof("dispatch %s: %s elementwise add of %d values (%s per buffer) on %s",
			r.id, d.rt.Name(), n, humanize.Bytes(uint64(n*4)), device)
	}

	// Context and queue.
	if err = checkContext(ctx, "NewContext"); err != nil {
		return nil, err
	}
	cctx, err := device.NewContext()
	if err != nil {
		return nil, err
	}
	r.push("context", cctx)
	if err = checkContext(ctx, "NewQueue"); err != nil {
		return nil, err
	}
	queue, err := cctx.NewQueue()
	if err != nil {
		return nil, err
	}
	r.push("queue", queue)

	// Buffers: inputs copied from host at creation time.
	if err = checkContext(ctx, "NewBuffer"); err != nil {
		return nil, err
	}
	bufA, err := cctx.NewBufferFromHost(MemReadOnly, a)
	if err != nil {
		return nil, withOp(err, "NewBufferFromHost(a)")
	}
	r.push("buffer a", bufA)
	bufB, err := cctx.NewBufferFromHost(MemReadOnly, b)
	if err != nil {
		return nil, withOp(err, "NewBufferFromHost(b)")
	}
	r.push("buffer b", bufB)
	bufC, err := cctx.NewBuffer(MemReadWrite, n*4)
	if err != nil {
		return nil, withOp(err, "NewBuffer(c)")
	}
	r.push("buffer c", bufC)

	// Program and kernel.
	if err = checkContext(ctx, "BuildProgram"); err != nil {
		return nil, err
	}
	program, err := cctx.BuildProgram(d.config.KernelSource, d.config.BuildOptions)
	if err != nil {
		return nil, err
	}
	r.push("program", program)
	if err = checkContext(ctx, "NewKernel"); err != nil {
		return nil, err
	}
	kernel, err := program.NewKernel(d.config.KernelName)
	if err != nil {
		return nil, err
	}
	r.push("kernel", kernel)
	for ii, buf := range []*Buffer{bufA, bufB, bufC} {
		if err = kernel.SetArg(ii, buf); err != nil {
			return nil, err
		}
	}

	// Launch and blocking read, the only synchronization point.
	if err = checkContext(ctx, "EnqueueKernel"); err != nil {
		return nil, err
	}
	if err = queue.EnqueueKernel(kernel, n, d.config.LocalWorkSize); err != nil {
		return nil, err
	}
	if err = checkContext(ctx, "ReadBuffer"); err != nil {
		return nil, err
	}
	c := make([]float32, n)
	if err = queue.ReadBuffer(bufC, c); err != nil {
		return nil, err
	}
	klog.V(1).Infof("dispatch %s: done", r.id)
	return c, nil
}

// withOp replaces the operation name of err, if it is an *Error.
func withOp(err error, op string) error {
	if cErr, ok := err.(*Error); ok {
		cErr.Op = op
	}
	return err
}
