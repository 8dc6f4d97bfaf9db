// Package emulator implements a compute.Runtime on the host, in pure Go.
//
// It stands in for a native runtime in tests and on machines without a GPU:
//
//   - Platforms and devices are configurable, see Options.Platforms.
//   - Programs are "built" by scanning the source: OpenCL C kernel signatures (or WGSL entry points and
//     bindings) are extracted and lexical errors are reported in a clang-style build log. WGSL is also compiled
//     with naga.
//   - Kernels execute a Go implementation registered by name (see RegisterKernel), once per work-item.
//     The "elementwiseAdd" kernel is registered by default.
//   - Every call is recorded (see Runtime.Calls), live handles are counted (Runtime.LiveHandles), and releasing
//     an object with live dependents is an error.
//   - Failures can be injected per operation, see Options.FailOn.
//
// Importing the package registers it as the "emulator" runtime, see compute.New.
package emulator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gomlx/gocompute/compute"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// RuntimeName used to register the emulator.
const RuntimeName = "emulator"

func init() {
	compute.Register(RuntimeName, func(config string) (compute.Runtime, error) {
		opts, err := ParseConfig(config)
		if err != nil {
			return nil, err
		}
		return New(opts), nil
	})
}

// DeviceSpec describes an emulated device.
type DeviceSpec struct {
	Name, Vendor, Version string
	Class                 compute.DeviceClass

	// MaxWorkGroupSize limits the local work size of launches. If 0, DefaultMaxWorkGroupSize is used.
	MaxWorkGroupSize int

	// MemoryBytes limits the total size of the live buffers on the device. If 0 there is no limit.
	MemoryBytes int
}

// PlatformSpec describes an emulated platform and its devices.
type PlatformSpec struct {
	Name, Vendor, Version string
	Devices               []DeviceSpec
}

// DefaultMaxWorkGroupSize of emulated devices.
const DefaultMaxWorkGroupSize = 256

// DefaultPlatforms returns the platforms emulated by default: one platform with a GPU and a CPU device.
func DefaultPlatforms() []PlatformSpec {
	return []PlatformSpec{{
		Name:    "Emulated Platform",
		Vendor:  "gocompute",
		Version: "OpenCL 1.2 emulated",
		Devices: []DeviceSpec{
			{Name: "Emulated GPU", Vendor: "gocompute", Version: "OpenCL 1.2", Class: compute.DeviceGPU},
			{Name: "Emulated CPU", Vendor: "gocompute", Version: "OpenCL 1.2", Class: compute.DeviceCPU},
		},
	}}
}

// Options to create an emulator Runtime.
type Options struct {
	// Platforms to emulate. If nil, DefaultPlatforms is used. Use an empty non-nil slice for no platforms.
	Platforms []PlatformSpec

	// Language of the kernel sources, compute.OpenCLC by default.
	Language compute.KernelLanguage

	// FailOn maps an operation name (the name of the Runtime method, e.g. "CreateBuffer" or "BuildProgram") to
	// the error it should return. The object is not created when the operation fails.
	FailOn map[string]error

	// Kernels are Go implementations of kernels, by entry point name. They take precedence over the kernels
	// registered with RegisterKernel.
	Kernels map[string]KernelFunc
}

// ParseConfig parses the configuration string of the registered "emulator" runtime: a comma-separated list of
//
//   - "wgsl": kernels are written in WGSL instead of OpenCL C.
//   - "cpu-only": the default platform only has a CPU device.
//   - "no-devices": the default platform has no devices.
//   - "no-platforms": there are no platforms.
func ParseConfig(config string) (Options, error) {
	var opts Options
	for _, part := range strings.Split(config, ",") {
		switch strings.TrimSpace(part) {
		case "":
		case "wgsl":
			opts.Language = compute.WGSL
		case "cpu-only":
			opts.Platforms = DefaultPlatforms()
			opts.Platforms[0].Devices = opts.Platforms[0].Devices[1:]
		case "no-devices":
			opts.Platforms = DefaultPlatforms()
			opts.Platforms[0].Devices = nil
		case "no-platforms":
			opts.Platforms = []PlatformSpec{}
		default:
			return opts, errors.Errorf("unknown emulator configuration %q in %q, valid values are wgsl, cpu-only, "+
				"no-devices and no-platforms", part, config)
		}
	}
	return opts, nil
}

// Call is one recorded call to the Runtime.
type Call struct {
	// Op is the name of the Runtime method.
	Op string

	// Kind and Handle of the object created, used or released by the call, if any.
	Kind   compute.HandleKind
	Handle compute.Handle
}

// String implements fmt.Stringer, e.g.: "Release(kernel#12)".
func (c Call) String() string {
	if c.Handle == 0 {
		return c.Op
	}
	return fmt.Sprintf("%s(%s#%d)", c.Op, c.Kind, c.Handle)
}

// Runtime is the emulated compute.Runtime. It is safe for concurrent use.
type Runtime struct {
	mu         sync.Mutex
	opts       Options
	nextHandle compute.Handle
	calls      []Call

	platformHandles []compute.Handle
	platforms       map[compute.Handle]*platform
	devices         map[compute.Handle]*device
	contexts        map[compute.Handle]*deviceContext
	queues          map[compute.Handle]*queue
	buffers         map[compute.Handle]*buffer
	programs        map[compute.Handle]*program
	kernels         map[compute.Handle]*kernel
}

var _ compute.Runtime = (*Runtime)(nil)

// New creates an emulator Runtime.
func New(opts Options) *Runtime {
	if opts.Platforms == nil {
		opts.Platforms = DefaultPlatforms()
	}
	r := &Runtime{
		opts:      opts,
		platforms: make(map[compute.Handle]*platform),
		devices:   make(map[compute.Handle]*device),
		contexts:  make(map[compute.Handle]*deviceContext),
		queues:    make(map[compute.Handle]*queue),
		buffers:   make(map[compute.Handle]*buffer),
		programs:  make(map[compute.Handle]*program),
		kernels:   make(map[compute.Handle]*kernel),
	}
	for _, pSpec := range opts.Platforms {
		p := &platform{spec: pSpec}
		ph := r.newHandle()
		r.platforms[ph] = p
		r.platformHandles = append(r.platformHandles, ph)
		for _, dSpec := range pSpec.Devices {
			if dSpec.MaxWorkGroupSize <= 0 {
				dSpec.MaxWorkGroupSize = DefaultMaxWorkGroupSize
			}
			dh := r.newHandle()
			r.devices[dh] = &device{spec: dSpec, platform: ph}
			p.devices = append(p.devices, dh)
		}
	}
	klog.V(1).Infof("emulator: created runtime with %d platform(s), language %s", len(opts.Platforms), opts.Language)
	return r
}

// newHandle issues a new unique handle. It must be called with r.mu locked (or during construction).
func (r *Runtime) newHandle() compute.Handle {
	r.nextHandle++
	return r.nextHandle
}

// record the call and return the injected failure for op, if any. It must be called with r.mu locked.
func (r *Runtime) record(op string, kind compute.HandleKind, h compute.Handle) error {
	r.calls = append(r.calls, Call{Op: op, Kind: kind, Handle: h})
	if err, found := r.opts.FailOn[op]; found && err != nil {
		return errors.WithMessagef(err, "emulator: injected failure in %s", op)
	}
	return nil
}

// setLastCallHandle updates the handle of the last recorded call, after the object is created.
func (r *Runtime) setLastCallHandle(h compute.Handle) {
	r.calls[len(r.calls)-1].Handle = h
}

// Calls returns a copy of the calls recorded so far, in order.
func (r *Runtime) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := make([]Call, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// ResetCalls clears the recorded calls.
func (r *Runtime) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// LiveHandles returns the number of contexts, queues, buffers, programs and kernels not yet released.
func (r *Runtime) LiveHandles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts) + len(r.queues) + len(r.buffers) + len(r.programs) + len(r.kernels)
}

// Name implements compute.Runtime.
func (r *Runtime) Name() string { return RuntimeName }

// Language implements compute.Runtime.
func (r *Runtime) Language() compute.KernelLanguage { return r.opts.Language }
