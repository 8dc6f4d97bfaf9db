// Package webgpu implements a compute.Runtime with WebGPU (wgpu-native), compiling kernels from WGSL.
//
// WebGPU has no notion of platforms: the runtime exposes a single platform, and one device per adapter
// reported by the instance. A compute.Context maps to a WebGPU device, and a compute.Kernel to a compute
// pipeline, whose bind group layout is derived from the @group(0) bindings declared in the shader source.
//
// The positional kernel arguments are the bindings of group 0, sorted by binding number.
package webgpu

import (
	"sync"

	"github.com/gomlx/gocompute/compute"
	"github.com/gomlx/gocompute/internal/handles"
	"github.com/openfluke/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// RuntimeName is the name under which the runtime is registered.
const RuntimeName = "webgpu"

func init() {
	compute.Register(RuntimeName, func(config string) (compute.Runtime, error) {
		if config != "" {
			return nil, errors.Errorf("webgpu: runtime takes no configuration, got %q", config)
		}
		rt, err := New()
		if err != nil {
			return nil, err
		}
		return rt, nil
	})
}

const (
	platformKind = "platform"
	deviceKind   = "device"
)

// Runtime implements compute.Runtime with a WebGPU instance.
type Runtime struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapters []*wgpu.Adapter
	objects  *handles.Table[any]
}

// Compile time check that Runtime implements compute.Runtime.
var _ compute.Runtime = (*Runtime)(nil)

// New creates a WebGPU instance and enumerates its adapters.
//
// Call Close once the Runtime (and all objects created with it) are no longer used.
func New() (*Runtime, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, errors.New("webgpu: failed to create WebGPU instance")
	}
	r := &Runtime{
		instance: instance,
		adapters: instance.EnumerateAdapters(nil),
		objects:  handles.New[any](),
	}
	klog.V(1).Infof("webgpu: instance created with %d adapters", len(r.adapters))
	return r, nil
}

// Close releases the adapters and the instance. It is idempotent.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == nil {
		return
	}
	for _, adapter := range r.adapters {
		adapter.Release()
	}
	r.adapters = nil
	r.instance.Release()
	r.instance = nil
}

// Name implements compute.Runtime.
func (r *Runtime) Name() string { return RuntimeName }

// Language implements compute.Runtime.
func (r *Runtime) Language() compute.KernelLanguage { return compute.WGSL }

// Platforms implements compute.Runtime: there is exactly one platform, the WebGPU instance.
func (r *Runtime) Platforms() ([]compute.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == nil {
		return nil, errors.New("webgpu: runtime is closed")
	}
	return []compute.Handle{r.objects.Intern(platformKind, r.instance)}, nil
}

// PlatformInfo implements compute.Runtime.
func (r *Runtime) PlatformInfo(platform compute.Handle, param compute.PlatformInfo) (string, error) {
	if _, err := r.objects.Get(platformKind, platform); err != nil {
		return "", err
	}
	switch param {
	case compute.PlatformName:
		return "WebGPU", nil
	case compute.PlatformVendor:
		return "wgpu-native", nil
	case compute.PlatformVersion:
		return "WebGPU (WGSL)", nil
	}
	return "", errors.Errorf("webgpu: unknown platform info %d", int(param))
}

// Devices implements compute.Runtime. Devices are the adapters of the instance, classified by their adapter type.
func (r *Runtime) Devices(platform compute.Handle, class compute.DeviceClass) ([]compute.Handle, error) {
	if _, err := r.objects.Get(platformKind, platform); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var devices []compute.Handle
	for ii, adapter := range r.adapters {
		adapterType := adapter.GetInfo().AdapterType.String()
		if !matchesClass(class, adapterClass(adapterType), ii == 0) {
			continue
		}
		devices = append(devices, r.objects.Intern(deviceKind, adapter))
	}
	return devices, nil
}

// DeviceInfo implements compute.Runtime.
func (r *Runtime) DeviceInfo(device compute.Handle, param compute.DeviceInfo) (string, error) {
	adapter, err := getObject[*wgpu.Adapter](r, deviceKind, device)
	if err != nil {
		return "", err
	}
	info := adapter.GetInfo()
	switch param {
	case compute.DeviceName:
		return info.Name, nil
	case compute.DeviceVendor:
		return info.VendorName, nil
	case compute.DeviceVersion:
		return info.BackendType.String() + " " + info.AdapterType.String(), nil
	case compute.DriverVersion:
		return info.DriverDescription, nil
	}
	return "", errors.Errorf("webgpu: unknown device info %d", int(param))
}

// getObject returns the object of the handle, with its concrete type.
func getObject[T any](r *Runtime, kind string, h compute.Handle) (T, error) {
	var zero T
	object, err := r.objects.Get(kind, h)
	if err != nil {
		return zero, errors.WithMessage(err, "webgpu")
	}
	typed, ok := object.(T)
	if !ok {
		return zero, errors.Errorf("webgpu: handle #%d of kind %s holds a %T", h, kind, object)
	}
	return typed, nil
}
