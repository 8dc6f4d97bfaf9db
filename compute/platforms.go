package compute

import (
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Platform is one vendor implementation of the runtime (an "installable client driver" in OpenCL).
//
// Platforms are owned by the runtime and never released.
type Platform struct {
	rt     Runtime
	handle Handle
	index  int
}

// Platforms lists the platforms available in the runtime. An empty list is not an error.
func Platforms(rt Runtime) ([]*Platform, error) {
	if rt == nil {
		return nil, newErrorf(NoPlatformError, "Platforms", "nil Runtime")
	}
	handles, err := rt.Platforms()
	if err != nil {
		return nil, newError(NoPlatformError, "Platforms", err)
	}
	platforms := make([]*Platform, len(handles))
	for ii, h := range handles {
		platforms[ii] = &Platform{rt: rt, handle: h, index: ii}
	}
	return platforms, nil
}

// Runtime that owns the platform.
func (p *Platform) Runtime() Runtime { return p.rt }

// Index of the platform in the list returned by Platforms.
func (p *Platform) Index() int { return p.index }

// Handle returns the native platform handle.
func (p *Platform) Handle() Handle { return p.handle }

// Info returns a string property of the platform.
func (p *Platform) Info(param PlatformInfo) (string, error) {
	value, err := p.rt.PlatformInfo(p.handle, param)
	if err != nil {
		return "", errors.WithMessagef(err, "while querying info(%d) of platform #%d", param, p.index)
	}
	return value, nil
}

func (p *Platform) infoOrLog(param PlatformInfo) string {
	value, err := p.Info(param)
	if err != nil {
		klog.Warningf("compute.Platform: %v", err)
		return "<unknown>"
	}
	return value
}

// Name of the platform, or "<unknown>" if the query failed (the failure is logged).
func (p *Platform) Name() string { return p.infoOrLog(PlatformName) }

// Vendor of the platform, or "<unknown>" if the query failed.
func (p *Platform) Vendor() string { return p.infoOrLog(PlatformVendor) }

// Version of the platform, or "<unknown>" if the query failed.
func (p *Platform) Version() string { return p.infoOrLog(PlatformVersion) }

// Devices lists the devices of the given class on the platform. An empty list means no device matched.
func (p *Platform) Devices(class DeviceClass) ([]*Device, error) {
	handles, err := p.rt.Devices(p.handle, class)
	if err != nil {
		return nil, newError(NoDeviceError, fmt.Sprintf("Devices(platform=%d, class=%s)", p.index, class), err)
	}
	devices := make([]*Device, len(handles))
	for ii, h := range handles {
		devices[ii] = &Device{platform: p, handle: h, class: class, index: ii}
	}
	return devices, nil
}

// Device is one compute device of a platform. Devices are owned by the runtime and never released.
type Device struct {
	platform *Platform
	handle   Handle
	class    DeviceClass
	index    int
}

// Platform of the device.
func (d *Device) Platform() *Platform { return d.platform }

// Handle returns the native device handle.
func (d *Device) Handle() Handle { return d.handle }

// Class used to enumerate the device.
func (d *Device) Class() DeviceClass { return d.class }

// Index of the device in the list returned by Platform.Devices.
func (d *Device) Index() int { return d.index }

// Info returns a string property of the device.
func (d *Device) Info(param DeviceInfo) (string, error) {
	value, err := d.platform.rt.DeviceInfo(d.handle, param)
	if err != nil {
		return "", errors.WithMessagef(err, "while querying info(%d) of device #%d", param, d.index)
	}
	return value, nil
}

func (d *Device) infoOrLog(param DeviceInfo) string {
	value, err := d.Info(param)
	if err != nil {
		klog.Warningf("compute.Device: %v", err)
		return "<unknown>"
	}
	return value
}

// Name of the device. If the query fails, it is logged and "<unknown>" is returned.
func (d *Device) Name() string { return d.infoOrLog(DeviceName) }

// Vendor of the device, or "<unknown>" if the query fails.
func (d *Device) Vendor() string { return d.infoOrLog(DeviceVendor) }

// Version of the device, or "<unknown>" if the query fails.
func (d *Device) Version() string { return d.infoOrLog(DeviceVersion) }

// DriverVersion of the device, or "<unknown>" if the query fails.
func (d *Device) DriverVersion() string { return d.infoOrLog(DriverVersion) }

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("%s (platform #%d, %s device #%d)", d.Name(), d.platform.index, d.class, d.index)
}
