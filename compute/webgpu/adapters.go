package webgpu

import (
	"github.com/gomlx/gocompute/compute"
	"github.com/pkg/errors"
)

// adapterClass maps the adapter type (as in wgpu.AdapterType.String()) to the device class.
// Unknown adapter types return compute.DeviceDefault: they are only listed for compute.DeviceAll, or as the
// default device.
func adapterClass(adapterType string) compute.DeviceClass {
	switch adapterType {
	case "discrete-gpu", "integrated-gpu", "virtual-gpu":
		return compute.DeviceGPU
	case "cpu":
		return compute.DeviceCPU
	}
	return compute.DeviceDefault
}

// matchesClass returns whether a device of class actual is listed when asking for the requested class.
// The first adapter is the default device. WebGPU has no accelerator devices.
func matchesClass(requested, actual compute.DeviceClass, first bool) bool {
	switch requested {
	case compute.DeviceAll:
		return true
	case compute.DeviceDefault:
		return first
	case compute.DeviceGPU, compute.DeviceCPU:
		return requested == actual
	}
	return false
}

// defaultMaxWorkgroupsPerDimension is the WebGPU default of maxComputeWorkgroupsPerDimension, used when the
// device doesn't report one.
const defaultMaxWorkgroupsPerDimension = 65535

// workgroupCount returns the number of workgroups to dispatch for the global and local work sizes, and fails if
// it goes over the device limit. Only the x dimension is used.
func workgroupCount(global, local int, maxPerDimension uint32) (uint32, error) {
	if maxPerDimension == 0 {
		maxPerDimension = defaultMaxWorkgroupsPerDimension
	}
	count := global / local
	if count > int(maxPerDimension) {
		return 0, errors.Errorf("webgpu: global work size %d needs %d workgroups of %d invocations, the device "+
			"supports at most %d (maxComputeWorkgroupsPerDimension)", global, count, local, maxPerDimension)
	}
	return uint32(count), nil
}
