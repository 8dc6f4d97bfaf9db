package opencl

import (
	"github.com/gomlx/gocompute/compute"
	"github.com/pkg/errors"
)

// Values of cl_platform_info, cl_device_info and cl_program_build_info used.
const (
	clPlatformVersion uint32 = 0x0901
	clPlatformName    uint32 = 0x0902
	clPlatformVendor  uint32 = 0x0903

	clDeviceName        uint32 = 0x102B
	clDeviceVendor      uint32 = 0x102C
	clDriverVersion     uint32 = 0x102D
	clDeviceVersion     uint32 = 0x102F
	clProgramBuildLog   uint32 = 0x1183
	clDeviceTypeDefault uint64 = 1 << 0
	clDeviceTypeCPU     uint64 = 1 << 1
	clDeviceTypeGPU     uint64 = 1 << 2
	clDeviceTypeAccel   uint64 = 1 << 3
	clDeviceTypeAll     uint64 = 0xFFFFFFFF
)

// deviceType converts a compute.DeviceClass to the cl_device_type bitfield.
func deviceType(class compute.DeviceClass) (uint64, error) {
	switch class {
	case compute.DeviceDefault:
		return clDeviceTypeDefault, nil
	case compute.DeviceCPU:
		return clDeviceTypeCPU, nil
	case compute.DeviceGPU:
		return clDeviceTypeGPU, nil
	case compute.DeviceAccelerator:
		return clDeviceTypeAccel, nil
	case compute.DeviceAll:
		return clDeviceTypeAll, nil
	}
	return 0, errors.Errorf("opencl: invalid device class %s", class)
}

func platformParam(param compute.PlatformInfo) (uint32, error) {
	switch param {
	case compute.PlatformName:
		return clPlatformName, nil
	case compute.PlatformVendor:
		return clPlatformVendor, nil
	case compute.PlatformVersion:
		return clPlatformVersion, nil
	}
	return 0, errors.Errorf("opencl: unknown platform info %d", int(param))
}

func deviceParam(param compute.DeviceInfo) (uint32, error) {
	switch param {
	case compute.DeviceName:
		return clDeviceName, nil
	case compute.DeviceVendor:
		return clDeviceVendor, nil
	case compute.DeviceVersion:
		return clDeviceVersion, nil
	case compute.DriverVersion:
		return clDriverVersion, nil
	}
	return 0, errors.Errorf("opencl: unknown device info %d", int(param))
}

// trimInfo removes the terminating NUL (and anything after it) from a string returned by clGet*Info.
func trimInfo(raw []byte) string {
	for ii, c := range raw {
		if c == 0 {
			return string(raw[:ii])
		}
	}
	return string(raw)
}
