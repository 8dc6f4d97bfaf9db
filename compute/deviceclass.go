package compute

// DeviceClass selects which kind of device to enumerate on a platform.
//
// It's defined on a separate file, so enumer works with it.
type DeviceClass int

//go:generate go tool enumer -type=DeviceClass -trimprefix=Device -transform=lower -output=deviceclass_enumer.go deviceclass.go

const (
	// DeviceDefault is the platform's default device(s).
	DeviceDefault DeviceClass = iota
	DeviceCPU
	DeviceGPU
	DeviceAccelerator

	// DeviceAll matches any device.
	DeviceAll
)
