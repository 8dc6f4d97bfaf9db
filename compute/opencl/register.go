package opencl

import "github.com/gomlx/gocompute/compute"

func init() {
	compute.Register(RuntimeName, newRuntime)
}
