//go:build !cgo || !(linux || darwin)

package opencl

import (
	"runtime"

	"github.com/gomlx/gocompute/compute"
	"github.com/pkg/errors"
)

func newRuntime(config string) (compute.Runtime, error) {
	return nil, errors.Errorf("opencl: runtime not available for %s/%s: it requires cgo on linux or darwin",
		runtime.GOOS, runtime.GOARCH)
}
