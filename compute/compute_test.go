package compute_test

// Common initialization and testing tools for all test files.

import (
	"testing"

	"github.com/gomlx/gocompute/compute"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

type errTester[T any] struct {
	value T
	err   error
}

// capture is a shortcut to test that there is no error and return the value.
func capture[T any](value T, err error) errTester[T] {
	return errTester[T]{value, err}
}

func (e errTester[T]) Test(t *testing.T) T {
	require.NoError(t, e.err)
	return e.value
}

// requireKind checks that err is a *compute.Error of the given kind.
func requireKind(t *testing.T, err error, kind compute.ErrorKind) *compute.Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIsf(t, err, kind, "expected error of kind %s, got %+v", kind, err)
	var cErr *compute.Error
	require.ErrorAs(t, err, &cErr)
	return cErr
}

// newGPUContext creates a context on the emulated GPU device.
func newGPUContext(t *testing.T, rt compute.Runtime) *compute.Context {
	device := capture(compute.SelectDevice(rt, compute.DefaultConfig())).Test(t)
	return capture(device.NewContext()).Test(t)
}

// sequence returns [start, start+1, ..., start+n-1].
func sequence(n int, start float32) []float32 {
	values := make([]float32, n)
	for ii := range values {
		values[ii] = start + float32(ii)
	}
	return values
}
