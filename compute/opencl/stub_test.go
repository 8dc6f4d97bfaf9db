//go:build cgo && (linux || darwin)

package opencl

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/gocompute/compute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolIndices(t *testing.T) {
	require.Len(t, symbolNames, numSymbols)
	require.Len(t, symbolIndices, numSymbols)
	for ii, name := range symbolNames {
		index, found := symbolIndices[name]
		require.True(t, found, "symbol %q has no index", name)
		assert.Equal(t, ii, index, "index of symbol %q", name)
	}
}

// buildStubLibrary compiles testdata/stubcl.c into a shared library, and returns its path.
// It skips the test if there is no C compiler.
func buildStubLibrary(t *testing.T) string {
	cc := strings.Fields(os.Getenv("CC"))
	if len(cc) == 0 {
		cc = []string{"cc"}
	}
	ccPath, err := exec.LookPath(cc[0])
	if err != nil {
		t.Skipf("no C compiler to build the stub OpenCL library: %v", err)
	}
	libPath := filepath.Join(t.TempDir(), "libstubcl.so")
	args := append(cc[1:], "-shared", "-fPIC", "-o", libPath, filepath.Join("testdata", "stubcl.c"))
	output, err := exec.Command(ccPath, args...).CombinedOutput()
	require.NoErrorf(t, err, "failed to build the stub OpenCL library:\n%s", output)
	return libPath
}

func TestStubLibrary(t *testing.T) {
	libPath := buildStubLibrary(t)
	rt, err := New(libPath)
	require.NoError(t, err)
	assert.Equal(t, libPath, rt.LibraryPath())

	t.Run("Info", func(t *testing.T) {
		platforms, err := compute.Platforms(rt)
		require.NoError(t, err)
		require.Len(t, platforms, 1)
		assert.Equal(t, "Stub Platform", platforms[0].Name())
		assert.Equal(t, "gocompute", platforms[0].Vendor())
		assert.Equal(t, "OpenCL 1.2 stub", platforms[0].Version())

		devices, err := platforms[0].Devices(compute.DeviceGPU)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "Stub GPU", devices[0].Name())
		assert.Equal(t, "OpenCL 1.2", devices[0].Version())
		assert.Equal(t, "stub 1.0", devices[0].DriverVersion())

		// CL_DEVICE_NOT_FOUND is an empty list.
		devices, err = platforms[0].Devices(compute.DeviceCPU)
		require.NoError(t, err)
		assert.Empty(t, devices)
	})

	t.Run("Add", func(t *testing.T) {
		for _, local := range []int{1, 0, 5} {
			config := compute.DefaultConfig()
			config.LocalWorkSize = local
			c, err := compute.NewDispatcher(rt, config).Add(context.Background(),
				[]float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
			require.NoError(t, err, "local=%d", local)
			assert.Equal(t, []float32{1, 3, 5, 7, 9, 11, 13, 15, 17, 19}, c)
			assert.Zero(t, rt.objects.Len()-countInterned(rt), "all native objects should have been released")
		}
	})

	t.Run("BuildError", func(t *testing.T) {
		config := compute.DefaultConfig()
		config.KernelSource = "__kernel void elementwiseAdd(__global float *a) { error }"
		c, err := compute.NewDispatcher(rt, config).Add(context.Background(), []float32{1}, []float32{2})
		require.ErrorIs(t, err, compute.BuildError)
		assert.Nil(t, c)
		var cErr *compute.Error
		require.ErrorAs(t, err, &cErr)
		assert.Equal(t, "<stub>:1:1: error: the stub compiler rejected the source", cErr.BuildLog)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, BuildProgramFailure, statusErr.Code)
		assert.Equal(t, "clBuildProgram", statusErr.Op)
		assert.Zero(t, rt.objects.Len()-countInterned(rt))
	})

	t.Run("EntryPointNotFound", func(t *testing.T) {
		config := compute.DefaultConfig()
		config.KernelName = "sampleKernel"
		_, err := compute.NewDispatcher(rt, config).Add(context.Background(), []float32{1}, []float32{2})
		require.ErrorIs(t, err, compute.EntryPointNotFoundError)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, InvalidKernelName, statusErr.Code)
		assert.Zero(t, rt.objects.Len()-countInterned(rt))
	})

	t.Run("NonBlockingRead", func(t *testing.T) {
		require.ErrorContains(t, rt.ReadBuffer(0, 0, false, make([]byte, 4)), "non-blocking reads are not supported")
	})
}
