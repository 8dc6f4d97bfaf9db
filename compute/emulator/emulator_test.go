package emulator

import (
	"fmt"
	"testing"

	"github.com/gomlx/gocompute/compute"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
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

func float32Bytes(values ...float32) []byte {
	b := &buffer{size: len(values) * 4, data: values}
	return b.bytes()
}

func TestPlatformsAndDevices(t *testing.T) {
	r := New(Options{})
	platforms := capture(r.Platforms()).Test(t)
	require.Len(t, platforms, 1)
	assert.Equal(t, "Emulated Platform", capture(r.PlatformInfo(platforms[0], compute.PlatformName)).Test(t))
	assert.Equal(t, "gocompute", capture(r.PlatformInfo(platforms[0], compute.PlatformVendor)).Test(t))

	gpus := capture(r.Devices(platforms[0], compute.DeviceGPU)).Test(t)
	require.Len(t, gpus, 1)
	assert.Equal(t, "Emulated GPU", capture(r.DeviceInfo(gpus[0], compute.DeviceName)).Test(t))
	cpus := capture(r.Devices(platforms[0], compute.DeviceCPU)).Test(t)
	require.Len(t, cpus, 1)
	assert.Equal(t, "Emulated CPU", capture(r.DeviceInfo(cpus[0], compute.DeviceName)).Test(t))
	assert.Len(t, capture(r.Devices(platforms[0], compute.DeviceAll)).Test(t), 2)
	assert.Equal(t, gpus, capture(r.Devices(platforms[0], compute.DeviceDefault)).Test(t))
	assert.Empty(t, capture(r.Devices(platforms[0], compute.DeviceAccelerator)).Test(t))

	_, err := r.Devices(platforms[0]+1000, compute.DeviceGPU)
	require.ErrorContains(t, err, "CL_INVALID_PLATFORM")
	_, err = r.DeviceInfo(gpus[0], compute.DeviceInfo(100))
	require.ErrorContains(t, err, "CL_INVALID_VALUE")
}

func TestParseConfig(t *testing.T) {
	opts := must.M1(ParseConfig("wgsl,cpu-only"))
	assert.Equal(t, compute.WGSL, opts.Language)
	require.Len(t, opts.Platforms, 1)
	require.Len(t, opts.Platforms[0].Devices, 1)
	assert.Equal(t, compute.DeviceCPU, opts.Platforms[0].Devices[0].Class)

	opts = must.M1(ParseConfig("no-platforms"))
	assert.NotNil(t, opts.Platforms)
	assert.Empty(t, opts.Platforms)
	assert.Empty(t, capture(New(opts).Platforms()).Test(t))

	opts = must.M1(ParseConfig(""))
	assert.Nil(t, opts.Platforms)

	_, err := ParseConfig("wgsl,foo")
	require.ErrorContains(t, err, `unknown emulator configuration "foo"`)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, compute.Registered(), RuntimeName)
	rt := capture(compute.NewWithConfig("emulator:wgsl")).Test(t)
	assert.Equal(t, RuntimeName, rt.Name())
	assert.Equal(t, compute.WGSL, rt.Language())
}

// setup creates a context on the GPU device and returns the runtime, the device and the context.
func setup(t *testing.T, opts Options) (r *Runtime, device, ctx compute.Handle) {
	r = New(opts)
	platforms := capture(r.Platforms()).Test(t)
	device = capture(r.Devices(platforms[0], compute.DeviceGPU)).Test(t)[0]
	ctx = capture(r.CreateContext(device)).Test(t)
	return
}

func TestElementwiseAdd(t *testing.T) {
	r, device, ctx := setup(t, Options{})
	q := capture(r.CreateQueue(ctx, device)).Test(t)
	a := capture(r.CreateBuffer(ctx, compute.MemReadOnly|compute.MemCopyHostPtr, 12, float32Bytes(1, 2, 3))).Test(t)
	b := capture(r.CreateBuffer(ctx, compute.MemReadOnly|compute.MemCopyHostPtr, 12, float32Bytes(10, 20, 30))).Test(t)
	c := capture(r.CreateBuffer(ctx, compute.MemReadWrite, 12, nil)).Test(t)
	p, buildLog, err := r.BuildProgram(ctx, device, compute.ElementwiseAddOpenCL, "-cl-fast-relaxed-math")
	require.NoError(t, err)
	assert.Empty(t, buildLog)
	k := capture(r.CreateKernel(p, compute.DefaultKernelName)).Test(t)
	for ii, buf := range []compute.Handle{a, b, c} {
		require.NoError(t, r.SetKernelArg(k, ii, buf))
	}
	require.ErrorContains(t, r.SetKernelArg(k, 3, c), "CL_INVALID_ARG_INDEX")
	require.NoError(t, r.EnqueueKernel(q, k, 3, 1))
	result := []float32{0, 0, 0}
	require.NoError(t, r.ReadBuffer(q, c, true, float32Bytes(result...)))
	assert.Equal(t, []float32{11, 22, 33}, result)
	require.NoError(t, r.Finish(q))
	assert.Equal(t, 7, r.LiveHandles())

	// Dependents must be released first.
	require.ErrorContains(t, r.Release(compute.KindContext, ctx), "still has 5 live")
	require.ErrorContains(t, r.Release(compute.KindProgram, p), "still has 1 live kernels")
	for _, release := range []struct {
		kind compute.HandleKind
		h    compute.Handle
	}{{compute.KindKernel, k}, {compute.KindProgram, p}, {compute.KindBuffer, c}, {compute.KindBuffer, b},
		{compute.KindBuffer, a}, {compute.KindQueue, q}, {compute.KindContext, ctx}} {
		require.NoError(t, r.Release(release.kind, release.h))
	}
	assert.Equal(t, 0, r.LiveHandles())
	require.ErrorContains(t, r.Release(compute.KindKernel, k), "CL_INVALID_KERNEL")

	calls := r.Calls()
	assert.Equal(t, fmt.Sprintf("Release(kernel#%d)", k), calls[len(calls)-8].String())
	r.ResetCalls()
	assert.Empty(t, r.Calls())
}

func TestBuildErrors(t *testing.T) {
	r, device, ctx := setup(t, Options{})
	_, buildLog, err := r.BuildProgram(ctx, device, "__kernel void broken(__global float *a {\n    a[0] = 1;\n}\n", "")
	require.ErrorContains(t, err, "CL_BUILD_PROGRAM_FAILURE")
	assert.Contains(t, buildLog, "error: expected ')'")
	assert.Contains(t, buildLog, "1 error generated.")
	assert.Equal(t, 1, r.LiveHandles(), "only the context should be alive")

	_, _, err = r.BuildProgram(ctx, device, compute.ElementwiseAddOpenCL, "-O3 --fast")
	require.ErrorContains(t, err, "CL_INVALID_BUILD_OPTIONS")

	p, _, err := r.BuildProgram(ctx, device, compute.ElementwiseAddOpenCL, "-D N=10 -DM=2 -w")
	require.NoError(t, err)
	_, err = r.CreateKernel(p, "elementwiseSub")
	require.ErrorContains(t, err, "CL_INVALID_KERNEL_NAME")
}

func TestLaunchErrors(t *testing.T) {
	square := func(gid int, args [][]float32) { args[0][gid] *= args[0][gid] }
	outOfBounds := func(gid int, args [][]float32) { args[0][gid+1] = 0 }
	source := "__kernel void square(__global float *x) {}\n" +
		"__kernel void outOfBounds(__global float *x) {}\n" +
		"__kernel void unknown(__global float *x) {}\n"
	r, device, ctx := setup(t, Options{Kernels: map[string]KernelFunc{"square": square, "outOfBounds": outOfBounds}})
	q := capture(r.CreateQueue(ctx, device)).Test(t)
	x := capture(r.CreateBuffer(ctx, compute.MemReadWrite|compute.MemCopyHostPtr, 16, float32Bytes(1, 2, 3, 4))).Test(t)
	p, _, err := r.BuildProgram(ctx, device, source, "")
	require.NoError(t, err)

	kSquare := capture(r.CreateKernel(p, "square")).Test(t)
	require.ErrorContains(t, r.EnqueueKernel(q, kSquare, 4, 1), "CL_INVALID_KERNEL_ARGS")
	require.NoError(t, r.SetKernelArg(kSquare, 0, x))
	require.ErrorContains(t, r.EnqueueKernel(q, kSquare, 4, 3), "not divisible")
	require.ErrorContains(t, r.EnqueueKernel(q, kSquare, 4, DefaultMaxWorkGroupSize*2), "device maximum")
	require.ErrorContains(t, r.EnqueueKernel(q, kSquare, 0, 1), "CL_INVALID_GLOBAL_WORK_SIZE")
	require.NoError(t, r.EnqueueKernel(q, kSquare, 4, 0))
	result := make([]float32, 4)
	require.NoError(t, r.ReadBuffer(q, x, true, float32Bytes(result...)))
	assert.Equal(t, []float32{1, 4, 9, 16}, result)

	kOOB := capture(r.CreateKernel(p, "outOfBounds")).Test(t)
	require.NoError(t, r.SetKernelArg(kOOB, 0, x))
	require.ErrorContains(t, r.EnqueueKernel(q, kOOB, 4, 1), "CL_OUT_OF_RESOURCES")

	kUnknown := capture(r.CreateKernel(p, "unknown")).Test(t)
	require.NoError(t, r.SetKernelArg(kUnknown, 0, x))
	require.ErrorContains(t, r.EnqueueKernel(q, kUnknown, 4, 1), "no Go implementation")
}

func TestReadOnlyArguments(t *testing.T) {
	r, device, ctx := setup(t, Options{Kernels: map[string]KernelFunc{
		"scribble": func(gid int, args [][]float32) { args[0][gid] = -1 },
	}})
	q := capture(r.CreateQueue(ctx, device)).Test(t)
	x := capture(r.CreateBuffer(ctx, compute.MemReadOnly|compute.MemCopyHostPtr, 8, float32Bytes(1, 2))).Test(t)
	p, _, err := r.BuildProgram(ctx, device, "__kernel void scribble(__global const float *x) {}", "")
	require.NoError(t, err)
	k := capture(r.CreateKernel(p, "scribble")).Test(t)
	require.NoError(t, r.SetKernelArg(k, 0, x))
	require.NoError(t, r.EnqueueKernel(q, k, 2, 1))
	result := make([]float32, 2)
	require.NoError(t, r.ReadBuffer(q, x, true, float32Bytes(result...)))
	assert.Equal(t, []float32{1, 2}, result)
}

func TestBufferErrors(t *testing.T) {
	r, _, ctx := setup(t, Options{Platforms: []PlatformSpec{{
		Name:    "small",
		Devices: []DeviceSpec{{Name: "tiny", Class: compute.DeviceGPU, MemoryBytes: 16}},
	}}})
	_, err := r.CreateBuffer(ctx, compute.MemReadWrite, 0, nil)
	require.ErrorContains(t, err, "CL_INVALID_BUFFER_SIZE")
	_, err = r.CreateBuffer(ctx, compute.MemReadOnly|compute.MemWriteOnly, 4, nil)
	require.ErrorContains(t, err, "conflicting access flags")
	_, err = r.CreateBuffer(ctx, compute.MemReadOnly|compute.MemCopyHostPtr, 8, float32Bytes(1))
	require.ErrorContains(t, err, "CL_INVALID_HOST_PTR")
	_, err = r.CreateBuffer(ctx, compute.MemReadOnly, 4, float32Bytes(1))
	require.ErrorContains(t, err, "CL_INVALID_HOST_PTR")

	b := capture(r.CreateBuffer(ctx, compute.MemReadWrite, 12, nil)).Test(t)
	_, err = r.CreateBuffer(ctx, compute.MemReadWrite, 8, nil)
	require.ErrorContains(t, err, "CL_MEM_OBJECT_ALLOCATION_FAILURE")
	require.NoError(t, r.Release(compute.KindBuffer, b))
	b = capture(r.CreateBuffer(ctx, compute.MemReadWrite, 16, nil)).Test(t)
	require.NoError(t, r.Release(compute.KindBuffer, b))
}

func TestFailOn(t *testing.T) {
	injected := errors.New("device lost")
	r := New(Options{FailOn: map[string]error{"CreateQueue": injected}})
	platforms := capture(r.Platforms()).Test(t)
	device := capture(r.Devices(platforms[0], compute.DeviceGPU)).Test(t)[0]
	ctx := capture(r.CreateContext(device)).Test(t)
	_, err := r.CreateQueue(ctx, device)
	require.ErrorIs(t, err, injected)
	require.ErrorContains(t, err, "injected failure in CreateQueue")
	assert.Equal(t, 1, r.LiveHandles())
	calls := r.Calls()
	assert.Equal(t, "CreateQueue", calls[len(calls)-1].String())
}

func TestWGSL(t *testing.T) {
	r, device, ctx := setup(t, Options{Language: compute.WGSL})
	q := capture(r.CreateQueue(ctx, device)).Test(t)
	a := capture(r.CreateBuffer(ctx, compute.MemReadOnly|compute.MemCopyHostPtr, 8, float32Bytes(1, 2))).Test(t)
	b := capture(r.CreateBuffer(ctx, compute.MemReadOnly|compute.MemCopyHostPtr, 8, float32Bytes(3, 4))).Test(t)
	c := capture(r.CreateBuffer(ctx, compute.MemReadWrite, 8, nil)).Test(t)
	p, _, err := r.BuildProgram(ctx, device, compute.ElementwiseAddWGSL, "")
	require.NoError(t, err)
	k := capture(r.CreateKernel(p, compute.DefaultKernelName)).Test(t)
	for ii, buf := range []compute.Handle{a, b, c} {
		require.NoError(t, r.SetKernelArg(k, ii, buf))
	}
	require.ErrorContains(t, r.EnqueueKernel(q, k, 2, 2), "declares a workgroup size of 1")
	require.NoError(t, r.EnqueueKernel(q, k, 2, 1))
	result := make([]float32, 2)
	require.NoError(t, r.ReadBuffer(q, c, true, float32Bytes(result...)))
	assert.Equal(t, []float32{4, 6}, result)

	// Malformed WGSL.
	_, buildLog, err := r.BuildProgram(ctx, device, "@compute @workgroup_size(1) fn main() {", "")
	require.Error(t, err)
	assert.Contains(t, buildLog, "expected '}'")
}
