package compute_test

import (
	"os"
	"testing"

	"github.com/gomlx/gocompute/compute"
	"github.com/gomlx/gocompute/compute/emulator"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformsAndDevices(t *testing.T) {
	rt := emulator.New(emulator.Options{})
	platforms := capture(compute.Platforms(rt)).Test(t)
	require.Len(t, platforms, 1)
	p := platforms[0]
	assert.Equal(t, "Emulated Platform", p.Name())
	assert.Equal(t, "gocompute", p.Vendor())
	assert.Equal(t, "OpenCL 1.2 emulated", p.Version())

	devices := capture(p.Devices(compute.DeviceAll)).Test(t)
	require.Len(t, devices, 2)
	assert.Equal(t, "Emulated GPU", devices[0].Name())
	assert.Equal(t, "Emulated CPU", devices[1].Name())
	assert.Equal(t, "emulator", capture(devices[0].Info(compute.DriverVersion)).Test(t))
	assert.Equal(t, "gocompute", devices[0].Vendor())
	assert.Equal(t, "OpenCL 1.2", devices[0].Version())
	assert.Equal(t, "emulator", devices[0].DriverVersion())
	assert.Equal(t, compute.DeviceAll, devices[1].Class())
	assert.Equal(t, "Emulated CPU (platform #0, all device #1)", devices[1].String())

	_, err := devices[0].Info(compute.DeviceInfo(99))
	require.Error(t, err)
	assert.Empty(t, capture(p.Devices(compute.DeviceAccelerator)).Test(t))
}

func TestDeviceInfoFailure(t *testing.T) {
	rt := emulator.New(emulator.Options{FailOn: map[string]error{"DeviceInfo": errors.New("lost device")}})
	platforms := capture(compute.Platforms(rt)).Test(t)
	devices := capture(platforms[0].Devices(compute.DeviceGPU)).Test(t)
	require.Len(t, devices, 1)
	_, err := devices[0].Info(compute.DeviceVendor)
	require.ErrorContains(t, err, "lost device")
	assert.Equal(t, "<unknown>", devices[0].Name())
	assert.Equal(t, "<unknown>", devices[0].Vendor())
	assert.Equal(t, "<unknown>", devices[0].Version())
	assert.Equal(t, "<unknown>", devices[0].DriverVersion())
}

func TestDestroy(t *testing.T) {
	rt := emulator.New(emulator.Options{})
	before := compute.HandlesAlive()
	ctx := newGPUContext(t, rt)
	queue := capture(ctx.NewQueue()).Test(t)
	buf := capture(ctx.NewBufferFromHost(compute.MemReadOnly, []float32{1, 2, 3})).Test(t)
	assert.Equal(t, 12, buf.Size())
	assert.Equal(t, 3, buf.Len())
	assert.Equal(t, compute.MemReadOnly|compute.MemCopyHostPtr, buf.Flags())
	program := capture(ctx.BuildProgram(compute.ElementwiseAddOpenCL, "")).Test(t)
	kernel := capture(program.NewKernel(compute.DefaultKernelName)).Test(t)
	assert.Equal(t, before+5, compute.HandlesAlive())
	assert.Equal(t, 5, rt.LiveHandles())

	// Parents refuse to be destroyed while their dependents are alive, without calling the runtime.
	requireKind(t, ctx.Destroy(), compute.ReleaseError)
	requireKind(t, program.Destroy(), compute.ReleaseError)
	assert.True(t, ctx.IsValid())
	assert.Equal(t, 5, rt.LiveHandles())

	require.NoError(t, kernel.Destroy())
	require.NoError(t, kernel.Destroy(), "a second Destroy is a no-op")
	require.NoError(t, program.Destroy())
	require.NoError(t, buf.Destroy())
	require.NoError(t, queue.Destroy())
	require.NoError(t, ctx.Destroy())
	require.NoError(t, ctx.Destroy())
	assert.False(t, ctx.IsValid())
	assert.False(t, buf.IsValid())
	assert.Equal(t, compute.Handle(0), buf.Handle())
	assert.Equal(t, before, compute.HandlesAlive())
	assert.Equal(t, 0, rt.LiveHandles())

	// Using destroyed objects.
	_, err := ctx.NewQueue()
	requireKind(t, err, compute.QueueCreationError)
	_, err = ctx.NewBuffer(compute.MemReadWrite, 4)
	requireKind(t, err, compute.AllocationError)
	_, err = ctx.BuildProgram(compute.ElementwiseAddOpenCL, "")
	requireKind(t, err, compute.BuildError)
	_, err = program.NewKernel(compute.DefaultKernelName)
	requireKind(t, err, compute.EntryPointNotFoundError)
	requireKind(t, kernel.SetArg(0, buf), compute.ArgumentBindError)
}

func TestBufferValidation(t *testing.T) {
	rt := emulator.New(emulator.Options{})
	ctx := newGPUContext(t, rt)
	defer func() { require.NoError(t, ctx.Destroy()) }()

	_, err := ctx.NewBuffer(compute.MemReadWrite, 0)
	requireKind(t, err, compute.AllocationError)
	_, err = ctx.NewBuffer(compute.MemReadWrite|compute.MemCopyHostPtr, 16)
	requireKind(t, err, compute.AllocationError)
	_, err = ctx.NewBufferFromHost(compute.MemReadOnly|compute.MemUseHostPtr, []float32{1})
	requireKind(t, err, compute.AllocationError)
	_, err = ctx.NewBufferFromHost(compute.MemReadOnly, nil)
	requireKind(t, err, compute.AllocationError)
	assert.Equal(t, 1, rt.LiveHandles())
}

func TestKernelArgsAndLaunch(t *testing.T) {
	rt := emulator.New(emulator.Options{})
	ctx := newGPUContext(t, rt)
	queue := capture(ctx.NewQueue()).Test(t)
	a := capture(ctx.NewBufferFromHost(compute.MemReadOnly, []float32{1, 2, 3, 4})).Test(t)
	c := capture(ctx.NewBuffer(compute.MemReadWrite, 16)).Test(t)
	program := capture(ctx.BuildProgram(compute.ElementwiseAddOpenCL, "")).Test(t)
	kernel := capture(program.NewKernel(compute.DefaultKernelName)).Test(t)
	assert.Equal(t, compute.DefaultKernelName, kernel.Name())

	// Buffers of another context can't be bound.
	otherCtx := newGPUContext(t, rt)
	other := capture(otherCtx.NewBuffer(compute.MemReadWrite, 16)).Test(t)
	requireKind(t, kernel.SetArg(0, other), compute.ArgumentBindError)
	requireKind(t, kernel.SetArg(-1, a), compute.ArgumentBindError)
	requireKind(t, kernel.SetArg(0, nil), compute.ArgumentBindError)
	requireKind(t, kernel.SetArg(3, a), compute.ArgumentBindError)

	// Rebinding arguments: c = a + a.
	require.NoError(t, kernel.SetArg(0, a))
	require.NoError(t, kernel.SetArg(1, c))
	require.NoError(t, kernel.SetArg(1, a))
	require.NoError(t, kernel.SetArg(2, c))

	requireKind(t, queue.EnqueueKernel(kernel, 0, 1), compute.LaunchError)
	requireKind(t, queue.EnqueueKernel(kernel, 4, -1), compute.LaunchError)
	requireKind(t, queue.EnqueueKernel(kernel, 4, 3), compute.LaunchError)
	require.NoError(t, queue.EnqueueKernel(kernel, 4, 2))
	require.NoError(t, queue.Finish())
	result := make([]float32, 4)
	require.NoError(t, queue.ReadBuffer(c, result))
	assert.Equal(t, []float32{2, 4, 6, 8}, result)

	// Partial and oversized reads.
	partial := make([]float32, 2)
	require.NoError(t, queue.ReadBuffer(c, partial))
	assert.Equal(t, []float32{2, 4}, partial)
	requireKind(t, queue.ReadBuffer(c, make([]float32, 5)), compute.ReadBackError)
	requireKind(t, queue.ReadBuffer(other, result), compute.ReadBackError)

	// A destroyed argument fails the launch.
	require.NoError(t, other.Destroy())
	require.NoError(t, otherCtx.Destroy())
	require.NoError(t, a.Destroy())
	requireKind(t, queue.EnqueueKernel(kernel, 4, 1), compute.LaunchError)

	for _, obj := range []interface{ Destroy() error }{kernel, program, c, queue, ctx} {
		require.NoError(t, obj.Destroy())
	}
	assert.Equal(t, 0, rt.LiveHandles())
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, compute.Registered(), emulator.RuntimeName)

	rt := capture(compute.NewWithConfig("emulator")).Test(t)
	assert.Equal(t, "emulator", rt.Name())
	assert.Equal(t, compute.OpenCLC, rt.Language())
	rt = capture(compute.NewWithConfig("emulator:wgsl")).Test(t)
	assert.Equal(t, compute.WGSL, rt.Language())

	_, err := compute.NewWithConfig("emulator:bogus")
	require.ErrorContains(t, err, "unknown emulator configuration")
	_, err = compute.NewWithConfig("nonexistent:")
	require.ErrorContains(t, err, `can't find compute runtime "nonexistent"`)

	t.Setenv(compute.RuntimeConfigEnv, "emulator:cpu-only")
	rt = capture(compute.New()).Test(t)
	platforms := capture(compute.Platforms(rt)).Test(t)
	assert.Empty(t, capture(platforms[0].Devices(compute.DeviceGPU)).Test(t))

	require.NoError(t, os.Unsetenv(compute.RuntimeConfigEnv))
	compute.DefaultRuntimeConfig = "emulator:wgsl"
	defer func() { compute.DefaultRuntimeConfig = "" }()
	rt = capture(compute.New()).Test(t)
	assert.Equal(t, compute.WGSL, rt.Language())
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, "BuildError", compute.BuildError.String())
	kind, err := compute.ErrorKindString("nodeviceerror")
	require.NoError(t, err)
	assert.Equal(t, compute.NoDeviceError, kind)
	assert.Equal(t, compute.UnknownError, compute.KindOf(os.ErrNotExist))

	cErr := &compute.Error{Kind: compute.BuildError, Op: "Context.BuildProgram", BuildLog: "<source>:1:1: error: oops"}
	assert.Equal(t, "BuildError in Context.BuildProgram\nbuild log:\n<source>:1:1: error: oops", cErr.Error())
	assert.Equal(t, compute.BuildError, compute.KindOf(cErr))
	assert.NotErrorIs(t, cErr, compute.LaunchError)

	class, err := compute.DeviceClassString("GPU")
	require.NoError(t, err)
	assert.Equal(t, compute.DeviceGPU, class)
	assert.Equal(t, []string{"default", "cpu", "gpu", "accelerator", "all"}, compute.DeviceClassStrings())
}
