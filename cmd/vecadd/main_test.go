package main

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/gomlx/gocompute/compute"
	"github.com/gomlx/gocompute/compute/emulator"
	"github.com/gomlx/gocompute/compute/opencl"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFloat(t *testing.T) {
	for v, want := range map[float32]string{
		0:                     "0.0",
		1:                     "1.0",
		-19:                   "-19.0",
		0.5:                   "0.5",
		0.1:                   "0.1",
		1e-3:                  "0.001",
		1e-4:                  "1.0E-4",
		1e7:                   "1.0E7",
		1.5e10:                "1.5E10",
		float32(math.Inf(1)):  "Infinity",
		float32(math.Inf(-1)): "-Infinity",
	} {
		assert.Equal(t, want, formatFloat(v), "formatFloat(%g)", v)
	}
	assert.Equal(t, "-0.0", formatFloat(float32(math.Copysign(0, -1))))
	assert.Equal(t, "NaN", formatFloat(float32(math.NaN())))
	assert.Equal(t, "[0.0, 1.0, 2.5]", formatArray([]float32{0, 1, 2.5}))
	assert.Equal(t, "[]", formatArray(nil))
}

func TestVerify(t *testing.T) {
	a, b := inputs(3)
	assert.Equal(t, []float32{0, 1, 2}, a)
	assert.Equal(t, []float32{1, 2, 3}, b)
	require.NoError(t, verify(a, b, []float32{1, 3, 5}))
	require.ErrorContains(t, verify(a, b, []float32{1, 3, 6}), "c[2]=6.0, wanted 5.0")
	require.Error(t, verify(a, b, []float32{1, 3}))
}

func newOptions(rt compute.Runtime) options {
	opts := options{Config: compute.DefaultConfig(), N: 10, Repeat: 1}
	opts.Config.KernelSource = compute.DefaultKernelSource(rt.Language())
	return opts
}

func TestRun(t *testing.T) {
	rt := emulator.New(emulator.Options{})
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, rt, newOptions(rt)))
	want := "Number of platforms: 1\n" +
		"Number of devices: 1\n" +
		"Emulated GPU (platform #0, gpu device #0)\n" +
		"[0.0, 1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0]\n" +
		"[1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0, 10.0]\n" +
		"[1.0, 3.0, 5.0, 7.0, 9.0, 11.0, 13.0, 15.0, 17.0, 19.0]\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, 0, rt.LiveHandles())
}

func TestRunRepeat(t *testing.T) {
	rt := emulator.New(emulator.Options{Language: compute.WGSL})
	opts := newOptions(rt)
	opts.N = 3
	opts.Repeat = 5
	var out, progress bytes.Buffer
	opts.Progress = &progress
	require.NoError(t, run(context.Background(), &out, rt, opts))
	assert.True(t, strings.HasSuffix(out.String(), "[1.0, 3.0, 5.0]\n"))
}

func TestRunErrors(t *testing.T) {
	// No GPU: nothing but the counts is printed.
	rt := emulator.New(must.M1(emulator.ParseConfig("cpu-only")))
	var out bytes.Buffer
	err := run(context.Background(), &out, rt, newOptions(rt))
	require.ErrorIs(t, err, compute.NoDeviceError)
	assert.Equal(t, "Number of platforms: 1\nNumber of devices: 0\n", out.String())

	rt = emulator.New(emulator.Options{})
	opts := newOptions(rt)
	opts.Config.KernelSource = "__kernel void elementwiseAdd("
	out.Reset()
	err = run(context.Background(), &out, rt, opts)
	require.ErrorIs(t, err, compute.BuildError)
	assert.NotContains(t, out.String(), "[")

	opts = newOptions(rt)
	opts.N = 0
	require.Error(t, run(context.Background(), &out, rt, opts))
}

func TestListDevices(t *testing.T) {
	rt := emulator.New(emulator.Options{})
	var out bytes.Buffer
	opts := newOptions(rt)
	opts.List = true
	require.NoError(t, run(context.Background(), &out, rt, opts))
	listing := out.String()
	assert.Contains(t, listing, `Runtime "emulator" (OpenCL C kernels)`)
	assert.Contains(t, listing, "Emulated GPU")
	assert.Contains(t, listing, "Emulated CPU")
	assert.Contains(t, listing, "gpu")
	assert.Contains(t, listing, "cpu")
	assert.Equal(t, 0, rt.LiveHandles())

	// Failed device queries show up as "<unknown>" in the table.
	rt = emulator.New(emulator.Options{FailOn: map[string]error{"DeviceInfo": errors.New("lost device")}})
	out.Reset()
	require.NoError(t, run(context.Background(), &out, rt, opts))
	assert.Contains(t, out.String(), "<unknown>")
	assert.NotContains(t, out.String(), "Emulated GPU")
}

func TestNewRuntime(t *testing.T) {
	// Without configuration the command uses OpenCL, and fails if it is not available.
	t.Setenv(compute.RuntimeConfigEnv, "")
	rt, err := newRuntime("")
	if err != nil {
		require.ErrorContains(t, err, `compute runtime "opencl"`)
	} else {
		assert.Equal(t, opencl.RuntimeName, rt.Name())
	}

	// The emulator is used only when asked for.
	t.Setenv(compute.RuntimeConfigEnv, emulator.RuntimeName)
	rt, err = newRuntime("")
	require.NoError(t, err)
	assert.Equal(t, emulator.RuntimeName, rt.Name())

	t.Setenv(compute.RuntimeConfigEnv, "")
	rt, err = newRuntime("emulator:wgsl")
	require.NoError(t, err)
	assert.Equal(t, emulator.RuntimeName, rt.Name())
	assert.Equal(t, compute.WGSL, rt.Language())
}
