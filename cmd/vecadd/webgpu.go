//go:build !nowebgpu

package main

// The WebGPU runtime links wgpu-native: build with -tags nowebgpu to leave it out.
import _ "github.com/gomlx/gocompute/compute/webgpu"
