// Package opencl implements a compute.Runtime on top of an OpenCL installation.
//
// The OpenCL library (usually the ICD loader "libOpenCL.so.1") is loaded dynamically at runtime with dlopen,
// so binaries don't need to link against it, and they still work (with the other runtimes) on machines without
// OpenCL. The library used is, in order of preference:
//
//  1. The absolute path given as configuration, e.g.: GOCOMPUTE_RUNTIME="opencl:/opt/rocm/lib/libOpenCL.so".
//  2. The path or name in the environment variable GOCOMPUTE_OPENCL_LIBRARY.
//  3. The default names for the OS, searched by the dynamic loader and in the directories listed in
//     LD_LIBRARY_PATH and /etc/ld.so.conf.
//
// The runtime is registered as "opencl" with compute.Register. It requires cgo: without it, creating the
// runtime returns an error.
package opencl

// RuntimeName is the name under which the runtime is registered.
const RuntimeName = "opencl"

// LibraryEnv is the environment variable with the path (or name) of the OpenCL library to load.
const LibraryEnv = "GOCOMPUTE_OPENCL_LIBRARY"
