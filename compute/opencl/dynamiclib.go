//go:build cgo && (linux || darwin)

/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package opencl

// This file loads the OpenCL library with dlopen and resolves the symbols used into a cl_api table.

/*
#cgo linux LDFLAGS: -ldl
#include <stdlib.h>
#include <dlfcn.h>
#include "cl_api.h"
*/
import "C"

import (
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// symbolNames are the OpenCL functions resolved when loading the library, in the order of the CL_FN_* indices
// in cl_api.h.
var symbolNames = []string{
	"clGetPlatformIDs",
	"clGetPlatformInfo",
	"clGetDeviceIDs",
	"clGetDeviceInfo",
	"clCreateContext",
	"clCreateCommandQueue",
	"clCreateBuffer",
	"clCreateProgramWithSource",
	"clBuildProgram",
	"clGetProgramBuildInfo",
	"clCreateKernel",
	"clSetKernelArg",
	"clEnqueueNDRangeKernel",
	"clEnqueueReadBuffer",
	"clFinish",
	"clReleaseContext",
	"clReleaseCommandQueue",
	"clReleaseMemObject",
	"clReleaseProgram",
	"clReleaseKernel",
}

// symbolIndices maps each of symbolNames to its slot in cl_api.fn.
var symbolIndices = map[string]int{
	"clGetPlatformIDs":          C.CL_FN_GET_PLATFORM_IDS,
	"clGetPlatformInfo":         C.CL_FN_GET_PLATFORM_INFO,
	"clGetDeviceIDs":            C.CL_FN_GET_DEVICE_IDS,
	"clGetDeviceInfo":           C.CL_FN_GET_DEVICE_INFO,
	"clCreateContext":           C.CL_FN_CREATE_CONTEXT,
	"clCreateCommandQueue":      C.CL_FN_CREATE_COMMAND_QUEUE,
	"clCreateBuffer":            C.CL_FN_CREATE_BUFFER,
	"clCreateProgramWithSource": C.CL_FN_CREATE_PROGRAM_WITH_SOURCE,
	"clBuildProgram":            C.CL_FN_BUILD_PROGRAM,
	"clGetProgramBuildInfo":     C.CL_FN_GET_PROGRAM_BUILD_INFO,
	"clCreateKernel":            C.CL_FN_CREATE_KERNEL,
	"clSetKernelArg":            C.CL_FN_SET_KERNEL_ARG,
	"clEnqueueNDRangeKernel":    C.CL_FN_ENQUEUE_ND_RANGE_KERNEL,
	"clEnqueueReadBuffer":       C.CL_FN_ENQUEUE_READ_BUFFER,
	"clFinish":                  C.CL_FN_FINISH,
	"clReleaseContext":          C.CL_FN_RELEASE_CONTEXT,
	"clReleaseCommandQueue":     C.CL_FN_RELEASE_COMMAND_QUEUE,
	"clReleaseMemObject":        C.CL_FN_RELEASE_MEM_OBJECT,
	"clReleaseProgram":          C.CL_FN_RELEASE_PROGRAM,
	"clReleaseKernel":           C.CL_FN_RELEASE_KERNEL,
}

// numSymbols is the size of cl_api.fn.
const numSymbols = C.CL_FN_COUNT

// library is a loaded OpenCL library. Libraries are never unloaded: the ICD loaders don't support it well.
type library struct {
	path   string
	handle unsafe.Pointer

	// api is allocated in C memory, so it can be passed to the trampolines.
	api *C.cl_api
}

var (
	muLibraries     sync.Mutex
	loadedLibraries = make(map[string]*library)
)

// loadLibrary returns the OpenCL library for the configuration, loading it if needed.
func loadLibrary(config string) (*library, error) {
	muLibraries.Lock()
	defer muLibraries.Unlock()

	candidates := libraryCandidates(config, librarySearchPaths())
	var firstErr error
	for _, candidate := range candidates {
		if lib, found := loadedLibraries[candidate]; found {
			return lib, nil
		}
		if filepath.IsAbs(candidate) {
			if _, err := os.Stat(candidate); err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "failed to stat %q", candidate)
				}
				continue
			}
		}
		klog.V(1).Infof("attempting to load OpenCL library %q", candidate)
		lib, err := openLibrary(candidate)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		loadedLibraries[candidate] = lib
		return lib, nil
	}
	if firstErr == nil {
		firstErr = errors.New("no candidate library names")
	}
	return nil, errors.WithMessagef(firstErr, "opencl: failed to load the OpenCL library (tried %d candidates, set %s "+
		"or configure the runtime with \"opencl:<path-to-libOpenCL.so>\")", len(candidates), LibraryEnv)
}

// openLibrary dlopen's the library and resolves all symbols in symbolNames.
func openLibrary(libPath string) (*library, error) {
	nameC := C.CString(libPath)
	handle := C.dlopen(nameC, C.RTLD_LAZY|C.RTLD_LOCAL)
	C.free(unsafe.Pointer(nameC))
	if handle == nil {
		msg := C.GoString(C.dlerror())
		err := errors.Errorf("failed to dynamically load OpenCL library from %q: %s", libPath, msg)
		klog.V(1).Infof("%v", err)
		return nil, err
	}

	lib := &library{
		path:   libPath,
		handle: handle,
		api:    (*C.cl_api)(C.calloc(1, C.size_t(unsafe.Sizeof(C.cl_api{})))),
	}
	for _, symbol := range symbolNames {
		ptr, err := lib.symbol(symbol)
		if err != nil {
			err = errors.WithMessagef(err, "library %q is not a usable OpenCL library", libPath)
			klog.Warningf("%v", err)
			lib.close()
			return nil, err
		}
		lib.api.fn[symbolIndices[symbol]] = ptr
	}
	klog.V(1).Infof("loaded OpenCL library %s", libPath)
	return lib, nil
}

// symbol returns the pointer to the symbol in the library.
func (l *library) symbol(symbol string) (unsafe.Pointer, error) {
	sym := C.CString(symbol)
	defer C.free(unsafe.Pointer(sym))

	C.dlerror()
	p := C.dlsym(l.handle, sym)
	if e := C.dlerror(); e != nil {
		return nil, errors.Errorf("error resolving symbol %q: %s", symbol, C.GoString(e))
	}
	if p == nil {
		return nil, errors.Errorf("symbol %q resolved to nil", symbol)
	}
	return p, nil
}

// close is only used for libraries that failed to load.
func (l *library) close() {
	C.free(unsafe.Pointer(l.api))
	l.api = nil
	C.dlerror()
	C.dlclose(l.handle)
	if e := C.dlerror(); e != nil {
		klog.Warningf("Failed to close dynamic library %q: %s", l.path, C.GoString(e))
	}
}
