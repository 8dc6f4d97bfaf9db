package emulator

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gomlx/gocompute/internal/kernelsrc"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// knownBuildOptions are the OpenCL compiler options accepted. The ones taking a value are followed by it,
// either attached ("-DNAME=1") or as the next argument ("-D NAME=1").
var knownBuildOptions = map[string]bool{
	"-D": true, "-I": true, "-w": false, "-Werror": false, "-cl-opt-disable": false, "-cl-mad-enable": false,
	"-cl-fast-relaxed-math": false, "-cl-finite-math-only": false, "-cl-no-signed-zeros": false,
	"-cl-unsafe-math-optimizations": false, "-cl-denorms-are-zero": false, "-cl-single-precision-constant": false,
	"-cl-std=CL1.1": false, "-cl-std=CL1.2": false, "-cl-std=CL2.0": false, "-cl-std=CL3.0": false,
}

// checkBuildOptions fails for compiler options that are not recognized.
func checkBuildOptions(options string) error {
	fields := strings.Fields(options)
	for ii := 0; ii < len(fields); ii++ {
		opt := fields[ii]
		if takesValue, found := knownBuildOptions[opt]; found {
			if takesValue {
				if ii+1 >= len(fields) {
					return errors.Errorf("CL_INVALID_BUILD_OPTIONS: option %q requires a value", opt)
				}
				ii++
			}
			continue
		}
		if strings.HasPrefix(opt, "-D") || strings.HasPrefix(opt, "-I") {
			continue
		}
		return errors.Errorf("CL_INVALID_BUILD_OPTIONS: unknown option %q in %q", opt, options)
	}
	return nil
}

// buildOpenCL scans the OpenCL C source for kernels.
func buildOpenCL(source string) (map[string]*entry, string, error) {
	kernels, diags := kernelsrc.ScanOpenCL(source)
	buildLog := diags.Log(source)
	if n := diags.Errors(); n > 0 {
		return nil, buildLog, errors.Errorf("CL_BUILD_PROGRAM_FAILURE: %d error(s) building program", n)
	}
	entries := make(map[string]*entry, len(kernels))
	for _, k := range kernels {
		e := &entry{name: k.Name, numArgs: len(k.Params)}
		for _, param := range k.Params {
			e.readOnly = append(e.readOnly, param.ReadOnly())
		}
		entries[k.Name] = e
	}
	return entries, buildLog, nil
}

// buildWGSL scans the WGSL source for compute entry points. The source is also compiled with naga, whose
// diagnostics are added to the build log as warnings, since naga doesn't implement all of WGSL yet.
func buildWGSL(source string) (map[string]*entry, string, error) {
	m, diags := kernelsrc.ScanWGSL(source)
	if n := diags.Errors(); n > 0 {
		return nil, diags.Log(source), errors.Errorf("shader module creation failed: %d error(s) in WGSL source", n)
	}
	buildLog := diags.Log(source)
	spirv, err := naga.Compile(source)
	if err != nil {
		klog.V(1).Infof("emulator: naga failed to compile the WGSL source: %v", err)
		buildLog += "warning: naga: " + strings.TrimSpace(err.Error()) + "\n"
	} else {
		buildLog += fmt.Sprintf("naga: compiled to %d bytes of SPIR-V\n", len(spirv))
	}

	bindings := m.GroupBindings(0)
	entries := make(map[string]*entry, len(m.EntryPoints))
	for _, ep := range m.EntryPoints {
		e := &entry{
			name:          ep.Name,
			numArgs:       len(bindings),
			workgroupSize: ep.WorkgroupSize[0] * ep.WorkgroupSize[1] * ep.WorkgroupSize[2],
		}
		for _, b := range bindings {
			e.readOnly = append(e.readOnly, b.ReadOnly())
		}
		entries[ep.Name] = e
	}
	return entries, buildLog, nil
}
