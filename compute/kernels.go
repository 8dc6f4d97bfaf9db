package compute

// DefaultKernelName is the entry point of the default kernel sources.
const DefaultKernelName = "elementwiseAdd"

// ElementwiseAddOpenCL is the OpenCL C source of the default kernel: c[i] = a[i] + b[i], one work-item per element.
const ElementwiseAddOpenCL = `__kernel void elementwiseAdd(__global const float *a,
                             __global const float *b,
                             __global float *c)
{
    int gid = get_global_id(0);
    c[gid] = a[gid] + b[gid];
}
`

// ElementwiseAddWGSL is the WGSL version of ElementwiseAddOpenCL, with bindings 0, 1 and 2 in group 0 taking
// the place of the positional arguments.
const ElementwiseAddWGSL = `@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> c: array<f32>;

@compute @workgroup_size(1)
fn elementwiseAdd(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    if (i >= arrayLength(&c)) {
        return;
    }
    c[i] = a[i] + b[i];
}
`

// DefaultKernelSource returns the elementwise-add kernel source for the given language.
func DefaultKernelSource(lang KernelLanguage) string {
	if lang == WGSL {
		return ElementwiseAddWGSL
	}
	return ElementwiseAddOpenCL
}
