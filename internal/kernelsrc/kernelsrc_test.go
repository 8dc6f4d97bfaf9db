package kernelsrc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addKernelCL = `// Adds two arrays.
__kernel void elementwiseAdd(__global const float *a,
                             __global const float *b,
                             __global float *c)
{
    /* one work-item per element */
    int gid = get_global_id(0);
    c[gid] = a[gid] + b[gid];
}
`

func TestScanOpenCL(t *testing.T) {
	kernels, diags := ScanOpenCL(addKernelCL)
	require.Empty(t, diags)
	require.Len(t, kernels, 1)
	k := kernels[0]
	assert.Equal(t, "elementwiseAdd", k.Name)
	assert.Equal(t, 2, k.Line)
	require.Len(t, k.Params, 3)
	assert.Equal(t, Param{Name: "a", Type: "float *", Global: true, Const: true, Pointer: true}, k.Params[0])
	assert.True(t, k.Params[1].ReadOnly())
	assert.Equal(t, "c", k.Params[2].Name)
	assert.False(t, k.Params[2].ReadOnly())

	// Multiple kernels and the "kernel" spelling.
	kernels, diags = ScanOpenCL("kernel void f(global int *x) { x[0] = 1; }\n__kernel void g(void) {}\n")
	require.Empty(t, diags)
	require.Len(t, kernels, 2)
	assert.Equal(t, "f", kernels[0].Name)
	assert.Equal(t, "g", kernels[1].Name)
	assert.Empty(t, kernels[1].Params)
}

func TestScanOpenCLErrors(t *testing.T) {
	// Missing closing brace.
	source := "__kernel void k(__global float *a) {\n    a[0] = 1;\n"
	_, diags := ScanOpenCL(source)
	require.Equal(t, 1, diags.Errors())
	log := diags.Log(source)
	assert.Contains(t, log, "<source>:3:1: error: expected '}'")
	assert.Contains(t, log, "<source>:1:36: note: to match this '{'")
	assert.True(t, strings.HasSuffix(log, "1 error generated.\n"), "log=%q", log)

	// Mismatched delimiter.
	_, diags = ScanOpenCL("__kernel void k(__global float *a] {}")
	require.Equal(t, 1, diags.Errors())
	assert.Equal(t, "<source>:1:34: error: expected ')'", diags[0].String())

	// Unterminated comment and #error.
	_, diags = ScanOpenCL("#error not supported\n/* open comment\n")
	require.Equal(t, 2, diags.Errors())
	assert.Contains(t, diags.Log(""), "error: unterminated /* comment")
	assert.Contains(t, diags.Log(""), "error: #error not supported")

	// Pointer parameters need an address space, and kernels can't be redefined.
	_, diags = ScanOpenCL("__kernel void k(float *a) {}\n__kernel void k(__global float *a) {}")
	require.Equal(t, 2, diags.Errors())

	// Comments inside string literals are not comments.
	_, diags = ScanOpenCL(`__kernel void k(__global char *s) { printf("/* {"); }`)
	require.Empty(t, diags)
}

func TestScanOpenCLStatements(t *testing.T) {
	// A missing ';' and an operator without an operand.
	source := "__kernel void elementwiseAdd(__global const float *a, __global const float *b, __global float *c) {\n" +
		"    int gid = get_global_id(0)\n" +
		"    c[gid] = a[gid] - + ;\n" +
		"}\n"
	_, diags := ScanOpenCL(source)
	require.Equal(t, 2, diags.Errors())
	assert.Equal(t, "<source>:2:31: error: expected ';' after expression", diags[0].String())
	assert.Equal(t, "<source>:3:25: error: expected expression", diags[1].String())
	assert.True(t, strings.HasSuffix(diags.Log(source), "2 errors generated.\n"))

	// Missing ';' before the closing brace.
	_, diags = ScanOpenCL("__kernel void k(__global float *a) { a[0] = 1 }")
	require.Len(t, diags, 1)
	assert.Equal(t, "<source>:1:46: error: expected ';' after expression", diags[0].String())

	// Binary operator without its left operand.
	_, diags = ScanOpenCL("__kernel void k(__global float *a) { a[0] = / 2; }")
	require.Len(t, diags, 1)
	assert.Equal(t, "<source>:1:45: error: expected expression", diags[0].String())

	// Valid statements spanning lines, control statements without braces, casts and initializers.
	source = `#define SCALE 2.0f
__kernel void k(__global float *a, __global const float *b, int n)
{
    int i = get_global_id(0);
    const float w[2] = {1.0f, 2.5e-3f};
    if (i >= n)
        return;
    for (int j = 0; j < 2; j++)
        a[i] += w[j] *
            b[i];
    float x = *(__global float *)(a + i);
    a[i] = x > 0 ? x : -x;
    if (i > 0)
        a[i] = 1;
    else
        a[i] = 2;
    i++;
    while (i < n) {
        i += 2;
        if (i == 3) break;
    }
    a[0] = SCALE * a[0];
}
`
	kernels, diags := ScanOpenCL(source)
	require.Empty(t, diags, "log:\n%s", diags.Log(source))
	require.Len(t, kernels, 1)
	assert.Len(t, kernels[0].Params, 3)

	// Statements are not checked when delimiters are unbalanced.
	_, diags = ScanOpenCL("__kernel void k(__global float *a) {\n    a[0] = 1\n")
	require.Equal(t, 1, diags.Errors())
	assert.Contains(t, diags[0].Message, "expected '}'")
}

func TestScanWGSL(t *testing.T) {
	source := `@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(0) var<storage> a: array<f32>;
@binding(2) @group(0) var<storage, read_write> c: array<f32>;

// A helper.
fn add(x: f32, y: f32) -> f32 { return x + y; }

@compute @workgroup_size(64, 2)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    c[gid.x] = add(a[gid.x], b[gid.x]);
}
`
	m, diags := ScanWGSL(source)
	require.Empty(t, diags)
	require.Len(t, m.EntryPoints, 1)
	ep, found := m.EntryPoint("main")
	require.True(t, found)
	assert.Equal(t, [3]int{64, 2, 1}, ep.WorkgroupSize)
	assert.Equal(t, 9, ep.Line)
	_, found = m.EntryPoint("add")
	assert.False(t, found)

	bindings := m.GroupBindings(0)
	require.Len(t, bindings, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{bindings[0].Name, bindings[1].Name, bindings[2].Name})
	assert.Equal(t, "read", bindings[0].Access)
	assert.True(t, bindings[1].ReadOnly())
	assert.False(t, bindings[2].ReadOnly())
	assert.Empty(t, m.GroupBindings(1))
}

func TestScanWGSLErrors(t *testing.T) {
	_, diags := ScanWGSL("@compute fn main() {}")
	require.Equal(t, 1, diags.Errors())
	assert.Contains(t, diags[0].Message, "missing @workgroup_size")

	_, diags = ScanWGSL("@compute @workgroup_size(0) fn main() {}")
	require.Equal(t, 1, diags.Errors())

	_, diags = ScanWGSL("@group(0) @binding(0) var<storage, read> a: array<f32>;\n" +
		"@group(0) @binding(0) var<storage, read> b: array<f32>;\n")
	require.Equal(t, 1, diags.Errors())
	assert.Contains(t, diags[0].Message, "is used by both 'a' and 'b'")

	_, diags = ScanWGSL("@compute @workgroup_size(1) fn main() {\n")
	require.Equal(t, 1, diags.Errors())
}
