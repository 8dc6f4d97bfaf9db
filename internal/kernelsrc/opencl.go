package kernelsrc

import (
	"regexp"
	"strings"
)

// Param is a parameter of an OpenCL C kernel.
type Param struct {
	Name string

	// Type is the parameter's type, without the address space and const qualifiers, e.g. "float *".
	Type string

	Global, Const, Pointer bool
}

// ReadOnly returns whether the kernel can't write through the parameter: a const pointer or a value.
func (p Param) ReadOnly() bool {
	return !p.Pointer || p.Const
}

// Kernel is an entry point found in an OpenCL C source.
type Kernel struct {
	Name   string
	Params []Param
	Line   int
}

var (
	reKernel      = regexp.MustCompile(`(?:\b__kernel|\bkernel)\s+(?:__attribute__\s*\(\([^)]*\)\)\s*)?void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	reErrorDirect = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*error\b[ \t]*(.*)$`)
	reIdentifier  = regexp.MustCompile(`[A-Za-z_]\w*`)
)

var qualifiers = map[string]bool{
	"__global": true, "global": true, "__constant": true, "constant": true,
	"__local": true, "local": true, "__private": true, "private": true,
	"const": true, "restrict": true, "__restrict": true, "volatile": true,
}

// ScanOpenCL checks the OpenCL C source for lexical and statement errors and returns its kernels. The build
// fails if the returned diagnostics have errors.
func ScanOpenCL(source string) ([]Kernel, Diagnostics) {
	code, diags := StripComments(source)
	for _, match := range reErrorDirect.FindAllStringSubmatchIndex(code, -1) {
		line, col := position(code, match[0]+strings.Index(code[match[0]:match[1]], "#"))
		diags = append(diags, Diagnostic{Line: line, Col: col, Severity: "error", Message: "#error " + code[match[2]:match[3]]})
	}
	delimiterDiags := CheckDelimiters(code)
	diags = append(diags, delimiterDiags...)
	if delimiterDiags.Errors() == 0 {
		diags = append(diags, CheckStatements(code)...)
	}

	var kernels []Kernel
	seen := make(map[string]bool)
	for _, match := range reKernel.FindAllStringSubmatchIndex(code, -1) {
		name := code[match[2]:match[3]]
		line, col := position(code, match[2])
		if seen[name] {
			diags = append(diags, Diagnostic{line, col, "error", "redefinition of '" + name + "'"})
			continue
		}
		seen[name] = true
		kernel := Kernel{Name: name, Line: line}
		paramsText := strings.TrimSpace(code[match[4]:match[5]])
		if paramsText != "" && paramsText != "void" {
			for _, paramText := range strings.Split(paramsText, ",") {
				param, ok := parseParam(paramText)
				if !ok {
					diags = append(diags, Diagnostic{line, col, "error",
						"invalid parameter declaration '" + strings.TrimSpace(paramText) + "' in kernel '" + name + "'"})
					continue
				}
				if param.Pointer && !param.Global && !strings.Contains(paramText, "constant") && !strings.Contains(paramText, "local") {
					diags = append(diags, Diagnostic{line, col, "error",
						"kernel pointer parameter '" + param.Name + "' must be declared __global, __constant or __local"})
				}
				kernel.Params = append(kernel.Params, param)
			}
		}
		kernels = append(kernels, kernel)
	}
	return kernels, diags
}

// parseParam parses a declaration like "__global const float *a".
func parseParam(text string) (param Param, ok bool) {
	param.Pointer = strings.Contains(text, "*")
	tokens := reIdentifier.FindAllString(text, -1)
	if len(tokens) < 2 {
		return param, false
	}
	param.Name = tokens[len(tokens)-1]
	var typeParts []string
	for _, token := range tokens[:len(tokens)-1] {
		switch {
		case token == "__global" || token == "global":
			param.Global = true
		case token == "const":
			param.Const = true
		case qualifiers[token]:
		default:
			typeParts = append(typeParts, token)
		}
	}
	if len(typeParts) == 0 {
		return param, false
	}
	param.Type = strings.Join(typeParts, " ")
	if param.Pointer {
		param.Type += " *"
	}
	return param, true
}
