package kernelsrc

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Binding is a resource variable of a WGSL module, e.g. "@group(0) @binding(1) var<storage, read> b: array<f32>;".
type Binding struct {
	Group, Binding int
	Name           string

	// AddressSpace is "storage", "uniform", etc.
	AddressSpace string

	// Access is "read", "write" or "read_write". Storage variables default to "read".
	Access string
}

// ReadOnly returns whether the shader can't write to the variable.
func (b Binding) ReadOnly() bool {
	return b.AddressSpace != "storage" || b.Access == "read"
}

// EntryPoint is a compute shader entry point of a WGSL module.
type EntryPoint struct {
	Name string

	// WorkgroupSize is the (x, y, z) of @workgroup_size, missing dimensions are 1.
	WorkgroupSize [3]int
	Line          int
}

// Module is the result of scanning a WGSL source.
type Module struct {
	EntryPoints []EntryPoint

	// Bindings sorted by group and binding.
	Bindings []Binding
}

// EntryPoint returns the compute entry point with the given name.
func (m *Module) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range m.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// GroupBindings returns the bindings of the given group.
func (m *Module) GroupBindings(group int) []Binding {
	var bindings []Binding
	for _, b := range m.Bindings {
		if b.Group == group {
			bindings = append(bindings, b)
		}
	}
	return bindings
}

var (
	reWGSLFn      = regexp.MustCompile(`((?:@[A-Za-z_]\w*(?:\s*\([^)]*\))?\s*)+)fn\s+([A-Za-z_]\w*)\s*\(`)
	reWGSLVar     = regexp.MustCompile(`((?:@[A-Za-z_]\w*\s*\([^)]*\)\s*)+)var\s*<([^>]*)>\s*([A-Za-z_]\w*)`)
	reWGSLAttr    = regexp.MustCompile(`@([A-Za-z_]\w*)(?:\s*\(([^)]*)\))?`)
	reWGSLDecimal = regexp.MustCompile(`^(\d+)[iu]?$`)
)

// ScanWGSL checks the WGSL source for lexical errors and returns its compute entry points and resource bindings.
func ScanWGSL(source string) (*Module, Diagnostics) {
	code, diags := StripComments(source)
	diags = append(diags, CheckDelimiters(code)...)
	m := &Module{}

	for _, match := range reWGSLFn.FindAllStringSubmatchIndex(code, -1) {
		attrs := code[match[2]:match[3]]
		name := code[match[4]:match[5]]
		line, col := position(code, match[4])
		isCompute := false
		ep := EntryPoint{Name: name, WorkgroupSize: [3]int{1, 1, 1}, Line: line}
		hasSize := false
		for _, attr := range reWGSLAttr.FindAllStringSubmatch(attrs, -1) {
			switch attr[1] {
			case "compute":
				isCompute = true
			case "workgroup_size":
				hasSize = true
				for ii, dim := range strings.Split(attr[2], ",") {
					if ii >= 3 {
						diags = append(diags, Diagnostic{line, col, "error", "@workgroup_size takes at most 3 arguments"})
						break
					}
					value, ok := parseWGSLInt(dim)
					if !ok || value < 1 {
						diags = append(diags, Diagnostic{line, col, "error",
							"@workgroup_size argument '" + strings.TrimSpace(dim) + "' must be a positive integer literal"})
						continue
					}
					ep.WorkgroupSize[ii] = value
				}
			}
		}
		if !isCompute {
			continue
		}
		if !hasSize {
			diags = append(diags, Diagnostic{line, col, "error", "compute entry point '" + name + "' is missing @workgroup_size"})
		}
		if _, found := m.EntryPoint(name); found {
			diags = append(diags, Diagnostic{line, col, "error", "redefinition of '" + name + "'"})
			continue
		}
		m.EntryPoints = append(m.EntryPoints, ep)
	}

	for _, match := range reWGSLVar.FindAllStringSubmatchIndex(code, -1) {
		attrs := code[match[2]:match[3]]
		line, col := position(code, match[6])
		b := Binding{Group: -1, Binding: -1, Name: code[match[6]:match[7]]}
		for _, attr := range reWGSLAttr.FindAllStringSubmatch(attrs, -1) {
			value, ok := parseWGSLInt(attr[2])
			switch attr[1] {
			case "group":
				if ok {
					b.Group = value
				}
			case "binding":
				if ok {
					b.Binding = value
				}
			}
		}
		if b.Group < 0 || b.Binding < 0 {
			diags = append(diags, Diagnostic{line, col, "error", "resource variable '" + b.Name + "' requires @group and @binding"})
			continue
		}
		parts := strings.Split(code[match[4]:match[5]], ",")
		b.AddressSpace = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			b.Access = strings.TrimSpace(parts[1])
		} else if b.AddressSpace == "storage" {
			b.Access = "read"
		}
		switch b.Access {
		case "", "read", "write", "read_write":
		default:
			diags = append(diags, Diagnostic{line, col, "error", "unknown access mode '" + b.Access + "'"})
		}
		for _, other := range m.Bindings {
			if other.Group == b.Group && other.Binding == b.Binding {
				diags = append(diags, Diagnostic{line, col, "error",
					"binding(" + strconv.Itoa(b.Binding) + ") of group(" + strconv.Itoa(b.Group) + ") is used by both '" +
						other.Name + "' and '" + b.Name + "'"})
			}
		}
		m.Bindings = append(m.Bindings, b)
	}
	slices.SortFunc(m.Bindings, func(a, b Binding) int {
		if a.Group != b.Group {
			return a.Group - b.Group
		}
		return a.Binding - b.Binding
	})
	return m, diags
}

func parseWGSLInt(text string) (int, bool) {
	match := reWGSLDecimal.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return 0, false
	}
	value, err := strconv.Atoi(match[1])
	return value, err == nil
}
