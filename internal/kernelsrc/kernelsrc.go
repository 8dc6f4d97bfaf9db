// Package kernelsrc scans kernel sources (OpenCL C and WGSL) for what the runtimes need to know without a full
// compiler: the kernel entry points, their parameters or bindings, and the syntax errors that can be detected
// from the tokens alone, like unbalanced delimiters or a missing ';'.
//
// Diagnostics are formatted like clang's, e.g. "<source>:3:5: error: expected '}'".
package kernelsrc

import (
	"fmt"
	"strings"
)

// SourceName is used as the file name in diagnostics.
const SourceName = "<source>"

// Diagnostic is a compiler message about a position in the source.
type Diagnostic struct {
	Line, Col int // 1-based.
	Severity  string
	Message   string
}

// String formats the diagnostic in clang style.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", SourceName, d.Line, d.Col, d.Severity, d.Message)
}

// Diagnostics is the list of messages of a build.
type Diagnostics []Diagnostic

// Errors returns the number of diagnostics with severity "error".
func (ds Diagnostics) Errors() int {
	var count int
	for _, d := range ds {
		if d.Severity == "error" {
			count++
		}
	}
	return count
}

// Log formats the diagnostics as a build log, including the source line of each diagnostic and the final
// "N error(s) generated." line. It returns "" if there are no diagnostics.
func (ds Diagnostics) Log(source string) string {
	if len(ds) == 0 {
		return ""
	}
	lines := strings.Split(source, "\n")
	var sb strings.Builder
	for _, d := range ds {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
		if d.Line >= 1 && d.Line <= len(lines) {
			line := strings.ReplaceAll(lines[d.Line-1], "\t", " ")
			sb.WriteString(line)
			sb.WriteByte('\n')
			if d.Col >= 1 {
				sb.WriteString(strings.Repeat(" ", d.Col-1))
				sb.WriteString("^\n")
			}
		}
	}
	switch n := ds.Errors(); n {
	case 0:
	case 1:
		sb.WriteString("1 error generated.\n")
	default:
		fmt.Fprintf(&sb, "%d errors generated.\n", n)
	}
	return sb.String()
}

// position converts a byte offset into a 1-based line and column.
func position(source string, offset int) (line, col int) {
	line = 1 + strings.Count(source[:offset], "\n")
	col = offset - strings.LastIndexByte(source[:offset], '\n')
	return
}

// StripComments replaces C-style comments by spaces, keeping the newlines, so offsets in the returned string are
// the same as in source. String and character literals are kept as is.
func StripComments(source string) (string, Diagnostics) {
	out := []byte(source)
	var diags Diagnostics
	n := len(source)
	for ii := 0; ii < n; ii++ {
		switch {
		case source[ii] == '"' || source[ii] == '\'':
			quote := source[ii]
			for ii++; ii < n && source[ii] != quote && source[ii] != '\n'; ii++ {
				if source[ii] == '\\' {
					ii++
				}
			}
		case strings.HasPrefix(source[ii:], "//"):
			for ; ii < n && source[ii] != '\n'; ii++ {
				out[ii] = ' '
			}
		case strings.HasPrefix(source[ii:], "/*"):
			start := ii
			end := strings.Index(source[ii+2:], "*/")
			if end == -1 {
				line, col := position(source, start)
				diags = append(diags, Diagnostic{Line: line, Col: col, Severity: "error", Message: "unterminated /* comment"})
				end = n
			} else {
				end += ii + 4
			}
			for ; ii < end; ii++ {
				if out[ii] != '\n' {
					out[ii] = ' '
				}
			}
			ii--
		}
	}
	return string(out), diags
}

var closingOf = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// CheckDelimiters reports unbalanced parentheses, brackets and braces in the (comment-free) source.
func CheckDelimiters(source string) Diagnostics {
	type open struct {
		char   byte
		offset int
	}
	var stack []open
	var diags Diagnostics
	for ii := 0; ii < len(source); ii++ {
		ch := source[ii]
		switch ch {
		case '"', '\'':
			for ii++; ii < len(source) && source[ii] != ch && source[ii] != '\n'; ii++ {
				if source[ii] == '\\' {
					ii++
				}
			}
		case '(', '[', '{':
			stack = append(stack, open{ch, ii})
		case ')', ']', '}':
			if len(stack) == 0 {
				line, col := position(source, ii)
				diags = append(diags, Diagnostic{line, col, "error", fmt.Sprintf("extraneous closing delimiter '%c'", ch)})
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if closingOf[top.char] != ch {
				line, col := position(source, ii)
				diags = append(diags, Diagnostic{line, col, "error", fmt.Sprintf("expected '%c'", closingOf[top.char])})
				line, col = position(source, top.offset)
				diags = append(diags, Diagnostic{line, col, "note", fmt.Sprintf("to match this '%c'", top.char)})
			}
		}
	}
	for ii := len(stack) - 1; ii >= 0; ii-- {
		line, col := position(source, len(source))
		diags = append(diags, Diagnostic{line, col, "error", fmt.Sprintf("expected '%c'", closingOf[stack[ii].char])})
		line, col = position(source, stack[ii].offset)
		diags = append(diags, Diagnostic{line, col, "note", fmt.Sprintf("to match this '%c'", stack[ii].char)})
	}
	return diags
}
