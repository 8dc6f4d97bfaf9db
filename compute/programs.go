package compute

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Program is kernel source compiled for the context's device. It owns the kernels extracted from it.
type Program struct {
	nativeHandle
	context  *Context
	buildLog string

	// kernels is the number of live kernels created from the program.
	kernels int
}

// BuildProgram compiles source (in the runtime's KernelLanguage) for the context's device, with the given
// compiler options (may be empty).
//
// On failure it returns an *Error with kind BuildError and the compiler output in Error.BuildLog.
func (c *Context) BuildProgram(source, options string) (*Program, error) {
	const op = "Context.BuildProgram"
	if err := c.checkValid(BuildError, op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(source) == "" {
		return nil, &Error{Kind: BuildError, Op: op, BuildLog: "empty kernel source", Cause: errors.New("empty kernel source")}
	}
	h, buildLog, err := c.rt.BuildProgram(c.handle, c.device.handle, source, options)
	if err == nil && h == 0 {
		err = errors.New("runtime returned an invalid (zero) program handle")
	}
	if err != nil {
		if strings.TrimSpace(buildLog) == "" {
			buildLog = err.Error()
		}
		return nil, &Error{Kind: BuildError, Op: op, BuildLog: buildLog, Cause: errors.WithStack(err)}
	}
	if buildLog != "" {
		klog.V(2).Infof("compute: program build log:\n%s", buildLog)
	}
	p := &Program{nativeHandle: newNativeHandle(c.rt, KindProgram, h), context: c, buildLog: buildLog}
	c.dependents++
	runtime.SetFinalizer(p, func(p *Program) { destroyOrLog("Program", p) })
	return p, nil
}

// Context that owns the program.
func (p *Program) Context() *Context { return p.context }

// BuildLog returns the (possibly empty) compiler output of a successful build.
func (p *Program) BuildLog() string { return p.buildLog }

// Destroy the Program and release its native handle. It is a no-op if already destroyed.
//
// It fails (with ReleaseError) if kernels created from it are still alive.
func (p *Program) Destroy() error {
	if !p.valid() {
		return nil
	}
	defer runtime.KeepAlive(p)
	if p.kernels > 0 {
		return newErrorf(ReleaseError, "Program.Destroy", "program still has %d live kernels, destroy them first", p.kernels)
	}
	err := p.release()
	p.context.dependents--
	return err
}

// Kernel is a named entry point of a built Program, with its positional argument bindings.
type Kernel struct {
	nativeHandle
	program *Program
	name    string

	// args keeps a reference to the bound buffers, so they outlive the kernel.
	args []*Buffer
}

// NewKernel extracts the kernel with the given name from the program.
func (p *Program) NewKernel(name string) (*Kernel, error) {
	op := fmt.Sprintf("NewKernel(%q)", name)
	if !p.valid() {
		return nil, newErrorf(EntryPointNotFoundError, op, "program is nil or has already been destroyed")
	}
	if name == "" {
		return nil, newErrorf(EntryPointNotFoundError, op, "empty kernel name")
	}
	h, err := p.rt.CreateKernel(p.handle, name)
	if err == nil && h == 0 {
		err = errors.New("runtime returned an invalid (zero) kernel handle")
	}
	if err != nil {
		return nil, newError(EntryPointNotFoundError, op, err)
	}
	k := &Kernel{nativeHandle: newNativeHandle(p.rt, KindKernel, h), program: p, name: name}
	p.kernels++
	runtime.SetFinalizer(k, func(k *Kernel) { destroyOrLog("Kernel", k) })
	return k, nil
}

// Name of the kernel entry point.
func (k *Kernel) Name() string { return k.name }

// Program the kernel was extracted from.
func (k *Kernel) Program() *Program { return k.program }

// SetArg binds buffer to the positional argument index of the kernel. Arguments can be rebound.
func (k *Kernel) SetArg(index int, buffer *Buffer) error {
	op := fmt.Sprintf("SetArg(%q, %d)", k.name, index)
	if !k.valid() {
		return newErrorf(ArgumentBindError, op, "kernel has already been destroyed")
	}
	if index < 0 {
		return newErrorf(ArgumentBindError, op, "negative argument index")
	}
	if buffer == nil || !buffer.valid() {
		return newErrorf(ArgumentBindError, op, "buffer is nil or has already been destroyed")
	}
	if buffer.context != k.program.context {
		return newErrorf(ArgumentBindError, op, "buffer was created on a different context than the kernel")
	}
	if err := k.rt.SetKernelArg(k.handle, index, buffer.handle); err != nil {
		return newError(ArgumentBindError, op, err)
	}
	for len(k.args) <= index {
		k.args = append(k.args, nil)
	}
	k.args[index] = buffer
	return nil
}

// Destroy the Kernel and release its native handle. It is a no-op if already destroyed.
func (k *Kernel) Destroy() error {
	if !k.valid() {
		return nil
	}
	defer runtime.KeepAlive(k)
	err := k.release()
	k.program.kernels--
	k.args = nil
	return err
}
