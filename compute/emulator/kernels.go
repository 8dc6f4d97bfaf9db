package emulator

import (
	"fmt"
	"sync"

	"github.com/gomlx/gocompute/compute"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// KernelFunc is the Go implementation of a kernel. It is called once per work-item, with gid the global id of the
// work-item, and args the contents of the bound buffers, in argument order.
//
// Writes to read-only arguments are discarded.
type KernelFunc func(gid int, args [][]float32)

var (
	muKernels         sync.Mutex
	registeredKernels = make(map[string]KernelFunc)
)

// RegisterKernel registers the Go implementation for the kernels with the given entry point name, for all emulator
// runtimes. Options.Kernels takes precedence.
func RegisterKernel(name string, fn KernelFunc) {
	muKernels.Lock()
	defer muKernels.Unlock()
	registeredKernels[name] = fn
}

func init() {
	RegisterKernel(compute.DefaultKernelName, ElementwiseAdd)
}

// ElementwiseAdd is the Go implementation of the default kernel: args[2][gid] = args[0][gid] + args[1][gid].
func ElementwiseAdd(gid int, args [][]float32) {
	args[2][gid] = args[0][gid] + args[1][gid]
}

func (r *Runtime) kernelFunc(name string) (KernelFunc, bool) {
	if fn, found := r.opts.Kernels[name]; found {
		return fn, true
	}
	muKernels.Lock()
	defer muKernels.Unlock()
	fn, found := registeredKernels[name]
	return fn, found
}

// EnqueueKernel implements compute.Runtime. The kernel executes synchronously, before EnqueueKernel returns.
func (r *Runtime) EnqueueKernel(queueHandle, kernelHandle compute.Handle, global, local int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("EnqueueKernel", compute.KindKernel, kernelHandle); err != nil {
		return err
	}
	q, found := r.queues[queueHandle]
	if !found {
		return errors.Errorf("CL_INVALID_COMMAND_QUEUE: unknown queue handle %d", queueHandle)
	}
	k, found := r.kernels[kernelHandle]
	if !found {
		return errors.Errorf("CL_INVALID_KERNEL: unknown kernel handle %d", kernelHandle)
	}
	if r.programs[k.program].context != q.context {
		return errors.Errorf("CL_INVALID_CONTEXT: kernel and queue belong to different contexts")
	}
	if global < 1 {
		return errors.Errorf("CL_INVALID_GLOBAL_WORK_SIZE: %d", global)
	}
	maxLocal := r.devices[q.device].spec.MaxWorkGroupSize
	if local == 0 {
		local = k.entry.workgroupSize
		if local == 0 {
			local = 1
		}
	}
	switch {
	case local < 0 || local > maxLocal:
		return errors.Errorf("CL_INVALID_WORK_GROUP_SIZE: local work size %d, device maximum is %d", local, maxLocal)
	case k.entry.workgroupSize != 0 && local != k.entry.workgroupSize:
		return errors.Errorf("CL_INVALID_WORK_GROUP_SIZE: local work size %d, kernel %q declares a workgroup size of %d",
			local, k.entry.name, k.entry.workgroupSize)
	case global%local != 0:
		return errors.Errorf("CL_INVALID_WORK_GROUP_SIZE: global work size %d not divisible by local work size %d",
			global, local)
	}
	buffers, err := r.args(k)
	if err != nil {
		return err
	}
	fn, found := r.kernelFunc(k.entry.name)
	if !found {
		return errors.Errorf("CL_INVALID_KERNEL: emulator has no Go implementation for kernel %q, see emulator.RegisterKernel",
			k.entry.name)
	}
	return execute(k.entry, fn, global, buffers)
}

// execute runs fn for each work-item. Read-only arguments are given a copy of their contents, and panics (e.g.
// out-of-bounds accesses) are converted to errors.
func execute(e *entry, fn KernelFunc, global int, buffers []*buffer) (err error) {
	args := make([][]float32, len(buffers))
	for ii, b := range buffers {
		data := b.data[:b.size/4]
		if e.readOnly[ii] {
			data = append([]float32(nil), data...)
		}
		args[ii] = data
	}
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("CL_OUT_OF_RESOURCES: kernel %q failed: %v", e.name, p)
			klog.Warningf("emulator: %v", err)
		}
	}()
	for gid := range global {
		fn(gid, args)
	}
	klog.V(2).Infof("emulator: executed kernel %q over %s", e.name, workItems(global))
	return nil
}

func workItems(n int) string {
	if n == 1 {
		return "1 work-item"
	}
	return fmt.Sprintf("%d work-items", n)
}
