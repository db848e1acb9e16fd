package host

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"OpenCLGray/internal/compute"
)

// WorkItem identifies one kernel invocation, as get_global_id, get_local_id
// and get_group_id would report it.
type WorkItem struct {
	Global [3]int
	Local  [3]int
	Group  [3]int
}

// Args gives a kernel access to its bound arguments.
type Args struct {
	values []any
}

// Buffer returns buffer argument i.
func (a Args) Buffer(i int) *Memory { return a.values[i].(*Memory) }

// Int32 returns scalar argument i.
func (a Args) Int32(i int) int32 { return a.values[i].(int32) }

// KernelFunc is the host implementation of one OpenCL kernel.
type KernelFunc func(wi WorkItem, args Args)

type registered struct {
	arity int
	fn    KernelFunc
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registered{}
)

// RegisterKernel makes fn available to programs that declare a kernel called
// name with arity parameters.
func RegisterKernel(name string, arity int, fn KernelFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = registered{arity: arity, fn: fn}
}

func lookupKernel(name string) (registered, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	k, ok := registry[name]
	return k, ok
}

var kernelDecl = regexp.MustCompile(`__kernel\s+void\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

type program struct {
	ctx      *context
	source   string
	built    bool
	kernels  map[string]registered
	released bool
}

// Build resolves every __kernel declared in the source against the registry.
func (p *program) Build(d compute.Device, options string) error {
	if p.released {
		return errReleased
	}
	if d != compute.Device(p.ctx.dev) {
		return fmt.Errorf("device %q is not part of this program's context", d.Name())
	}

	var log strings.Builder
	kernels := map[string]registered{}
	for _, m := range kernelDecl.FindAllStringSubmatch(p.source, -1) {
		k, ok := lookupKernel(m[1])
		if !ok {
			fmt.Fprintf(&log, "error: kernel '%s' has no host implementation\n", m[1])
			continue
		}
		kernels[m[1]] = k
	}
	if len(kernels) == 0 && log.Len() == 0 {
		log.WriteString("error: no __kernel entry points declared\n")
	}
	if log.Len() > 0 {
		return &compute.BuildError{Log: log.String()}
	}

	p.kernels = kernels
	p.built = true
	return nil
}

func (p *program) CreateKernel(name string) (compute.Kernel, error) {
	if p.released {
		return nil, errReleased
	}
	if !p.built {
		return nil, errors.New("program is not built")
	}
	k, ok := p.kernels[name]
	if !ok {
		return nil, fmt.Errorf("invalid kernel name %q", name)
	}
	return &kernel{ctx: p.ctx, name: name, fn: k.fn, args: make([]any, k.arity)}, nil
}

func (p *program) Release() { p.released = true }

type kernel struct {
	ctx      *context
	name     string
	fn       KernelFunc
	args     []any
	released bool
}

func (k *kernel) SetArgBuffer(index int, b compute.Buffer) error {
	if err := k.checkIndex(index); err != nil {
		return err
	}
	m, ok := b.(*Memory)
	if !ok || m == nil {
		return fmt.Errorf("argument %d of %s: not a host buffer", index, k.name)
	}
	if m.ctx != k.ctx {
		return fmt.Errorf("argument %d of %s: buffer belongs to another context", index, k.name)
	}
	if m.released.Load() {
		return fmt.Errorf("argument %d of %s: %w", index, k.name, errReleased)
	}
	k.args[index] = m
	return nil
}

func (k *kernel) SetArgInt32(index int, v int32) error {
	if err := k.checkIndex(index); err != nil {
		return err
	}
	k.args[index] = v
	return nil
}

func (k *kernel) checkIndex(index int) error {
	if k.released {
		return errReleased
	}
	if index < 0 || index >= len(k.args) {
		return fmt.Errorf("invalid argument index %d for %s (%d parameters)", index, k.name, len(k.args))
	}
	return nil
}

func (k *kernel) Release() { k.released = true }
