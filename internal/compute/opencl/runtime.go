//go:build opencl

// Package opencl implements compute.Runtime on the system OpenCL ICD loader.
package opencl

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"OpenCLGray/internal/compute"
)

// Runtime talks to the installed OpenCL drivers.
type Runtime struct{}

// New returns the OpenCL runtime. It fails only when the loader reports an
// error other than "no platforms".
func New() (*Runtime, error) {
	if _, err := cl.GetPlatforms(); err != nil && !noPlatforms(err) {
		return nil, fmt.Errorf("querying OpenCL platforms: %w", err)
	}
	return &Runtime{}, nil
}

// -1001 is CL_PLATFORM_NOT_FOUND_KHR from the ICD loader.
func noPlatforms(err error) bool {
	return strings.Contains(err.Error(), "-1001")
}

func (r *Runtime) Name() string { return "OpenCL" }

func (r *Runtime) Platforms() ([]compute.Platform, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		if noPlatforms(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying OpenCL platforms: %w", err)
	}
	out := make([]compute.Platform, len(platforms))
	for i, p := range platforms {
		out[i] = &platform{p: p}
	}
	return out, nil
}

func (r *Runtime) CreateContext(d compute.Device) (compute.Context, error) {
	dev, ok := d.(*device)
	if !ok {
		return nil, fmt.Errorf("device %q does not belong to the OpenCL runtime", d.Name())
	}
	ctx, err := cl.CreateContext([]*cl.Device{dev.d})
	if err != nil {
		return nil, err
	}
	return &context{ctx: ctx, dev: dev}, nil
}

type platform struct {
	p *cl.Platform
}

func (p *platform) Name() string { return p.p.Name() }

func (p *platform) Devices() ([]compute.Device, error) {
	devices, err := p.p.GetDevices(cl.DeviceTypeAll)
	if err != nil {
		if err == cl.ErrDeviceNotFound {
			return nil, nil
		}
		return nil, err
	}
	out := make([]compute.Device, len(devices))
	for i, d := range devices {
		out[i] = &device{d: d}
	}
	return out, nil
}

type device struct {
	d *cl.Device
}

func (d *device) Name() string { return strings.TrimSpace(d.d.Name()) }

func (d *device) Class() compute.Class {
	if d.d.Type()&cl.DeviceTypeCPU != 0 {
		return compute.ClassCPU
	}
	return compute.ClassAccelerator
}

func (d *device) Caps() compute.Caps {
	return compute.Caps{
		MaxWorkGroupSize: d.d.MaxWorkGroupSize(),
		MaxComputeUnits:  d.d.MaxComputeUnits(),
	}
}

type context struct {
	ctx *cl.Context
	dev *device
}

func (c *context) CreateQueue(d compute.Device) (compute.Queue, error) {
	dev, ok := d.(*device)
	if !ok {
		return nil, errors.New("device does not belong to the OpenCL runtime")
	}
	q, err := c.ctx.CreateCommandQueue(dev.d, 0)
	if err != nil {
		return nil, err
	}
	return &queue{q: q}, nil
}

func (c *context) CreateProgram(source string) (compute.Program, error) {
	p, err := c.ctx.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, err
	}
	return &program{p: p}, nil
}

func memFlag(f compute.MemFlags) cl.MemFlag {
	switch f {
	case compute.MemReadOnly:
		return cl.MemReadOnly
	case compute.MemWriteOnly:
		return cl.MemWriteOnly
	default:
		return cl.MemReadWrite
	}
}

// copyInFlags are the flags for a buffer initialised from host memory. The
// driver rejects a host pointer without CL_MEM_COPY_HOST_PTR or
// CL_MEM_USE_HOST_PTR.
func copyInFlags(f compute.MemFlags) cl.MemFlag {
	return memFlag(f) | cl.MemCopyHostPtr
}

func (c *context) CreateBuffer(flags compute.MemFlags, data []byte) (compute.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot create an empty buffer")
	}
	m, err := c.ctx.CreateBuffer(copyInFlags(flags), data)
	if err != nil {
		return nil, err
	}
	return &buffer{m: m, size: len(data)}, nil
}

func (c *context) CreateEmptyBuffer(flags compute.MemFlags, size int) (compute.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}
	m, err := c.ctx.CreateEmptyBuffer(memFlag(flags), size)
	if err != nil {
		return nil, err
	}
	return &buffer{m: m, size: size}, nil
}

func (c *context) Release() { c.ctx.Release() }

type program struct {
	p *cl.Program
}

func (p *program) Build(d compute.Device, options string) error {
	dev, ok := d.(*device)
	if !ok {
		return errors.New("device does not belong to the OpenCL runtime")
	}
	if err := p.p.BuildProgram([]*cl.Device{dev.d}, options); err != nil {
		if buildErr, ok := err.(cl.BuildError); ok {
			return &compute.BuildError{Log: string(buildErr)}
		}
		return err
	}
	return nil
}

func (p *program) CreateKernel(name string) (compute.Kernel, error) {
	k, err := p.p.CreateKernel(name)
	if err != nil {
		return nil, err
	}
	return &kernel{k: k}, nil
}

func (p *program) Release() { p.p.Release() }

type kernel struct {
	k *cl.Kernel
}

func (k *kernel) SetArgBuffer(index int, b compute.Buffer) error {
	buf, ok := b.(*buffer)
	if !ok {
		return fmt.Errorf("argument %d: buffer does not belong to the OpenCL runtime", index)
	}
	return k.k.SetArgBuffer(index, buf.m)
}

func (k *kernel) SetArgInt32(index int, v int32) error {
	return k.k.SetArgInt32(index, v)
}

func (k *kernel) Release() { k.k.Release() }

type queue struct {
	q *cl.CommandQueue
}

func (q *queue) EnqueueNDRangeKernel(k compute.Kernel, global, local []int) error {
	kk, ok := k.(*kernel)
	if !ok {
		return errors.New("kernel does not belong to the OpenCL runtime")
	}
	ev, err := q.q.EnqueueNDRangeKernel(kk.k, nil, global, local, nil)
	if err != nil {
		return err
	}
	ev.Release()
	return nil
}

func (q *queue) ReadBuffer(b compute.Buffer, dst []byte) error {
	buf, ok := b.(*buffer)
	if !ok {
		return errors.New("buffer does not belong to the OpenCL runtime")
	}
	if len(dst) == 0 {
		return nil
	}
	if len(dst) > buf.size {
		return fmt.Errorf("read of %d bytes exceeds buffer size %d", len(dst), buf.size)
	}
	ev, err := q.q.EnqueueReadBuffer(buf.m, true, 0, len(dst), unsafe.Pointer(&dst[0]), nil)
	if err != nil {
		return err
	}
	ev.Release()
	return nil
}

func (q *queue) Finish() error { return q.q.Finish() }

func (q *queue) Release() { q.q.Release() }

type buffer struct {
	m    *cl.MemObject
	size int
}

func (b *buffer) Size() int { return b.size }

func (b *buffer) Release() { b.m.Release() }
