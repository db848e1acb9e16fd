// Package compute describes the OpenCL object model the grayscale pipeline
// drives: platforms, devices, contexts, command queues, programs, kernels and
// memory buffers. Concrete runtimes live in subpackages.
package compute

import "fmt"

// Class is the coarse device class that drives work-group sizing.
type Class int

const (
	ClassAccelerator Class = iota
	ClassCPU
)

func (c Class) String() string {
	switch c {
	case ClassCPU:
		return "CPU"
	case ClassAccelerator:
		return "Accelerator"
	default:
		return "Unknown"
	}
}

// Caps are the capability facts queried from a device.
type Caps struct {
	MaxWorkGroupSize int
	MaxComputeUnits  int
}

// MemFlags mirror the OpenCL buffer access flags.
type MemFlags int

const (
	MemReadWrite MemFlags = iota
	MemReadOnly
	MemWriteOnly
)

func (f MemFlags) String() string {
	switch f {
	case MemReadOnly:
		return "read-only"
	case MemWriteOnly:
		return "write-only"
	default:
		return "read-write"
	}
}

// Runtime is an OpenCL implementation: an ICD loader or an emulator.
type Runtime interface {
	Name() string
	Platforms() ([]Platform, error)
	CreateContext(d Device) (Context, error)
}

type Platform interface {
	Name() string
	Devices() ([]Device, error)
}

type Device interface {
	Name() string
	Class() Class
	Caps() Caps
}

// Context owns queues, programs and buffers for a single device.
type Context interface {
	CreateQueue(d Device) (Queue, error)
	CreateProgram(source string) (Program, error)
	// CreateBuffer allocates a buffer initialised with a copy of data.
	CreateBuffer(flags MemFlags, data []byte) (Buffer, error)
	CreateEmptyBuffer(flags MemFlags, size int) (Buffer, error)
	Release()
}

type Program interface {
	// Build compiles the program for d. A compiler diagnostic is reported
	// as a *BuildError.
	Build(d Device, options string) error
	CreateKernel(name string) (Kernel, error)
	Release()
}

type Kernel interface {
	SetArgBuffer(index int, b Buffer) error
	SetArgInt32(index int, v int32) error
	Release()
}

// Queue is an in-order command queue. EnqueueNDRangeKernel returns once the
// launch is queued; ReadBuffer and Finish block until prior work completes.
type Queue interface {
	EnqueueNDRangeKernel(k Kernel, global, local []int) error
	ReadBuffer(b Buffer, dst []byte) error
	Finish() error
	Release()
}

type Buffer interface {
	Size() int
	Release()
}

// BuildError carries the compiler log of a failed program build.
type BuildError struct {
	Log string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("program build failed:\n%s", e.Log)
}
