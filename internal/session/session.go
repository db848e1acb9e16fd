// Package session owns the device-side objects of one grayscale run: the
// context, command queue, compiled program, kernel handle and the input and
// output buffers. They are acquired in that order and released together, in
// reverse, by Close.
package session

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"OpenCLGray/internal/compute"
	"OpenCLGray/internal/failure"
)

// Session is the live set of device resources for one run. It is not safe for
// concurrent use.
type Session struct {
	device compute.Device
	log    logrus.FieldLogger

	context compute.Context
	queue   compute.Queue
	program compute.Program
	kernel  compute.Kernel
	input   compute.Buffer
	output  compute.Buffer
}

// Build creates a context and queue on device, compiles source and looks up
// entryPoint. On failure everything acquired so far is released before the
// error is returned.
func Build(rt compute.Runtime, device compute.Device, source, entryPoint string, log logrus.FieldLogger) (_ *Session, err error) {
	s := &Session{device: device, log: log.WithField("component", "session")}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.context, err = rt.CreateContext(device); err != nil {
		return nil, failure.New(failure.ContextCreationFailed, "creating context on "+device.Name(), err)
	}
	if s.queue, err = s.context.CreateQueue(device); err != nil {
		return nil, failure.New(failure.QueueCreationFailed, "creating command queue", err)
	}
	if s.program, err = s.context.CreateProgram(source); err != nil {
		return nil, failure.New(failure.CompileFailed, "creating program", err)
	}
	if err = s.program.Build(device, ""); err != nil {
		fe := failure.New(failure.CompileFailed, "building program", err)
		var be *compute.BuildError
		if errors.As(err, &be) {
			fe.Err = errors.New("compiler reported errors")
			fe.WithLog(be.Log)
		}
		return nil, fe
	}
	if s.kernel, err = s.program.CreateKernel(entryPoint); err != nil {
		return nil, failure.New(failure.KernelLookupFailed, fmt.Sprintf("creating kernel %q", entryPoint), err)
	}

	s.log.Debugf("session ready on %s, kernel %q", device.Name(), entryPoint)
	return s, nil
}

func (s *Session) Device() compute.Device { return s.device }
func (s *Session) Queue() compute.Queue   { return s.queue }
func (s *Session) Kernel() compute.Kernel { return s.kernel }

// Input returns the read-only device copy of data, uploading it on first use.
// Later calls return the same buffer without re-uploading.
func (s *Session) Input(data []byte) (compute.Buffer, error) {
	if s.input != nil {
		return s.input, nil
	}
	b, err := s.context.CreateBuffer(compute.MemReadOnly, data)
	if err != nil {
		return nil, failure.New(failure.BufferAllocationFailed, fmt.Sprintf("allocating %d byte input buffer", len(data)), err)
	}
	s.input = b
	return b, nil
}

// Output returns the write-only result buffer, allocating size bytes on
// first use.
func (s *Session) Output(size int) (compute.Buffer, error) {
	if s.output != nil {
		if s.output.Size() != size {
			return nil, failure.New(failure.BufferAllocationFailed, "allocating output buffer",
				fmt.Errorf("output buffer already allocated with %d bytes, %d requested", s.output.Size(), size))
		}
		return s.output, nil
	}
	b, err := s.context.CreateEmptyBuffer(compute.MemWriteOnly, size)
	if err != nil {
		return nil, failure.New(failure.BufferAllocationFailed, fmt.Sprintf("allocating %d byte output buffer", size), err)
	}
	s.output = b
	return b, nil
}

// Close releases every acquired resource exactly once: input buffer, output
// buffer, kernel, program, queue, context. Resources never acquired are
// skipped. Close is safe to call more than once.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.input != nil {
		s.input.Release()
		s.input = nil
	}
	if s.output != nil {
		s.output.Release()
		s.output = nil
	}
	if s.kernel != nil {
		s.kernel.Release()
		s.kernel = nil
	}
	if s.program != nil {
		s.program.Release()
		s.program = nil
	}
	if s.queue != nil {
		s.queue.Release()
		s.queue = nil
	}
	if s.context != nil {
		s.context.Release()
		s.context = nil
	}
}
