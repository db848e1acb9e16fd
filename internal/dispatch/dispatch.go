// Package dispatch runs the grayscale kernel on a built session: copy-in,
// argument binding, NDRange enqueue and blocking read-back.
package dispatch

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"OpenCLGray/internal/failure"
	"OpenCLGray/internal/geometry"
	"OpenCLGray/internal/kernel"
	"OpenCLGray/internal/raster"
	"OpenCLGray/internal/session"
)

// Result is the single-channel output of a run and the time spent in the
// enqueue call.
type Result struct {
	Image   *raster.Image
	Elapsed time.Duration
}

// Engine executes launches. The zero value is not usable; call New.
type Engine struct {
	log logrus.FieldLogger
	now func() time.Time
}

func New(log logrus.FieldLogger) *Engine {
	return &Engine{log: log.WithField("component", "dispatch"), now: time.Now}
}

// Run transforms in on the session's device using plan. Nothing is retried:
// every failure is returned classified and the caller tears the session down.
func (e *Engine) Run(s *session.Session, in *raster.Image, plan geometry.Plan) (*Result, error) {
	if in.Channels < 3 {
		return nil, failure.New(failure.ArgumentBindingFailed, "checking input",
			fmt.Errorf("grayscale needs at least 3 channels, image has %d", in.Channels))
	}

	input, err := s.Input(in.Pix)
	if err != nil {
		return nil, err
	}
	output, err := s.Output(in.Len())
	if err != nil {
		return nil, err
	}

	k := s.Kernel()
	bind := []struct {
		name string
		set  func() error
	}{
		{"input", func() error { return k.SetArgBuffer(kernel.ArgInput, input) }},
		{"output", func() error { return k.SetArgBuffer(kernel.ArgOutput, output) }},
		{"width", func() error { return k.SetArgInt32(kernel.ArgWidth, int32(in.Width)) }},
		{"height", func() error { return k.SetArgInt32(kernel.ArgHeight, int32(in.Height)) }},
		{"channels", func() error { return k.SetArgInt32(kernel.ArgChannels, int32(in.Channels)) }},
	}
	for _, arg := range bind {
		if err := arg.set(); err != nil {
			return nil, failure.New(failure.ArgumentBindingFailed, "setting kernel argument "+arg.name, err)
		}
	}

	e.log.Infof("Global Size: %dx%d (%d work-items)", plan.Global[0], plan.Global[1], plan.WorkItems())
	e.log.Infof("Local Size: %dx%d", plan.Local[0], plan.Local[1])

	q := s.Queue()
	start := e.now()
	if err := q.EnqueueNDRangeKernel(k, plan.GlobalSize(), plan.LocalSize()); err != nil {
		return nil, failure.New(failure.EnqueueFailed, "enqueueing "+plan.String(), err)
	}
	elapsed := e.now().Sub(start)

	out, err := raster.NewBlank(in.Width, in.Height, 1)
	if err != nil {
		return nil, failure.New(failure.ReadBackFailed, "allocating host output", err)
	}
	if err := q.ReadBuffer(output, out.Pix); err != nil {
		return nil, failure.New(failure.ReadBackFailed, fmt.Sprintf("reading %d byte result", len(out.Pix)), err)
	}

	e.log.Infof("Kernel enqueue took %s", elapsed)
	return &Result{Image: out, Elapsed: elapsed}, nil
}
