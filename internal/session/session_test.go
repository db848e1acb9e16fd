package session

import (
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"OpenCLGray/internal/compute"
	"OpenCLGray/internal/compute/computetest"
	"OpenCLGray/internal/compute/host"
	"OpenCLGray/internal/failure"
	"OpenCLGray/internal/kernel"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func firstDevice(t *testing.T, rt compute.Runtime) compute.Device {
	t.Helper()
	platforms, err := rt.Platforms()
	if err != nil {
		t.Fatal(err)
	}
	devices, err := platforms[0].Devices()
	if err != nil || len(devices) == 0 {
		t.Fatalf("no device: %v", err)
	}
	return devices[0]
}

func assertReleased(t *testing.T, f *computetest.Faulty) {
	t.Helper()
	if err := f.CheckReleases(); err != nil {
		t.Error(err)
	}
}

func TestBuildFailureReleasesAcquired(t *testing.T) {
	tests := []struct {
		step computetest.Step
		kind failure.Kind
	}{
		{computetest.StepContext, failure.ContextCreationFailed},
		{computetest.StepQueue, failure.QueueCreationFailed},
		{computetest.StepProgram, failure.CompileFailed},
		{computetest.StepBuild, failure.CompileFailed},
		{computetest.StepKernel, failure.KernelLookupFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			rt := computetest.Wrap(host.New(), tt.step)
			s, err := Build(rt, firstDevice(t, rt), kernel.Source, kernel.EntryPoint, quietLogger())
			if err == nil {
				s.Close()
				t.Fatal("expected Build to fail")
			}
			if s != nil {
				t.Error("failed Build returned a session")
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("error %v, want kind %v", err, tt.kind)
			}
			assertReleased(t, rt)
		})
	}
}

func TestCompileFailureCarriesLog(t *testing.T) {
	rt := computetest.Wrap(host.New(), computetest.StepBuild)
	_, err := Build(rt, firstDevice(t, rt), kernel.Source, kernel.EntryPoint, quietLogger())

	var fe *failure.Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *failure.Error, got %v", err)
	}
	if fe.Log != computetest.BuildLog {
		t.Errorf("log = %q", fe.Log)
	}
}

func TestCompileFailureFromRealSource(t *testing.T) {
	rt := computetest.Wrap(host.New(), computetest.StepNone)
	src := `__kernel void not_registered(__global uchar* p) { p[0] = 1; }`
	_, err := Build(rt, firstDevice(t, rt), src, "not_registered", quietLogger())
	if !errors.Is(err, failure.CompileFailed) {
		t.Fatalf("expected CompileFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "not_registered") {
		t.Errorf("diagnostic missing from %q", err)
	}
	assertReleased(t, rt)
}

func TestKernelLookupWrongEntryPoint(t *testing.T) {
	rt := computetest.Wrap(host.New(), computetest.StepNone)
	_, err := Build(rt, firstDevice(t, rt), kernel.Source, "grayscale_v2", quietLogger())
	if !errors.Is(err, failure.KernelLookupFailed) {
		t.Fatalf("expected KernelLookupFailed, got %v", err)
	}
	assertReleased(t, rt)
}

func TestCloseReleasesAllOnce(t *testing.T) {
	rt := computetest.Wrap(host.New(), computetest.StepNone)
	s, err := Build(rt, firstDevice(t, rt), kernel.Source, kernel.EntryPoint, quietLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	in, err := s.Input([]byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.Input([]byte{4, 5, 6})
	if err != nil || again != in {
		t.Error("second Input call re-uploaded")
	}
	if _, err := s.Output(1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Output(2); !errors.Is(err, failure.BufferAllocationFailed) {
		t.Errorf("resizing output: %v", err)
	}

	s.Close()
	s.Close()

	want := []string{
		"release:input", "release:output", "release:kernel",
		"release:program", "release:queue", "release:context",
	}
	events := rt.Events()
	if got := events[len(events)-len(want):]; !slices.Equal(got, want) {
		t.Errorf("release sequence %v, want %v", got, want)
	}
	assertReleased(t, rt)
}

func TestBufferAllocationFailure(t *testing.T) {
	for _, step := range []computetest.Step{computetest.StepInputBuffer, computetest.StepOutputBuffer} {
		t.Run(string(step), func(t *testing.T) {
			rt := computetest.Wrap(host.New(), step)
			s, err := Build(rt, firstDevice(t, rt), kernel.Source, kernel.EntryPoint, quietLogger())
			if err != nil {
				t.Fatal(err)
			}
			_, inErr := s.Input([]byte{1, 2, 3})
			_, outErr := s.Output(1)
			if !errors.Is(inErr, failure.BufferAllocationFailed) && !errors.Is(outErr, failure.BufferAllocationFailed) {
				t.Errorf("expected BufferAllocationFailed, got %v / %v", inErr, outErr)
			}
			s.Close()
			assertReleased(t, rt)
		})
	}
}
