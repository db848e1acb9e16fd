package pipeline

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"OpenCLGray/internal/compute"
	"OpenCLGray/internal/compute/computetest"
	"OpenCLGray/internal/compute/host"
	"OpenCLGray/internal/failure"
	"OpenCLGray/internal/raster"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeSolid(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func readGray(t *testing.T, path string) *image.Gray {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("output decoded as %T, want *image.Gray", img)
	}
	return g
}

func TestProcessRedImage(t *testing.T) {
	runtimes := map[string]compute.Runtime{
		"cpu": host.New(),
		"accelerator": host.New(host.WithDevice("emulated accelerator", compute.ClassAccelerator,
			compute.Caps{MaxWorkGroupSize: 256, MaxComputeUnits: 2})),
	}
	for name, rt := range runtimes {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "red.png")
			out := filepath.Join(dir, "gray.png")
			writeSolid(t, in, 2, 2, color.NRGBA{R: 255, A: 255})

			report, err := New(rt, quietLogger()).Process(in, out)
			if err != nil {
				t.Fatalf("Process failed: %v", err)
			}
			g := readGray(t, out)
			if g.Bounds().Dx() != 2 || g.Bounds().Dy() != 2 {
				t.Fatalf("output bounds %v", g.Bounds())
			}
			for i, v := range g.Pix {
				if v != 76 {
					t.Errorf("pixel %d = %d, want 76", i, v)
				}
			}
			if report.Device.Device == nil || report.Plan.Global[0] < 2 {
				t.Errorf("incomplete report %+v", report)
			}
		})
	}
}

func TestProcessPrefersAccelerator(t *testing.T) {
	rt := host.New(
		host.WithDevice("cpu", compute.ClassCPU, compute.Caps{MaxWorkGroupSize: 1024, MaxComputeUnits: 2}),
		host.WithDevice("gpu", compute.ClassAccelerator, compute.Caps{MaxWorkGroupSize: 256, MaxComputeUnits: 8}),
	)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeSolid(t, in, 20, 10, color.NRGBA{G: 255, A: 255})

	report, err := New(rt, quietLogger()).Process(in, filepath.Join(dir, "out.png"))
	if err != nil {
		t.Fatal(err)
	}
	if report.Device.Name != "gpu" {
		t.Errorf("selected %q, want gpu", report.Device.Name)
	}
	if report.Plan.Global != [2]int{32, 16} || report.Plan.Local != [2]int{16, 16} {
		t.Errorf("plan %v", report.Plan)
	}
}

func TestProcessDecodeFailureTouchesNoDevice(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.png")
	out := filepath.Join(dir, "out.png")
	if err := os.WriteFile(in, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	rt := computetest.Wrap(host.New(), computetest.StepNone)

	_, err := New(rt, quietLogger()).Process(in, out)
	if !errors.Is(err, failure.DecodeFailed) {
		t.Fatalf("expected DecodeFailed, got %v", err)
	}
	if ev := rt.Events(); len(ev) != 0 {
		t.Errorf("device work after decode failure: %v", ev)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output file exists after failure")
	}
}

func TestProcessFailureLeavesNothingBehind(t *testing.T) {
	tests := []struct {
		step computetest.Step
		kind failure.Kind
	}{
		{computetest.StepPlatforms, failure.NoDeviceFound},
		{computetest.StepContext, failure.ContextCreationFailed},
		{computetest.StepQueue, failure.QueueCreationFailed},
		{computetest.StepProgram, failure.CompileFailed},
		{computetest.StepBuild, failure.CompileFailed},
		{computetest.StepKernel, failure.KernelLookupFailed},
		{computetest.StepInputBuffer, failure.BufferAllocationFailed},
		{computetest.StepOutputBuffer, failure.BufferAllocationFailed},
		{computetest.StepSetArg, failure.ArgumentBindingFailed},
		{computetest.StepEnqueue, failure.EnqueueFailed},
		{computetest.StepRead, failure.ReadBackFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "in.png")
			out := filepath.Join(dir, "out.png")
			writeSolid(t, in, 3, 3, color.NRGBA{B: 255, A: 255})
			rt := computetest.Wrap(host.New(), tt.step)

			_, err := New(rt, quietLogger()).Process(in, out)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error %v, want kind %v", err, tt.kind)
			}
			if failure.KindOf(err) != tt.kind {
				t.Errorf("KindOf = %v, want %v", failure.KindOf(err), tt.kind)
			}
			if err := rt.CheckReleases(); err != nil {
				t.Error(err)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("output file exists after failure")
			}
		})
	}
}

func TestProcessUnsupportedOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeSolid(t, in, 2, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	rt := computetest.Wrap(host.New(), computetest.StepNone)

	_, err := New(rt, quietLogger()).Process(in, filepath.Join(dir, "out.xyz"))
	if !errors.Is(err, failure.EncodeFailed) {
		t.Fatalf("expected EncodeFailed, got %v", err)
	}
	if err := rt.CheckReleases(); err != nil {
		t.Error(err)
	}
}

func TestProcessNoDevices(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writeSolid(t, in, 2, 2, color.NRGBA{A: 255})

	_, err := New(host.New(host.WithoutDevices()), quietLogger()).Process(in, filepath.Join(dir, "out.png"))
	if !errors.Is(err, failure.NoDeviceFound) {
		t.Errorf("expected NoDeviceFound, got %v", err)
	}
}

func TestConvertEnumeratesOnce(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	_, _, err := New(host.New(host.WithoutDevices()), log).Convert(&raster.Image{Width: 1, Height: 1, Channels: 3, Pix: []byte{1, 2, 3}})
	if !errors.Is(err, failure.NoDeviceFound) {
		t.Fatalf("expected NoDeviceFound, got %v", err)
	}
	if n := strings.Count(buf.String(), "no devices found"); n != 1 {
		t.Errorf("empty catalog warned %d times:\n%s", n, buf.String())
	}
}

func TestConvertEmptyImageIsNotADeviceFailure(t *testing.T) {
	rt := computetest.Wrap(host.New(), computetest.StepNone)

	_, _, err := New(rt, quietLogger()).Convert(&raster.Image{Channels: 3})
	if err == nil {
		t.Fatal("expected an error for a 0x0 image")
	}
	if kind := failure.KindOf(err); kind != failure.Unknown {
		t.Errorf("planning error classified as %v", kind)
	}
	if err := rt.CheckReleases(); err != nil {
		t.Error(err)
	}
}
