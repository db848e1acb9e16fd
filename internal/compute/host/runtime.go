// Package host is a pure-Go OpenCL emulator. It exposes the same object model
// as a real ICD so the pipeline can run, and be tested, on machines without an
// OpenCL driver. Kernels are Go functions registered under their OpenCL entry
// point name; work-groups execute concurrently and every buffer access is
// bounds- and access-checked.
package host

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"

	"OpenCLGray/internal/compute"
)

const (
	platformName = "Go Host Emulation"

	defaultMaxWorkGroupSize = 1024
)

// Runtime is the emulated OpenCL runtime. It reports a single platform.
type Runtime struct {
	platform *platform
}

type platform struct {
	name    string
	devices []compute.Device
}

type device struct {
	name  string
	class compute.Class
	caps  compute.Caps
}

// Option customises the emulated platform.
type Option func(*Runtime)

// WithDevice adds an emulated device. The first WithDevice replaces the
// default CPU device.
func WithDevice(name string, class compute.Class, caps compute.Caps) Option {
	return func(r *Runtime) {
		if caps.MaxWorkGroupSize <= 0 {
			caps.MaxWorkGroupSize = defaultMaxWorkGroupSize
		}
		if caps.MaxComputeUnits <= 0 {
			caps.MaxComputeUnits = runtime.NumCPU()
		}
		r.platform.devices = append(r.platform.devices, &device{name: name, class: class, caps: caps})
	}
}

// WithoutDevices leaves the platform empty.
func WithoutDevices() Option {
	return func(r *Runtime) {
		r.platform.devices = []compute.Device{}
	}
}

// New returns an emulated runtime. Without options it has one CPU-class
// device with one compute unit per logical CPU.
func New(opts ...Option) *Runtime {
	r := &Runtime{platform: &platform{name: platformName}}
	for _, opt := range opts {
		opt(r)
	}
	if r.platform.devices == nil {
		r.platform.devices = []compute.Device{&device{
			name:  hostDeviceName(),
			class: compute.ClassCPU,
			caps: compute.Caps{
				MaxWorkGroupSize: defaultMaxWorkGroupSize,
				MaxComputeUnits:  runtime.NumCPU(),
			},
		}}
	}
	return r
}

func hostDeviceName() string {
	var features []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasAVX512F {
			features = append(features, "avx512")
		} else if cpu.X86.HasAVX2 {
			features = append(features, "avx2")
		} else if cpu.X86.HasSSE41 {
			features = append(features, "sse4.1")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "neon")
		}
		if cpu.ARM64.HasSVE {
			features = append(features, "sve")
		}
	}
	if len(features) == 0 {
		return fmt.Sprintf("Go host CPU (%s)", runtime.GOARCH)
	}
	return fmt.Sprintf("Go host CPU (%s, %s)", runtime.GOARCH, strings.Join(features, " "))
}

func (r *Runtime) Name() string { return "host" }

func (r *Runtime) Platforms() ([]compute.Platform, error) {
	return []compute.Platform{r.platform}, nil
}

func (r *Runtime) CreateContext(d compute.Device) (compute.Context, error) {
	dev, ok := d.(*device)
	if !ok || !r.owns(dev) {
		return nil, fmt.Errorf("device %q does not belong to the %s platform", d.Name(), platformName)
	}
	return &context{dev: dev}, nil
}

func (r *Runtime) owns(d *device) bool {
	for _, have := range r.platform.devices {
		if have == d {
			return true
		}
	}
	return false
}

func (p *platform) Name() string { return p.name }

func (p *platform) Devices() ([]compute.Device, error) {
	return p.devices, nil
}

func (d *device) Name() string         { return d.name }
func (d *device) Class() compute.Class { return d.class }
func (d *device) Caps() compute.Caps   { return d.caps }
