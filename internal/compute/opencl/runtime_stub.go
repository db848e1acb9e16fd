//go:build !opencl

package opencl

import (
	"errors"

	"OpenCLGray/internal/compute"
)

// ErrNotBuilt is returned when the binary was built without -tags opencl.
var ErrNotBuilt = errors.New("OpenCL support not compiled in (build with -tags opencl)")

// Runtime is unavailable in this build.
type Runtime struct{}

func New() (*Runtime, error) { return nil, ErrNotBuilt }

func (r *Runtime) Name() string { return "OpenCL" }

func (r *Runtime) Platforms() ([]compute.Platform, error) {
	return nil, ErrNotBuilt
}

func (r *Runtime) CreateContext(compute.Device) (compute.Context, error) {
	return nil, ErrNotBuilt
}
