package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"OpenCLGray/internal/compute"
	"OpenCLGray/internal/compute/host"
	"OpenCLGray/internal/compute/opencl"
	"OpenCLGray/internal/config"
)

// newRuntime returns the compute runtime for backend. "auto" prefers OpenCL
// and falls back to the host emulator when OpenCL is not built in or shows no
// devices.
func newRuntime(backend string, log logrus.FieldLogger) (compute.Runtime, error) {
	switch backend {
	case config.BackendHost:
		return host.New(), nil
	case config.BackendOpenCL:
		rt, err := opencl.New()
		if err != nil {
			return nil, err
		}
		return rt, nil
	case config.BackendAuto:
		rt, err := opencl.New()
		if err != nil {
			log.WithError(err).Warn("OpenCL unavailable, using host emulator")
			return host.New(), nil
		}
		if countDevices(rt) == 0 {
			log.Warn("no OpenCL devices found, using host emulator")
			return host.New(), nil
		}
		return rt, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func countDevices(rt compute.Runtime) int {
	platforms, err := rt.Platforms()
	if err != nil {
		return 0
	}
	n := 0
	for _, p := range platforms {
		devices, err := p.Devices()
		if err != nil {
			continue
		}
		n += len(devices)
	}
	return n
}
