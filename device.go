//go:build opencl

package main

import (
	"fmt"

	cl "github.com/CyberChainXyz/go-opencl"
)

const openclBuilt = true

// probeOpenCL lists the platforms and devices reported by the installed
// OpenCL drivers, independent of the runtime used for conversion.
func probeOpenCL() ([]string, error) {
	info, err := cl.Info()
	if err != nil {
		return nil, err
	}
	if info.Platform_count == 0 {
		return []string{"no OpenCL platforms"}, nil
	}
	var lines []string
	for i, p := range info.Platforms {
		lines = append(lines, fmt.Sprintf("Platform %d: %s", i, p.Name))
		for j, d := range p.Devices {
			lines = append(lines, fmt.Sprintf("  Device %d: %s", j, d.Name))
		}
	}
	return lines, nil
}
