//go:build !opencl

package main

import "OpenCLGray/internal/compute/opencl"

const openclBuilt = false

func probeOpenCL() ([]string, error) {
	return nil, opencl.ErrNotBuilt
}
