// Package kernel holds the grayscale transform: its OpenCL C source and the
// equivalent host implementation registered with the emulator.
package kernel

import (
	"math"

	"OpenCLGray/internal/compute/host"
)

// EntryPoint is the name of the kernel function in Source.
const EntryPoint = "grayscale"

// Argument order of the grayscale kernel.
const (
	ArgInput = iota
	ArgOutput
	ArgWidth
	ArgHeight
	ArgChannels

	arity
)

// Source converts interleaved 8-bit RGB(A) to single-channel luminance.
// Work-items outside width x height return without writing, so the global
// range may be padded up to a multiple of the work-group size.
const Source = `
__kernel void grayscale(__global const uchar* input,
                        __global uchar* output,
                        const int width,
                        const int height,
                        const int channels) {
    const int x = get_global_id(0);
    const int y = get_global_id(1);
    if (x >= width || y >= height) {
        return;
    }

    const int idx = (y * width + x) * channels;
    const float gray = 0.299f * input[idx]
                     + 0.587f * input[idx + 1]
                     + 0.114f * input[idx + 2];
    output[y * width + x] = convert_uchar_sat_rte(gray);
}`

// Luminance is the per-pixel transform, evaluated in float32 like the device
// and rounded to nearest even with saturation like convert_uchar_sat_rte.
func Luminance(r, g, b uint8) uint8 {
	gray := float32(0.299)*float32(r) + float32(0.587)*float32(g) + float32(0.114)*float32(b)
	v := math.RoundToEven(float64(gray))
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

func init() {
	host.RegisterKernel(EntryPoint, arity, grayscaleHost)
}

func grayscaleHost(wi host.WorkItem, args host.Args) {
	input := args.Buffer(ArgInput)
	output := args.Buffer(ArgOutput)
	width := int(args.Int32(ArgWidth))
	height := int(args.Int32(ArgHeight))
	channels := int(args.Int32(ArgChannels))

	x, y := wi.Global[0], wi.Global[1]
	if x >= width || y >= height {
		return
	}
	idx := (y*width + x) * channels
	output.Store(y*width+x, Luminance(input.Load(idx), input.Load(idx+1), input.Load(idx+2)))
}
