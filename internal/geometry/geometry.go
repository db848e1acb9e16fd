// Package geometry sizes the 2D NDRange for an image on a device class.
package geometry

import (
	"fmt"

	"OpenCLGray/internal/compute"
)

const (
	// AcceleratorTile is the work-group edge used on GPUs and other accelerators.
	AcceleratorTile = 16
	// CPUTile is the work-group edge on CPU devices. CPU runtimes already
	// vectorise across work-items, so one item per group avoids oversubscribing
	// the vector lanes.
	CPUTile = 1
)

// Plan is the global and local work size of one launch.
type Plan struct {
	Global [2]int
	Local  [2]int
	// Caps are the device facts the plan was made for. They are reported,
	// not used for sizing.
	Caps compute.Caps
}

// TileFor returns the work-group edge for a device class.
func TileFor(class compute.Class) int {
	if class == compute.ClassCPU {
		return CPUTile
	}
	return AcceleratorTile
}

// NewPlan rounds each image dimension up to a multiple of the class tile.
// The kernel bounds-checks, so the padded work-items are no-ops.
func NewPlan(width, height int, class compute.Class, caps compute.Caps) (Plan, error) {
	if width <= 0 || height <= 0 {
		return Plan{}, fmt.Errorf("cannot plan a launch for a %dx%d image", width, height)
	}
	tile := TileFor(class)
	return Plan{
		Global: [2]int{roundUp(width, tile), roundUp(height, tile)},
		Local:  [2]int{tile, tile},
		Caps:   caps,
	}, nil
}

func roundUp(n, multiple int) int {
	return (n + multiple - 1) / multiple * multiple
}

// GlobalSize returns the global work size as a slice for enqueueing.
func (p Plan) GlobalSize() []int { return []int{p.Global[0], p.Global[1]} }

// LocalSize returns the local work size as a slice for enqueueing.
func (p Plan) LocalSize() []int { return []int{p.Local[0], p.Local[1]} }

// WorkItems is the total number of launched work-items, padding included.
func (p Plan) WorkItems() int { return p.Global[0] * p.Global[1] }

func (p Plan) String() string {
	return fmt.Sprintf("global %dx%d, local %dx%d", p.Global[0], p.Global[1], p.Local[0], p.Local[1])
}
