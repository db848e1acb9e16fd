// Package pipeline runs one grayscale conversion end to end: decode, device
// selection, session build, launch planning, dispatch and encode.
package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"OpenCLGray/internal/catalog"
	"OpenCLGray/internal/codec"
	"OpenCLGray/internal/compute"
	"OpenCLGray/internal/dispatch"
	"OpenCLGray/internal/geometry"
	"OpenCLGray/internal/kernel"
	"OpenCLGray/internal/raster"
	"OpenCLGray/internal/session"
)

// preferredClass is tried first when picking a device.
const preferredClass = compute.ClassAccelerator

// Report describes a finished conversion.
type Report struct {
	Device  catalog.Descriptor
	Plan    geometry.Plan
	Elapsed time.Duration
}

type Pipeline struct {
	rt      compute.Runtime
	log     logrus.FieldLogger
	catalog *catalog.Catalog
	engine  *dispatch.Engine
}

func New(rt compute.Runtime, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		rt:      rt,
		log:     log.WithField("component", "pipeline"),
		catalog: catalog.New(rt, log),
		engine:  dispatch.New(log),
	}
}

// Process converts the image at inputPath and writes the result to
// outputPath. The output file only appears when every step succeeded.
func (p *Pipeline) Process(inputPath, outputPath string) (*Report, error) {
	in, err := codec.Decode(inputPath)
	if err != nil {
		return nil, err
	}
	p.log.Debugf("loaded %s: %s", inputPath, in)

	out, report, err := p.Convert(in)
	if err != nil {
		return nil, err
	}

	if err := codec.Encode(outputPath, out); err != nil {
		return nil, err
	}
	p.log.Debugf("wrote %s", outputPath)
	return report, nil
}

// Convert runs the kernel on an in-memory image. Device resources are
// released before it returns, whether or not the run succeeded.
func (p *Pipeline) Convert(in *raster.Image) (*raster.Image, *Report, error) {
	all := p.catalog.List()
	for _, d := range all {
		p.log.Debugf("Platform %d: %s / Device %d: %s [%s]", d.PlatformIndex, d.PlatformName, d.Index, d.Name, d.Class)
	}

	dev, err := p.catalog.SelectFrom(all, preferredClass)
	if err != nil {
		return nil, nil, err
	}
	p.log.WithFields(logrus.Fields{"platform": dev.PlatformName, "device": dev.Name}).
		Infof("Using %s device %s", dev.Class, dev.Name)

	s, err := session.Build(p.rt, dev.Device, kernel.Source, kernel.EntryPoint, p.log)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	plan, err := geometry.NewPlan(in.Width, in.Height, dev.Class, dev.Caps)
	if err != nil {
		return nil, nil, err
	}
	p.log.Infof("Max Work Group Size: %d", dev.Caps.MaxWorkGroupSize)
	p.log.Infof("Max Compute Units: %d", dev.Caps.MaxComputeUnits)

	res, err := p.engine.Run(s, in, plan)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", dev.Name, err)
	}
	return res.Image, &Report{Device: dev, Plan: plan, Elapsed: res.Elapsed}, nil
}
