// Package catalog enumerates compute platforms and devices and picks the one
// a run executes on.
package catalog

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"OpenCLGray/internal/compute"
	"OpenCLGray/internal/failure"
)

// Descriptor describes one device. It is a snapshot taken at enumeration time.
type Descriptor struct {
	PlatformIndex int
	PlatformName  string
	Index         int
	Name          string
	Class         compute.Class
	Caps          compute.Caps

	// Device is the runtime handle used to build a session.
	Device compute.Device
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s [%s] on %s", d.Name, d.Class, d.PlatformName)
}

// Catalog lists the devices a runtime exposes.
type Catalog struct {
	rt  compute.Runtime
	log logrus.FieldLogger
}

func New(rt compute.Runtime, log logrus.FieldLogger) *Catalog {
	return &Catalog{rt: rt, log: log.WithField("component", "catalog")}
}

// List returns every device on every platform, in platform order. Enumeration
// problems are logged and yield fewer (possibly zero) devices, never an error.
func (c *Catalog) List() []Descriptor {
	platforms, err := c.rt.Platforms()
	if err != nil {
		c.log.WithError(err).Warnf("%s: platform enumeration failed", c.rt.Name())
		return nil
	}

	var out []Descriptor
	for pi, p := range platforms {
		devices, err := p.Devices()
		if err != nil {
			c.log.WithError(err).Warnf("platform %q: device enumeration failed", p.Name())
			continue
		}
		for di, d := range devices {
			out = append(out, Descriptor{
				PlatformIndex: pi,
				PlatformName:  p.Name(),
				Index:         di,
				Name:          d.Name(),
				Class:         d.Class(),
				Caps:          d.Caps(),
				Device:        d,
			})
		}
	}
	if len(out) == 0 {
		c.log.Warnf("%s: no devices found on %d platform(s)", c.rt.Name(), len(platforms))
	}
	return out
}

// Select returns the first device of the preferred class, scanning platforms
// in order. When no device has that class the first device of any class is
// used. It fails with failure.NoDeviceFound only when no device is visible.
func (c *Catalog) Select(preferred compute.Class) (Descriptor, error) {
	return c.SelectFrom(c.List(), preferred)
}

// SelectFrom applies the Select rules to an already enumerated list.
func (c *Catalog) SelectFrom(all []Descriptor, preferred compute.Class) (Descriptor, error) {
	if len(all) == 0 {
		return Descriptor{}, failure.New(failure.NoDeviceFound, "selecting device",
			errors.New("no compute devices visible to the "+c.rt.Name()+" runtime"))
	}

	if d, ok := lo.Find(all, func(d Descriptor) bool { return d.Class == preferred }); ok {
		return d, nil
	}
	d := all[0]
	c.log.Warnf("no %s device available, falling back to %s", preferred, d)
	return d, nil
}

// ByClass returns the devices of one class.
func ByClass(all []Descriptor, class compute.Class) []Descriptor {
	return lo.Filter(all, func(d Descriptor, _ int) bool { return d.Class == class })
}
