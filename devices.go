package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"OpenCLGray/internal/catalog"
	"OpenCLGray/internal/compute"
)

var probe bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List compute platforms and devices",
	Long: `List every platform and device the selected backend can see, with the
device class and capability facts used when reporting a launch.

With --probe the raw OpenCL driver inventory is printed as well.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().BoolVar(&probe, "probe", false, "also print the raw OpenCL driver inventory")
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	log := logger()
	rt, err := newRuntime(cfg.Device.Backend, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Runtime: %s\n", rt.Name())
	all := catalog.New(rt, log).List()
	platform := -1
	for _, d := range all {
		if d.PlatformIndex != platform {
			platform = d.PlatformIndex
			fmt.Fprintf(out, "Platform %d: %s\n", d.PlatformIndex, d.PlatformName)
		}
		fmt.Fprintf(out, "  Device %d: %s [%s]\n", d.Index, d.Name, d.Class)
		fmt.Fprintf(out, "    Max Work Group Size: %d\n", d.Caps.MaxWorkGroupSize)
		fmt.Fprintf(out, "    Max Compute Units: %d\n", d.Caps.MaxComputeUnits)
	}
	if len(all) == 0 {
		fmt.Fprintln(out, "No devices found.")
	} else {
		fmt.Fprintf(out, "%d device(s): %d accelerator, %d CPU\n", len(all),
			len(catalog.ByClass(all, compute.ClassAccelerator)), len(catalog.ByClass(all, compute.ClassCPU)))
	}

	if !probe {
		return nil
	}
	lines, err := probeOpenCL()
	if err != nil {
		return fmt.Errorf("probing OpenCL drivers: %w", err)
	}
	fmt.Fprintln(out, "\nOpenCL driver inventory:")
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}
