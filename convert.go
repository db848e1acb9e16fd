package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"OpenCLGray/internal/failure"
	"OpenCLGray/internal/pipeline"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert an image to grayscale",
	Long: `Convert decodes <input>, runs the grayscale kernel on the selected device
and writes a single-channel image to <output>. The output format follows the
extension: .png, .jpg/.jpeg, .bmp or .tif/.tiff.

No output file is written if any step fails.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logger()
	rt, err := newRuntime(cfg.Device.Backend, log)
	if err != nil {
		return err
	}
	log.Debugf("Using %s runtime", rt.Name())

	report, err := pipeline.New(rt, log).Process(args[0], args[1])
	if err != nil {
		log.WithField("kind", failure.KindOf(err).String()).Error("conversion failed")
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Image successfully converted to grayscale and saved as %s\n", args[1])
	fmt.Fprintf(out, "Kernel execution time on %s: %s\n", report.Device.Name, report.Elapsed)
	return nil
}
