package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"OpenCLGray/internal/config"
	"OpenCLGray/internal/logging"
)

const version = "0.1.0"

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	v       = viper.New()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clgray",
	Short: "Convert images to grayscale on an OpenCL device",
	Long: `clgray decodes an image, runs a luminance kernel over every pixel on an
OpenCL device and writes the single-channel result.

Without an OpenCL build (-tags opencl) or a visible device the kernel runs
on the built-in host emulator.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.clgray/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("backend", config.BackendAuto, "compute backend: auto, opencl or host")

	v.BindPFlag("device.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

// initConfig reads the config file, environment and flags, then sets up logging.
func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = config.Load(v, cfgFile); err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Init(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Console); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logging.Get().Debugf("Using config file: %s", used)
	}
	return nil
}

func logger() *logrus.Logger {
	return logging.Get()
}
