package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Device.Backend != BackendAuto {
		t.Errorf("backend = %q, want %q", cfg.Device.Backend, BackendAuto)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"host backend", func(c *Config) { c.Device.Backend = BackendHost }, false},
		{"opencl backend", func(c *Config) { c.Device.Backend = BackendOpenCL }, false},
		{"unknown backend", func(c *Config) { c.Device.Backend = "cuda" }, true},
		{"debug level", func(c *Config) { c.Logging.Level = "debug" }, false},
		{"unknown level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "device:\n  backend: host\nlogging:\n  level: debug\n  console: false\n  file: $CLGRAY_TEST_DIR/out.log\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLGRAY_TEST_DIR", "/tmp/clgray")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Device.Backend != BackendHost || cfg.Logging.Level != "debug" || cfg.Logging.Console {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Logging.File != "/tmp/clgray/out.log" {
		t.Errorf("log file = %q", cfg.Logging.File)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("device:\n  backend: host\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLGRAY_DEVICE_BACKEND", "opencl")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device.Backend != BackendOpenCL {
		t.Errorf("backend = %q, want env override", cfg.Device.Backend)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("device:\n  backend: vulkan\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(viper.New(), path); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
