package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"tracebycolor/color2svg"
	"tracebycolor/image2color"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
colors = 4
palette_method = "kmeans"
skip_white = false
fuzz = 8.5
blur = 2.0
distance = "lab"
partition = true
backend = "potrace"
potrace_path = "/opt/bin/potrace"
alpha_max = 1.0
timeout = "5s"
`)
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	want := DefaultConfig()
	want.Colors = 4
	want.PaletteMethod = "kmeans"
	want.SkipWhite = false
	want.Fuzz = 8.5
	want.Blur = 2.0
	want.Distance = "lab"
	want.Partition = true
	want.Backend = "potrace"
	want.PotracePath = "/opt/bin/potrace"
	want.AlphaMax = 1.0
	want.Timeout = 5 * time.Second
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	if got := got.paletteOptions(); got.Method != image2color.KMeans || got.MaxColors != 4 || got.SkipWhite {
		t.Errorf("paletteOptions() = %+v", got)
	}
	if got := got.maskOptions(); got.Distance != image2color.DistanceLab || got.Fuzz != 8.5 {
		t.Errorf("maskOptions() = %+v", got)
	}
	if got := got.vectorizerOptions(); got != (color2svg.Options{TurdSize: 8, AlphaMax: 1.0, OptTolerance: 0.5}) {
		t.Errorf("vectorizerOptions() = %+v", got)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "colours = 3\n", "unknown keys: colours"},
		{"bad syntax", "colors = = 3\n", "load config"},
		{"bad type", "colors = \"many\"\n", "load config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadConfig(missing) should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"colors", func(c *Config) { c.Colors = 0 }, "colors"},
		{"fuzz high", func(c *Config) { c.Fuzz = 101 }, "fuzz"},
		{"fuzz low", func(c *Config) { c.Fuzz = -1 }, "fuzz"},
		{"blur", func(c *Config) { c.Blur = -0.5 }, "blur"},
		{"turd size", func(c *Config) { c.TurdSize = -1 }, "turd_size"},
		{"parallel", func(c *Config) { c.Parallel = 0 }, "parallel"},
		{"timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"method", func(c *Config) { c.PaletteMethod = "octree" }, "palette method"},
		{"distance", func(c *Config) { c.Distance = "hsv" }, "distance"},
		{"backend", func(c *Config) { c.Backend = "vtracer" }, "backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
