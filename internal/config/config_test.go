package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 5, cfg.Capture.FrameCount)
	require.Equal(t, "mean", cfg.Capture.Method)
	require.Equal(t, 8, cfg.Matching.MinMatches)
	require.InDelta(t, 0.15, cfg.Thresholds.Difference, 1e-9)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.yaml")
	data := []byte(`
camera:
  preview_width: 800
  preview_height: 600
  fps: 10
capture:
  frame_count: 3
  method: median
thresholds:
  difference: 0.2
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 800, cfg.Camera.PreviewWidth)
	require.Equal(t, 3, cfg.Capture.FrameCount)
	require.Equal(t, "median", cfg.Capture.Method)
	require.InDelta(t, 0.2, cfg.Thresholds.Difference, 1e-9)
	// untouched sections keep defaults
	require.Equal(t, 8, cfg.Matching.MinMatches)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }},
		{"zero frames", func(c *Config) { c.Capture.FrameCount = 0 }},
		{"bad method", func(c *Config) { c.Capture.Method = "mode" }},
		{"even smooth kernel", func(c *Config) { c.Capture.SmoothKernel = 4 }},
		{"min matches too low", func(c *Config) { c.Matching.MinMatches = 2 }},
		{"ratio out of range", func(c *Config) { c.Matching.RatioTest = 1.5 }},
		{"difference above one", func(c *Config) { c.Thresholds.Difference = 1.5 }},
		{"inverted radius bounds", func(c *Config) { c.Circles.MinRadius = 50; c.Circles.MaxRadius = 10 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
