// Package config loads and validates the inspection station configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CameraConfig describes the capture devices.
type CameraConfig struct {
	PreviewDevice int  `yaml:"preview_device"` // V4L2 index for the live preview source
	CaptureDevice int  `yaml:"capture_device"` // dedicated high-res source; -1 = reuse preview
	PreviewWidth  int  `yaml:"preview_width"`
	PreviewHeight int  `yaml:"preview_height"`
	CaptureWidth  int  `yaml:"capture_width"`
	CaptureHeight int  `yaml:"capture_height"`
	FPS           int  `yaml:"fps"`
	FlipH         bool `yaml:"flip_h"`
	FlipV         bool `yaml:"flip_v"`
}

// CaptureConfig controls the multi-frame capture-and-average sequence.
type CaptureConfig struct {
	FrameCount    int    `yaml:"frame_count"`     // frames accumulated per sample
	Method        string `yaml:"method"`          // "mean" or "median"
	Equalize      bool   `yaml:"equalize"`        // histogram equalization on the averaged frame
	SmoothKernel  int    `yaml:"smooth_kernel"`   // Gaussian kernel size, 0 = off, must be odd
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // bounded wait per frame read
}

// MatchingConfig holds feature-matching registration parameters.
type MatchingConfig struct {
	MinMatches      int     `yaml:"min_matches"`      // below this, fall back to plain resize
	RatioTest       float64 `yaml:"ratio_test"`       // Lowe ratio for KNN match filtering
	RANSACThreshold float64 `yaml:"ransac_threshold"` // reprojection threshold in pixels
}

// ThresholdConfig holds the numeric pass/fail thresholds.
type ThresholdConfig struct {
	Difference float64 `yaml:"difference"`  // normalized gradient MAD, pass if <=
	Gradient   float64 `yaml:"gradient"`    // per-pixel gradient magnitude cutoff (0-255)
	PlateRatio float64 `yaml:"plate_ratio"` // high-gradient area ratio for plate presence
	ScrewRatio float64 `yaml:"screw_ratio"` // stricter edge-density ratio for the screw signal
}

// CircleConfig bounds the voting-based circle search.
type CircleConfig struct {
	DP        float64 `yaml:"dp"`
	MinDist   float64 `yaml:"min_dist"`
	Param1    float64 `yaml:"param1"`
	Param2    float64 `yaml:"param2"`
	MinRadius int     `yaml:"min_radius"`
	MaxRadius int     `yaml:"max_radius"`
}

// Config aggregates all station configuration.
type Config struct {
	Camera     CameraConfig    `yaml:"camera"`
	Capture    CaptureConfig   `yaml:"capture"`
	Matching   MatchingConfig  `yaml:"matching"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Circles    CircleConfig    `yaml:"circles"`
	OutputDir  string          `yaml:"output_dir"`
	LogLevel   string          `yaml:"log_level"`
}

// Default returns the built-in configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			PreviewDevice: 0,
			CaptureDevice: -1,
			PreviewWidth:  640,
			PreviewHeight: 480,
			CaptureWidth:  1280,
			CaptureHeight: 960,
			FPS:           15,
		},
		Capture: CaptureConfig{
			FrameCount:    5,
			Method:        "mean",
			ReadTimeoutMs: 2000,
		},
		Matching: MatchingConfig{
			MinMatches:      8,
			RatioTest:       0.75,
			RANSACThreshold: 5.0,
		},
		Thresholds: ThresholdConfig{
			Difference: 0.15,
			Gradient:   60,
			PlateRatio: 0.05,
			ScrewRatio: 0.12,
		},
		Circles: CircleConfig{
			DP:        1.2,
			MinDist:   20,
			Param1:    100,
			Param2:    30,
			MinRadius: 8,
			MaxRadius: 60,
		},
		OutputDir: "results",
		LogLevel:  "info",
	}
}

// Load reads a YAML file, fills in defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Camera.PreviewWidth <= 0 || c.Camera.PreviewHeight <= 0 {
		return fmt.Errorf("camera.preview resolution must be positive, got %dx%d",
			c.Camera.PreviewWidth, c.Camera.PreviewHeight)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be > 0, got %d", c.Camera.FPS)
	}
	if c.Capture.FrameCount < 1 {
		return fmt.Errorf("capture.frame_count must be >= 1, got %d", c.Capture.FrameCount)
	}
	if c.Capture.Method != "mean" && c.Capture.Method != "median" {
		return fmt.Errorf("capture.method must be \"mean\" or \"median\", got %q", c.Capture.Method)
	}
	if c.Capture.SmoothKernel < 0 || (c.Capture.SmoothKernel > 0 && c.Capture.SmoothKernel%2 == 0) {
		return fmt.Errorf("capture.smooth_kernel must be 0 or odd, got %d", c.Capture.SmoothKernel)
	}
	if c.Matching.MinMatches < 4 {
		return fmt.Errorf("matching.min_matches must be >= 4, got %d", c.Matching.MinMatches)
	}
	if c.Matching.RatioTest <= 0 || c.Matching.RatioTest >= 1 {
		return fmt.Errorf("matching.ratio_test must be in (0,1), got %.2f", c.Matching.RatioTest)
	}
	if c.Thresholds.Difference < 0 || c.Thresholds.Difference > 1 {
		return fmt.Errorf("thresholds.difference must be in [0,1], got %.2f", c.Thresholds.Difference)
	}
	if c.Circles.MinRadius <= 0 || c.Circles.MaxRadius < c.Circles.MinRadius {
		return fmt.Errorf("circles radius bounds invalid: min=%d max=%d",
			c.Circles.MinRadius, c.Circles.MaxRadius)
	}
	return nil
}

// PreviewInterval returns the delay between two live-preview reads.
func (c *Config) PreviewInterval() time.Duration {
	return time.Second / time.Duration(c.Camera.FPS)
}

// ReadTimeout returns the bounded wait applied to each frame read.
func (c *Config) ReadTimeout() time.Duration {
	if c.Capture.ReadTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Capture.ReadTimeoutMs) * time.Millisecond
}
