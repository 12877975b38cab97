// Command capturetest exercises the camera pipeline without analysis:
// stream, trigger a capture sequence, and report where the averaged
// sample landed. Useful when bringing up a new station.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"line-inspector/internal/capture"
	"line-inspector/internal/config"
	"line-inspector/internal/log"
	"line-inspector/internal/result"
)

func main() {
	configPath := flag.String("config", "", "Path to station YAML config (default: built-in)")
	frames := flag.Int("frames", 0, "Override frames per capture (0 = config value)")
	method := flag.String("method", "", "Override averaging method: mean or median")
	simulate := flag.Bool("simulate", false, "Force the simulated source even if a camera exists")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *frames > 0 {
		cfg.Capture.FrameCount = *frames
	}
	if *method != "" {
		cfg.Capture.Method = *method
	}
	if *simulate {
		cfg.Camera.PreviewDevice = -1
		cfg.Camera.CaptureDevice = -1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	fmt.Printf("Capture settings:\n")
	fmt.Printf("  Preview device: %d (capture %d)\n", cfg.Camera.PreviewDevice, cfg.Camera.CaptureDevice)
	fmt.Printf("  Frames: %d, method: %s\n", cfg.Capture.FrameCount, cfg.Capture.Method)
	fmt.Printf("  Output dir: %s\n", cfg.OutputDir)

	ctrl := capture.NewController(cfg)
	defer ctrl.Stop()

	if err := ctrl.StartStreaming(); err != nil {
		fmt.Fprintf(os.Stderr, "Start streaming: %v\n", err)
		os.Exit(1)
	}
	time.Sleep(3 * cfg.PreviewInterval())

	start := time.Now()
	if err := ctrl.TriggerCapture(); err != nil {
		fmt.Fprintf(os.Stderr, "Trigger capture: %v\n", err)
		os.Exit(1)
	}

	deadline := time.Now().Add(15 * time.Second)
	for ctrl.State() != capture.StateCaptured {
		if ctrl.State() == capture.StateError {
			select {
			case err := <-ctrl.Errors():
				fmt.Fprintf(os.Stderr, "Capture failed: %v\n", err)
			default:
				fmt.Fprintln(os.Stderr, "Capture failed")
			}
			os.Exit(1)
		}
		if time.Now().After(deadline) {
			fmt.Fprintln(os.Stderr, "Timed out waiting for capture")
			os.Exit(1)
		}
		time.Sleep(20 * time.Millisecond)
	}

	stats := ctrl.Stats()
	fmt.Printf("\nCapture sequence done in %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Frames read: %d, dropped: %d\n", stats.FramesRead, stats.FramesDropped)
	fmt.Printf("  Last read latency: %v\n", stats.LastReadLatency.Round(time.Millisecond))
	fmt.Printf("  Averaged sample: %s\n", filepath.Join(cfg.OutputDir, result.AveragedName))
}
