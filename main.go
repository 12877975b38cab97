// Command line-inspector runs the production-line inspection pipeline
// headless: it opens the camera (or the simulation fallback), runs one
// capture-and-average cycle, analyzes the sample against a reference,
// and reports the verdict.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"line-inspector/internal/capture"
	"line-inspector/internal/config"
	"line-inspector/internal/inspect"
	"line-inspector/internal/log"
	"line-inspector/internal/ocr"
	"line-inspector/internal/refstore"
	"line-inspector/internal/result"
	"line-inspector/internal/version"
	"line-inspector/pkg/geometry"
)

func main() {
	// .env provides station-local overrides without editing the config
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to station YAML config (default: built-in)")
	mode := flag.String("mode", inspect.TagSingleSide, "Inspection mode: single_side or multi_component")
	side := flag.String("side", "front", "Side tag for single_side mode")
	submode := flag.String("submode", "", "Submode for multi_component mode: top or bottom")
	refPath := flag.String("reference", "", "Path to the reference image (required)")
	maskPath := flag.String("mask", "", "Optional path to the binary comparison mask")
	plateROI := flag.String("plate-roi", "", "Plate ROI as x,y,w,h in reference coordinates")
	withOCR := flag.Bool("ocr", false, "Enable the Tesseract text-presence backend")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("line-inspector %s (%s, built %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal("load config: %v", err)
		}
		cfg = loaded
	}
	applyEnvOverrides(cfg)
	log.Init(cfg.LogLevel)

	if *refPath == "" {
		fatal("a reference image is required (-reference)")
	}

	key := *side
	if *mode == inspect.TagMultiComponent {
		key = *submode
	}

	store := refstore.New()
	defer store.Close()
	if err := store.LoadReference(key, *refPath); err != nil {
		fatal("%v", err)
	}
	if *maskPath != "" {
		if err := store.LoadMask(key, *maskPath); err != nil {
			fatal("%v", err)
		}
	}

	engine := inspect.NewEngine(store, inspect.ParamsFromConfig(cfg))
	if *withOCR {
		td, err := ocr.NewEngine()
		if err != nil {
			log.Warn("OCR backend unavailable, text checks fail closed", "err", err)
		} else {
			defer td.Close()
			engine.SetTextDetector(td)
		}
	}

	req := inspect.Request{Mode: *mode, Side: *side, Submode: *submode}
	if *plateROI != "" {
		roi, err := parseROI(*plateROI)
		if err != nil {
			fatal("parse -plate-roi: %v", err)
		}
		req.ROIs = map[string]geometry.RectInt{inspect.ComponentPlate: roi}
	}

	ctrl := capture.NewController(cfg)
	defer ctrl.Stop()

	if err := ctrl.StartStreaming(); err != nil {
		fatal("start streaming: %v", err)
	}
	// Let the preview settle before freezing
	time.Sleep(3 * cfg.PreviewInterval())

	if err := ctrl.TriggerCapture(); err != nil {
		fatal("trigger capture: %v", err)
	}
	if err := waitForCaptured(ctrl, 15*time.Second); err != nil {
		fatal("capture sequence: %v", err)
	}

	res, err := ctrl.Analyze(engine.Bind(req))
	if err != nil {
		fatal("analyze: %v", err)
	}
	defer res.Close()

	fmt.Printf("Verdict: %s\n", res.Verdict())
	fmt.Printf("Status:  %d (%s)\n", res.Status.Code, res.Status.Message)
	for name, outcome := range res.Results {
		fmt.Printf("  %-10s %d\n", name, outcome)
	}

	if res.Verdict() != result.VerdictPass {
		os.Exit(1)
	}
}

// applyEnvOverrides maps INSPECTOR_* environment variables (typically
// loaded from .env) onto the configuration.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("INSPECTOR_PREVIEW_DEVICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Camera.PreviewDevice = n
		}
	}
	if v := os.Getenv("INSPECTOR_CAPTURE_DEVICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Camera.CaptureDevice = n
		}
	}
	if v := os.Getenv("INSPECTOR_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("INSPECTOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// waitForCaptured polls until the capture sequence finalizes, fails, or
// the deadline passes.
func waitForCaptured(ctrl *capture.Controller, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		switch ctrl.State() {
		case capture.StateCaptured:
			return nil
		case capture.StateError:
			select {
			case err := <-ctrl.Errors():
				return err
			default:
				return errors.New("capture failed")
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return errors.New("timed out waiting for capture")
}

func parseROI(s string) (geometry.RectInt, error) {
	var r geometry.RectInt
	if _, err := fmt.Sscanf(s, "%d,%d,%d,%d", &r.X, &r.Y, &r.Width, &r.Height); err != nil {
		return geometry.RectInt{}, fmt.Errorf("want x,y,w,h, got %q", s)
	}
	if r.Empty() {
		return geometry.RectInt{}, fmt.Errorf("roi %q has no area", s)
	}
	return r, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
