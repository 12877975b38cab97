// Command analyzetest runs one analysis pass on a saved image without
// the camera pipeline: load a current frame and a reference, evaluate,
// and print the per-component outcomes.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gocv.io/x/gocv"

	"line-inspector/internal/config"
	"line-inspector/internal/inspect"
	"line-inspector/internal/log"
	"line-inspector/internal/ocr"
	"line-inspector/internal/refstore"
	"line-inspector/pkg/geometry"
)

func main() {
	imagePath := flag.String("image", "", "Path to the frame to analyze")
	refPath := flag.String("reference", "", "Path to the reference image")
	maskPath := flag.String("mask", "", "Optional path to the comparison mask")
	mode := flag.String("mode", inspect.TagSingleSide, "single_side or multi_component")
	side := flag.String("side", "front", "Side tag for single_side mode")
	submode := flag.String("submode", "", "Submode for multi_component mode: top or bottom")
	roiSpec := flag.String("rois", "", "Comma-separated name=x:y:w:h ROI list, e.g. plate=100:120:400:200")
	withOCR := flag.Bool("ocr", false, "Enable the Tesseract text backend")
	outPath := flag.String("out", "", "Write the annotated frame here")
	flag.Parse()

	log.Init("info")

	if *imagePath == "" || *refPath == "" {
		fmt.Println("Usage: analyzetest -image <path> -reference <path> [-mode single_side|multi_component] ...")
		os.Exit(1)
	}

	frame := gocv.IMRead(*imagePath, gocv.IMReadColor)
	if frame.Empty() {
		fmt.Fprintf(os.Stderr, "Failed to read image %s\n", *imagePath)
		os.Exit(1)
	}
	defer frame.Close()

	key := *side
	if *mode == inspect.TagMultiComponent {
		key = *submode
	}

	store := refstore.New()
	defer store.Close()
	if err := store.LoadReference(key, *refPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *maskPath != "" {
		if err := store.LoadMask(key, *maskPath); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	engine := inspect.NewEngine(store, inspect.ParamsFromConfig(config.Default()))
	if *withOCR {
		td, err := ocr.NewEngine()
		if err != nil {
			fmt.Fprintf(os.Stderr, "OCR backend unavailable: %v\n", err)
		} else {
			defer td.Close()
			engine.SetTextDetector(td)
		}
	}

	rois, err := parseROIs(*roiSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse -rois: %v\n", err)
		os.Exit(1)
	}

	req := inspect.Request{Mode: *mode, Side: *side, Submode: *submode, ROIs: rois}
	res, err := engine.Process(frame, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analyze: %v\n", err)
		os.Exit(1)
	}
	defer res.Close()

	fmt.Printf("Verdict: %s\n", res.Verdict())
	fmt.Printf("Status:  %d (%s)\n", res.Status.Code, res.Status.Message)
	for name, outcome := range res.Results {
		state := "MISSING"
		if outcome == 1 {
			state = "OK"
		}
		fmt.Printf("  %-10s %d (%s)\n", name, outcome, state)
	}

	if *outPath != "" && !res.Annotated.Empty() {
		if ok := gocv.IMWrite(*outPath, res.Annotated); !ok {
			fmt.Fprintf(os.Stderr, "Failed to write %s\n", *outPath)
			os.Exit(1)
		}
		fmt.Printf("Annotated frame written to %s\n", *outPath)
	}
}

// parseROIs decodes "name=x:y:w:h,name=x:y:w:h" into named rectangles.
func parseROIs(spec string) (map[string]geometry.RectInt, error) {
	if spec == "" {
		return nil, nil
	}
	rois := make(map[string]geometry.RectInt)
	for _, part := range strings.Split(spec, ",") {
		name, coords, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("want name=x:y:w:h, got %q", part)
		}
		var r geometry.RectInt
		if _, err := fmt.Sscanf(coords, "%d:%d:%d:%d", &r.X, &r.Y, &r.Width, &r.Height); err != nil {
			return nil, fmt.Errorf("roi %q: %w", part, err)
		}
		if r.Empty() {
			return nil, fmt.Errorf("roi %q has no area", part)
		}
		rois[name] = r
	}
	return rois, nil
}
