package inspect

import (
	"fmt"

	"gocv.io/x/gocv"

	"line-inspector/pkg/geometry"
)

// Submode tags for the multi-component mode.
const (
	SubmodeTop    = "top"
	SubmodeBottom = "bottom"
)

// Component names evaluated by the submodes.
const (
	ComponentPlate     = "plate"
	ComponentScrew     = "screw"
	ComponentAntenna   = "antenna"
	ComponentCapacitor = "capacitor"
	ComponentSpeaker   = "speaker"
)

// MultiComponent evaluates named rectangular ROIs over the registered
// frame. The submode selects which component group runs.
type MultiComponent struct {
	Submode string
	ROIs    map[string]geometry.RectInt
}

// Name returns the mode tag.
func (m *MultiComponent) Name() string { return TagMultiComponent }

// Evaluate registers the sample against the submode's reference and
// dispatches to the component group. ROIs are cropped directly from the
// full registered frame; there is no mask restriction in this mode.
func (m *MultiComponent) Evaluate(e *Engine, frame gocv.Mat) (*Evaluation, error) {
	if m.Submode != SubmodeTop && m.Submode != SubmodeBottom {
		return nil, fmt.Errorf("unknown submode %q", m.Submode)
	}

	ref, ok := e.store.Reference(m.Submode)
	if !ok {
		return nil, fmt.Errorf("reference %q not loaded", m.Submode)
	}

	registered, _ := e.registerToReference(frame, ref)
	defer registered.Close()

	var results map[string]int
	var err error
	switch m.Submode {
	case SubmodeTop:
		results, err = m.evaluateTop(e, registered)
	case SubmodeBottom:
		results, err = m.evaluateBottom(e, registered)
	}
	if err != nil {
		return nil, err
	}

	annotated := annotateComponents(registered, m.ROIs, results)
	return &Evaluation{Results: results, Annotated: annotated}, nil
}

// cropROI cuts a named rectangle out of the registered frame. The crop
// is an owned copy, safe to process after the source is released.
func (m *MultiComponent) cropROI(frame gocv.Mat, name string) (gocv.Mat, error) {
	roi, ok := m.ROIs[name]
	if !ok {
		return gocv.Mat{}, fmt.Errorf("roi %q required for submode %q", name, m.Submode)
	}
	clamped := roi.Clamp(frame.Cols(), frame.Rows())
	if clamped.Empty() {
		return gocv.Mat{}, fmt.Errorf("roi %q (%d,%d %dx%d) lies outside the frame",
			name, roi.X, roi.Y, roi.Width, roi.Height)
	}
	region := frame.Region(clamped.ToImageRect())
	defer region.Close()
	return region.Clone(), nil
}

// evaluateTop checks the plate ROI by gradient presence. The screw
// outcome mirrors the plate outcome exactly; the top station has no
// independent screw signal.
func (m *MultiComponent) evaluateTop(e *Engine, frame gocv.Mat) (map[string]int, error) {
	crop, err := m.cropROI(frame, ComponentPlate)
	if err != nil {
		return nil, err
	}
	defer crop.Close()

	mag := gradientMagnitude(crop)
	defer mag.Close()

	plate := gradientPresence(mag, e.params.GradientThreshold) >= e.params.PlateRatio
	outcome := boolToOutcome(plate)
	return map[string]int{
		ComponentPlate: outcome,
		ComponentScrew: outcome,
	}, nil
}

// evaluateBottom checks up to four ROIs: antenna and capacitor by
// text presence, speaker by text or circle detection, and plate by
// gradient presence with a stricter edge-density check producing the
// independent screw signal. The plate ROI is required; the others are
// evaluated only when supplied.
func (m *MultiComponent) evaluateBottom(e *Engine, frame gocv.Mat) (map[string]int, error) {
	results := make(map[string]int)

	plateCrop, err := m.cropROI(frame, ComponentPlate)
	if err != nil {
		return nil, err
	}
	defer plateCrop.Close()

	mag := gradientMagnitude(plateCrop)
	defer mag.Close()
	plate := gradientPresence(mag, e.params.GradientThreshold) >= e.params.PlateRatio
	screw := plate && edgeDensity(plateCrop, e.params.GradientThreshold) >= e.params.ScrewRatio
	results[ComponentPlate] = boolToOutcome(plate)
	results[ComponentScrew] = boolToOutcome(screw)

	for _, name := range []string{ComponentAntenna, ComponentCapacitor} {
		if _, ok := m.ROIs[name]; !ok {
			continue
		}
		crop, err := m.cropROI(frame, name)
		if err != nil {
			return nil, err
		}
		found, terr := e.textPresence(crop)
		crop.Close()
		if terr != nil {
			return nil, terr
		}
		results[name] = boolToOutcome(found)
	}

	if _, ok := m.ROIs[ComponentSpeaker]; ok {
		crop, err := m.cropROI(frame, ComponentSpeaker)
		if err != nil {
			return nil, err
		}
		found, terr := e.textPresence(crop)
		if terr != nil {
			crop.Close()
			return nil, terr
		}
		if !found {
			found = len(detectCircles(crop, e.params.Circles)) > 0
		}
		crop.Close()
		results[ComponentSpeaker] = boolToOutcome(found)
	}

	return results, nil
}
