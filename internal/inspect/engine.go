package inspect

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"line-inspector/internal/refstore"
	"line-inspector/internal/result"
	"line-inspector/pkg/geometry"
)

// TextDetector reports whether readable text is present in an image
// region. It is an optional capability: an engine constructed without
// one treats every text check as "absent" (fail-closed).
type TextDetector interface {
	Detect(region gocv.Mat) (found bool, text string, err error)
}

// Engine runs the analysis pipeline on averaged samples. Each engine
// owns an injected reference store; nothing is shared process-wide, so
// multiple engines can run side by side.
type Engine struct {
	store  *refstore.Store
	text   TextDetector
	params Params
}

// NewEngine creates an engine over the given reference store.
func NewEngine(store *refstore.Store, params Params) *Engine {
	return &Engine{store: store, params: params}
}

// SetTextDetector injects the optional text-recognition backend. A nil
// detector is valid and means text checks always report absent.
func (e *Engine) SetTextDetector(td TextDetector) {
	e.text = td
}

// Mode tags accepted by Process.
const (
	TagSingleSide     = "single_side"
	TagMultiComponent = "multi_component"
)

// Request selects the inspection variant and its identifiers. All
// fields are supplied by the caller, never inferred.
type Request struct {
	Mode    string
	Side    string                      // single-side: reference/mask key
	Submode string                      // multi-component: "top" or "bottom"
	ROIs    map[string]geometry.RectInt // multi-component: reference-space rectangles
}

// Evaluation is the contract every mode variant fulfills: component
// outcomes plus the annotated frame. The caller owns the Mat.
type Evaluation struct {
	Results   map[string]int
	Annotated gocv.Mat
}

// Mode is the strategy interface behind the string-tag dispatch.
type Mode interface {
	Name() string
	Evaluate(e *Engine, frame gocv.Mat) (*Evaluation, error)
}

// ModeFor resolves a request into a concrete mode variant.
func (e *Engine) ModeFor(req Request) (Mode, error) {
	switch req.Mode {
	case TagSingleSide:
		if req.Side == "" {
			return nil, errors.New("single-side request missing side")
		}
		return &SingleSide{Side: req.Side}, nil
	case TagMultiComponent:
		if req.Submode == "" {
			return nil, errors.New("multi-component request missing submode")
		}
		return &MultiComponent{Submode: req.Submode, ROIs: req.ROIs}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}
}

// Process runs one analysis. Expected failures (unknown mode, missing
// reference or ROI, detector errors) come back as a code-1 status on
// the result, never as an error; status code 0 means the pipeline
// executed regardless of component outcomes. The returned result is
// owned by the caller.
func (e *Engine) Process(frame gocv.Mat, req Request) (*result.InspectionResult, error) {
	if frame.Empty() {
		return nil, errors.New("empty input frame")
	}

	res := &result.InspectionResult{
		Original:  frame.Clone(),
		Results:   map[string]int{},
		Timestamp: time.Now(),
	}

	mode, err := e.ModeFor(req)
	if err != nil {
		res.Status = result.Errorf("%v", err)
		return res, nil
	}

	eval, err := mode.Evaluate(e, frame)
	if err != nil {
		res.Status = result.Errorf("%s: %v", mode.Name(), err)
		return res, nil
	}

	res.Status = result.OK()
	res.Results = eval.Results
	res.Annotated = eval.Annotated
	return res, nil
}

// Bound ties an engine to a fixed request so the capture controller can
// run analysis without knowing mode details.
type Bound struct {
	engine *Engine
	req    Request
}

// Bind returns the engine bound to req.
func (e *Engine) Bind(req Request) *Bound {
	return &Bound{engine: e, req: req}
}

// Process implements the analyzer contract of the capture controller.
func (b *Bound) Process(frame gocv.Mat) (*result.InspectionResult, error) {
	return b.engine.Process(frame, b.req)
}

// textPresence runs the optional text detector on a region. Without a
// backend the answer is always false: the check fails closed rather
// than substituting a heuristic.
func (e *Engine) textPresence(region gocv.Mat) (bool, error) {
	if e.text == nil {
		return false, nil
	}
	found, _, err := e.text.Detect(region)
	if err != nil {
		return false, fmt.Errorf("text detection: %w", err)
	}
	return found, nil
}

func boolToOutcome(pass bool) int {
	if pass {
		return 1
	}
	return 0
}
