package inspect

import (
	"fmt"

	"gocv.io/x/gocv"
)

// SingleSide compares the whole registered frame against one reference
// and optional mask, keyed by side.
type SingleSide struct {
	Side string
}

// Name returns the mode tag.
func (m *SingleSide) Name() string { return TagSingleSide }

// Evaluate registers the sample, compares gradient maps restricted to
// the side's mask when one exists, and annotates the outcome.
func (m *SingleSide) Evaluate(e *Engine, frame gocv.Mat) (*Evaluation, error) {
	ref, ok := e.store.Reference(m.Side)
	if !ok {
		return nil, fmt.Errorf("reference %q not loaded", m.Side)
	}

	mask, hasMask := e.store.Mask(m.Side)
	if hasMask && (mask.Rows() != ref.Rows() || mask.Cols() != ref.Cols()) {
		return nil, fmt.Errorf("mask %q is %dx%d but reference is %dx%d",
			m.Side, mask.Cols(), mask.Rows(), ref.Cols(), ref.Rows())
	}

	registered, _ := e.registerToReference(frame, ref)
	defer registered.Close()

	gradRef := gradientMagnitude(ref)
	defer gradRef.Close()
	gradCur := gradientMagnitude(registered)
	defer gradCur.Close()

	var maskArg gocv.Mat
	if hasMask {
		maskArg = mask
	}
	diff := maskedMeanAbsDiff(gradRef, gradCur, maskArg)
	pass := diff <= e.params.DiffThreshold

	annotated := annotateSingleSide(registered, gradRef, gradCur, maskArg, m.Side, pass)

	return &Evaluation{
		Results:   map[string]int{m.Side: boolToOutcome(pass)},
		Annotated: annotated,
	}, nil
}
