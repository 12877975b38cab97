// Package result assembles inspection outcomes and persists the
// artifact files consumed by external tooling.
package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// Verdict values reported in the results artifact.
const (
	VerdictPass  = "PASS"
	VerdictFail  = "FAIL"
	VerdictError = "ERROR"
)

// Status describes whether the analysis pipeline executed. Code 0 means
// "the pipeline ran"; individual component failures do not change it.
type Status struct {
	Code    int    `json:"status_code"`
	Message string `json:"message"`
}

// OK returns the status of a completed pipeline run.
func OK() Status {
	return Status{Code: 0, Message: "ok"}
}

// Errorf returns a code-1 status with a formatted message.
func Errorf(format string, args ...any) Status {
	return Status{Code: 1, Message: fmt.Sprintf(format, args...)}
}

// InspectionResult is the full outcome of one analyze call. Ownership of
// the Mats passes to the caller; Close releases them.
type InspectionResult struct {
	Original  gocv.Mat
	Annotated gocv.Mat
	Status    Status
	Results   map[string]int
	Timestamp time.Time
}

// Verdict reduces the result to PASS, FAIL, or ERROR. A pipeline error
// dominates; otherwise any failed component makes the whole sample FAIL.
func (r *InspectionResult) Verdict() string {
	if r.Status.Code != 0 {
		return VerdictError
	}
	for _, v := range r.Results {
		if v == 0 {
			return VerdictFail
		}
	}
	return VerdictPass
}

// Close releases the retained frames. Safe on a zero-valued result.
func (r *InspectionResult) Close() {
	if !r.Original.Empty() {
		r.Original.Close()
	}
	if !r.Annotated.Empty() {
		r.Annotated.Close()
	}
}

// AveragedName is the fixed filename the latest averaged sample is
// written to, alongside its timestamped copy.
const AveragedName = "averaged_capture.jpg"

const timestampLayout = "20060102_150405"

// WriteAveraged persists an averaged sample to the fixed path and a
// timestamped path inside dir. Returns the timestamped path.
func WriteAveraged(dir string, frame gocv.Mat, ts time.Time) (string, error) {
	if frame.Empty() {
		return "", fmt.Errorf("write averaged: empty frame")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	fixed := filepath.Join(dir, AveragedName)
	if ok := gocv.IMWrite(fixed, frame); !ok {
		return "", fmt.Errorf("write %s failed", fixed)
	}

	stamped := filepath.Join(dir, fmt.Sprintf("averaged_capture_%s.jpg", ts.Format(timestampLayout)))
	if ok := gocv.IMWrite(stamped, frame); !ok {
		return "", fmt.Errorf("write %s failed", stamped)
	}
	return stamped, nil
}

// artifact is the on-disk schema of the results JSON.
type artifact struct {
	Timestamp string         `json:"timestamp"`
	Result    string         `json:"result"`
	Status    Status         `json:"status"`
	Results   map[string]int `json:"results"`
}

// WriteFailure persists the three failure artifacts (original frame,
// annotated frame, results JSON) and returns their paths. Frames that
// are empty (e.g. no annotation on a pipeline error) are skipped.
func WriteFailure(dir string, res *InspectionResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	ts := res.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.Format(timestampLayout)

	var written []string
	if !res.Original.Empty() {
		p := filepath.Join(dir, fmt.Sprintf("fail_%s_original.jpg", stamp))
		if ok := gocv.IMWrite(p, res.Original); !ok {
			return written, fmt.Errorf("write %s failed", p)
		}
		written = append(written, p)
	}
	if !res.Annotated.Empty() {
		p := filepath.Join(dir, fmt.Sprintf("fail_%s_annotated.jpg", stamp))
		if ok := gocv.IMWrite(p, res.Annotated); !ok {
			return written, fmt.Errorf("write %s failed", p)
		}
		written = append(written, p)
	}

	results := res.Results
	if results == nil {
		results = map[string]int{}
	}
	doc := artifact{
		Timestamp: stamp,
		Result:    res.Verdict(),
		Status:    res.Status,
		Results:   results,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return written, fmt.Errorf("marshal results: %w", err)
	}
	p := filepath.Join(dir, fmt.Sprintf("fail_%s_results.json", stamp))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return written, fmt.Errorf("write %s: %w", p, err)
	}
	written = append(written, p)
	return written, nil
}
