package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"line-inspector/internal/config"
	"line-inspector/internal/log"
	"line-inspector/internal/result"
)

// State enumerates the capture pipeline states. Exactly one state is
// active at a time; all transitions go through the controller.
type State int

const (
	StateStopped State = iota
	StateStreaming
	StateFreezing
	StateCaptured
	StateAnalyzing
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStreaming:
		return "STREAMING"
	case StateFreezing:
		return "FREEZING"
	case StateCaptured:
		return "CAPTURED"
	case StateAnalyzing:
		return "ANALYZING"
	case StateError:
		return "ERROR"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// captureTick is the fixed cadence of the capture-and-average sequence.
const captureTick = 100 * time.Millisecond

// Analyzer consumes an averaged frame and produces a structured result.
// The inspection engine bound to a request satisfies this.
type Analyzer interface {
	Process(frame gocv.Mat) (*result.InspectionResult, error)
}

// Stats reports acquisition counters.
type Stats struct {
	FramesRead      int64
	FramesDropped   int64
	LastReadLatency time.Duration
}

// Controller owns the capture state machine: a periodic preview read, a
// separate fixed-cadence capture sequence, and synchronous analysis on
// the averaged sample. It is the sole mutator of its frame buffers.
type Controller struct {
	cfg *config.Config

	mu          sync.Mutex
	state       State
	preview     Source
	capSrc      Source // dedicated capture-resolution source; nil = reuse preview
	frames      []gocv.Mat
	averaged    gocv.Mat
	hasAveraged bool
	lastResult  *result.InspectionResult
	stats       Stats

	// readMu serializes reads when preview and capture share one source.
	readMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error

	// OnFrame, when set, receives each live-preview frame. The Mat is
	// only valid for the duration of the call.
	OnFrame func(frame gocv.Mat)

	// Source factories, replaceable in tests.
	newPreview func() Source
	newCapture func() Source // may return nil to reuse the preview source
}

// NewController creates a controller in the STOPPED state.
func NewController(cfg *config.Config) *Controller {
	c := &Controller{
		cfg:   cfg,
		state: StateStopped,
		errs:  make(chan error, 4),
	}
	c.newPreview = func() Source {
		return NewDeviceSource(cfg.Camera.PreviewDevice,
			cfg.Camera.PreviewWidth, cfg.Camera.PreviewHeight, cfg.Camera.FPS)
	}
	c.newCapture = func() Source {
		if cfg.Camera.CaptureDevice < 0 {
			return nil
		}
		return NewDeviceSource(cfg.Camera.CaptureDevice,
			cfg.Camera.CaptureWidth, cfg.Camera.CaptureHeight, 0)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns acquisition counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Errors exposes hard failures (device loss, read timeouts during a
// capture sequence). The channel is buffered; stale errors are dropped.
func (c *Controller) Errors() <-chan error {
	return c.errs
}

// LastResult returns the most recent analysis result, or nil. The
// caller that ran Analyze owns the result; this is an inspection cache.
func (c *Controller) LastResult() *result.InspectionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// AveragedFrame returns a copy of the current averaged sample.
func (c *Controller) AveragedFrame() (gocv.Mat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasAveraged {
		return gocv.Mat{}, false
	}
	return c.averaged.Clone(), true
}

// StartStreaming opens the preview source and begins the periodic
// preview read. An unreachable device falls back to the simulation
// backend; the fallback is a feature, not an error.
func (c *Controller) StartStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStopped {
		return fmt.Errorf("%w: start_streaming from %s", ErrInvalidState, c.state)
	}

	src := c.newPreview()
	if err := src.Open(); err != nil {
		log.Warn("preview device unavailable, using simulated source",
			"source", src.ID(), "err", err)
		src = NewSimulatedSource(c.cfg.Camera.PreviewWidth, c.cfg.Camera.PreviewHeight)
		if err := src.Open(); err != nil {
			// The simulation cannot fail to open; keep the contract anyway.
			return fmt.Errorf("open simulated source: %w", err)
		}
	}
	c.preview = src
	c.setStateLocked(StateStreaming)

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go c.previewLoop(c.ctx)
	return nil
}

// previewLoop drives the live preview at the configured frame rate.
// It keeps ticking across capture/analyze phases and only reads while
// the controller is actually streaming.
func (c *Controller) previewLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PreviewInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if c.State() != StateStreaming {
			continue
		}

		c.readMu.Lock()
		start := time.Now()
		mat, ok := readWithTimeout(c.preview, c.cfg.ReadTimeout())
		c.readMu.Unlock()

		c.mu.Lock()
		c.stats.LastReadLatency = time.Since(start)
		if ok {
			c.stats.FramesRead++
		} else {
			c.stats.FramesDropped++
		}
		cb := c.OnFrame
		c.mu.Unlock()

		if !ok {
			log.Debug("preview read dropped")
			continue
		}
		if cb != nil {
			cb(mat)
		}
		mat.Close()
	}
}

// TriggerCapture starts the multi-frame capture sequence. Valid only
// while streaming. A dedicated capture-resolution source is opened when
// configured; if it cannot be opened the preview source is reused.
func (c *Controller) TriggerCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStreaming {
		return fmt.Errorf("%w: trigger_capture from %s", ErrInvalidState, c.state)
	}

	c.clearSessionLocked()
	c.setStateLocked(StateFreezing)

	if src := c.newCapture(); src != nil {
		if err := src.Open(); err != nil {
			log.Warn("capture device unavailable, reusing preview source", "err", err)
		} else {
			c.capSrc = src
		}
	}

	c.wg.Add(1)
	go c.captureLoop(c.ctx)
	return nil
}

// captureLoop reads one frame per 100ms tick into the session buffer
// and finalizes once the configured frame count is reached. A failed or
// timed-out read aborts the sequence into the ERROR state.
func (c *Controller) captureLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(captureTick)
	defer ticker.Stop()

	target := c.cfg.Capture.FrameCount
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if c.State() != StateFreezing {
			return
		}

		src, shared := c.captureSource()
		if shared {
			c.readMu.Lock()
		}
		mat, ok := readWithTimeout(src, c.cfg.ReadTimeout())
		if shared {
			c.readMu.Unlock()
		}
		if !ok {
			c.fail(fmt.Errorf("%w: capture sequence read on %s", ErrReadFailed, src.ID()))
			return
		}

		c.applyFlips(&mat)

		c.mu.Lock()
		c.stats.FramesRead++
		c.frames = append(c.frames, mat)
		done := len(c.frames) >= target
		c.mu.Unlock()

		if done {
			if err := c.finalize(); err != nil {
				c.fail(err)
			}
			return
		}
	}
}

// captureSource returns the source the capture sequence reads from and
// whether it is shared with the preview loop.
func (c *Controller) captureSource() (Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capSrc != nil {
		return c.capSrc, false
	}
	return c.preview, true
}

// applyFlips applies the configured per-frame transforms in place.
func (c *Controller) applyFlips(mat *gocv.Mat) {
	switch {
	case c.cfg.Camera.FlipH && c.cfg.Camera.FlipV:
		gocv.Flip(*mat, mat, -1)
	case c.cfg.Camera.FlipH:
		gocv.Flip(*mat, mat, 1)
	case c.cfg.Camera.FlipV:
		gocv.Flip(*mat, mat, 0)
	}
}

// finalize combines the session buffer into the averaged sample,
// applies the configured post-processing, persists it, and releases the
// dedicated capture source.
func (c *Controller) finalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.frames) == 0 {
		return ErrNoFrames
	}

	avg, err := Average(c.frames, c.cfg.Capture.Method)
	if err != nil {
		return fmt.Errorf("average capture session: %w", err)
	}

	if c.cfg.Capture.Equalize {
		eq := equalizeChannels(avg)
		avg.Close()
		avg = eq
	}
	if k := c.cfg.Capture.SmoothKernel; k > 0 {
		sm := smoothFrame(avg, k)
		avg.Close()
		avg = sm
	}

	if path, err := result.WriteAveraged(c.cfg.OutputDir, avg, time.Now()); err != nil {
		log.Warn("persist averaged sample failed", "err", err)
	} else {
		log.Debug("averaged sample written", "path", path)
	}

	if c.capSrc != nil {
		if err := c.capSrc.Release(); err != nil {
			log.Warn("release capture source", "err", err)
		}
		c.capSrc = nil
	}

	c.closeFramesLocked()
	if c.hasAveraged {
		c.averaged.Close()
	}
	c.averaged = avg
	c.hasAveraged = true
	c.setStateLocked(StateCaptured)
	return nil
}

// Analyze runs the analyzer synchronously on the averaged sample.
// Valid only from CAPTURED; on success the controller returns to
// CAPTURED ready for another cycle. A FAIL verdict persists the failure
// artifacts as a side effect.
func (c *Controller) Analyze(a Analyzer) (*result.InspectionResult, error) {
	c.mu.Lock()
	if c.state != StateCaptured {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: analyze from %s", ErrInvalidState, c.state)
	}
	if !c.hasAveraged {
		c.mu.Unlock()
		return nil, ErrNoAveragedFrame
	}
	c.setStateLocked(StateAnalyzing)
	// Own copy: ResumeStreaming and Stop stay legal while the analyzer
	// runs and both release the session's averaged buffer.
	frame := c.averaged.Clone()
	c.mu.Unlock()

	res, err := a.Process(frame)
	frame.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.setStateLocked(StateError)
		c.reportError(fmt.Errorf("analyze: %w", err))
		return nil, err
	}
	if c.state == StateAnalyzing {
		c.setStateLocked(StateCaptured)
	}
	c.lastResult = res

	if res.Verdict() != result.VerdictPass {
		if paths, werr := result.WriteFailure(c.cfg.OutputDir, res); werr != nil {
			log.Warn("persist failure artifacts", "err", werr)
		} else {
			log.Info("failure artifacts written", "paths", paths)
		}
	}
	return res, nil
}

// ResumeStreaming discards the averaged sample and returns to live
// preview. Valid from CAPTURED or ANALYZING.
func (c *Controller) ResumeStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCaptured && c.state != StateAnalyzing {
		return fmt.Errorf("%w: resume_streaming from %s", ErrInvalidState, c.state)
	}
	c.clearSessionLocked()
	c.setStateLocked(StateStreaming)
	return nil
}

// Stop releases every source and buffer and transitions to STOPPED from
// any state. It is idempotent and never fails; internal release errors
// are logged only.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capSrc != nil {
		if err := c.capSrc.Release(); err != nil {
			log.Warn("release capture source", "err", err)
		}
		c.capSrc = nil
	}
	if c.preview != nil {
		if err := c.preview.Release(); err != nil {
			log.Warn("release preview source", "err", err)
		}
		c.preview = nil
	}
	c.clearSessionLocked()
	c.setStateLocked(StateStopped)
}

// clearSessionLocked drops the frame buffer and the averaged sample.
func (c *Controller) clearSessionLocked() {
	c.closeFramesLocked()
	if c.hasAveraged {
		c.averaged.Close()
		c.hasAveraged = false
	}
}

func (c *Controller) closeFramesLocked() {
	for i := range c.frames {
		c.frames[i].Close()
	}
	c.frames = c.frames[:0]
}

func (c *Controller) setStateLocked(next State) {
	if c.state != next {
		log.Debug("state transition", "from", c.state.String(), "to", next.String())
	}
	c.state = next
}

// fail transitions to ERROR and reports the cause on the error channel.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.setStateLocked(StateError)
	c.mu.Unlock()
	c.reportError(err)
}

func (c *Controller) reportError(err error) {
	log.Error("capture failure", "err", err)
	select {
	case c.errs <- err:
	default:
	}
}
