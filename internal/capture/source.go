// Package capture acquires camera frames and drives the
// capture-and-average state machine that feeds the inspection engine.
package capture

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Source is the capture-device boundary. A physical camera and the
// simulation backend implement the identical contract.
type Source interface {
	// Open acquires the device. It must be called before Read.
	Open() error
	// Read grabs one frame into dst. Returns false on failure.
	Read(dst *gocv.Mat) bool
	// Release frees the device handle. Safe to call when not open.
	Release() error
	// ID identifies the source in logs ("device:0", "simulated").
	ID() string
}

// DeviceSource reads frames from a V4L2 camera through gocv.
type DeviceSource struct {
	device int
	width  int
	height int
	fps    int

	vc *gocv.VideoCapture
}

// NewDeviceSource creates a source for the given device index. The
// requested resolution and frame rate are applied on Open; the driver
// may substitute the nearest supported values.
func NewDeviceSource(device, width, height, fps int) *DeviceSource {
	return &DeviceSource{device: device, width: width, height: height, fps: fps}
}

// Open acquires the camera and applies the requested capture properties.
func (s *DeviceSource) Open() error {
	vc, err := gocv.OpenVideoCapture(s.device)
	if err != nil {
		return fmt.Errorf("open device %d: %w", s.device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(s.width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(s.height))
	if s.fps > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(s.fps))
	}
	s.vc = vc
	return nil
}

// Read grabs one frame from the device.
func (s *DeviceSource) Read(dst *gocv.Mat) bool {
	if s.vc == nil {
		return false
	}
	return s.vc.Read(dst) && !dst.Empty()
}

// Release closes the camera handle.
func (s *DeviceSource) Release() error {
	if s.vc == nil {
		return nil
	}
	err := s.vc.Close()
	s.vc = nil
	return err
}

// ID returns the device identifier.
func (s *DeviceSource) ID() string {
	return fmt.Sprintf("device:%d", s.device)
}

// readWithTimeout performs a single bounded read. The device API has no
// read deadline of its own, so the read runs in a goroutine and the
// caller abandons it after the timeout; an abandoned read releases its
// frame when it eventually returns.
func readWithTimeout(src Source, timeout time.Duration) (gocv.Mat, bool) {
	type readResult struct {
		mat gocv.Mat
		ok  bool
	}
	ch := make(chan readResult, 1)
	go func() {
		m := gocv.NewMat()
		ok := src.Read(&m)
		ch <- readResult{mat: m, ok: ok}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if !r.ok {
			r.mat.Close()
			return gocv.Mat{}, false
		}
		return r.mat, true
	case <-timer.C:
		go func() {
			r := <-ch
			r.mat.Close()
		}()
		return gocv.Mat{}, false
	}
}
