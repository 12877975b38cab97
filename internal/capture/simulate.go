package capture

import (
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	"gocv.io/x/gocv"
)

// simBaseW/simBaseH is the resolution the synthetic scene is drawn at
// before scaling to the requested output size.
const (
	simBaseW = 320
	simBaseH = 240
)

// SimulatedSource produces a time-varying synthetic image through the
// same contract as a physical camera. It is the required fallback when
// no device is reachable, and the fixture for tests.
type SimulatedSource struct {
	width  int
	height int

	mu    sync.Mutex
	open  bool
	start time.Time
	tick  int
}

// NewSimulatedSource creates a simulated camera at the given resolution.
func NewSimulatedSource(width, height int) *SimulatedSource {
	return &SimulatedSource{width: width, height: height}
}

// Open never fails; the simulation has no device to acquire.
func (s *SimulatedSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.start = time.Now()
	s.tick = 0
	return nil
}

// Read renders the next synthetic frame.
func (s *SimulatedSource) Read(dst *gocv.Mat) bool {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return false
	}
	tick := s.tick
	s.tick++
	s.mu.Unlock()

	scene := renderScene(tick)

	// Scale the base scene to the configured resolution.
	out := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), scene, scene.Bounds(), xdraw.Over, nil)

	mat := rgbaToBGRMat(out)
	if !dst.Empty() {
		dst.Close()
	}
	*dst = mat
	return true
}

// Release marks the simulation closed. Subsequent reads fail until Open.
func (s *SimulatedSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// ID identifies the simulation backend.
func (s *SimulatedSource) ID() string {
	return "simulated"
}

// renderScene draws the synthetic inspection target: a graded background,
// a slowly drifting bright plate, and a fixed circular pad. The drift
// makes consecutive frames differ, which exercises the averaging path.
func renderScene(tick int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, simBaseW, simBaseH))

	// Vertical luminance gradient background
	for y := 0; y < simBaseH; y++ {
		v := uint8(40 + y*80/simBaseH)
		for x := 0; x < simBaseW; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	// Drifting plate: oscillates a few pixels around its nominal position
	dx := int(6 * math.Sin(float64(tick)*0.35))
	dy := int(4 * math.Cos(float64(tick)*0.35))
	plate := image.Rect(90+dx, 70+dy, 230+dx, 150+dy)
	fillRect(img, plate, color.RGBA{R: 200, G: 200, B: 205, A: 255})

	// Circular pad in the lower-right quadrant
	drawDisc(img, 260, 190, 22, color.RGBA{R: 235, G: 235, B: 230, A: 255})

	// Tick marker: thin bar whose position encodes the frame number, so
	// two consecutive frames are never byte-identical.
	bar := image.Rect((tick*7)%simBaseW, 0, (tick*7)%simBaseW+3, 10)
	fillRect(img, bar, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	return img
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawDisc(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			x, y := cx+dx, cy+dy
			if image.Pt(x, y).In(img.Bounds()) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// rgbaToBGRMat converts a Go image to a 3-channel BGR Mat.
func rgbaToBGRMat(img *image.RGBA) gocv.Mat {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			mat.SetUCharAt(y, x*3+0, c.B)
			mat.SetUCharAt(y, x*3+1, c.G)
			mat.SetUCharAt(y, x*3+2, c.R)
		}
	}
	return mat
}
