package inspect

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"line-inspector/pkg/geometry"
)

// paintDisc draws a filled disc into a BGR frame.
func paintDisc(m *gocv.Mat, cx, cy, radius int, val uint8) {
	c := color.RGBA{R: val, G: val, B: val, A: 255}
	gocv.Circle(m, image.Pt(cx, cy), radius, c, -1)
}

func TestDetectCirclesFindsDisc(t *testing.T) {
	frame := flatMat(200, 200, 40)
	defer frame.Close()
	paintDisc(&frame, 100, 100, 30, 220)

	circles := detectCircles(frame, DefaultParams().Circles)
	require.NotEmpty(t, circles)

	c := circles[0]
	require.InDelta(t, 100, c.Center.X, 3)
	require.InDelta(t, 100, c.Center.Y, 3)
	require.InDelta(t, 30, c.Radius, 2)
}

func TestDetectCirclesRejectsEllipse(t *testing.T) {
	frame := flatMat(200, 200, 40)
	defer frame.Close()
	// 2:1 ellipse: raw voting may still fire near it, but re-validation
	// must throw the candidate out
	gocv.Ellipse(&frame, image.Pt(100, 100), image.Pt(60, 30), 0, 0, 360,
		color.RGBA{R: 220, G: 220, B: 220, A: 255}, -1)

	circles := detectCircles(frame, DefaultParams().Circles)
	require.Empty(t, circles)
}

func TestDetectCirclesEmptyScene(t *testing.T) {
	frame := flatMat(200, 200, 40)
	defer frame.Close()

	require.Empty(t, detectCircles(frame, DefaultParams().Circles))
}

func TestValidateCircleRejectsOffFrame(t *testing.T) {
	gray := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer gray.Close()

	c := geometry.Circle{Center: geometry.Point2D{X: -200, Y: -200}, Radius: 20}
	require.False(t, validateCircle(gray, c))
}
