package inspect

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"line-inspector/pkg/geometry"
)

func TestGradientMagnitudeFlatIsZero(t *testing.T) {
	frame := flatMat(64, 64, 128)
	defer frame.Close()

	mag := gradientMagnitude(frame)
	defer mag.Close()

	require.Equal(t, 0, gocv.CountNonZero(mag))
}

func TestGradientPresence(t *testing.T) {
	frame := flatMat(64, 64, 128)
	defer frame.Close()
	mag := gradientMagnitude(frame)
	defer mag.Close()
	require.Zero(t, gradientPresence(mag, 60))

	textured := flatMat(64, 64, 128)
	defer textured.Close()
	paintChecker(&textured, geometry.RectInt{X: 0, Y: 0, Width: 64, Height: 64})
	mag2 := gradientMagnitude(textured)
	defer mag2.Close()
	require.Greater(t, gradientPresence(mag2, 60), 0.2)
}

func TestMaskedMeanAbsDiff(t *testing.T) {
	a := flatMat(32, 32, 100)
	defer a.Close()
	b := flatMat(32, 32, 150)
	defer b.Close()
	ag := toGray(a)
	defer ag.Close()
	bg := toGray(b)
	defer bg.Close()

	// unmasked: uniform difference of 50
	require.InDelta(t, 50.0/255.0, maskedMeanAbsDiff(ag, bg, gocv.Mat{}), 0.01)

	// mask with no selected pixels contributes nothing
	empty := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC1)
	defer empty.Close()
	require.Zero(t, maskedMeanAbsDiff(ag, bg, empty))

	// half mask selects the same uniform difference
	half := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC1)
	defer half.Close()
	region := half.Region(geometry.RectInt{X: 0, Y: 0, Width: 16, Height: 32}.ToImageRect())
	region.SetTo(gocv.NewScalar(255, 0, 0, 0))
	region.Close()
	require.InDelta(t, 50.0/255.0, maskedMeanAbsDiff(ag, bg, half), 0.01)
}

func TestEdgeDensity(t *testing.T) {
	flat := flatMat(64, 64, 128)
	defer flat.Close()
	require.Zero(t, edgeDensity(flat, 60))

	striped := flatMat(64, 64, 128)
	defer striped.Close()
	paintStripes(&striped, geometry.RectInt{X: 0, Y: 0, Width: 64, Height: 64})
	require.Greater(t, edgeDensity(striped, 60), 0.1)
}
