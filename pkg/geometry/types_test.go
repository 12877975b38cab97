package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointDistance(t *testing.T) {
	a := NewPoint2D(0, 0)
	b := NewPoint2D(3, 4)
	require.InDelta(t, 5, a.Distance(b), 1e-9)
	require.Zero(t, a.Distance(a))
}

func TestRectIntBasics(t *testing.T) {
	r := NewRectInt(10, 20, 30, 40)
	require.False(t, r.Empty())
	require.Equal(t, 1200, r.Area())
	require.Equal(t, image.Rect(10, 20, 40, 60), r.ToImageRect())
	require.True(t, r.Contains(10, 20))
	require.True(t, r.Contains(39, 59))
	require.False(t, r.Contains(40, 60))

	require.True(t, RectInt{Width: 0, Height: 10}.Empty())
	require.Zero(t, RectInt{Width: -5, Height: 10}.Area())
}

func TestRectIntClamp(t *testing.T) {
	tests := []struct {
		name string
		in   RectInt
		want RectInt
	}{
		{"inside", RectInt{10, 10, 20, 20}, RectInt{10, 10, 20, 20}},
		{"negative origin", RectInt{-5, -5, 20, 20}, RectInt{0, 0, 15, 15}},
		{"overflows right", RectInt{90, 90, 50, 50}, RectInt{90, 90, 10, 10}},
		{"fully outside", RectInt{200, 200, 10, 10}, RectInt{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.in.Clamp(100, 100))
		})
	}
}

func TestCircularity(t *testing.T) {
	// perfect circle scores exactly 1
	r := 10.0
	require.InDelta(t, 1.0, Circularity(math.Pi*r*r, 2*math.Pi*r), 1e-9)

	// square scores pi/4
	require.InDelta(t, math.Pi/4, Circularity(100, 40), 1e-9)

	require.Zero(t, Circularity(100, 0))
}

func TestCircleIdealArea(t *testing.T) {
	c := Circle{Center: NewPoint2D(5, 5), Radius: 2}
	require.InDelta(t, 4*math.Pi, c.IdealArea(), 1e-9)
}
