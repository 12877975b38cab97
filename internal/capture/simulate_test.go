package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestSimulatedSourceContract(t *testing.T) {
	src := NewSimulatedSource(160, 120)

	// Read before Open must fail.
	m := gocv.NewMat()
	defer m.Close()
	require.False(t, src.Read(&m))

	require.NoError(t, src.Open())

	require.True(t, src.Read(&m))
	require.Equal(t, 120, m.Rows())
	require.Equal(t, 160, m.Cols())
	require.Equal(t, 3, m.Channels())

	require.NoError(t, src.Release())
	require.False(t, src.Read(&m))
}

func TestSimulatedSourceFramesVary(t *testing.T) {
	src := NewSimulatedSource(160, 120)
	require.NoError(t, src.Open())
	defer src.Release()

	a := gocv.NewMat()
	defer a.Close()
	b := gocv.NewMat()
	defer b.Close()
	require.True(t, src.Read(&a))
	require.True(t, src.Read(&b))

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)

	// consecutive frames must not be identical, or averaging is a no-op
	require.Greater(t, gocv.CountNonZero(gray), 0)
}

func TestReadWithTimeoutFailure(t *testing.T) {
	src := NewSimulatedSource(64, 48)
	// never opened, so the read itself fails
	_, ok := readWithTimeout(src, captureTick)
	require.False(t, ok)
}
