package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// uniformFrame builds a single-channel frame filled with one value.
func uniformFrame(t *testing.T, rows, cols int, val uint8) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	m.SetTo(gocv.NewScalar(float64(val), 0, 0, 0))
	return m
}

func closeAll(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}

func TestAverageMean(t *testing.T) {
	// (10+10+10+10+100)/5 = 28 exactly; an integer accumulator that
	// divides per step would drift.
	frames := []gocv.Mat{
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 4, 100),
	}
	defer closeAll(frames)

	avg, err := Average(frames, MethodMean)
	require.NoError(t, err)
	defer avg.Close()

	require.Equal(t, 4, avg.Rows())
	require.Equal(t, 4, avg.Cols())
	require.EqualValues(t, 28, avg.GetUCharAt(2, 2))
}

func TestAverageMedianRejectsOutlier(t *testing.T) {
	frames := []gocv.Mat{
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 4, 100),
	}
	defer closeAll(frames)

	avg, err := Average(frames, MethodMedian)
	require.NoError(t, err)
	defer avg.Close()

	require.EqualValues(t, 10, avg.GetUCharAt(0, 0))
}

func TestAverageMedianEvenCount(t *testing.T) {
	frames := []gocv.Mat{
		uniformFrame(t, 2, 2, 10),
		uniformFrame(t, 2, 2, 20),
		uniformFrame(t, 2, 2, 30),
		uniformFrame(t, 2, 2, 41),
	}
	defer closeAll(frames)

	avg, err := Average(frames, MethodMedian)
	require.NoError(t, err)
	defer avg.Close()

	// middle pair (20, 30) rounds to 25
	require.EqualValues(t, 25, avg.GetUCharAt(0, 0))
}

func TestAverageNoFrames(t *testing.T) {
	_, err := Average(nil, MethodMean)
	require.ErrorIs(t, err, ErrNoFrames)
}

func TestAverageUnknownMethod(t *testing.T) {
	frames := []gocv.Mat{uniformFrame(t, 2, 2, 10)}
	defer closeAll(frames)

	_, err := Average(frames, "mode")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown averaging method")
}

func TestAverageMedianRejectsNon8Bit(t *testing.T) {
	frames := make([]gocv.Mat, 2)
	for i := range frames {
		frames[i] = gocv.NewMatWithSize(4, 4, gocv.MatTypeCV32F)
	}
	defer closeAll(frames)

	_, err := Average(frames, MethodMedian)
	require.Error(t, err)
	require.Contains(t, err.Error(), "8-bit")

	// the float path handles any depth
	avg, err := Average(frames, MethodMean)
	require.NoError(t, err)
	avg.Close()
}

func TestAverageShapeMismatch(t *testing.T) {
	frames := []gocv.Mat{
		uniformFrame(t, 4, 4, 10),
		uniformFrame(t, 4, 8, 10),
	}
	defer closeAll(frames)

	_, err := Average(frames, MethodMean)
	require.Error(t, err)
	require.Contains(t, err.Error(), "shape mismatch")
}

func TestAveragePreservesColorShape(t *testing.T) {
	frames := make([]gocv.Mat, 3)
	for i := range frames {
		frames[i] = gocv.NewMatWithSize(6, 8, gocv.MatTypeCV8UC3)
		frames[i].SetTo(gocv.NewScalar(float64(10*i), float64(20*i), float64(30*i), 0))
	}
	defer closeAll(frames)

	for _, method := range []string{MethodMean, MethodMedian} {
		avg, err := Average(frames, method)
		require.NoError(t, err, method)
		require.Equal(t, 6, avg.Rows(), method)
		require.Equal(t, 8, avg.Cols(), method)
		require.Equal(t, 3, avg.Channels(), method)
		avg.Close()
	}
}
