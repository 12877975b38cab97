package capture

import (
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// Averaging methods accepted by Average.
const (
	MethodMean   = "mean"
	MethodMedian = "median"
)

// Average combines a finalized capture session into a single frame.
// All frames must share dimensions and type. The caller owns the
// returned Mat.
func Average(frames []gocv.Mat, method string) (gocv.Mat, error) {
	if len(frames) == 0 {
		return gocv.Mat{}, ErrNoFrames
	}
	rows, cols := frames[0].Rows(), frames[0].Cols()
	for i, f := range frames {
		if f.Rows() != rows || f.Cols() != cols || f.Type() != frames[0].Type() {
			return gocv.Mat{}, fmt.Errorf("frame %d shape mismatch: %dx%d vs %dx%d",
				i, f.Cols(), f.Rows(), cols, rows)
		}
	}

	switch method {
	case MethodMean:
		return meanFrames(frames), nil
	case MethodMedian:
		// the per-pixel walk reads bytes, so only 8-bit frames qualify
		switch frames[0].Type() {
		case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
		default:
			return gocv.Mat{}, fmt.Errorf("median averaging requires 8-bit frames, got type %d", frames[0].Type())
		}
		return medianFrames(frames), nil
	default:
		return gocv.Mat{}, fmt.Errorf("unknown averaging method %q", method)
	}
}

// meanFrames computes the arithmetic mean in float space and converts
// back to 8-bit with saturating rounding.
func meanFrames(frames []gocv.Mat) gocv.Mat {
	acc := gocv.NewMat()
	frames[0].ConvertTo(&acc, gocv.MatTypeCV32F)

	for _, f := range frames[1:] {
		tmp := gocv.NewMat()
		f.ConvertTo(&tmp, gocv.MatTypeCV32F)
		gocv.Add(acc, tmp, &acc)
		tmp.Close()
	}

	acc.DivideFloat(float32(len(frames)))

	out := gocv.NewMat()
	acc.ConvertTo(&out, frames[0].Type())
	acc.Close()
	return out
}

// medianFrames computes the pixelwise median. The per-pixel walk is
// slow compared to the mean path but runs on a handful of frames once
// per capture, not per preview tick.
func medianFrames(frames []gocv.Mat) gocv.Mat {
	rows := frames[0].Rows()
	span := frames[0].Cols() * frames[0].Channels()
	n := len(frames)

	out := gocv.NewMatWithSize(rows, frames[0].Cols(), frames[0].Type())
	vals := make([]int, n)

	for y := 0; y < rows; y++ {
		for x := 0; x < span; x++ {
			for i, f := range frames {
				vals[i] = int(f.GetUCharAt(y, x))
			}
			sort.Ints(vals)
			var med int
			if n%2 == 1 {
				med = vals[n/2]
			} else {
				med = (vals[n/2-1] + vals[n/2] + 1) / 2
			}
			out.SetUCharAt(y, x, uint8(med))
		}
	}
	return out
}

// equalizeChannels applies histogram equalization independently per
// channel and returns a new Mat.
func equalizeChannels(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		dst := gocv.NewMat()
		gocv.EqualizeHist(src, &dst)
		return dst
	}

	channels := gocv.Split(src)
	eq := make([]gocv.Mat, len(channels))
	for i := range channels {
		eq[i] = gocv.NewMat()
		gocv.EqualizeHist(channels[i], &eq[i])
		channels[i].Close()
	}

	dst := gocv.NewMat()
	gocv.Merge(eq, &dst)
	for i := range eq {
		eq[i].Close()
	}
	return dst
}

// smoothFrame applies a Gaussian blur with the given odd kernel size.
func smoothFrame(src gocv.Mat, kernel int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, image.Pt(kernel, kernel), 0, 0, gocv.BorderDefault)
	return dst
}
