package inspect

import (
	"gocv.io/x/gocv"
)

// gradientMagnitude computes a per-pixel edge-strength map from the
// horizontal and vertical Sobel derivatives, combined 50/50 into an
// 8-bit magnitude image.
func gradientMagnitude(src gocv.Mat) gocv.Mat {
	gray := toGray(src)
	defer gray.Close()

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absX := gocv.NewMat()
	defer absX.Close()
	absY := gocv.NewMat()
	defer absY.Close()
	gocv.ConvertScaleAbs(gx, &absX, 1, 0)
	gocv.ConvertScaleAbs(gy, &absY, 1, 0)

	mag := gocv.NewMat()
	gocv.AddWeighted(absX, 0.5, absY, 0.5, 0, &mag)
	return mag
}

// maskedMeanAbsDiff computes the mean absolute difference between two
// 8-bit maps, restricted to nonzero mask pixels when a mask is given,
// normalized to [0,1].
func maskedMeanAbsDiff(a, b, mask gocv.Mat) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	if mask.Empty() {
		return diff.Mean().Val1 / 255.0
	}

	count := gocv.CountNonZero(mask)
	if count == 0 {
		return 0
	}
	masked := gocv.NewMat()
	defer masked.Close()
	diff.CopyToWithMask(&masked, mask)
	return masked.Sum().Val1 / float64(count) / 255.0
}

// gradientPresence returns the fraction of pixels whose gradient
// magnitude exceeds the threshold.
func gradientPresence(mag gocv.Mat, threshold float64) float64 {
	total := mag.Rows() * mag.Cols()
	if total == 0 {
		return 0
	}
	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(mag, &bin, float32(threshold), 255, gocv.ThresholdBinary)
	return float64(gocv.CountNonZero(bin)) / float64(total)
}

// edgeDensity returns the fraction of Canny edge pixels in src. This is
// the finer-grained check behind the screw signal: smooth surfaces
// carry broad gradients but few crisp edges.
func edgeDensity(src gocv.Mat, loThreshold float64) float64 {
	gray := toGray(src)
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, float32(loThreshold), float32(loThreshold*2))

	total := edges.Rows() * edges.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(edges)) / float64(total)
}
