package inspect

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"line-inspector/pkg/geometry"
)

var (
	colorPass = color.RGBA{G: 255, A: 255}
	colorFail = color.RGBA{R: 255, A: 255}
)

func outcomeColor(pass bool) color.RGBA {
	if pass {
		return colorPass
	}
	return colorFail
}

// annotateSingleSide draws the comparison region on the registered
// frame and appends a difference heat map side by side. With a mask the
// region is the bounding box of the mask's largest external contour;
// without one the whole frame is labeled.
func annotateSingleSide(registered, gradRef, gradCur, mask gocv.Mat, side string, pass bool) gocv.Mat {
	marked := toBGR(registered)
	col := outcomeColor(pass)

	if !mask.Empty() {
		if rect, ok := largestContourBounds(mask); ok {
			gocv.Rectangle(&marked, rect, col, 2)
		}
	} else {
		full := image.Rect(2, 2, marked.Cols()-2, marked.Rows()-2)
		gocv.Rectangle(&marked, full, col, 2)
	}
	label := side + ": FAIL"
	if pass {
		label = side + ": PASS"
	}
	gocv.PutText(&marked, label, image.Pt(10, 24), gocv.FontHersheySimplex, 0.7, col, 2)

	// Difference heat map of the two gradient fields.
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gradRef, gradCur, &diff)
	heat := gocv.NewMat()
	defer heat.Close()
	gocv.ApplyColorMap(diff, &heat, gocv.ColormapJet)

	sideBySide := gocv.NewMat()
	gocv.Hconcat(marked, heat, &sideBySide)
	marked.Close()
	return sideBySide
}

// annotateComponents draws each evaluated ROI on the registered frame,
// colored by its outcome.
func annotateComponents(registered gocv.Mat, rois map[string]geometry.RectInt, results map[string]int) gocv.Mat {
	marked := toBGR(registered)
	for name, outcome := range results {
		roi, ok := rois[name]
		if !ok {
			// the screw outcome rides on the plate ROI
			if roi, ok = rois[ComponentPlate]; !ok {
				continue
			}
		}
		rect := roi.Clamp(marked.Cols(), marked.Rows())
		if rect.Empty() {
			continue
		}
		col := outcomeColor(outcome == 1)
		gocv.Rectangle(&marked, rect.ToImageRect(), col, 2)
		gocv.PutText(&marked, name, image.Pt(rect.X, rect.Y-6), gocv.FontHersheySimplex, 0.5, col, 1)
	}
	return marked
}

// largestContourBounds returns the bounding box of the largest external
// contour in a binary mask.
func largestContourBounds(mask gocv.Mat) (image.Rectangle, bool) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return image.Rectangle{}, false
	}
	best := 0
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a > bestArea {
			bestArea = a
			best = i
		}
	}
	return gocv.BoundingRect(contours.At(best)), true
}

// toBGR returns an owned 3-channel copy suitable for colored drawing.
func toBGR(src gocv.Mat) gocv.Mat {
	if src.Channels() == 3 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	return dst
}
