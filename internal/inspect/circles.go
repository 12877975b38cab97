package inspect

import (
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"line-inspector/pkg/geometry"
)

// circularityMin is the lowest contour circularity a raw circle
// candidate may have and still be accepted.
const circularityMin = 0.65

// areaRatioMin is the minimum contour area relative to the ideal
// circle's area for the reported radius.
const areaRatioMin = 0.30

// roundnessCVMax bounds the coefficient of variation of the contour's
// boundary distances; elongated blobs vary too much to pass.
const roundnessCVMax = 0.20

// detectCircles runs a voting-based circular-shape search bounded by
// the configured geometry and re-validates each raw candidate, which
// rejects elongated and partial detections cheaply without a second
// model.
func detectCircles(src gocv.Mat, p CircleParams) []geometry.Circle {
	gray := toGray(src)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(9, 9), 2, 2, gocv.BorderDefault)

	raw := gocv.NewMat()
	defer raw.Close()
	gocv.HoughCirclesWithParams(blurred, &raw, gocv.HoughGradient,
		p.DP, p.MinDist, p.Param1, p.Param2, p.MinRadius, p.MaxRadius)

	if raw.Empty() || raw.Cols() == 0 {
		return nil
	}

	var circles []geometry.Circle
	for i := 0; i < raw.Cols(); i++ {
		c := geometry.Circle{
			Center: geometry.Point2D{
				X: float64(raw.GetFloatAt(0, i*3)),
				Y: float64(raw.GetFloatAt(0, i*3+1)),
			},
			Radius: float64(raw.GetFloatAt(0, i*3+2)),
		}
		if validateCircle(gray, c) {
			circles = append(circles, c)
		}
	}
	return circles
}

// validateCircle crops a patch around the candidate, extracts edges,
// and accepts only if the largest contour is genuinely round: its
// circularity and area must match an ideal circle of the reported
// radius, and its boundary distances must be tightly clustered.
func validateCircle(gray gocv.Mat, c geometry.Circle) bool {
	pad := c.Radius * 1.4
	rect := geometry.RectInt{
		X:      int(c.Center.X - pad),
		Y:      int(c.Center.Y - pad),
		Width:  int(2 * pad),
		Height: int(2 * pad),
	}.Clamp(gray.Cols(), gray.Rows())
	if rect.Empty() {
		return false
	}

	patch := gray.Region(rect.ToImageRect())
	defer patch.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(patch, &edges, 60, 180)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return false
	}

	best := 0
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a > bestArea {
			bestArea = a
			best = i
		}
	}
	contour := contours.At(best)

	perimeter := gocv.ArcLength(contour, true)
	if geometry.Circularity(bestArea, perimeter) < circularityMin {
		return false
	}
	if bestArea < areaRatioMin*c.IdealArea() {
		return false
	}

	// Boundary roundness: distances from the contour centroid must not
	// spread the way an elongated shape's do.
	pts := contour.ToPoints()
	if len(pts) < 8 {
		return false
	}
	var cx, cy float64
	for _, p := range pts {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	dists := make([]float64, len(pts))
	for i, p := range pts {
		dx := float64(p.X) - cx
		dy := float64(p.Y) - cy
		dists[i] = math.Sqrt(dx*dx + dy*dy)
	}
	mean := stat.Mean(dists, nil)
	if mean <= 0 {
		return false
	}
	cv := stat.StdDev(dists, nil) / mean
	return cv <= roundnessCVMax
}
