package inspect

import (
	"image"

	"gocv.io/x/gocv"

	"line-inspector/internal/log"
)

// registerToReference warps the current frame into the reference's
// coordinate space using binary-descriptor keypoint matching and a
// robust homography fit. When matching is too thin or the fit fails,
// the frame is plainly resized to reference dimensions instead; the
// degraded path never raises. The boolean reports whether feature
// registration succeeded.
func (e *Engine) registerToReference(frame, ref gocv.Mat) (gocv.Mat, bool) {
	refGray := toGray(ref)
	defer refGray.Close()
	curGray := toGray(frame)
	defer curGray.Close()

	orb := gocv.NewORB()
	defer orb.Close()

	noMask := gocv.NewMat()
	defer noMask.Close()

	kpRef, descRef := orb.DetectAndCompute(refGray, noMask)
	defer descRef.Close()
	kpCur, descCur := orb.DetectAndCompute(curGray, noMask)
	defer descCur.Close()

	if len(kpRef) == 0 || len(kpCur) == 0 || descRef.Empty() || descCur.Empty() {
		log.Debug("registration fallback: no descriptors",
			"ref_keypoints", len(kpRef), "cur_keypoints", len(kpCur))
		return resizeToReference(frame, ref), false
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer matcher.Close()

	// KNN with k=2 so the Lowe ratio test can reject ambiguous matches.
	knn := matcher.KNNMatch(descCur, descRef, 2)
	type pair struct{ cur, ref int }
	var good []pair
	for _, m := range knn {
		if len(m) < 2 {
			continue
		}
		if m[0].Distance < e.params.RatioTest*m[1].Distance {
			good = append(good, pair{cur: m[0].QueryIdx, ref: m[0].TrainIdx})
		}
	}

	if len(good) < e.params.MinMatches {
		log.Debug("registration fallback: insufficient matches",
			"good", len(good), "min", e.params.MinMatches)
		return resizeToReference(frame, ref), false
	}

	srcPts := gocv.NewMatWithSize(len(good), 1, gocv.MatTypeCV64FC2)
	defer srcPts.Close()
	dstPts := gocv.NewMatWithSize(len(good), 1, gocv.MatTypeCV64FC2)
	defer dstPts.Close()
	for i, g := range good {
		srcPts.SetDoubleAt(i, 0, float64(kpCur[g.cur].X))
		srcPts.SetDoubleAt(i, 1, float64(kpCur[g.cur].Y))
		dstPts.SetDoubleAt(i, 0, float64(kpRef[g.ref].X))
		dstPts.SetDoubleAt(i, 1, float64(kpRef[g.ref].Y))
	}

	inlierMask := gocv.NewMat()
	defer inlierMask.Close()
	hom := gocv.FindHomography(srcPts, &dstPts, gocv.HomographyMethodRANSAC,
		e.params.RANSACThreshold, &inlierMask, 2000, 0.995)
	defer hom.Close()

	if hom.Empty() {
		log.Debug("registration fallback: homography fit failed", "matches", len(good))
		return resizeToReference(frame, ref), false
	}

	registered := gocv.NewMat()
	gocv.WarpPerspective(frame, &registered, hom, image.Pt(ref.Cols(), ref.Rows()))
	return registered, true
}

// resizeToReference is the degraded registration path: a plain resize
// to reference dimensions.
func resizeToReference(frame, ref gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(frame, &dst, image.Pt(ref.Cols(), ref.Rows()), 0, 0, gocv.InterpolationLinear)
	return dst
}

// toGray returns an owned single-channel copy of src.
func toGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}
