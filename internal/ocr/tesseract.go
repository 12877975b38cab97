// Package ocr provides the optional text-recognition backend for
// component presence checks, backed by Tesseract.
package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// LabelChars is the character set expected on component labels.
// Excludes lowercase to reduce confusion (0/O, 1/I, etc.)
const LabelChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-/"

// minTextLen is the shortest recognized string counted as presence;
// single stray characters are usually edge noise.
const minTextLen = 2

// Engine wraps a Tesseract client behind the engine's text-detector
// contract. Construct it explicitly and inject it; a host without OCR
// capability simply never builds one.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates the Tesseract-backed detector.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}

	// Disable dictionary-based word correction - component labels
	// aren't English words
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Detect reports whether readable text is present in the region and
// returns the recognized string.
func (e *Engine) Detect(region gocv.Mat) (bool, string, error) {
	if region.Empty() {
		return false, "", fmt.Errorf("empty region")
	}

	processed := preprocess(region)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return false, "", fmt.Errorf("encode region: %w", err)
	}
	defer buf.Close()

	// PSM 6 = assume a single uniform block of text
	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return false, "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := e.client.SetWhitelist(LabelChars); err != nil {
		return false, "", fmt.Errorf("set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return false, "", fmt.Errorf("set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return false, "", fmt.Errorf("recognize: %w", err)
	}

	text = strings.ToUpper(strings.Join(strings.Fields(text), " "))
	return len(text) >= minTextLen, text, nil
}

// preprocess prepares a region for OCR: upscale small crops, boost
// local contrast, binarize, and make sure the text is dark on light.
func preprocess(region gocv.Mat) gocv.Mat {
	h, w := region.Rows(), region.Cols()

	// Upscale small regions for better OCR (target ~150px minimum)
	var scaled gocv.Mat
	if minDim := min(h, w); minDim < 150 {
		scale := 150.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(region, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = region.Clone()
	}

	gray := gocv.NewMat()
	if scaled.Channels() == 1 {
		scaled.CopyTo(&gray)
	} else {
		gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	}
	scaled.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	defer clahe.Close()
	enhanced := gocv.NewMat()
	clahe.Apply(gray, &enhanced)
	gray.Close()

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	enhanced.Close()

	// OCR expects dark text on a light background; invert light-on-dark
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio > 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	result := gocv.NewMat()
	gocv.CvtColor(binary, &result, gocv.ColorGrayToBGR)
	binary.Close()
	return result
}
