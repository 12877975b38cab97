// Package inspect implements the deterministic analysis engine: it
// registers an averaged sample against a stored reference image and
// evaluates per-component pass/fail outcomes.
package inspect

import "line-inspector/internal/config"

// Params holds every numeric threshold the engine consumes. All values
// arrive from the configuration surface; the engine never mutates them.
type Params struct {
	// Feature-matching registration
	MinMatches      int     // fewer good matches than this falls back to a plain resize
	RatioTest       float64 // Lowe ratio applied to KNN matches
	RANSACThreshold float64 // homography reprojection threshold in pixels

	// Pass/fail thresholds
	DiffThreshold     float64 // normalized gradient MAD, pass if <=
	GradientThreshold float64 // per-pixel gradient magnitude cutoff (0-255)
	PlateRatio        float64 // high-gradient area ratio for plate presence
	ScrewRatio        float64 // stricter edge-density ratio for the screw signal

	Circles CircleParams
}

// CircleParams bounds the voting-based circle search.
type CircleParams struct {
	DP        float64
	MinDist   float64
	Param1    float64
	Param2    float64
	MinRadius int
	MaxRadius int
}

// DefaultParams returns the engine defaults.
func DefaultParams() Params {
	return Params{
		MinMatches:        8,
		RatioTest:         0.75,
		RANSACThreshold:   5.0,
		DiffThreshold:     0.15,
		GradientThreshold: 60,
		PlateRatio:        0.05,
		ScrewRatio:        0.12,
		Circles: CircleParams{
			DP:        1.2,
			MinDist:   20,
			Param1:    100,
			Param2:    30,
			MinRadius: 8,
			MaxRadius: 60,
		},
	}
}

// ParamsFromConfig maps the station configuration onto engine params.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		MinMatches:        cfg.Matching.MinMatches,
		RatioTest:         cfg.Matching.RatioTest,
		RANSACThreshold:   cfg.Matching.RANSACThreshold,
		DiffThreshold:     cfg.Thresholds.Difference,
		GradientThreshold: cfg.Thresholds.Gradient,
		PlateRatio:        cfg.Thresholds.PlateRatio,
		ScrewRatio:        cfg.Thresholds.ScrewRatio,
		Circles: CircleParams{
			DP:        cfg.Circles.DP,
			MinDist:   cfg.Circles.MinDist,
			Param1:    cfg.Circles.Param1,
			Param2:    cfg.Circles.Param2,
			MinRadius: cfg.Circles.MinRadius,
			MaxRadius: cfg.Circles.MaxRadius,
		},
	}
}
