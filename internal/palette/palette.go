// Package palette reduces an RGBA pixel raster to a short, ordered list of
// representative colors.
//
// The pipeline is histogram → color space analysis → bundling of near
// duplicates → coverage filter → scoring → selection. All distances are
// Euclidean in 8-bit RGB.
package palette

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// ColorSpaceDiagonal normalizes RGB distances. It is √(3·256²), a hair above
// the actual black-to-white distance of 441.67.
const ColorSpaceDiagonal = 443.405

const extremeDistance = 20

var (
	ErrInvalidAmount   = errors.New("amount to pick must be positive")
	ErrInvalidCoverage = errors.New("min coverage must be within [0, 1]")
)

var (
	Black = RGB{R: 0, G: 0, B: 0}
	White = RGB{R: 255, G: 255, B: 255}
)

type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// ColorSample is one distinct color of the working set. Amount holds the
// pixel count until bundling replaces it with its natural logarithm.
type ColorSample struct {
	R      uint8
	G      uint8
	B      uint8
	Amount float64
	Score  float64
}

func (s ColorSample) RGB() RGB {
	return RGB{R: s.R, G: s.G, B: s.B}
}

type Options struct {
	AmountToPick int     `json:"amountToPick"`
	MinCoverage  float64 `json:"minCoverage"`
}

func (o Options) Validate() error {
	if o.AmountToPick <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, o.AmountToPick)
	}
	if o.MinCoverage < 0 || o.MinCoverage > 1 || math.IsNaN(o.MinCoverage) {
		return fmt.Errorf("%w: got %v", ErrInvalidCoverage, o.MinCoverage)
	}
	return nil
}

type Stats struct {
	Pixels         int        `json:"pixels"`
	DistinctColors int        `json:"distinctColors"`
	MaxDistance    float64    `json:"maxDistance"`
	BundleDistance float64    `json:"bundleDistance"`
	Centroid       [3]float64 `json:"centroid"`
	Bundled        int        `json:"bundled"`
	Retained       int        `json:"retained"`
}

type Result struct {
	Colors []RGB `json:"colors"`
	Stats  Stats `json:"stats"`
}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{logger: logger}
}

// Extract runs the pipeline without a deadline.
func Extract(pix []byte, options Options) ([]RGB, error) {
	result, err := NewExtractor(nil).Extract(context.Background(), pix, options)
	if err != nil {
		return nil, err
	}
	return result.Colors, nil
}

// Extract validates options, then runs every stage on pix. Data conditions
// (no pixels, a single color, everything filtered out) yield a short or empty
// palette rather than an error. The context is checked between stages and
// inside the quadratic distance loops.
func (e *Extractor) Extract(ctx context.Context, pix []byte, options Options) (Result, error) {
	if err := options.Validate(); err != nil {
		return Result{}, err
	}

	histogram := BuildHistogram(pix)
	samples := histogram.Samples()
	stats := Stats{
		Pixels:         histogram.Total(),
		DistinctColors: len(samples),
	}
	if len(samples) == 0 {
		e.logger.Debug("empty raster, nothing to pick", "bytes", len(pix))
		return Result{Colors: []RGB{}, Stats: stats}, nil
	}

	maxDistance, err := maxPairwiseDistance(ctx, samples)
	if err != nil {
		return Result{}, fmt.Errorf("measure color space: %w", err)
	}
	stats.MaxDistance = maxDistance
	stats.Centroid = Centroid(samples)
	stats.BundleDistance = BundleDistance(maxDistance, options.AmountToPick)
	e.logger.Debug("analyzed color space",
		"distinct", stats.DistinctColors,
		"maxDistance", stats.MaxDistance,
		"bundleDistance", stats.BundleDistance,
		"centroid", stats.Centroid,
	)

	bundled, err := bundle(ctx, samples, stats.BundleDistance)
	if err != nil {
		return Result{}, fmt.Errorf("bundle colors: %w", err)
	}
	stats.Bundled = len(bundled)

	retained := FilterCoverage(bundled, options.MinCoverage)
	stats.Retained = len(retained)
	e.logger.Debug("bundled colors", "bundled", stats.Bundled, "retained", stats.Retained)

	if err := score(ctx, retained, maxDistance); err != nil {
		return Result{}, fmt.Errorf("score colors: %w", err)
	}

	colors := Select(retained, options.AmountToPick)
	e.logger.Debug("selected palette", "requested", options.AmountToPick, "picked", len(colors))

	return Result{Colors: colors, Stats: stats}, nil
}
