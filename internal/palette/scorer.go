package palette

import (
	"context"
	"math"
	"sort"
)

// Score rates each sample by ln(1 + meanDistance·amount), scaled by how much
// of the RGB cube the image spans, and sorts best first. meanDistance divides
// by the full sample count, self included. With no spread every score is 0.
func Score(samples []ColorSample, maxDistance float64) {
	_ = score(context.Background(), samples, maxDistance)
}

func score(ctx context.Context, samples []ColorSample, maxDistance float64) error {
	if len(samples) == 0 {
		return nil
	}

	if maxDistance == 0 {
		for i := range samples {
			samples[i].Score = 0
		}
		return nil
	}

	scale := ColorSpaceDiagonal / maxDistance
	count := float64(len(samples))
	for i := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}

		totalDistance := 0.0
		for j := range samples {
			totalDistance += sampleDistance(samples[i], samples[j])
		}
		meanDistance := totalDistance / count
		samples[i].Score = math.Log(1+meanDistance*samples[i].Amount) * scale
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Score > samples[j].Score
	})

	return nil
}
