package palette

import (
	"context"
	"math"
)

func Distance(left RGB, right RGB) float64 {
	dr := float64(left.R) - float64(right.R)
	dg := float64(left.G) - float64(right.G)
	db := float64(left.B) - float64(right.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func sampleDistance(left ColorSample, right ColorSample) float64 {
	return Distance(left.RGB(), right.RGB())
}

// MaxPairwiseDistance is the widest gap between any two samples, 0 when
// there are fewer than two. It is O(n²) in the number of distinct colors,
// which dominates the cost on photos with many shades; downscale first.
func MaxPairwiseDistance(samples []ColorSample) float64 {
	maxDistance, _ := maxPairwiseDistance(context.Background(), samples)
	return maxDistance
}

func maxPairwiseDistance(ctx context.Context, samples []ColorSample) (float64, error) {
	maxDistance := 0.0
	for i := 0; i < len(samples); i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for j := i + 1; j < len(samples); j++ {
			if distance := sampleDistance(samples[i], samples[j]); distance > maxDistance {
				maxDistance = distance
			}
		}
	}
	return maxDistance, nil
}

// Centroid is the amount-weighted mean coordinate of the samples. It is
// reported with the extraction stats only; no stage consumes it.
func Centroid(samples []ColorSample) [3]float64 {
	var center [3]float64
	total := 0.0
	for _, sample := range samples {
		center[0] += float64(sample.R) * sample.Amount
		center[1] += float64(sample.G) * sample.Amount
		center[2] += float64(sample.B) * sample.Amount
		total += sample.Amount
	}
	if total == 0 {
		return [3]float64{}
	}

	center[0] /= total
	center[1] /= total
	center[2] /= total
	return center
}
