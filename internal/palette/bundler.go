package palette

import (
	"context"
	"math"
	"sort"
)

// BundleDistance derives the merge threshold from the measured spread and
// the palette size. The expression cancels to ColorSpaceDiagonal/k whenever
// maxDistance is non-zero. A zero spread means there is nothing to bundle.
func BundleDistance(maxDistance float64, amountToPick int) float64 {
	if maxDistance == 0 || amountToPick <= 0 {
		return 0
	}
	k := float64(amountToPick)
	return maxDistance / (k * (maxDistance / ColorSpaceDiagonal))
}

// Bundle greedily folds every color closer than threshold into the most
// frequent color that reaches it first, then log-compresses each survivor's
// amount. Representatives keep their own coordinate. The input slice is
// reordered and reused.
func Bundle(samples []ColorSample, threshold float64) []ColorSample {
	bundled, _ := bundle(context.Background(), samples, threshold)
	return bundled
}

func bundle(ctx context.Context, samples []ColorSample, threshold float64) ([]ColorSample, error) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Amount > samples[j].Amount
	})

	absorbed := make([]bool, len(samples))
	for i := range samples {
		if absorbed[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for j := i + 1; j < len(samples); j++ {
			if absorbed[j] {
				continue
			}
			if sampleDistance(samples[i], samples[j]) < threshold {
				samples[i].Amount += samples[j].Amount
				absorbed[j] = true
			}
		}

		samples[i].Amount = math.Log(samples[i].Amount)
	}

	survivors := samples[:0]
	for i, sample := range samples {
		if !absorbed[i] {
			survivors = append(survivors, sample)
		}
	}

	return survivors, nil
}
