package palette

func TotalAmount(samples []ColorSample) float64 {
	total := 0.0
	for _, sample := range samples {
		total += sample.Amount
	}
	return total
}

// FilterCoverage drops samples whose amount is below minCoverage of the
// total. A sample exactly on the threshold stays. Zero disables the filter.
func FilterCoverage(samples []ColorSample, minCoverage float64) []ColorSample {
	if minCoverage <= 0 {
		return samples
	}

	threshold := minCoverage * TotalAmount(samples)
	kept := samples[:0]
	for _, sample := range samples {
		if sample.Amount >= threshold {
			kept = append(kept, sample)
		}
	}
	return kept
}
