package palette

// Select takes the first amountToPick ranked samples. When the leader sits
// within reach of black, the sample at index amountToPick-1 is dropped to
// make room further down; the same again for white. Both checks look at the
// leader as ranked.
func Select(ranked []ColorSample, amountToPick int) []RGB {
	if len(ranked) == 0 || amountToPick <= 0 {
		return []RGB{}
	}

	leader := ranked[0].RGB()
	candidates := ranked
	if Distance(leader, Black) < extremeDistance {
		candidates = removeAt(candidates, amountToPick-1)
	}
	if Distance(leader, White) < extremeDistance {
		candidates = removeAt(candidates, amountToPick-1)
	}

	if len(candidates) > amountToPick {
		candidates = candidates[:amountToPick]
	}

	colors := make([]RGB, 0, len(candidates))
	for _, candidate := range candidates {
		colors = append(colors, candidate.RGB())
	}
	return colors
}

func removeAt(samples []ColorSample, index int) []ColorSample {
	if index < 0 || index >= len(samples) {
		return samples
	}

	trimmed := make([]ColorSample, 0, len(samples)-1)
	trimmed = append(trimmed, samples[:index]...)
	return append(trimmed, samples[index+1:]...)
}
