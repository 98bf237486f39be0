package palette

import "sort"

// Histogram counts pixels per exact RGB coordinate. Every entry is > 0.
type Histogram map[RGB]int

// BuildHistogram walks pix as consecutive RGBA groups in one pass. Alpha is
// ignored, as is a trailing partial group.
func BuildHistogram(pix []byte) Histogram {
	histogram := make(Histogram)
	for offset := 0; offset+3 < len(pix); offset += 4 {
		histogram[RGB{R: pix[offset], G: pix[offset+1], B: pix[offset+2]}]++
	}
	return histogram
}

func (h Histogram) Total() int {
	total := 0
	for _, count := range h {
		total += count
	}
	return total
}

// Samples returns one sample per distinct color in ascending (r, g, b)
// order, so later stable sorts break ties the same way on every run.
func (h Histogram) Samples() []ColorSample {
	samples := make([]ColorSample, 0, len(h))
	for color, count := range h {
		if count <= 0 {
			continue
		}
		samples = append(samples, ColorSample{
			R:      color.R,
			G:      color.G,
			B:      color.B,
			Amount: float64(count),
		})
	}

	sort.Slice(samples, func(i, j int) bool {
		left, right := samples[i], samples[j]
		if left.R != right.R {
			return left.R < right.R
		}
		if left.G != right.G {
			return left.G < right.G
		}
		return left.B < right.B
	})

	return samples
}
