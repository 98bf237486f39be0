package palette

import (
	"fmt"
	"image"

	"github.com/EdlinOrg/prominentcolor"
)

// Kmeans clusters img with k-means instead of the bundling pipeline. It is
// offered for comparison; colors come back ordered by cluster population.
func Kmeans(img image.Image, k int) ([]RGB, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, k)
	}

	items, err := prominentcolor.KmeansWithAll(
		k,
		img,
		prominentcolor.ArgumentNoCropping,
		prominentcolor.DefaultSize,
		prominentcolor.GetDefaultMasks(),
	)
	if err != nil {
		return nil, fmt.Errorf("kmeans palette: %w", err)
	}

	colors := make([]RGB, 0, len(items))
	for _, item := range items {
		colors = append(colors, RGB{
			R: uint8(item.Color.R),
			G: uint8(item.Color.G),
			B: uint8(item.Color.B),
		})
	}
	return colors, nil
}
