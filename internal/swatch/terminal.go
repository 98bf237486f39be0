package swatch

import (
	"fmt"
	"io"

	"palettemaker/internal/palette"
)

// Terminal prints each color as a 24-bit background block followed by its
// labels, one color per line.
func Terminal(w io.Writer, colors []palette.RGB) error {
	for index, c := range colors {
		if _, err := fmt.Fprintf(w, "\x1b[48;2;%d;%d;%dm        \x1b[0m %2d  %-18s %s\n", c.R, c.G, c.B, index+1, c.String(), Hex(c)); err != nil {
			return fmt.Errorf("write swatch: %w", err)
		}
	}
	return nil
}
