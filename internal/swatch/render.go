package swatch

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/samber/lo"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"palettemaker/internal/palette"
)

const (
	labelSize    = 13
	labelPadding = 10
)

var (
	darkLabel  = color.NRGBA{R: 24, G: 24, B: 24, A: 255}
	lightLabel = color.NRGBA{R: 250, G: 250, B: 250, A: 255}
)

var parseLabelFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

func Hex(c palette.RGB) string {
	return toColorful(c).Hex()
}

func Hexes(colors []palette.RGB) []string {
	return lo.Map(colors, func(c palette.RGB, _ int) string {
		return Hex(c)
	})
}

func toColorful(c palette.RGB) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
}

// LabelColor picks dark text for light swatches and light text otherwise.
func LabelColor(c palette.RGB) color.NRGBA {
	lightness, _, _ := toColorful(c).Lab()
	if lightness > 0.6 {
		return darkLabel
	}
	return lightLabel
}

// RenderSheet draws one labelled block per color. An empty palette yields a
// single empty block so the sheet is still a valid image.
func RenderSheet(colors []palette.RGB, variant string) (*image.NRGBA, error) {
	spec := layoutFor(variant)
	columns, rows := grid(len(colors), spec.Variant)

	sheet := image.NewNRGBA(image.Rect(0, 0, columns*spec.BlockWidth, rows*spec.BlockHeight))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if len(colors) == 0 {
		return sheet, nil
	}

	labelFont, err := parseLabelFont()
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	face := truetype.NewFace(labelFont, &truetype.Options{
		Size:    labelSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	defer face.Close()

	for index, c := range colors {
		column, row := index%columns, index/columns
		block := image.Rect(
			column*spec.BlockWidth,
			row*spec.BlockHeight,
			(column+1)*spec.BlockWidth,
			(row+1)*spec.BlockHeight,
		)
		fill := color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
		draw.Draw(sheet, block, image.NewUniform(fill), image.Point{}, draw.Src)

		drawer := &font.Drawer{
			Dst:  sheet,
			Src:  image.NewUniform(LabelColor(c)),
			Face: face,
		}
		lineHeight := face.Metrics().Height.Ceil()
		baseline := block.Min.Y + labelPadding + face.Metrics().Ascent.Ceil()
		for _, line := range []string{c.String(), Hex(c)} {
			drawer.Dot = fixed.P(block.Min.X+labelPadding, baseline)
			drawer.DrawString(line)
			baseline += lineHeight
		}
	}

	return sheet, nil
}

func grid(count int, variant string) (int, int) {
	if count <= 0 {
		return 1, 1
	}

	switch variant {
	case VariantList:
		return 1, count
	case VariantGrid:
		columns := int(math.Ceil(math.Sqrt(float64(count))))
		rows := (count + columns - 1) / columns
		return columns, rows
	default:
		return count, 1
	}
}

func WritePNG(w io.Writer, colors []palette.RGB, variant string) error {
	sheet, err := RenderSheet(colors, variant)
	if err != nil {
		return err
	}
	if err := png.Encode(w, sheet); err != nil {
		return fmt.Errorf("encode swatch sheet: %w", err)
	}
	return nil
}

// SaveSheet writes the sheet under cacheDir and returns its path. An existing
// file for the same colors and variant is reused.
func SaveSheet(cacheDir string, colors []palette.RGB, variant string) (string, error) {
	path := SheetPathForKey(cacheDir, SheetKey(colors), variant)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create swatch dir: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(path), ".sheet-*.png")
	if err != nil {
		return "", fmt.Errorf("create swatch file: %w", err)
	}
	tempPath := file.Name()

	if err := WritePNG(file, colors, variant); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("close swatch file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("store swatch file: %w", err)
	}

	return path, nil
}

// RemoveSheets deletes every cached layout of the sheet for colors.
func RemoveSheets(cacheDir string, colors []palette.RGB) error {
	key := SheetKey(colors)
	for _, spec := range DefaultLayoutSpecs() {
		err := os.Remove(SheetPathForKey(cacheDir, key, spec.Variant))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove swatch sheet: %w", err)
		}
	}
	return nil
}
