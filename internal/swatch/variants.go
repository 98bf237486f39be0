package swatch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"palettemaker/internal/palette"
)

const VariantStrip = "strip"

const VariantList = "list"

const VariantGrid = "grid"

const SheetExtension = ".png"

type LayoutSpec struct {
	Variant     string
	BlockWidth  int
	BlockHeight int
}

var defaultLayoutSpecs = []LayoutSpec{
	{Variant: VariantStrip, BlockWidth: 160, BlockHeight: 96},
	{Variant: VariantList, BlockWidth: 320, BlockHeight: 48},
	{Variant: VariantGrid, BlockWidth: 160, BlockHeight: 160},
}

func DefaultLayoutSpecs() []LayoutSpec {
	specs := make([]LayoutSpec, len(defaultLayoutSpecs))
	copy(specs, defaultLayoutSpecs)
	return specs
}

func NormalizeVariant(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", VariantStrip:
		return VariantStrip
	case VariantList:
		return VariantList
	case VariantGrid:
		return VariantGrid
	default:
		return VariantStrip
	}
}

func layoutFor(variant string) LayoutSpec {
	resolved := NormalizeVariant(variant)
	for _, spec := range defaultLayoutSpecs {
		if spec.Variant == resolved {
			return spec
		}
	}
	return defaultLayoutSpecs[0]
}

// SheetKey identifies a palette by its colors, in order.
func SheetKey(colors []palette.RGB) string {
	sum := sha256.Sum256([]byte(strings.Join(Hexes(colors), ",")))
	return hex.EncodeToString(sum[:])
}

func SheetPathForKey(cacheDir string, key string, variant string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s__%s%s", strings.ToLower(strings.TrimSpace(key)), NormalizeVariant(variant), SheetExtension))
}
