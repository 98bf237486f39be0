package raster

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

var ErrEmptyImage = errors.New("image has no pixels")

// ErrCorruptImage wraps decoder failures on data of a known format.
var ErrCorruptImage = errors.New("corrupt image data")

var supportedExtensions = map[string]struct{}{
	".avif": {},
	".bmp":  {},
	".gif":  {},
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// Raster is a row-major RGBA buffer, four bytes per pixel.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

func (r Raster) Validate() error {
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("invalid raster size %dx%d", r.Width, r.Height)
	}
	if len(r.Pix) != r.Width*r.Height*4 {
		return fmt.Errorf("raster %dx%d needs %d bytes, has %d", r.Width, r.Height, r.Width*r.Height*4, len(r.Pix))
	}
	return nil
}

func IsSupported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Decode reads any registered format. AVIF is routed by name or by its
// ftyp box, since its container is shared with other ISO media files.
func Decode(r io.Reader, name string) (image.Image, error) {
	buffered := bufio.NewReader(r)
	header, _ := buffered.Peek(12)

	if strings.EqualFold(filepath.Ext(name), ".avif") || isAVIF(header) {
		img, err := avif.Decode(buffered)
		if err != nil {
			return nil, fmt.Errorf("%w: decode avif: %w", ErrCorruptImage, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(buffered)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
		}
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorruptImage, name, err)
	}
	return img, nil
}

func DecodeBytes(data []byte, name string) (image.Image, error) {
	return Decode(bytes.NewReader(data), name)
}

func isAVIF(header []byte) bool {
	if len(header) < 12 || string(header[4:8]) != "ftyp" {
		return false
	}
	brand := string(header[8:12])
	return brand == "avif" || brand == "avis"
}

// Downscale resizes img by scale (0 < scale ≤ 1, anything else keeps the
// size), then fits the result inside maxDimension when that is positive.
func Downscale(img image.Image, scale float64, maxDimension int) *image.NRGBA {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return toNRGBA(img)
	}

	out := img
	if scale > 0 && scale < 1 {
		targetWidth := maxInt(int(math.Round(float64(width)*scale)), 1)
		targetHeight := maxInt(int(math.Round(float64(height)*scale)), 1)
		out = imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos)
	}

	if maxDimension > 0 {
		current := out.Bounds()
		if current.Dx() > maxDimension || current.Dy() > maxDimension {
			out = imaging.Fit(out, maxDimension, maxDimension, imaging.Lanczos)
		}
	}

	return toNRGBA(out)
}

// FromImage flattens img into a non-premultiplied RGBA raster.
func FromImage(img image.Image) (Raster, error) {
	nrgba := toNRGBA(img)
	width := nrgba.Bounds().Dx()
	height := nrgba.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return Raster{}, ErrEmptyImage
	}

	pix := make([]byte, 0, width*height*4)
	for y := 0; y < height; y++ {
		offset := y * nrgba.Stride
		pix = append(pix, nrgba.Pix[offset:offset+width*4]...)
	}

	return Raster{Width: width, Height: height, Pix: pix}, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}

	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

func maxInt(left int, right int) int {
	if left > right {
		return left
	}
	return right
}
