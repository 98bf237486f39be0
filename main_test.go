package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palettemaker/internal/palette"
	"palettemaker/internal/service"
)

func TestExtractJSONThenHistory(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	source := writeTestImage(t, t.TempDir())

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), "extract", []string{"-home", home, "-json", "-n", "2", source}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var results []service.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Len(t, results[0].Colors, 2)
	require.NotEmpty(t, results[0].ID)

	stdout.Reset()
	err = run(context.Background(), "history", []string{"-home", home}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), results[0].ID)
	assert.Contains(t, stdout.String(), "1 of 1 palettes")

	stdout.Reset()
	err = run(context.Background(), "history", []string{"-home", home, "-swatch", results[0].ID, "-variant", "grid"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	sheetPath := strings.TrimSpace(stdout.String())
	assert.True(t, strings.HasSuffix(sheetPath, "__grid.png"))
	_, err = os.Stat(sheetPath)
	require.NoError(t, err)

	stdout.Reset()
	err = run(context.Background(), "history", []string{"-home", home, "-stats"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "1 palettes from 1 sources")

	stdout.Reset()
	err = run(context.Background(), "history", []string{"-home", home, "-hash", results[0].ContentHash, "-n", "2"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), results[0].ID)

	stdout.Reset()
	err = run(context.Background(), "history", []string{"-home", home, "-delete", results[0].ID}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Contains(t, stdout.String(), "deleted")
}

func TestExtractTerminalOutputAndSheet(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	dir := t.TempDir()
	source := writeTestImage(t, dir)
	sheet := filepath.Join(dir, "sheet.png")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), "extract", []string{"-home", home, "-no-history", "-n", "1", "-out", sheet, source}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	assert.Contains(t, stdout.String(), "bundle")
	assert.Contains(t, stdout.String(), "\x1b[48;2;")

	file, err := os.Open(sheet)
	require.NoError(t, err)
	defer file.Close()
	decoded, err := png.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, 160, decoded.Bounds().Dx())

	_, err = os.Stat(filepath.Join(home, "palettes.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestSettingsFileFeedsDefaults(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "conf.ini"), []byte("[Palette]\nAmount = 1\n"), 0o644))
	source := writeTestImage(t, t.TempDir())

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), "extract", []string{"-home", home, "-no-history", "-json", source}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var results []service.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Len(t, results[0].Colors, 1)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	var stdout, stderr bytes.Buffer

	require.Error(t, run(context.Background(), "paint", nil, &stdout, &stderr))
	require.Error(t, run(context.Background(), "extract", []string{"-home", home}, &stdout, &stderr))
	require.Error(t, run(context.Background(), "extract", []string{"-home", home, "-n", "0", "-no-history", writeTestImage(t, t.TempDir())}, &stdout, &stderr))
	require.Error(t, run(context.Background(), "extract", []string{"-home", home, "-method", "median-cut", "x.png"}, &stdout, &stderr))
	require.Error(t, run(context.Background(), "watch", []string{"-home", home}, &stdout, &stderr))
	require.ErrorIs(t, run(context.Background(), "serve", []string{"-home", home, "-n", "0"}, &stdout, &stderr), palette.ErrInvalidAmount)
	require.ErrorIs(t, run(context.Background(), "watch", []string{"-home", home, "-dir", filepath.Join(home, "missing")}, &stdout, &stderr), os.ErrNotExist)

	stdout.Reset()
	require.NoError(t, run(context.Background(), "help", nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Commands:")
}

func writeTestImage(t *testing.T, dir string) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}

	path := filepath.Join(dir, "split.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
	return path
}
