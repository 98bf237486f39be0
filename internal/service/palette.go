package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"palettemaker/internal/coverart"
	"palettemaker/internal/history"
	"palettemaker/internal/palette"
	"palettemaker/internal/raster"
	"palettemaker/internal/swatch"
)

const maxPaletteCacheEntries = 96

const SourceKindUpload = "upload"

var (
	ErrSourceNotFound = errors.New("source not found")
	ErrInvalidScale   = errors.New("scale must be within (0, 1]")
)

type GenerateOptions struct {
	Amount       int     `json:"amount"`
	MinCoverage  float64 `json:"minCoverage"`
	Method       string  `json:"method"`
	Scale        float64 `json:"scale"`
	MaxDimension int     `json:"maxDimension"`
}

func (o GenerateOptions) normalized() (GenerateOptions, palette.Method, error) {
	method, err := palette.ParseMethod(o.Method)
	if err != nil {
		return GenerateOptions{}, "", err
	}
	o.Method = string(method)

	if o.Scale == 0 {
		o.Scale = 1
	}
	if o.Scale < 0 || o.Scale > 1 {
		return GenerateOptions{}, "", fmt.Errorf("%w: got %v", ErrInvalidScale, o.Scale)
	}
	if o.MaxDimension < 0 {
		o.MaxDimension = 0
	}

	if err := (palette.Options{AmountToPick: o.Amount, MinCoverage: o.MinCoverage}).Validate(); err != nil {
		return GenerateOptions{}, "", err
	}
	return o, method, nil
}

type Swatch struct {
	palette.RGB
	Hex   string `json:"hex"`
	Label string `json:"label"`
}

func NewSwatches(colors []palette.RGB) []Swatch {
	return lo.Map(colors, func(c palette.RGB, _ int) Swatch {
		return Swatch{RGB: c, Hex: swatch.Hex(c), Label: c.String()}
	})
}

type Result struct {
	ID          string         `json:"id,omitempty"`
	Source      string         `json:"source"`
	SourceKind  string         `json:"sourceKind"`
	ContentHash string         `json:"contentHash"`
	Method      string         `json:"method"`
	Amount      int            `json:"amount"`
	MinCoverage float64        `json:"minCoverage"`
	Colors      []Swatch       `json:"colors"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Stats       *palette.Stats `json:"stats,omitempty"`
	DurationMS  int64          `json:"durationMs"`
	Cached      bool           `json:"cached"`
	CreatedAt   string         `json:"createdAt,omitempty"`
}

func (r Result) RGB() []palette.RGB {
	return lo.Map(r.Colors, func(s Swatch, _ int) palette.RGB { return s.RGB })
}

type paletteCacheEntry struct {
	result            Result
	sourceModUnixNano int64
	cachedAt          time.Time
}

type PaletteService struct {
	extractor *palette.Extractor
	history   *history.Repository
	defaults  GenerateOptions
	logger    *slog.Logger
	now       func() time.Time

	cacheMu sync.RWMutex
	cache   map[string]paletteCacheEntry
}

// NewPaletteService wires the extractor to an optional history repository.
// With a nil repository results are only cached in memory.
func NewPaletteService(repo *history.Repository, defaults GenerateOptions, logger *slog.Logger) *PaletteService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PaletteService{
		extractor: palette.NewExtractor(logger),
		history:   repo,
		defaults:  defaults,
		logger:    logger,
		now:       time.Now,
		cache:     make(map[string]paletteCacheEntry),
	}
}

func (s *PaletteService) DefaultOptions() GenerateOptions {
	return s.defaults
}

// Generate extracts a palette from an image file, or from the artwork of an
// audio file.
func (s *PaletteService) Generate(ctx context.Context, sourcePath string, options GenerateOptions) (Result, error) {
	trimmedPath := strings.TrimSpace(sourcePath)
	if trimmedPath == "" {
		return Result{}, errors.New("source path is required")
	}
	if !raster.IsSupported(trimmedPath) && !coverart.IsAudio(trimmedPath) {
		return Result{}, fmt.Errorf("%w: %s", raster.ErrUnsupportedFormat, trimmedPath)
	}

	normalized, method, err := options.normalized()
	if err != nil {
		return Result{}, err
	}

	sourceInfo, err := os.Stat(trimmedPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrSourceNotFound, trimmedPath)
		}
		return Result{}, fmt.Errorf("stat source: %w", err)
	}
	sourceModUnixNano := sourceInfo.ModTime().UnixNano()

	cacheKey := buildPaletteCacheKey(trimmedPath, normalized)
	if cached, ok := s.loadCachedResult(cacheKey, sourceModUnixNano); ok {
		return cached, nil
	}

	artwork, err := coverart.Load(trimmedPath)
	if err != nil {
		return Result{}, err
	}

	result, err := s.generate(ctx, trimmedPath, artwork.SourceKind, artwork.Hash, artwork.Data, normalized, method)
	if err != nil {
		return Result{}, err
	}

	s.storeCachedResult(cacheKey, sourceModUnixNano, result)
	return result, nil
}

// GenerateFromBytes extracts a palette from an uploaded image. Identical
// content with identical options is served from the cache.
func (s *PaletteService) GenerateFromBytes(ctx context.Context, name string, data []byte, options GenerateOptions) (Result, error) {
	if len(data) == 0 {
		return Result{}, raster.ErrEmptyImage
	}

	normalized, method, err := options.normalized()
	if err != nil {
		return Result{}, err
	}

	contentHash := coverart.ContentHash(data)
	cacheKey := buildPaletteCacheKey("sha256:"+contentHash, normalized)
	if cached, ok := s.loadCachedResult(cacheKey, 0); ok {
		return cached, nil
	}

	result, err := s.generate(ctx, name, SourceKindUpload, contentHash, data, normalized, method)
	if err != nil {
		return Result{}, err
	}

	s.storeCachedResult(cacheKey, 0, result)
	return result, nil
}

func (s *PaletteService) generate(
	ctx context.Context,
	source string,
	sourceKind string,
	contentHash string,
	data []byte,
	options GenerateOptions,
	method palette.Method,
) (Result, error) {
	startedAt := s.now()

	img, err := raster.DecodeBytes(data, source)
	if err != nil {
		return Result{}, fmt.Errorf("decode %s: %w", source, err)
	}
	bounds := img.Bounds()

	colors, stats, err := s.extract(ctx, img, options, method)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Source:      source,
		SourceKind:  sourceKind,
		ContentHash: contentHash,
		Method:      string(method),
		Amount:      options.Amount,
		MinCoverage: options.MinCoverage,
		Colors:      NewSwatches(colors),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Stats:       stats,
		DurationMS:  s.now().Sub(startedAt).Milliseconds(),
	}

	s.logger.Info("palette extracted",
		"source", source,
		"method", result.Method,
		"colors", len(result.Colors),
		"durationMs", result.DurationMS,
	)

	if s.history == nil {
		return result, nil
	}

	record := history.Record{
		Source:      result.Source,
		SourceKind:  result.SourceKind,
		ContentHash: result.ContentHash,
		Method:      result.Method,
		Amount:      result.Amount,
		MinCoverage: result.MinCoverage,
		Colors:      colors,
		Width:       result.Width,
		Height:      result.Height,
		DurationMS:  result.DurationMS,
	}
	if stats != nil {
		record.DistinctColors = stats.DistinctColors
	}

	saved, err := s.history.Save(ctx, record)
	if err != nil {
		return Result{}, fmt.Errorf("record palette history: %w", err)
	}
	result.ID = saved.ID
	result.CreatedAt = saved.CreatedAt

	return result, nil
}

func (s *PaletteService) extract(ctx context.Context, img image.Image, options GenerateOptions, method palette.Method) ([]palette.RGB, *palette.Stats, error) {
	scaled := raster.Downscale(img, options.Scale, options.MaxDimension)

	if method == palette.MethodKmeans {
		colors, err := palette.Kmeans(scaled, options.Amount)
		if err != nil {
			return nil, nil, err
		}
		return colors, nil, nil
	}

	pixels, err := raster.FromImage(scaled)
	if err != nil {
		return nil, nil, err
	}
	if err := pixels.Validate(); err != nil {
		return nil, nil, err
	}

	extracted, err := s.extractor.Extract(ctx, pixels.Pix, palette.Options{
		AmountToPick: options.Amount,
		MinCoverage:  options.MinCoverage,
	})
	if err != nil {
		return nil, nil, err
	}
	return extracted.Colors, &extracted.Stats, nil
}

func buildPaletteCacheKey(source string, options GenerateOptions) string {
	return fmt.Sprintf(
		"%s|a:%d|mc:%0.6f|m:%s|s:%0.4f|md:%d",
		source,
		options.Amount,
		options.MinCoverage,
		options.Method,
		options.Scale,
		options.MaxDimension,
	)
}

func (s *PaletteService) loadCachedResult(cacheKey string, sourceModUnixNano int64) (Result, bool) {
	s.cacheMu.RLock()
	entry, ok := s.cache[cacheKey]
	s.cacheMu.RUnlock()
	if !ok || entry.sourceModUnixNano != sourceModUnixNano {
		return Result{}, false
	}

	result := entry.result
	result.Cached = true
	return result, true
}

func (s *PaletteService) storeCachedResult(cacheKey string, sourceModUnixNano int64, result Result) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[cacheKey] = paletteCacheEntry{
		result:            result,
		sourceModUnixNano: sourceModUnixNano,
		cachedAt:          s.now(),
	}

	if len(s.cache) <= maxPaletteCacheEntries {
		return
	}

	oldestKey := ""
	oldestAt := s.now()
	for key, entry := range s.cache {
		if oldestKey == "" || entry.cachedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.cachedAt
		}
	}

	if oldestKey != "" {
		delete(s.cache, oldestKey)
	}
}
