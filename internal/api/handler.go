package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"palettemaker/internal/history"
	"palettemaker/internal/palette"
	"palettemaker/internal/raster"
	"palettemaker/internal/service"
	"palettemaker/internal/stats"
)

const maxUploadBytes = 32 << 20

type PaletteGenerator interface {
	DefaultOptions() service.GenerateOptions
	GenerateFromBytes(ctx context.Context, name string, data []byte, options service.GenerateOptions) (service.Result, error)
}

type HistoryStore interface {
	List(ctx context.Context, limit int, offset int) (service.Page, error)
	Get(ctx context.Context, id string) (history.Record, error)
	Delete(ctx context.Context, id string) error
	SwatchSheet(ctx context.Context, id string, variant string) (string, error)
}

type StatsReader interface {
	GetOverview(ctx context.Context, limit int) (stats.Overview, error)
}

type Handler struct {
	palettes PaletteGenerator
	history  HistoryStore
	stats    StatsReader
	logger   *slog.Logger

	maxUploadBytes int64
}

func NewHandler(palettes PaletteGenerator, historyStore HistoryStore, statsReader StatsReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		palettes:       palettes,
		history:        historyStore,
		stats:          statsReader,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Health(c *gin.Context) {
	Success(c, http.StatusOK, "ok", gin.H{"status": "ok"})
}

// CreatePalette extracts a palette from the multipart "image" field.
// Optional form fields: amount, minCoverage, method, scale, maxDimension.
func (h *Handler) CreatePalette(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxBytesErr.Limit))
			return
		}
		Fail(c, http.StatusBadRequest, "image file is required")
		return
	}

	options, err := h.parseOptions(c)
	if err != nil {
		Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		Fail(c, http.StatusBadRequest, "could not open uploaded image")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		Fail(c, http.StatusBadRequest, "could not read uploaded image")
		return
	}

	result, err := h.palettes.GenerateFromBytes(c.Request.Context(), filepath.Base(fileHeader.Filename), data, options)
	if err != nil {
		h.fail(c, "generate palette", err)
		return
	}

	status := http.StatusCreated
	if result.Cached {
		status = http.StatusOK
	}
	Success(c, status, "palette extracted", result)
}

func (h *Handler) ListPalettes(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		Fail(c, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		Fail(c, http.StatusBadRequest, "offset must be an integer")
		return
	}

	page, err := h.history.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, "list palettes", err)
		return
	}
	Success(c, http.StatusOK, "ok", page)
}

func (h *Handler) GetPalette(c *gin.Context) {
	record, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get palette", err)
		return
	}
	Success(c, http.StatusOK, "ok", gin.H{
		"palette":  record,
		"swatches": service.NewSwatches(record.Colors),
	})
}

func (h *Handler) DeletePalette(c *gin.Context) {
	if err := h.history.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "delete palette", err)
		return
	}
	Success(c, http.StatusOK, "palette deleted", nil)
}

func (h *Handler) PaletteSwatch(c *gin.Context) {
	path, err := h.history.SwatchSheet(c.Request.Context(), c.Param("id"), c.Query("variant"))
	if err != nil {
		h.fail(c, "render swatch", err)
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.File(path)
}

func (h *Handler) Stats(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		Fail(c, http.StatusBadRequest, "limit must be an integer")
		return
	}

	overview, err := h.stats.GetOverview(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "read stats", err)
		return
	}
	Success(c, http.StatusOK, "ok", overview)
}

func (h *Handler) parseOptions(c *gin.Context) (service.GenerateOptions, error) {
	options := h.palettes.DefaultOptions()

	if value := strings.TrimSpace(c.PostForm("amount")); value != "" {
		amount, err := strconv.Atoi(value)
		if err != nil {
			return service.GenerateOptions{}, fmt.Errorf("amount must be an integer, got %q", value)
		}
		options.Amount = amount
	}
	if value := strings.TrimSpace(c.PostForm("minCoverage")); value != "" {
		minCoverage, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return service.GenerateOptions{}, fmt.Errorf("minCoverage must be a number, got %q", value)
		}
		options.MinCoverage = minCoverage
	}
	if value := strings.TrimSpace(c.PostForm("method")); value != "" {
		options.Method = value
	}
	if value := strings.TrimSpace(c.PostForm("scale")); value != "" {
		scale, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return service.GenerateOptions{}, fmt.Errorf("scale must be a number, got %q", value)
		}
		options.Scale = scale
	}
	if value := strings.TrimSpace(c.PostForm("maxDimension")); value != "" {
		maxDimension, err := strconv.Atoi(value)
		if err != nil {
			return service.GenerateOptions{}, fmt.Errorf("maxDimension must be an integer, got %q", value)
		}
		options.MaxDimension = maxDimension
	}

	return options, nil
}

func (h *Handler) fail(c *gin.Context, action string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(action, "path", c.Request.URL.Path, "error", err)
		Fail(c, status, "internal error")
		return
	}
	Fail(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, history.ErrPaletteNotFound):
		return http.StatusNotFound
	case errors.Is(err, palette.ErrInvalidAmount),
		errors.Is(err, palette.ErrInvalidCoverage),
		errors.Is(err, palette.ErrUnknownMethod),
		errors.Is(err, service.ErrInvalidScale),
		errors.Is(err, raster.ErrUnsupportedFormat),
		errors.Is(err, raster.ErrCorruptImage),
		errors.Is(err, raster.ErrEmptyImage):
		return http.StatusBadRequest
	default:
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
}
