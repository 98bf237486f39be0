package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"palettemaker/internal/coverart"
	"palettemaker/internal/history"
	"palettemaker/internal/swatch"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Page struct {
	Items  []history.Record `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type HistoryService struct {
	repo      *history.Repository
	swatchDir string
}

func NewHistoryService(repo *history.Repository, swatchDir string) *HistoryService {
	return &HistoryService{repo: repo, swatchDir: swatchDir}
}

func (s *HistoryService) List(ctx context.Context, limit int, offset int) (Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return Page{}, err
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return Page{}, err
	}

	return Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get treats malformed ids as unknown ones.
func (s *HistoryService) Get(ctx context.Context, id string) (history.Record, error) {
	if uuid.Validate(id) != nil {
		return history.Record{}, history.ErrPaletteNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes the record and any swatch sheets rendered for it.
func (s *HistoryService) Delete(ctx context.Context, id string) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return swatch.RemoveSheets(s.swatchDir, record.Colors)
}

// Latest returns the newest stored palette computed from the same content
// with the same method, amount and coverage.
func (s *HistoryService) Latest(ctx context.Context, contentHash string, options GenerateOptions) (history.Record, error) {
	contentHash = strings.ToLower(strings.TrimSpace(contentHash))
	if !coverart.IsValidHash(contentHash) {
		return history.Record{}, history.ErrPaletteNotFound
	}

	normalized, method, err := options.normalized()
	if err != nil {
		return history.Record{}, err
	}
	return s.repo.FindLatest(ctx, contentHash, string(method), normalized.Amount, normalized.MinCoverage)
}

// SwatchSheet renders the stored palette once per variant and returns the
// cached PNG path.
func (s *HistoryService) SwatchSheet(ctx context.Context, id string, variant string) (string, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	path, err := swatch.SaveSheet(s.swatchDir, record.Colors, swatch.NormalizeVariant(variant))
	if err != nil {
		return "", fmt.Errorf("render swatch for %s: %w", id, err)
	}
	return path, nil
}
