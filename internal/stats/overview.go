package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"palettemaker/internal/palette"
)

const (
	heatmapDays     = 30
	defaultTopLimit = 10
	maxTopLimit     = 50
	dayKeyLayout    = "2006-01-02"
)

type Overview struct {
	GeneratedAt string       `json:"generatedAt"`
	Summary     Summary      `json:"summary"`
	Methods     []CountStat  `json:"methods"`
	SourceKinds []CountStat  `json:"sourceKinds"`
	TopColors   []ColorStat  `json:"topColors"`
	Heatmap     []HeatmapDay `json:"heatmap"`
}

type Summary struct {
	TotalPalettes  int     `json:"totalPalettes"`
	UniqueSources  int     `json:"uniqueSources"`
	EmptyPalettes  int     `json:"emptyPalettes"`
	AverageColors  float64 `json:"averageColors"`
	AverageMS      float64 `json:"averageMs"`
	LastCreatedAt  *string `json:"lastCreatedAt,omitempty"`
	FirstCreatedAt *string `json:"firstCreatedAt,omitempty"`
}

type CountStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ColorStat counts how many stored palettes contain an exact color.
type ColorStat struct {
	Color    palette.RGB `json:"color"`
	Palettes int         `json:"palettes"`
}

type HeatmapDay struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(database *sql.DB) *Service {
	return &Service{db: database, now: time.Now}
}

// GetOverview reads every section inside one read-only transaction.
func (s *Service) GetOverview(ctx context.Context, limit int) (Overview, error) {
	now := s.now().UTC()
	overview := Overview{
		GeneratedAt: now.Format(time.RFC3339),
		Methods:     make([]CountStat, 0),
		SourceKinds: make([]CountStat, 0),
		TopColors:   make([]ColorStat, 0),
		Heatmap:     make([]HeatmapDay, 0, heatmapDays),
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Overview{}, fmt.Errorf("begin stats tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	summary, err := readSummary(ctx, tx)
	if err != nil {
		return Overview{}, err
	}
	overview.Summary = summary

	methods, err := readCounts(ctx, tx, "method")
	if err != nil {
		return Overview{}, err
	}
	overview.Methods = methods

	kinds, err := readCounts(ctx, tx, "source_kind")
	if err != nil {
		return Overview{}, err
	}
	overview.SourceKinds = kinds

	colors, err := readTopColors(ctx, tx, normalizeTopLimit(limit))
	if err != nil {
		return Overview{}, err
	}
	overview.TopColors = colors

	heatmap, err := readHeatmap(ctx, tx, now)
	if err != nil {
		return Overview{}, err
	}
	overview.Heatmap = heatmap

	if err := tx.Commit(); err != nil {
		return Overview{}, fmt.Errorf("commit stats tx: %w", err)
	}

	return overview, nil
}

func readSummary(ctx context.Context, q queryer) (Summary, error) {
	var summary Summary
	var first sql.NullString
	var last sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT
			COUNT(1),
			COUNT(DISTINCT NULLIF(content_hash, '')),
			COALESCE(SUM(CASE WHEN json_array_length(colors) = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(json_array_length(colors)), 0),
			COALESCE(AVG(duration_ms), 0),
			MIN(created_at),
			MAX(created_at)
		FROM palettes
	`).Scan(
		&summary.TotalPalettes,
		&summary.UniqueSources,
		&summary.EmptyPalettes,
		&summary.AverageColors,
		&summary.AverageMS,
		&first,
		&last,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("read palette summary: %w", err)
	}

	if first.Valid {
		summary.FirstCreatedAt = &first.String
	}
	if last.Valid {
		summary.LastCreatedAt = &last.String
	}
	return summary, nil
}

// readCounts groups palettes by a fixed column name; never pass user input.
func readCounts(ctx context.Context, q queryer, column string) ([]CountStat, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT %[1]s, COUNT(1) FROM palettes GROUP BY %[1]s ORDER BY COUNT(1) DESC, %[1]s ASC",
		column,
	))
	if err != nil {
		return nil, fmt.Errorf("count palettes by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make([]CountStat, 0)
	for rows.Next() {
		var stat CountStat
		if err := rows.Scan(&stat.Name, &stat.Count); err != nil {
			return nil, err
		}
		counts = append(counts, stat)
	}
	return counts, rows.Err()
}

func readTopColors(ctx context.Context, q queryer, limit int) ([]ColorStat, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT
			json_extract(color.value, '$.r') AS r,
			json_extract(color.value, '$.g') AS g,
			json_extract(color.value, '$.b') AS b,
			COUNT(DISTINCT palettes.id) AS palette_count
		FROM palettes, json_each(palettes.colors) AS color
		GROUP BY r, g, b
		ORDER BY palette_count DESC, r ASC, g ASC, b ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("read top colors: %w", err)
	}
	defer rows.Close()

	colors := make([]ColorStat, 0, limit)
	for rows.Next() {
		var r, g, b int
		var count int
		if err := rows.Scan(&r, &g, &b, &count); err != nil {
			return nil, err
		}
		colors = append(colors, ColorStat{
			Color:    palette.RGB{R: uint8(r), G: uint8(g), B: uint8(b)},
			Palettes: count,
		})
	}
	return colors, rows.Err()
}

func readHeatmap(ctx context.Context, q queryer, reference time.Time) ([]HeatmapDay, error) {
	start := startOfUTCDay(reference).AddDate(0, 0, -(heatmapDays - 1))

	rows, err := q.QueryContext(ctx, `
		SELECT substr(created_at, 1, 10) AS day, COUNT(1)
		FROM palettes
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day ASC
	`, start.Format(dayKeyLayout))
	if err != nil {
		return nil, fmt.Errorf("read heatmap: %w", err)
	}
	defer rows.Close()

	countsByDay := make(map[string]int)
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		countsByDay[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]HeatmapDay, 0, heatmapDays)
	for i := 0; i < heatmapDays; i++ {
		day := start.AddDate(0, 0, i).Format(dayKeyLayout)
		result = append(result, HeatmapDay{Day: day, Count: countsByDay[day]})
	}
	return result, nil
}

func normalizeTopLimit(limit int) int {
	if limit <= 0 {
		return defaultTopLimit
	}
	if limit > maxTopLimit {
		return maxTopLimit
	}
	return limit
}

func startOfUTCDay(value time.Time) time.Time {
	utc := value.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
