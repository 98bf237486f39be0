package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"palettemaker/internal/palette"
)

var ErrPaletteNotFound = errors.New("palette not found")

// Fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = "id, source, source_kind, content_hash, method, amount, min_coverage, colors, width, height, distinct_colors, duration_ms, created_at"

type Record struct {
	ID             string        `json:"id"`
	Source         string        `json:"source"`
	SourceKind     string        `json:"sourceKind"`
	ContentHash    string        `json:"contentHash"`
	Method         string        `json:"method"`
	Amount         int           `json:"amount"`
	MinCoverage    float64       `json:"minCoverage"`
	Colors         []palette.RGB `json:"colors"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	DistinctColors int           `json:"distinctColors"`
	DurationMS     int64         `json:"durationMs"`
	CreatedAt      string        `json:"createdAt"`
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(database *sql.DB) *Repository {
	return &Repository{db: database, now: time.Now}
}

func (r *Repository) Save(ctx context.Context, record Record) (Record, error) {
	if strings.TrimSpace(record.Source) == "" {
		return Record{}, errors.New("source is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Colors == nil {
		record.Colors = []palette.RGB{}
	}
	record.CreatedAt = r.now().UTC().Format(timeLayout)

	colors, err := json.Marshal(record.Colors)
	if err != nil {
		return Record{}, fmt.Errorf("encode palette colors: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO palettes(id, source, source_kind, content_hash, method, amount, min_coverage, colors, width, height, distinct_colors, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Source,
		record.SourceKind,
		record.ContentHash,
		record.Method,
		record.Amount,
		record.MinCoverage,
		string(colors),
		record.Width,
		record.Height,
		record.DistinctColors,
		record.DurationMS,
		record.CreatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert palette: %w", err)
	}

	return record, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM palettes WHERE id = ?", id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrPaletteNotFound
		}
		return Record{}, fmt.Errorf("get palette %s: %w", id, err)
	}
	return record, nil
}

// FindLatest returns the newest palette computed from the same content with
// the same parameters.
func (r *Repository) FindLatest(ctx context.Context, contentHash string, method string, amount int, minCoverage float64) (Record, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT "+selectColumns+` FROM palettes
		WHERE content_hash = ? AND method = ? AND amount = ? AND min_coverage = ?
		ORDER BY created_at DESC LIMIT 1`,
		contentHash,
		method,
		amount,
		minCoverage,
	)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrPaletteNotFound
		}
		return Record{}, fmt.Errorf("find palette for %s: %w", contentHash, err)
	}
	return record, nil
}

func (r *Repository) List(ctx context.Context, limit int, offset int) ([]Record, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT "+selectColumns+" FROM palettes ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list palettes: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan palette row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate palette rows: %w", err)
	}

	return records, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM palettes").Scan(&count); err != nil {
		return 0, fmt.Errorf("count palettes: %w", err)
	}
	return count, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM palettes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete palette %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read deleted palette count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPaletteNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var record Record
	var colors string
	if err := row.Scan(
		&record.ID,
		&record.Source,
		&record.SourceKind,
		&record.ContentHash,
		&record.Method,
		&record.Amount,
		&record.MinCoverage,
		&colors,
		&record.Width,
		&record.Height,
		&record.DistinctColors,
		&record.DurationMS,
		&record.CreatedAt,
	); err != nil {
		return Record{}, err
	}

	if err := json.Unmarshal([]byte(colors), &record.Colors); err != nil {
		return Record{}, fmt.Errorf("decode palette colors: %w", err)
	}

	return record, nil
}
