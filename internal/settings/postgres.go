package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/edashow/mediaflow/internal/domain"
	_ "github.com/lib/pq"
)

const settingsSchemaSQL = `
CREATE TABLE IF NOT EXISTS image_settings (
	id TEXT PRIMARY KEY,
	enabled BOOLEAN NOT NULL DEFAULT FALSE,
	format TEXT NOT NULL DEFAULT 'webp',
	quality INTEGER NOT NULL DEFAULT 85,
	max_width INTEGER NOT NULL DEFAULT 1920,
	max_height INTEGER NOT NULL DEFAULT 1080,
	watermark_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	watermark_logo_url TEXT,
	watermark_position TEXT NOT NULL DEFAULT 'bottom-right',
	watermark_opacity INTEGER NOT NULL DEFAULT 50,
	watermark_size INTEGER NOT NULL DEFAULT 15,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStore reads the image_settings table. The table holds a single row;
// the most recently updated one wins if an operator inserted more.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open pool and makes sure the table exists.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("postgres pool is required")
	}
	if _, err := db.ExecContext(ctx, settingsSchemaSQL); err != nil {
		return nil, fmt.Errorf("ensure image_settings schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Get(ctx context.Context) (domain.ImageSettings, bool, error) {
	row := p.db.QueryRowContext(
		ctx,
		`SELECT id, enabled, format, quality, max_width, max_height, watermark_enabled,
		        watermark_logo_url, watermark_position, watermark_opacity, watermark_size, updated_at
		 FROM image_settings
		 ORDER BY updated_at DESC
		 LIMIT 1`,
	)

	var (
		s        domain.ImageSettings
		format   string
		position string
		logoURL  sql.NullString
	)
	if err := row.Scan(
		&s.ID,
		&s.Enabled,
		&format,
		&s.Quality,
		&s.MaxWidth,
		&s.MaxHeight,
		&s.WatermarkEnabled,
		&logoURL,
		&position,
		&s.WatermarkOpacity,
		&s.WatermarkSize,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ImageSettings{}, false, nil
		}
		return domain.ImageSettings{}, false, fmt.Errorf("query image settings: %w", err)
	}

	s.Format = domain.Format(format)
	s.WatermarkPosition = domain.Position(position)
	s.WatermarkLogoURL = logoURL.String
	return s, true, nil
}

func (p *PostgresStore) Save(ctx context.Context, in domain.ImageSettings) error {
	s := prepare(in)

	var logoURL sql.NullString
	if s.WatermarkLogoURL != "" {
		logoURL = sql.NullString{String: s.WatermarkLogoURL, Valid: true}
	}

	_, err := p.db.ExecContext(
		ctx,
		`INSERT INTO image_settings (id, enabled, format, quality, max_width, max_height, watermark_enabled,
		                             watermark_logo_url, watermark_position, watermark_opacity, watermark_size, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   enabled = EXCLUDED.enabled,
		   format = EXCLUDED.format,
		   quality = EXCLUDED.quality,
		   max_width = EXCLUDED.max_width,
		   max_height = EXCLUDED.max_height,
		   watermark_enabled = EXCLUDED.watermark_enabled,
		   watermark_logo_url = EXCLUDED.watermark_logo_url,
		   watermark_position = EXCLUDED.watermark_position,
		   watermark_opacity = EXCLUDED.watermark_opacity,
		   watermark_size = EXCLUDED.watermark_size,
		   updated_at = EXCLUDED.updated_at`,
		s.ID,
		s.Enabled,
		string(s.Format),
		s.Quality,
		s.MaxWidth,
		s.MaxHeight,
		s.WatermarkEnabled,
		logoURL,
		string(s.WatermarkPosition),
		s.WatermarkOpacity,
		s.WatermarkSize,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert image settings: %w", err)
	}
	return nil
}
