package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
	_ "github.com/lib/pq"
)

const mediaSchemaSQL = `
CREATE TABLE IF NOT EXISTS media (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	source_type TEXT NOT NULL,
	filename TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	object_key TEXT NOT NULL,
	optimized_key TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL DEFAULT '',
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	original_bytes BIGINT NOT NULL DEFAULT 0,
	optimized_bytes BIGINT NOT NULL DEFAULT 0,
	uploaded_by TEXT NOT NULL DEFAULT '',
	webhook_url TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS optimization_logs (
	id BIGSERIAL PRIMARY KEY,
	media_id TEXT NOT NULL,
	uploaded_by TEXT NOT NULL,
	pixels_processed BIGINT NOT NULL,
	bytes_saved BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS optimization_logs_media_id_idx ON optimization_logs (media_id);
`

const mediaColumns = `id, status, source_type, filename, content_type, object_key, optimized_key, format,
	width, height, original_bytes, optimized_bytes, uploaded_by, webhook_url, error, created_at, updated_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// DB exposes the pool so other stores can share the connection.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, mediaSchemaSQL); err != nil {
		return fmt.Errorf("ensure media schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, m domain.Media) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media (`+mediaColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		m.ID,
		m.Status,
		m.SourceType,
		m.Filename,
		m.ContentType,
		m.ObjectKey,
		m.OptimizedKey,
		string(m.Format),
		m.Width,
		m.Height,
		m.OriginalBytes,
		m.OptimizedBytes,
		m.UploadedBy,
		m.WebhookURL,
		m.Error,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.Media, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id)

	var (
		m      domain.Media
		format string
	)
	if err := row.Scan(
		&m.ID,
		&m.Status,
		&m.SourceType,
		&m.Filename,
		&m.ContentType,
		&m.ObjectKey,
		&m.OptimizedKey,
		&format,
		&m.Width,
		&m.Height,
		&m.OriginalBytes,
		&m.OptimizedBytes,
		&m.UploadedBy,
		&m.WebhookURL,
		&m.Error,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Media{}, false, nil
		}
		return domain.Media{}, false, fmt.Errorf("query media: %w", err)
	}
	m.Format = domain.Format(format)

	return m, true, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id, status string) (domain.Media, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE media
		 SET status = $1, updated_at = $2
		 WHERE id = $3`,
		status,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Media{}, fmt.Errorf("update media status: %w", err)
	}
	return s.reload(ctx, id, res)
}

func (s *PostgresStore) Complete(ctx context.Context, id string, c Completion) (domain.Media, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE media
		 SET status = $1, optimized_key = $2, format = $3, width = $4, height = $5,
		     original_bytes = $6, optimized_bytes = $7, error = $8, updated_at = $9
		 WHERE id = $10`,
		c.Status,
		c.OptimizedKey,
		string(c.Format),
		c.Width,
		c.Height,
		c.OriginalBytes,
		c.OptimizedBytes,
		c.Error,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Media{}, fmt.Errorf("complete media: %w", err)
	}
	return s.reload(ctx, id, res)
}

func (s *PostgresStore) reload(ctx context.Context, id string, res sql.Result) (domain.Media, error) {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Media{}, ErrMediaNotFound
	}

	m, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Media{}, err
	}
	if !ok {
		return domain.Media{}, ErrMediaNotFound
	}
	return m, nil
}

func (s *PostgresStore) CreateOptimizationLog(ctx context.Context, entry domain.OptimizationLog) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO optimization_logs (media_id, uploaded_by, pixels_processed, bytes_saved, compute_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.MediaID,
		entry.UploadedBy,
		entry.PixelsProcessed,
		entry.BytesSaved,
		entry.ComputeTimeMS,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert optimization log: %w", err)
	}
	return nil
}
