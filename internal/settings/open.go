package settings

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Open builds the store named by driver: postgres (needs db), gorm (SQLite at
// sqlitePath), file (YAML at filePath, watched) or memory.
func Open(ctx context.Context, driver string, db *sql.DB, sqlitePath, filePath string, logger *zap.Logger) (Store, error) {
	switch driver {
	case "", "postgres":
		return NewPostgresStore(ctx, db)
	case "gorm", "sqlite":
		return OpenSQLite(sqlitePath)
	case "file", "yaml":
		fs, err := NewFileStore(filePath, logger)
		if err != nil {
			return nil, err
		}
		if err := fs.Watch(ctx); err != nil {
			return nil, err
		}
		return fs, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported settings driver: %s", driver)
	}
}
