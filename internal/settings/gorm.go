package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type settingsRow struct {
	ID                string `gorm:"primaryKey"`
	Enabled           bool
	Format            string
	Quality           int
	MaxWidth          int
	MaxHeight         int
	WatermarkEnabled  bool
	WatermarkLogoURL  *string `gorm:"column:watermark_logo_url"`
	WatermarkPosition string
	WatermarkOpacity  int
	WatermarkSize     int
	UpdatedAt         time.Time
}

func (settingsRow) TableName() string {
	return "image_settings"
}

// GormStore keeps settings in any gorm dialect; the binaries use SQLite for
// single-node deployments.
type GormStore struct {
	db *gorm.DB
}

func OpenSQLite(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite settings db: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&settingsRow{}); err != nil {
		return nil, fmt.Errorf("migrate image_settings: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) Get(ctx context.Context) (domain.ImageSettings, bool, error) {
	var row settingsRow
	err := g.db.WithContext(ctx).Order("updated_at DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ImageSettings{}, false, nil
	}
	if err != nil {
		return domain.ImageSettings{}, false, fmt.Errorf("query image settings: %w", err)
	}

	s := domain.ImageSettings{
		ID:                row.ID,
		Enabled:           row.Enabled,
		Format:            domain.Format(row.Format),
		Quality:           row.Quality,
		MaxWidth:          row.MaxWidth,
		MaxHeight:         row.MaxHeight,
		WatermarkEnabled:  row.WatermarkEnabled,
		WatermarkPosition: domain.Position(row.WatermarkPosition),
		WatermarkOpacity:  row.WatermarkOpacity,
		WatermarkSize:     row.WatermarkSize,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.WatermarkLogoURL != nil {
		s.WatermarkLogoURL = *row.WatermarkLogoURL
	}
	return s, true, nil
}

func (g *GormStore) Save(ctx context.Context, in domain.ImageSettings) error {
	s := prepare(in)
	row := settingsRow{
		ID:                s.ID,
		Enabled:           s.Enabled,
		Format:            string(s.Format),
		Quality:           s.Quality,
		MaxWidth:          s.MaxWidth,
		MaxHeight:         s.MaxHeight,
		WatermarkEnabled:  s.WatermarkEnabled,
		WatermarkPosition: string(s.WatermarkPosition),
		WatermarkOpacity:  s.WatermarkOpacity,
		WatermarkSize:     s.WatermarkSize,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.WatermarkLogoURL != "" {
		row.WatermarkLogoURL = &s.WatermarkLogoURL
	}

	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert image settings: %w", err)
	}
	return nil
}
