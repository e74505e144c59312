// Package settings persists the singleton ImageSettings record.
package settings

import (
	"context"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
)

// Store reads and writes the singleton settings row. Get reports ok=false
// when nothing has been saved yet.
type Store interface {
	Get(ctx context.Context) (domain.ImageSettings, bool, error)
	Save(ctx context.Context, s domain.ImageSettings) error
}

func prepare(s domain.ImageSettings) domain.ImageSettings {
	if s.ID == "" {
		s.ID = domain.SettingsID
	}
	s.UpdatedAt = time.Now().UTC()
	return s
}
