package store

import (
	"context"
	"errors"

	"github.com/edashow/mediaflow/internal/domain"
)

var ErrMediaNotFound = errors.New("media not found")

type MediaStore interface {
	Create(ctx context.Context, media domain.Media) error
	Get(ctx context.Context, id string) (domain.Media, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Media, error)
	Complete(ctx context.Context, id string, c Completion) (domain.Media, error)
}

type OptimizationLogStore interface {
	CreateOptimizationLog(ctx context.Context, entry domain.OptimizationLog) error
}

// Completion is the terminal state written by the worker.
type Completion struct {
	Status         string
	OptimizedKey   string
	Format         domain.Format
	Width          int
	Height         int
	OriginalBytes  int64
	OptimizedBytes int64
	Error          string
}

func (c Completion) apply(m *domain.Media) {
	m.Status = c.Status
	m.OptimizedKey = c.OptimizedKey
	m.Format = c.Format
	m.Width = c.Width
	m.Height = c.Height
	m.OriginalBytes = c.OriginalBytes
	m.OptimizedBytes = c.OptimizedBytes
	m.Error = c.Error
}
