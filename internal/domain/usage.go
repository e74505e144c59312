package domain

import "time"

type OptimizationLog struct {
	MediaID         string
	UploadedBy      string
	PixelsProcessed int64
	BytesSaved      int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
