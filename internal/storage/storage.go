// Package storage wraps the object stores media is uploaded to.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/edashow/mediaflow/internal/config"
)

type ObjectStore interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	PublicURL(objectKey string) string
}

// Open builds the backend selected by cfg.Backend and makes sure its bucket
// is reachable.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "", "minio", "s3":
		client, err := NewMinIOStore(MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			Access:    cfg.MinIO.AccessKey,
			Secret:    cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
			PublicURL: cfg.MinIO.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return client, nil
	case "supabase":
		return NewSupabaseStore(SupabaseConfig{
			URL:    cfg.Supabase.URL,
			Key:    cfg.Supabase.Key,
			Bucket: cfg.Supabase.Bucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
