package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

const supabaseListPage = 1000

type SupabaseConfig struct {
	URL    string
	Key    string
	Bucket string
}

// SupabaseStore talks to Supabase Storage. The client has no context support,
// so cancellation is only checked between calls.
type SupabaseStore struct {
	client  *storage_go.Client
	baseURL string
	bucket  string
}

func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("supabase url is required")
	}
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, errors.New("supabase key is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket is required")
	}

	storageURL := base + "/storage/v1"
	return &SupabaseStore{
		client:  storage_go.NewClient(storageURL, cfg.Key, nil),
		baseURL: storageURL,
		bucket:  cfg.Bucket,
	}, nil
}

func (s *SupabaseStore) ReadObject(ctx context.Context, objectKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.DownloadFile(s.bucket, objectKey)
	if err != nil {
		return nil, fmt.Errorf("download object %s: %w", objectKey, err)
	}
	return data, nil
}

func (s *SupabaseStore) WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, objectKey, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", objectKey, err)
	}
	return nil
}

func (s *SupabaseStore) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	dir, name := path.Split(strings.TrimLeft(objectKey, "/"))
	dir = strings.TrimSuffix(dir, "/")

	for offset := 0; ; offset += supabaseListPage {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		files, err := s.client.ListFiles(s.bucket, dir, storage_go.FileSearchOptions{
			Limit:  supabaseListPage,
			Offset: offset,
		})
		if err != nil {
			return false, fmt.Errorf("list objects under %q: %w", dir, err)
		}
		for _, f := range files {
			if f.Name == name {
				return true, nil
			}
		}
		if len(files) < supabaseListPage {
			return false, nil
		}
	}
}

// PresignedPutURL returns a signed upload URL. Supabase fixes the lifetime of
// upload tokens server side, so expiry is ignored.
func (s *SupabaseStore) PresignedPutURL(ctx context.Context, objectKey string, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := s.client.CreateSignedUploadUrl(s.bucket, objectKey)
	if err != nil {
		return "", fmt.Errorf("sign upload url: %w", err)
	}
	if strings.HasPrefix(resp.Url, "http://") || strings.HasPrefix(resp.Url, "https://") {
		return resp.Url, nil
	}
	return s.baseURL + "/" + strings.TrimLeft(resp.Url, "/"), nil
}

func (s *SupabaseStore) PublicURL(objectKey string) string {
	return s.client.GetPublicUrl(s.bucket, objectKey).SignedURL
}
