package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	MediaStatusCreated    = "created"
	MediaStatusQueued     = "queued"
	MediaStatusProcessing = "processing"
	MediaStatusOptimized  = "optimized"
	MediaStatusSkipped    = "skipped"
	MediaStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

type CreateMediaRequest struct {
	SourceType  string `json:"source_type"`
	Filename    string `json:"filename,omitempty"`
	ObjectKey   string `json:"object_key,omitempty"`
	WebhookURL  string `json:"webhook_url,omitempty"`
	UploadedBy  string `json:"uploaded_by,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Media is an uploaded asset and the state of its optimization.
type Media struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	SourceType     string    `json:"source_type"`
	Filename       string    `json:"filename,omitempty"`
	ContentType    string    `json:"content_type,omitempty"`
	ObjectKey      string    `json:"object_key"`
	OptimizedKey   string    `json:"optimized_key,omitempty"`
	Format         Format    `json:"format,omitempty"`
	Width          int       `json:"width,omitempty"`
	Height         int       `json:"height,omitempty"`
	OriginalBytes  int64     `json:"original_bytes,omitempty"`
	OptimizedBytes int64     `json:"optimized_bytes,omitempty"`
	UploadedBy     string    `json:"uploaded_by,omitempty"`
	WebhookURL     string    `json:"webhook_url,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Terminal reports whether no further processing will happen for the media.
func (m Media) Terminal() bool {
	switch m.Status {
	case MediaStatusOptimized, MediaStatusSkipped, MediaStatusFailed:
		return true
	}
	return false
}

func (r CreateMediaRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if hook := strings.TrimSpace(r.WebhookURL); hook != "" {
		u, err := url.Parse(hook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid webhook_url: %s", r.WebhookURL)
		}
	}
	return nil
}
