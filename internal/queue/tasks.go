package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const TypeOptimizeMedia = "media:optimize"

type OptimizeMediaPayload struct {
	MediaID     string    `json:"media_id"`
	SourceType  string    `json:"source_type"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
	ObjectKey   string    `json:"object_key"`
	RequestedAt time.Time `json:"requested_at"`
}

// TaskID keeps at most one pending optimize task per media item.
func TaskID(mediaID string) string {
	return TypeOptimizeMedia + ":" + mediaID
}

func NewOptimizeMediaTask(payload OptimizeMediaPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.MediaID) == "" {
		return nil, errors.New("media_id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal optimize payload: %w", err)
	}
	return asynq.NewTask(TypeOptimizeMedia, body), nil
}

func ParseOptimizeMediaPayload(task *asynq.Task) (OptimizeMediaPayload, error) {
	var payload OptimizeMediaPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OptimizeMediaPayload{}, fmt.Errorf("unmarshal optimize payload: %w", err)
	}
	if strings.TrimSpace(payload.MediaID) == "" {
		return OptimizeMediaPayload{}, errors.New("optimize payload missing media_id")
	}
	return payload, nil
}
